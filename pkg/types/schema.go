package types

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// SchemaKind 模式类型
type SchemaKind string

const (
	// SchemaKindDFLT 默认模式：所有子键只允许所有者写入
	SchemaKindDFLT SchemaKind = "DFLT"
	// SchemaKindSMPL 简单多写者模式：所有者子键之后依次分配给成员
	SchemaKindSMPL SchemaKind = "SMPL"
)

// MaxSubkeyCount 单条记录允许的最大子键数
const MaxSubkeyCount = 1024

// DHTSchemaMember SMPL 模式成员
type DHTSchemaMember struct {
	// MKey 成员公钥
	MKey PublicKey `json:"m_key"`
	// MCnt 成员拥有的子键数
	MCnt uint16 `json:"m_cnt"`
}

// DHTSchema 记录模式
//
// DFLT 只使用 OCnt；SMPL 额外携带成员列表。创建后不可修改。
type DHTSchema struct {
	Kind    SchemaKind        `json:"kind"`
	OCnt    uint16            `json:"o_cnt"`
	Members []DHTSchemaMember `json:"members,omitempty"`
}

// NewDFLTSchema 创建 DFLT 模式
func NewDFLTSchema(oCnt uint16) DHTSchema {
	return DHTSchema{Kind: SchemaKindDFLT, OCnt: oCnt}
}

// NewSMPLSchema 创建 SMPL 模式
func NewSMPLSchema(oCnt uint16, members ...DHTSchemaMember) DHTSchema {
	return DHTSchema{Kind: SchemaKindSMPL, OCnt: oCnt, Members: append([]DHTSchemaMember(nil), members...)}
}

// SubkeyCount 子键总数
func (s DHTSchema) SubkeyCount() int {
	n := int(s.OCnt)
	if s.Kind == SchemaKindSMPL {
		for _, m := range s.Members {
			n += int(m.MCnt)
		}
	}
	return n
}

// Validate 校验模式
func (s DHTSchema) Validate() error {
	switch s.Kind {
	case SchemaKindDFLT:
		if len(s.Members) != 0 {
			return fmt.Errorf("%w: DFLT schema has no members", ErrInvalidSchema)
		}
	case SchemaKindSMPL:
		seen := make(map[PublicKey]struct{}, len(s.Members))
		for _, m := range s.Members {
			if m.MCnt == 0 {
				return fmt.Errorf("%w: member %s has no subkeys", ErrInvalidSchema, m.MKey)
			}
			if _, dup := seen[m.MKey]; dup {
				return fmt.Errorf("%w: duplicate member %s", ErrInvalidSchema, m.MKey)
			}
			seen[m.MKey] = struct{}{}
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSchema, s.Kind)
	}
	n := s.SubkeyCount()
	if n == 0 {
		return fmt.Errorf("%w: no subkeys", ErrInvalidSchema)
	}
	if n > MaxSubkeyCount {
		return fmt.Errorf("%w: %d subkeys exceeds %d", ErrInvalidSchema, n, MaxSubkeyCount)
	}
	return nil
}

// Compile 编码为确定性的字节序列，参与记录键的派生
//
//	DFLT: "DFLT" || o_cnt(u16 LE)
//	SMPL: "SMPL" || o_cnt(u16 LE) || (m_key(32) || m_cnt(u16 LE))*
func (s DHTSchema) Compile() []byte {
	var buf bytes.Buffer
	buf.WriteString(string(s.Kind))
	_ = binary.Write(&buf, binary.LittleEndian, s.OCnt)
	if s.Kind == SchemaKindSMPL {
		for _, m := range s.Members {
			buf.Write(m.MKey[:])
			_ = binary.Write(&buf, binary.LittleEndian, m.MCnt)
		}
	}
	return buf.Bytes()
}

// MaxSubkey 最大子键索引
func (s DHTSchema) MaxSubkey() (ValueSubkey, bool) {
	n := s.SubkeyCount()
	if n == 0 {
		return 0, false
	}
	return ValueSubkey(n - 1), true
}

// FullRange 模式覆盖的全部子键
func (s DHTSchema) FullRange() ValueSubkeyRangeSet {
	return FullSubkeyRange(s.SubkeyCount())
}

// CheckSubkeyWriter 判断 writer 是否有权写入 subkey
//
// 所有者可以写入 [0, o_cnt)，SMPL 成员只能写入分配给自己的区间。
func (s DHTSchema) CheckSubkeyWriter(owner PublicKey, subkey ValueSubkey, writer PublicKey) bool {
	if int(subkey) >= s.SubkeyCount() {
		return false
	}
	if subkey < ValueSubkey(s.OCnt) {
		return writer == owner
	}
	if s.Kind != SchemaKindSMPL {
		return false
	}
	start := ValueSubkey(s.OCnt)
	for _, m := range s.Members {
		end := start + ValueSubkey(m.MCnt)
		if subkey >= start && subkey < end {
			return writer == m.MKey
		}
		start = end
	}
	return false
}

// IsMember 判断 key 是否为 SMPL 成员
func (s DHTSchema) IsMember(key PublicKey) bool {
	for _, m := range s.Members {
		if m.MKey == key {
			return true
		}
	}
	return false
}

// String 调试输出
func (s DHTSchema) String() string {
	b, _ := json.Marshal(s)
	return string(b)
}
