package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// ValueSeqNum 子键序列号
type ValueSeqNum = uint32

// ValueSeqNumNone 表示子键从未写入
const ValueSeqNumNone ValueSeqNum = 0xFFFFFFFF

// WatchCountUnlimited 不限通知次数
const WatchCountUnlimited uint32 = 0xFFFFFFFF

// WatchID 监听注册标识
type WatchID string

// ============================================================================
//                              记录描述符
// ============================================================================

// DHTRecordDescriptor 记录描述符
//
// OwnerSecret 只有创建者（或以正确写者凭据打开的会话）持有。
type DHTRecordDescriptor struct {
	Key         RecordKey  `json:"key"`
	Owner       PublicKey  `json:"owner"`
	OwnerSecret *SecretKey `json:"owner_secret,omitempty"`
	Schema      DHTSchema  `json:"schema"`
}

// OwnerKeyPair 返回所有者密钥对（如果持有私钥）
func (d DHTRecordDescriptor) OwnerKeyPair() (KeyPair, bool) {
	if d.OwnerSecret == nil {
		return KeyPair{}, false
	}
	return KeyPair{Key: d.Owner, Secret: *d.OwnerSecret}, true
}

// Kind 记录的密码套件
func (d DHTRecordDescriptor) Kind() CryptoKind {
	return d.Key.Kind
}

// WithoutSecret 返回不含私钥的副本
func (d DHTRecordDescriptor) WithoutSecret() DHTRecordDescriptor {
	d.OwnerSecret = nil
	return d
}

// ============================================================================
//                              值数据
// ============================================================================

// ValueData 子键的一个版本
type ValueData struct {
	Seq    ValueSeqNum `json:"seq"`
	Data   []byte      `json:"data"`
	Writer PublicKey   `json:"writer"`
}

// Equal 判断两个值是否完全相同
func (v ValueData) Equal(o ValueData) bool {
	return v.Seq == o.Seq && v.Writer == o.Writer && bytes.Equal(v.Data, o.Data)
}

// SameContent 数据与写者相同（忽略序列号）
func (v ValueData) SameContent(o ValueData) bool {
	return v.Writer == o.Writer && bytes.Equal(v.Data, o.Data)
}

// String 调试输出
func (v ValueData) String() string {
	return fmt.Sprintf("ValueData{seq: %d, writer: %s, len: %d}", v.Seq, v.Writer, len(v.Data))
}

// SignedValueData 带写者签名的值
type SignedValueData struct {
	ValueData
	Signature Signature `json:"signature"`
}

// SignatureBytes 生成签名覆盖的字节序列
//
//	owner(32) || subkey(u32 LE) || seq(u32 LE) || writer(32) || data
func SignatureBytes(owner PublicKey, subkey ValueSubkey, v ValueData) []byte {
	buf := make([]byte, 0, PublicKeyLength*2+8+len(v.Data))
	buf = append(buf, owner[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, subkey)
	buf = binary.LittleEndian.AppendUint32(buf, v.Seq)
	buf = append(buf, v.Writer[:]...)
	buf = append(buf, v.Data...)
	return buf
}

// ============================================================================
//                              记录检查
// ============================================================================

// DHTReportScope 记录检查范围
type DHTReportScope int

const (
	// ReportScopeLocal 只检查本地缓存
	ReportScopeLocal DHTReportScope = iota
	// ReportScopeSyncGet 从网络获取序列号并同步较新的值
	ReportScopeSyncGet
	// ReportScopeSyncSet 从网络获取序列号，用于判断哪些本地值需要推送
	ReportScopeSyncSet
	// ReportScopeUpdateGet 只获取本地缺失或较旧的子键序列号
	ReportScopeUpdateGet
	// ReportScopeUpdateSet 只获取本地较新的子键序列号
	ReportScopeUpdateSet
)

var reportScopeNames = [...]string{"Local", "SyncGet", "SyncSet", "UpdateGet", "UpdateSet"}

// String 返回范围名称
func (s DHTReportScope) String() string {
	if int(s) >= 0 && int(s) < len(reportScopeNames) {
		return reportScopeNames[s]
	}
	return "Unknown"
}

// UsesNetwork 是否需要网络往返
func (s DHTReportScope) UsesNetwork() bool {
	return s != ReportScopeLocal
}

// MarshalText 实现 encoding.TextMarshaler
func (s DHTReportScope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (s *DHTReportScope) UnmarshalText(text []byte) error {
	parsed, err := ParseReportScope(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseReportScope 解析范围名称（不区分大小写）
func ParseReportScope(name string) (DHTReportScope, error) {
	for i, n := range reportScopeNames {
		if strings.EqualFold(n, name) {
			return DHTReportScope(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidReportScope, name)
}

// DHTRecordReport 记录检查结果
//
// LocalSeqs / NetworkSeqs 与 Subkeys 按位置对齐，未写入的子键为 ValueSeqNumNone。
type DHTRecordReport struct {
	Subkeys        ValueSubkeyRangeSet `json:"subkeys"`
	OfflineSubkeys ValueSubkeyRangeSet `json:"offline_subkeys"`
	LocalSeqs      []ValueSeqNum       `json:"local_seqs"`
	NetworkSeqs    []ValueSeqNum       `json:"network_seqs"`
}
