package types

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
//                              Sequencing
// ============================================================================

// Sequencing 顺序投递保证
//
// 取值有序：NoPreference < PreferOrdered < EnsureOrdered。
type Sequencing int

const (
	// SequencingNoPreference 不要求顺序
	SequencingNoPreference Sequencing = iota
	// SequencingPreferOrdered 尽量顺序
	SequencingPreferOrdered
	// SequencingEnsureOrdered 必须顺序
	SequencingEnsureOrdered
)

var sequencingNames = [...]string{"NoPreference", "PreferOrdered", "EnsureOrdered"}

// String 返回名称
func (s Sequencing) String() string {
	if s >= 0 && int(s) < len(sequencingNames) {
		return sequencingNames[s]
	}
	return "Unknown"
}

// MarshalText 实现 encoding.TextMarshaler
func (s Sequencing) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(sequencingNames) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSequencing, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (s *Sequencing) UnmarshalText(text []byte) error {
	for i, n := range sequencingNames {
		if n == string(text) {
			*s = Sequencing(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidSequencing, string(text))
}

// ============================================================================
//                              Stability
// ============================================================================

// Stability 路由稳定性偏好
type Stability int

const (
	// StabilityLowLatency 低延迟优先
	StabilityLowLatency Stability = iota
	// StabilityReliable 可靠性优先
	StabilityReliable
)

// String 返回名称
func (s Stability) String() string {
	switch s {
	case StabilityLowLatency:
		return "LowLatency"
	case StabilityReliable:
		return "Reliable"
	default:
		return "Unknown"
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (s Stability) MarshalText() ([]byte, error) {
	switch s {
	case StabilityLowLatency, StabilityReliable:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrInvalidStability, int(s))
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (s *Stability) UnmarshalText(text []byte) error {
	switch string(text) {
	case "LowLatency":
		*s = StabilityLowLatency
	case "Reliable":
		*s = StabilityReliable
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStability, string(text))
	}
	return nil
}

// ============================================================================
//                              SafetySpec / SafetySelection
// ============================================================================

// SafetySpec 安全路由参数
type SafetySpec struct {
	// PreferredRoute 优先使用的私有路由（可选）
	PreferredRoute *PublicKey `json:"preferred_route,omitempty"`
	// HopCount 中继跳数
	HopCount int `json:"hop_count"`
	// Stability 稳定性偏好
	Stability Stability `json:"stability"`
	// Sequencing 顺序保证
	Sequencing Sequencing `json:"sequencing"`
}

// SafetySelection 安全选择（带标签的联合类型）
//
// Unsafe 只携带 Sequencing；Safe 携带完整的 SafetySpec。
// 零值等价于 Unsafe(NoPreference)。
type SafetySelection struct {
	safe       *SafetySpec
	sequencing Sequencing
}

// Unsafe 构造不经过安全路由的选择
func Unsafe(sequencing Sequencing) SafetySelection {
	return SafetySelection{sequencing: sequencing}
}

// Safe 构造安全路由选择
func Safe(spec SafetySpec) SafetySelection {
	s := spec
	return SafetySelection{safe: &s, sequencing: spec.Sequencing}
}

// IsSafe 是否为 Safe 变体
func (s SafetySelection) IsSafe() bool {
	return s.safe != nil
}

// SafetySpec 返回 Safe 变体的参数
func (s SafetySelection) SafetySpec() (SafetySpec, bool) {
	if s.safe == nil {
		return SafetySpec{}, false
	}
	return *s.safe, true
}

// Sequencing 返回当前顺序保证（两种变体都有）
func (s SafetySelection) Sequencing() Sequencing {
	if s.safe != nil {
		return s.safe.Sequencing
	}
	return s.sequencing
}

// WithSequencing 只替换顺序保证，其余字段保持不变
func (s SafetySelection) WithSequencing(seq Sequencing) SafetySelection {
	if s.safe != nil {
		spec := *s.safe
		spec.Sequencing = seq
		return Safe(spec)
	}
	return Unsafe(seq)
}

// Equal 结构相等
func (s SafetySelection) Equal(o SafetySelection) bool {
	if s.IsSafe() != o.IsSafe() {
		return false
	}
	if !s.IsSafe() {
		return s.sequencing == o.sequencing
	}
	a, b := *s.safe, *o.safe
	if (a.PreferredRoute == nil) != (b.PreferredRoute == nil) {
		return false
	}
	if a.PreferredRoute != nil && *a.PreferredRoute != *b.PreferredRoute {
		return false
	}
	return a.HopCount == b.HopCount && a.Stability == b.Stability && a.Sequencing == b.Sequencing
}

// Validate 校验跳数范围
func (s SafetySelection) Validate(maxHopCount int) error {
	if s.safe == nil {
		return nil
	}
	if s.safe.HopCount < 1 || s.safe.HopCount > maxHopCount {
		return fmt.Errorf("%w: hop count %d not in [1,%d]", ErrInvalidSafetySelection, s.safe.HopCount, maxHopCount)
	}
	return nil
}

// String 调试输出
func (s SafetySelection) String() string {
	if s.safe == nil {
		return fmt.Sprintf("Unsafe(%s)", s.sequencing)
	}
	return fmt.Sprintf("Safe(hops=%d, %s, %s)", s.safe.HopCount, s.safe.Stability, s.safe.Sequencing)
}

type safetySelectionJSON struct {
	Unsafe *Sequencing `json:"Unsafe,omitempty"`
	Safe   *SafetySpec `json:"Safe,omitempty"`
}

// MarshalJSON 编码为 {"Unsafe":"..."} 或 {"Safe":{...}}
func (s SafetySelection) MarshalJSON() ([]byte, error) {
	if s.safe != nil {
		return json.Marshal(safetySelectionJSON{Safe: s.safe})
	}
	seq := s.sequencing
	return json.Marshal(safetySelectionJSON{Unsafe: &seq})
}

// UnmarshalJSON 解析联合类型
func (s *SafetySelection) UnmarshalJSON(data []byte) error {
	var raw safetySelectionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSafetySelection, err)
	}
	switch {
	case raw.Safe != nil && raw.Unsafe == nil:
		*s = Safe(*raw.Safe)
	case raw.Unsafe != nil && raw.Safe == nil:
		*s = Unsafe(*raw.Unsafe)
	default:
		return fmt.Errorf("%w: exactly one of Safe/Unsafe required", ErrInvalidSafetySelection)
	}
	return nil
}
