package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueSubkey 子键索引
type ValueSubkey = uint32

// ValueSubkeyRange 闭区间 [Start, End]
//
// JSON 形式为二元数组 [start, end]。
type ValueSubkeyRange struct {
	Start ValueSubkey
	End   ValueSubkey
}

// MarshalJSON 编码为 [start, end]
func (r ValueSubkeyRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]uint32{r.Start, r.End})
}

// UnmarshalJSON 解析 [start, end]
func (r *ValueSubkeyRange) UnmarshalJSON(data []byte) error {
	var pair [2]uint32
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSubkeyRange, err)
	}
	if pair[0] > pair[1] {
		return fmt.Errorf("%w: [%d,%d]", ErrInvalidSubkeyRange, pair[0], pair[1])
	}
	r.Start, r.End = pair[0], pair[1]
	return nil
}

// ValueSubkeyRangeSet 规范化的子键区间集合
//
// 区间按起点排序、互不重叠且不相邻。零值表示空集。
type ValueSubkeyRangeSet struct {
	ranges []ValueSubkeyRange
}

// NewValueSubkeyRangeSet 从任意区间列表构造规范化集合
func NewValueSubkeyRangeSet(ranges ...ValueSubkeyRange) ValueSubkeyRangeSet {
	var s ValueSubkeyRangeSet
	for _, r := range ranges {
		s = s.insert(r)
	}
	return s
}

// SingleSubkey 只包含一个子键的集合
func SingleSubkey(subkey ValueSubkey) ValueSubkeyRangeSet {
	return NewValueSubkeyRangeSet(ValueSubkeyRange{Start: subkey, End: subkey})
}

// FullSubkeyRange 覆盖 [0, count) 的集合
func FullSubkeyRange(count int) ValueSubkeyRangeSet {
	if count <= 0 {
		return ValueSubkeyRangeSet{}
	}
	return NewValueSubkeyRangeSet(ValueSubkeyRange{Start: 0, End: ValueSubkey(count - 1)})
}

// SubkeysOf 由子键列表构造集合
func SubkeysOf(subkeys ...ValueSubkey) ValueSubkeyRangeSet {
	var s ValueSubkeyRangeSet
	for _, sk := range subkeys {
		s = s.insert(ValueSubkeyRange{Start: sk, End: sk})
	}
	return s
}

// Ranges 返回区间副本
func (s ValueSubkeyRangeSet) Ranges() []ValueSubkeyRange {
	out := make([]ValueSubkeyRange, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// IsEmpty 是否为空
func (s ValueSubkeyRangeSet) IsEmpty() bool {
	return len(s.ranges) == 0
}

// Len 子键总数
func (s ValueSubkeyRangeSet) Len() uint64 {
	var n uint64
	for _, r := range s.ranges {
		n += uint64(r.End) - uint64(r.Start) + 1
	}
	return n
}

// Contains 是否包含子键
func (s ValueSubkeyRangeSet) Contains(subkey ValueSubkey) bool {
	i := sort.Search(len(s.ranges), func(i int) bool { return s.ranges[i].End >= subkey })
	return i < len(s.ranges) && s.ranges[i].Start <= subkey
}

// First 最小子键
func (s ValueSubkeyRangeSet) First() (ValueSubkey, bool) {
	if len(s.ranges) == 0 {
		return 0, false
	}
	return s.ranges[0].Start, true
}

// Last 最大子键
func (s ValueSubkeyRangeSet) Last() (ValueSubkey, bool) {
	if len(s.ranges) == 0 {
		return 0, false
	}
	return s.ranges[len(s.ranges)-1].End, true
}

// Subkeys 按升序展开所有子键
//
// 调用方负责保证集合规模合理（通常已被模式裁剪）。
func (s ValueSubkeyRangeSet) Subkeys() []ValueSubkey {
	out := make([]ValueSubkey, 0, s.Len())
	for _, r := range s.ranges {
		for sk := uint64(r.Start); sk <= uint64(r.End); sk++ {
			out = append(out, ValueSubkey(sk))
		}
	}
	return out
}

// Equal 集合是否相等
func (s ValueSubkeyRangeSet) Equal(o ValueSubkeyRangeSet) bool {
	if len(s.ranges) != len(o.ranges) {
		return false
	}
	for i := range s.ranges {
		if s.ranges[i] != o.ranges[i] {
			return false
		}
	}
	return true
}

// Union 并集
func (s ValueSubkeyRangeSet) Union(o ValueSubkeyRangeSet) ValueSubkeyRangeSet {
	out := ValueSubkeyRangeSet{ranges: s.Ranges()}
	for _, r := range o.ranges {
		out = out.insert(r)
	}
	return out
}

// Intersect 交集
func (s ValueSubkeyRangeSet) Intersect(o ValueSubkeyRangeSet) ValueSubkeyRangeSet {
	var out []ValueSubkeyRange
	i, j := 0, 0
	for i < len(s.ranges) && j < len(o.ranges) {
		a, b := s.ranges[i], o.ranges[j]
		start := max(a.Start, b.Start)
		end := min(a.End, b.End)
		if start <= end {
			out = append(out, ValueSubkeyRange{Start: start, End: end})
		}
		if a.End < b.End {
			i++
		} else {
			j++
		}
	}
	return ValueSubkeyRangeSet{ranges: out}
}

// Difference 差集 s - o
func (s ValueSubkeyRangeSet) Difference(o ValueSubkeyRangeSet) ValueSubkeyRangeSet {
	var out []ValueSubkeyRange
	for _, r := range s.ranges {
		start := uint64(r.Start)
		end := uint64(r.End)
		for _, c := range o.ranges {
			cs, ce := uint64(c.Start), uint64(c.End)
			if ce < start || cs > end {
				continue
			}
			if cs > start {
				out = append(out, ValueSubkeyRange{Start: ValueSubkey(start), End: ValueSubkey(cs - 1)})
			}
			start = ce + 1
			if start > end {
				break
			}
		}
		if start <= end {
			out = append(out, ValueSubkeyRange{Start: ValueSubkey(start), End: ValueSubkey(end)})
		}
	}
	return ValueSubkeyRangeSet{ranges: out}
}

// String 形如 "[0..3,5]"
func (s ValueSubkeyRangeSet) String() string {
	parts := make([]string, 0, len(s.ranges))
	for _, r := range s.ranges {
		if r.Start == r.End {
			parts = append(parts, strconv.FormatUint(uint64(r.Start), 10))
		} else {
			parts = append(parts, fmt.Sprintf("%d..%d", r.Start, r.End))
		}
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// MarshalJSON 编码为 [[s,e],...]
func (s ValueSubkeyRangeSet) MarshalJSON() ([]byte, error) {
	if s.ranges == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.ranges)
}

// UnmarshalJSON 解析 [[s,e],...] 并规范化
func (s *ValueSubkeyRangeSet) UnmarshalJSON(data []byte) error {
	var ranges []ValueSubkeyRange
	if err := json.Unmarshal(data, &ranges); err != nil {
		return err
	}
	*s = NewValueSubkeyRangeSet(ranges...)
	return nil
}

// insert 插入区间并合并重叠或相邻区间
func (s ValueSubkeyRangeSet) insert(r ValueSubkeyRange) ValueSubkeyRangeSet {
	if r.Start > r.End {
		r.Start, r.End = r.End, r.Start
	}
	out := make([]ValueSubkeyRange, 0, len(s.ranges)+1)
	placed := false
	for _, cur := range s.ranges {
		switch {
		case uint64(cur.End)+1 < uint64(r.Start):
			out = append(out, cur)
		case uint64(r.End)+1 < uint64(cur.Start):
			if !placed {
				out = append(out, r)
				placed = true
			}
			out = append(out, cur)
		default:
			r.Start = min(r.Start, cur.Start)
			r.End = max(r.End, cur.End)
		}
	}
	if !placed {
		out = append(out, r)
	}
	return ValueSubkeyRangeSet{ranges: out}
}
