package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rs(pairs ...[2]uint32) ValueSubkeyRangeSet {
	ranges := make([]ValueSubkeyRange, 0, len(pairs))
	for _, p := range pairs {
		ranges = append(ranges, ValueSubkeyRange{Start: p[0], End: p[1]})
	}
	return NewValueSubkeyRangeSet(ranges...)
}

func TestRangeSet_Normalize(t *testing.T) {
	s := rs([2]uint32{5, 9}, [2]uint32{0, 2}, [2]uint32{3, 3}, [2]uint32{8, 12})
	assert.Equal(t, []ValueSubkeyRange{{0, 3}, {5, 12}}, s.Ranges())
	assert.Equal(t, uint64(12), s.Len())
	assert.Equal(t, "[0..3,5..12]", s.String())
}

func TestRangeSet_Contains(t *testing.T) {
	s := rs([2]uint32{0, 0}, [2]uint32{4, 6})

	assert.True(t, s.Contains(0))
	assert.False(t, s.Contains(1))
	assert.True(t, s.Contains(5))
	assert.False(t, s.Contains(7))
	assert.False(t, ValueSubkeyRangeSet{}.Contains(0))
}

func TestRangeSet_Difference(t *testing.T) {
	tests := []struct {
		name string
		a, b ValueSubkeyRangeSet
		want ValueSubkeyRangeSet
	}{
		{"disjoint", rs([2]uint32{0, 2}), rs([2]uint32{5, 6}), rs([2]uint32{0, 2})},
		{"middle", rs([2]uint32{0, 9}), rs([2]uint32{3, 4}), rs([2]uint32{0, 2}, [2]uint32{5, 9})},
		{"all", rs([2]uint32{3, 9}), rs([2]uint32{0, 20}), ValueSubkeyRangeSet{}},
		{"head", rs([2]uint32{0, 9}), rs([2]uint32{0, 2}), rs([2]uint32{3, 9})},
		{"max", rs([2]uint32{0, 0xFFFFFFFF}), rs([2]uint32{1, 0xFFFFFFFF}), SingleSubkey(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Difference(tt.b)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestRangeSet_IntersectUnion(t *testing.T) {
	a := rs([2]uint32{0, 5}, [2]uint32{10, 15})
	b := rs([2]uint32{4, 11})

	assert.Equal(t, "[4..5,10..11]", a.Intersect(b).String())
	assert.Equal(t, "[0..15]", a.Union(b).String())
}

func TestRangeSet_JSON(t *testing.T) {
	s := rs([2]uint32{3, 4}, [2]uint32{0, 1})
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `[[0,1],[3,4]]`, string(data))

	var back ValueSubkeyRangeSet
	require.NoError(t, json.Unmarshal([]byte(`[[2,2],[0,1]]`), &back))
	assert.Equal(t, "[0..2]", back.String())

	empty, err := json.Marshal(ValueSubkeyRangeSet{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))

	assert.Error(t, json.Unmarshal([]byte(`[[5,1]]`), &back))
}

func TestRangeSet_Subkeys(t *testing.T) {
	assert.Equal(t, []ValueSubkey{0, 1, 4}, rs([2]uint32{0, 1}, [2]uint32{4, 4}).Subkeys())
	assert.Empty(t, FullSubkeyRange(0).Subkeys())
	assert.Equal(t, "[0..1]", FullSubkeyRange(2).String())
	assert.Equal(t, "[1,3]", SubkeysOf(3, 1).String())
}
