package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafetySelection_Variants(t *testing.T) {
	u := Unsafe(SequencingEnsureOrdered)
	assert.False(t, u.IsSafe())
	assert.Equal(t, SequencingEnsureOrdered, u.Sequencing())
	_, ok := u.SafetySpec()
	assert.False(t, ok)

	s := Safe(SafetySpec{HopCount: 2, Stability: StabilityReliable, Sequencing: SequencingPreferOrdered})
	assert.True(t, s.IsSafe())
	spec, ok := s.SafetySpec()
	require.True(t, ok)
	assert.Equal(t, 2, spec.HopCount)
	assert.Equal(t, SequencingPreferOrdered, s.Sequencing())
}

func TestSafetySelection_WithSequencingKeepsOtherFields(t *testing.T) {
	base := Safe(SafetySpec{HopCount: 3, Stability: StabilityReliable})
	next := base.WithSequencing(SequencingEnsureOrdered)

	spec, ok := next.SafetySpec()
	require.True(t, ok)
	assert.Equal(t, 3, spec.HopCount)
	assert.Equal(t, StabilityReliable, spec.Stability)
	assert.Equal(t, SequencingEnsureOrdered, spec.Sequencing)

	// 原值不受影响
	orig, _ := base.SafetySpec()
	assert.Equal(t, SequencingNoPreference, orig.Sequencing)
}

func TestSafetySelection_JSON(t *testing.T) {
	data, err := json.Marshal(Unsafe(SequencingEnsureOrdered))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Unsafe":"EnsureOrdered"}`, string(data))

	data, err = json.Marshal(Safe(SafetySpec{HopCount: 1, Stability: StabilityLowLatency, Sequencing: SequencingNoPreference}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Safe":{"hop_count":1,"stability":"LowLatency","sequencing":"NoPreference"}}`, string(data))

	var back SafetySelection
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equal(Safe(SafetySpec{HopCount: 1})))

	assert.Error(t, json.Unmarshal([]byte(`{}`), &back))
	assert.Error(t, json.Unmarshal([]byte(`{"Unsafe":"Sometimes"}`), &back))
}

func TestSafetySelection_Validate(t *testing.T) {
	assert.NoError(t, Unsafe(SequencingNoPreference).Validate(4))
	assert.NoError(t, Safe(SafetySpec{HopCount: 4}).Validate(4))
	assert.ErrorIs(t, Safe(SafetySpec{HopCount: 0}).Validate(4), ErrInvalidSafetySelection)
	assert.ErrorIs(t, Safe(SafetySpec{HopCount: 5}).Validate(4), ErrInvalidSafetySelection)
}

func TestSequencing_Ordering(t *testing.T) {
	assert.Less(t, SequencingNoPreference, SequencingPreferOrdered)
	assert.Less(t, SequencingPreferOrdered, SequencingEnsureOrdered)
}
