package wot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiansearch/meridian/domain/wot"
)

func TestParseFilterMode(t *testing.T) {
	mode, err := wot.ParseFilterMode("strict")
	require.NoError(t, err)
	assert.Equal(t, wot.ModeStrict, mode)

	mode, err = wot.ParseFilterMode("")
	require.NoError(t, err)
	assert.Equal(t, wot.ModeOpen, mode)

	_, err = wot.ParseFilterMode("paranoid")
	assert.Error(t, err)
}

func TestFilterModeThresholds(t *testing.T) {
	assert.Equal(t, 0.7, wot.ModeStrict.Threshold())
	assert.Equal(t, 0.3, wot.ModeModerate.Threshold())
	assert.Equal(t, 0.0, wot.ModeOpen.Threshold())

	assert.False(t, wot.ModeStrict.Admits(0.5))
	assert.True(t, wot.ModeModerate.Admits(0.5))
	assert.True(t, wot.ModeOpen.Admits(0))
}

func TestAdjust(t *testing.T) {
	// Full trust with weight 1 doubles the base score.
	assert.InDelta(t, 2.0, wot.Adjust(1.0, 1.0, 1.0), 0.001)

	// No trust leaves the base untouched.
	assert.InDelta(t, 0.8, wot.Adjust(0.8, 0, 1.0), 0.001)

	// Half trust amplifies by half the weight.
	assert.InDelta(t, 0.9, wot.Adjust(0.6, 0.5, 1.0), 0.001)
}

func TestAdjustCapsAmplification(t *testing.T) {
	// Out-of-range weights and scores never exceed the 2x cap.
	assert.InDelta(t, 2.0, wot.Adjust(1.0, 5.0, 3.0), 0.001)
	assert.InDelta(t, 1.0, wot.Adjust(1.0, 1.0, -2.0), 0.001)
}
