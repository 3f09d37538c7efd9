package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsBadWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Processing.SFrames = 0
	require.ErrorContains(t, cfg.Validate(), "invalid window")
}

func TestValidateRejectsBadMethod(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Processing.Method = "multitaper"
	require.ErrorContains(t, cfg.Validate(), "invalid method")
}

func TestValidateRejectsBadAudioRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Export.AudioRate = 0
	require.ErrorContains(t, cfg.Validate(), "audio rate")
}
