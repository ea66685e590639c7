package main

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePreset(t *testing.T) {
	dir := t.TempDir()

	path, err := writePreset(dir, "severe_drought", 16, 24)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got sceneFile
	require.NoError(t, json.Unmarshal(raw, &got))

	assert.Equal(t, "severe_drought", got.Preset)
	assert.Equal(t, 16, got.Height)
	assert.Equal(t, 24, got.Width)
	assert.Len(t, got.Labels, 16*24)

	bands, err := got.Bands()
	require.NoError(t, err)
	assert.Equal(t, 24, bands.Shape().W)
}

func TestWritePreset_Unknown(t *testing.T) {
	_, err := writePreset(t.TempDir(), "volcano", 8, 8)
	assert.Error(t, err)
}
