package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledLoggingIsNoop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(filepath.Join(dir, "logs"), false, "debug"))

	Store("this should go nowhere: %d", 42)
	Get(CategoryTools).Info("also nowhere")

	_, err := os.Stat(filepath.Join(dir, "logs"))
	assert.True(t, os.IsNotExist(err), "disabled logging must not create the logs directory")
}

func TestEnabledLoggingWritesCategoryFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, Initialize(dir, true, "debug"))

	Store("hello %s", "store")
	StoreDebug("debug line")
	require.NoError(t, Get(CategoryStore).Sync())

	data, err := os.ReadFile(filepath.Join(dir, "store.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello store")
	assert.Contains(t, string(data), "debug line")
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, Initialize(dir, true, "not-a-level"))

	TurnDebug("should be filtered")
	Turn("should appear")
	require.NoError(t, Get(CategoryTurn).Sync())

	data, err := os.ReadFile(filepath.Join(dir, "turn.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should be filtered")
	assert.Contains(t, string(data), "should appear")
}
