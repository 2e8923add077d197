package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsportal/internal/config"
	"opsportal/internal/engine"
	"opsportal/internal/process"
)

func TestOpenSeedsDefaultDefinitionOnce(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := With(ctx, dir, "", func(ctx context.Context, e engine.Engine) error {
			def, err := e.GetDefinition(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, process.DefaultKey, def.Key)
			assert.True(t, def.IsActive)
			defs, err := e.ListDefinitions(ctx)
			require.NoError(t, err)
			assert.Len(t, defs, 1)
			return nil
		})
		require.NoError(t, err)
	}
}

func TestOpenReadsPortalConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(dir), []byte("scoring:\n  threshold: 40\n"), 0o644))

	w, err := Open(context.Background(), dir, "tester")
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, 40, w.Config.Scoring.Threshold)
	assert.Equal(t, "medium", w.Config.Conversion.DefaultPriority)
	assert.FileExists(t, filepath.Join(dir, ".opsportal", "portal.db"))
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(dir), []byte("scoring:\n  threshold: 140\n"), 0o644))

	_, err := Open(context.Background(), dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threshold")
}
