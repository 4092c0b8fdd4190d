package logger_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/pricewatch/infrastructure/logger"
)

func TestNew_DefaultsToInfoJSON(t *testing.T) {
	t.Parallel()

	l, err := logger.New(logger.Config{OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	require.NotNil(t, l)

	l.With(logger.String("product_id", "42")).Info("checked")
}

func TestFromContext_ReturnsStoredLogger(t *testing.T) {
	t.Parallel()

	stored, err := logger.New(logger.Config{OutputPaths: []string{"stderr"}})
	require.NoError(t, err)

	ctx := logger.WithContext(context.Background(), stored)
	assert.Same(t, stored, logger.FromContext(ctx, nil))
}

func TestFromContext_UsesFallback(t *testing.T) {
	t.Parallel()

	fallback := logger.NewNop()
	assert.Equal(t, fallback, logger.FromContext(context.Background(), fallback))
	assert.NotNil(t, logger.FromContext(context.Background(), nil))
}

func TestNew_ConsoleFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pricewatch.log")
	l, err := logger.New(logger.Config{Level: "debug", Format: "console", OutputPaths: []string{path}})
	require.NoError(t, err)

	l.Debug("cycle started", logger.Int("products", 20))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.Contains(t, line, "cycle started")
	assert.Contains(t, line, "DEBUG")
	assert.False(t, strings.HasPrefix(line, "{"), "console output must not be JSON")
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pricewatch.log")
	l, err := logger.New(logger.Config{Level: "warn", OutputPaths: []string{path}})
	require.NoError(t, err)

	l.Info("dropped")
	l.Warn("kept", logger.String("product_id", "7"))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"product_id":"7"`)
}
