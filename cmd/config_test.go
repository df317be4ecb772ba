package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "nginline.dev/pkg/nginline/internal/model"
)

func TestConfigConstants(t *testing.T) {
	assert.Equal(t, "nginline", configBaseName)
	assert.Equal(t, "nginline.yaml", configFileName)
	assert.Equal(t, ".", configFolderPath)
	assert.Equal(t, "out", outputFlagName)
	assert.Equal(t, "exclude", excludeFlagName)
	assert.Equal(t, "parallel", runParallelFlagName)
	assert.Equal(t, "run.parallel", runParallelConfigKey)
	assert.Equal(t, "paths.exclude", excludeConfigKey)
	assert.Equal(t, 1, defaultRunParallel)
	assert.Equal(t, "NGINLINE", envPrefix)
}

func TestConfigVersionConstants(t *testing.T) {
	assert.Equal(t, "version", configVersionKey)
	assert.Equal(t, 1, currentConfigVersion)
}

func TestBuildOptions_Defaults(t *testing.T) {
	opts, err := buildOptions()
	require.NoError(t, err)

	assert.Equal(t, m.Path("."), opts.Root)
	assert.Empty(t, opts.BaseDirectory)
	assert.Equal(t, m.StyleTemplate, opts.LiteralStyle)
	assert.Equal(t, ".html", opts.TemplateExtension)
	assert.Equal(t, ".css", opts.StyleExtension)
	assert.Equal(t, "moduleId", opts.ReferenceIDProperty)
	assert.Equal(t, defaultResolveParallel, opts.ResolveParallelism)
	assert.False(t, opts.UseRelativePaths)
	assert.False(t, opts.TolerateMissingFiles)
	assert.Nil(t, opts.TemplateProcessor)
	assert.Nil(t, opts.StyleProcessor)
	assert.Empty(t, opts.Processors)
	assert.Len(t, opts.Rules, 3)
}

func TestBuildOptions_FromConfig(t *testing.T) {
	setConfig(t, literalStyleKey, " Legacy ")
	setConfig(t, indentKey, 4)
	setConfig(t, useRelativePathsKey, true)
	setConfig(t, removeReferenceIDKey, true)
	setConfig(t, mergeStylesKey, true)
	setConfig(t, templateProcessorKey, "cat")
	setConfig(t, processorsKey, map[string]string{"scss": "sass --stdin", ".less": "lessc -", "txt": " "})

	opts, err := buildOptions()
	require.NoError(t, err)

	assert.Equal(t, m.StyleLegacy, opts.LiteralStyle)
	assert.Equal(t, 4, opts.Indent)
	assert.True(t, opts.UseRelativePaths)
	assert.True(t, opts.RemoveReferenceIDProperty)
	assert.True(t, opts.MergeStyles)
	assert.NotNil(t, opts.TemplateProcessor)
	assert.Nil(t, opts.StyleProcessor)

	require.Len(t, opts.Processors, 2)
	assert.Contains(t, opts.Processors, ".scss")
	assert.Contains(t, opts.Processors, ".less")
}

func TestBuildOptions_Invalid(t *testing.T) {
	t.Run("literal style", func(t *testing.T) {
		setConfig(t, literalStyleKey, "double")

		_, err := buildOptions()
		require.Error(t, err)
		assert.Contains(t, err.Error(), literalStyleKey)
	})

	t.Run("negative indent", func(t *testing.T) {
		setConfig(t, indentKey, -2)

		_, err := buildOptions()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must not be negative")
	})
}

func TestParseSlogLevel(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"", slog.LevelWarn},
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"-4", slog.LevelDebug},
		{"loud", slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSlogLevel(tt.value, slog.LevelWarn))
		})
	}
}

func TestConfigureLogger(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	logPath := filepath.Join(t.TempDir(), "logs", "nginline.log")

	configureLogger(logPath, true)
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))

	slog.Debug("logger configured")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "logger configured")

	setConfig(t, logLevelKey, "error")
	configureLogger(logPath, false)
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelWarn))
}

func TestLoadEnvFiles(t *testing.T) {
	const (
		sharedKey = "NGINLINE_TEST_SHARED"
		localKey  = "NGINLINE_TEST_LOCAL_ONLY"
	)

	t.Cleanup(func() {
		_ = os.Unsetenv(sharedKey)
		_ = os.Unsetenv(localKey)
	})

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, envFileName), []byte(sharedKey+"=from-env\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, localEnvFileName), []byte(sharedKey+"=from-local\n"+localKey+"=yes\n"), 0o600))

	loadEnvFiles(dir)

	assert.Equal(t, "from-local", os.Getenv(sharedKey))
	assert.Equal(t, "yes", os.Getenv(localKey))
}
