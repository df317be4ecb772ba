package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigCmd_PrintsEffectiveConfiguration(t *testing.T) {
	setConfig(t, styleExtensionKey, ".scss")

	cmd, out := newTestRootCmd(newConfigCmd())

	cmd.SetArgs([]string{"config", "--tolerate-missing"})
	require.NoError(t, cmd.Execute())

	var settings map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &settings))

	assert.Equal(t, ".scss", settings[styleExtensionKey])
	assert.Equal(t, true, settings[tolerateMissingFilesKey])
	assert.Equal(t, "template", settings[literalStyleKey])
	assert.Equal(t, "none", settings[sourceMapConfigKey])

	paths, ok := settings["paths"].(map[string]any)
	require.True(t, ok, "paths section missing: %v", settings)
	assert.Equal(t, ".", paths["root"])
}

func TestConfigCmd_RejectsArguments(t *testing.T) {
	cmd, _ := newTestRootCmd(newConfigCmd())

	cmd.SetArgs([]string{"config", "extra"})
	require.Error(t, cmd.Execute())
}
