package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"calls", "overlay", "legend", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "crime-map", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestOverlayCommand_Flags(t *testing.T) {
	for _, name := range []string{"call-id", "metric", "month", "crime-type", "radius", "markers", "summary"} {
		assert.NotNil(t, overlayCmd.Flags().Lookup(name), "overlay should have --%s flag", name)
	}
	flag := overlayCmd.Flags().Lookup("call-id")
	require.NotNil(t, flag)
	assert.Equal(t, []string{"true"}, flag.Annotations["cobra_annotation_bash_completion_one_required_flag"])
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestLegendCommand_Flags(t *testing.T) {
	assert.NotNil(t, legendCmd.Flags().Lookup("metric"))
}
