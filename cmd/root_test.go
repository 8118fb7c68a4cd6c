package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"run", "discover", "problems", "products", "listings", "runs", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "shipsmith", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunCommand_Flags(t *testing.T) {
	require.NotNil(t, runCmd.Flags().Lookup("problem-id"))

	fromFlag := runCmd.Flags().Lookup("from")
	require.NotNil(t, fromFlag)
	assert.Equal(t, "", fromFlag.DefValue)
}

func TestDiscoverCommand_Flags(t *testing.T) {
	require.NotNil(t, discoverCmd.Flags().Lookup("limit"))
	require.NotNil(t, discoverCmd.Flags().Lookup("save"))
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}

	assert.True(t, names["list"])
	assert.True(t, names["show"])
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestShortUUID(t *testing.T) {
	assert.Equal(t, "12345678", shortUUID("123456789abc"))
	assert.Equal(t, "short", shortUUID("short"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "hell...", truncate("hello world", 7))
}
