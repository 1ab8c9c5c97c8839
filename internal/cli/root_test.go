package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "comande", cmd.Use)
	assert.Contains(t, cmd.Long, "shared store")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "order", "menu", "sync", "clear", "device", "export", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestSubcommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	paths := [][]string{
		{"order", "submit"},
		{"order", "serve"},
		{"order", "list"},
		{"order", "ls"},
		{"menu", "list"},
		{"menu", "add"},
		{"menu", "remove"},
	}

	for _, path := range paths {
		subCmd, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.NotEqual(t, cmd, subCmd)
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "comande.db", dbFlag.DefValue)

	sharedFlag := cmd.PersistentFlags().Lookup("shared")
	require.NotNil(t, sharedFlag)
	assert.Equal(t, "comande-shared.db", sharedFlag.DefValue)

	for _, name := range []string{"config", "log-file"} {
		f := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Empty(t, f.DefValue)
	}
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	durationFlag := runCmd.Flags().Lookup("duration")
	require.NotNil(t, durationFlag)
	assert.Equal(t, "0s", durationFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	d := newTestDevice(t, newSharedDir(t))
	_, _, err := d.run(t, "--format", "yaml", "device")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
}
