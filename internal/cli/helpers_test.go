package cli

import (
	"bytes"
	"path/filepath"
	"testing"
)

// testDevice points the CLI at a private local database and a shared
// store that other testDevices in the same test can join.
type testDevice struct {
	db      string
	shared  string
	logFile string
}

func newSharedDir(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "shared.db")
}

func newTestDevice(t *testing.T, shared string) testDevice {
	t.Helper()
	dir := t.TempDir()
	return testDevice{
		db:      filepath.Join(dir, "local.db"),
		shared:  shared,
		logFile: filepath.Join(dir, "comande.log"),
	}
}

// run executes the root command with this device's stores and returns
// stdout, stderr and the command error. Logs go to a file so stderr only
// carries pushes.
func (d testDevice) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append([]string{"--db", d.db, "--shared", d.shared, "--log-file", d.logFile}, args...))

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
