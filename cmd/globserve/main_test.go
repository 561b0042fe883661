package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := rootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"a.txt", "sub/b.txt", "sub/c.json", "tmp/d.txt"} {
		p := filepath.Join(dir, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0o644))
	}

	out, err := runCmd(t, "check", "--path", dir, "--pattern", "**/*.txt", "--exclude", "tmp/", "--list")
	require.NoError(t, err)

	assert.Contains(t, out, "2 files match \"**/*.txt\"")
	assert.Contains(t, out, "a.txt\n")
	assert.Contains(t, out, "sub/b.txt\n")
	assert.NotContains(t, out, "tmp/d.txt")
}

func TestMissingBaseFailsFast(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")

	_, err := runCmd(t, "--path", missing, "--port", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base directory")

	_, err = runCmd(t, "check", "--path", missing)
	assert.Error(t, err)
}

func TestInvalidConfigRejected(t *testing.T) {
	_, err := runCmd(t, "check", "--path", t.TempDir(), "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}
