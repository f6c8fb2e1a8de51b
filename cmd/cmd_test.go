package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chessticulate/chessticulate-api/internal/version"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		versionShort = false
		versionJSON = false
		versionGate = ""
	}()

	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionShort(t *testing.T) {
	out, err := runCommand(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.GetVersion()+"\n", out)
}

func TestVersionJSON(t *testing.T) {
	out, err := runCommand(t, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version"`)
	assert.Contains(t, out, version.GetVersion())
}

func TestVersionGate(t *testing.T) {
	out, err := runCommand(t, "version", "--gate", "0.0.1")
	require.NoError(t, err)
	assert.Contains(t, out, "version gate passed")

	_, err = runCommand(t, "version", "--gate", version.GetVersion())
	require.Error(t, err)

	_, err = runCommand(t, "version", "--gate", "99.0.0")
	require.Error(t, err)

	_, err = runCommand(t, "version", "--gate", "not-semver")
	require.Error(t, err)
}
