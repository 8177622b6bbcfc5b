package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootRejectsInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "xml", "tags")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootHelpListsCommands(t *testing.T) {
	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"show", "tags", "delta", "validate", "reset"} {
		assert.Contains(t, out, sub)
	}
}

func TestResetRejectsInvalidKind(t *testing.T) {
	_, _, err := execute(t, "reset", "--kind", "bogus", "--tag", "root")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestResetWithoutTagFails(t *testing.T) {
	_, _, err := execute(t, "reset")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestResetClearsWithPinnedTag(t *testing.T) {
	out, _, err := execute(t, "reset", "--tag", "root")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared local overrides for root")
}
