package cli

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// The rendered event stream is deterministic for a sequential program:
// logical sequence numbers, no timestamps, registration order fixed by
// the file.
func TestRun_GoldenTrace(t *testing.T) {
	dir := writeProgramDir(t, testManifest, testProgram)

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--stack", "test", dir})
	require.NoError(t, cmd.Execute())

	g := goldie.New(t)
	g.Assert(t, "run_trace", out.Bytes())
}
