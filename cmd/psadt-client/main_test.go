package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/wire"
)

func TestMainHelp(t *testing.T) {
	output, err := runMainSubprocess(t, "--help")
	require.NoError(t, err, string(output))
	require.Contains(t, string(output), "Usage:")
}

func TestMainWithoutArgumentsExitsNoArguments(t *testing.T) {
	output, err := runMainSubprocess(t)
	require.Error(t, err)

	exitErr, ok := err.(*exec.ExitError)
	require.True(t, ok)
	require.Equal(t, int(clienterr.NoArguments), exitErr.ExitCode())
	require.Contains(t, string(output), "Usage:")
}

func TestMainInvalidModeExitsNonZero(t *testing.T) {
	output, err := runMainSubprocess(t, "/NotAnOperation")
	require.Error(t, err)

	exitErr, ok := err.(*exec.ExitError)
	require.True(t, ok)
	require.Equal(t, int(clienterr.InvalidMode), exitErr.ExitCode())

	decoded := wire.DecodeErrorString(strings.TrimSpace(string(output)))
	require.Equal(t, clienterr.InvalidMode, clienterr.CodeOf(decoded))
}

func TestMainHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	dashIndex := -1
	for i, arg := range args {
		if arg == "--" {
			dashIndex = i
			break
		}
	}

	os.Args = []string{"psadt-client"}
	if dashIndex >= 0 && dashIndex+1 < len(args) {
		os.Args = append(os.Args, args[dashIndex+1:]...)
	}

	main()
}

func runMainSubprocess(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()

	cmdArgs := []string{"-test.run=TestMainHelperProcess", "--"}
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.Command(os.Args[0], cmdArgs...)
	cmd.Env = append(os.Environ(),
		"GO_WANT_HELPER_PROCESS=1",
		"XDG_STATE_HOME="+t.TempDir(),
		"PSADT_CLIENT_CONFIG="+filepath.Join(t.TempDir(), "missing.yaml"),
	)
	return cmd.CombinedOutput()
}
