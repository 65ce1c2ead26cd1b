package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/platform/platformtest"
	"github.com/psadt/psadt-client/internal/tokenbroker"
	"github.com/psadt/psadt-client/internal/wire"
)

func resolve(t *testing.T, argv ...string) (Invocation, error) {
	t.Helper()
	inv, err := Parse(argv)
	require.NoError(t, err)
	return inv, inv.Resolve(context.Background(), platformtest.NewDesktop())
}

func TestResolveSetEnvironmentVariable(t *testing.T) {
	inv, err := resolve(t, "/SetEnvironmentVariable", "-Variable", "FOO", "-Value", "bar",
		"-Expandable", "false", "-Append", "false", "-Remove", "false")
	require.NoError(t, err)
	require.Equal(t, EnvironmentParams{Request: wire.EnvironmentVariableRequest{Variable: "FOO", Value: "bar"}}, inv.Params)

	inv, err = resolve(t, "/sev", "-Variable", "PATH", "-Value", `C:\Tools`, "-Append", "true")
	require.NoError(t, err)
	require.True(t, inv.Params.(EnvironmentParams).Request.Append)

	_, err = resolve(t, "/sev", "-Variable", "FOO")
	require.ErrorContains(t, err, "A required Value was not specified")

	_, err = resolve(t, "/sev", "-Variable", "FOO", "-Value", "bar", "-Remove", "maybe")
	require.Equal(t, clienterr.InvalidArguments, clienterr.CodeOf(err))
}

func TestResolveVariableRequired(t *testing.T) {
	_, err := resolve(t, "/gev")
	require.ErrorContains(t, err, "A required Variable was not specified")
	require.Equal(t, clienterr.InvalidArguments, clienterr.CodeOf(err))

	inv, err := resolve(t, "/rev", "-Variable", "FOO")
	require.NoError(t, err)
	require.Equal(t, "FOO", inv.Params.(EnvironmentParams).Request.Variable)
}

func TestResolveOptionsPayloads(t *testing.T) {
	encoded, err := wire.EncodeString(wire.BalloonTipOptions{Title: "Install", Text: "Done"})
	require.NoError(t, err)

	inv, err := resolve(t, "/sbt", "-Options", encoded)
	require.NoError(t, err)
	require.Equal(t, "Install", inv.Params.(BalloonTipParams).Options.Title)

	_, err = resolve(t, "/sbt")
	require.Equal(t, clienterr.NoOptions, clienterr.CodeOf(err))

	_, err = resolve(t, "/sk", "-Options", "%%%")
	require.Equal(t, clienterr.InvalidOptions, clienterr.CodeOf(err))
}

func TestResolveSilentRestartDelay(t *testing.T) {
	inv, err := resolve(t, "/sr", "-Delay", "5")
	require.NoError(t, err)
	require.Equal(t, SilentRestartParams{Delay: 5 * time.Second}, inv.Params)

	_, err = resolve(t, "/sr", "-Delay", "soon")
	require.Equal(t, clienterr.InvalidArguments, clienterr.CodeOf(err))
}

func TestResolveClientServerPipes(t *testing.T) {
	inv, err := resolve(t, "/cs", "-OutputPipe", "100", "-InputPipe", "104", "-LogPipe", "108")
	require.NoError(t, err)
	require.Equal(t, ClientServerParams{OutputPipe: "100", InputPipe: "104", LogPipe: "108"}, inv.Params)

	for _, tc := range []struct {
		argv []string
		code clienterr.ExitCode
	}{
		{[]string{"/cs", "-InputPipe", "1", "-LogPipe", "2"}, clienterr.NoOutputPipe},
		{[]string{"/cs", "-OutputPipe", "1", "-LogPipe", "2"}, clienterr.NoInputPipe},
		{[]string{"/cs", "-OutputPipe", "1", "-InputPipe", "2"}, clienterr.NoLogPipe},
	} {
		_, err := resolve(t, tc.argv...)
		require.Equal(t, tc.code, clienterr.CodeOf(err), tc.argv)
	}
}

func TestResolveTokenBroker(t *testing.T) {
	inv, err := resolve(t, "/tb", "-PipeName", "p", "-ProcessId", "10", "-SessionId", "1", "-UseLinkedAdminToken", "false")
	require.NoError(t, err)
	require.Equal(t, TokenBrokerParams{Request: tokenbroker.Request{PipeName: "p", ProcessID: 10, SessionID: 1}}, inv.Params)

	_, err = resolve(t, "/tb", "-PipeName", "p", "-ProcessId", "10", "-SessionId", "0", "-UseLinkedAdminToken", "false")
	require.Equal(t, clienterr.InvalidSessionID, clienterr.CodeOf(err))
}

func TestResolveModalDialogBlockExecution(t *testing.T) {
	target := filepath.Join(t.TempDir(), "setup.exe")
	require.NoError(t, os.WriteFile(target, []byte("MZ"), 0o600))

	inv, err := resolve(t, "/smd", "-DialogType", "CustomDialog", "-DialogStyle", "Fluent",
		"-BlockExecution", "true", target, "/quiet")
	require.NoError(t, err)
	p := inv.Params.(ModalDialogParams)
	require.True(t, p.BlockExecution)
	require.Equal(t, []string{target, "/quiet"}, p.Command)

	inv, err = resolve(t, "/smd", "-DialogType", "DialogBox", "-BlockExecution", "nope")
	require.NoError(t, err)
	require.False(t, inv.Params.(ModalDialogParams).BlockExecution)
}

func TestResolveArgumentsDictionarySources(t *testing.T) {
	encoded, err := wire.EncodeString(map[string]string{"Variable": "FROM_DICT"})
	require.NoError(t, err)

	inv, err := resolve(t, "/gev", "-ArgumentsDictionary", encoded)
	require.NoError(t, err)
	require.Equal(t, "FROM_DICT", inv.Params.(EnvironmentParams).Request.Variable)

	// A relative path, since a leading slash reads as a switch.
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("args.txt", []byte(encoded+"\n"), 0o600))
	inv, err = resolve(t, "/gev", "-ArgV", "args.txt")
	require.NoError(t, err)
	require.Equal(t, "FROM_DICT", inv.Params.(EnvironmentParams).Request.Variable)

	d := platformtest.NewDesktop()
	d.SetRegistryValue(`HKEY_LOCAL_MACHINE\SOFTWARE\PSADT`, "Args", encoded)
	inv, err = Parse([]string{"/gev", "-ArgumentsDictionary", `HKEY_LOCAL_MACHINE\SOFTWARE\PSADT\Args`})
	require.NoError(t, err)
	require.NoError(t, inv.Resolve(context.Background(), d))
	require.Equal(t, "FROM_DICT", inv.Params.(EnvironmentParams).Request.Variable)

	inv, err = Parse([]string{"/gev", "-ArgumentsDictionary", `HKEY_LOCAL_MACHINE\SOFTWARE\PSADT\Missing`})
	require.NoError(t, err)
	err = inv.Resolve(context.Background(), d)
	require.ErrorContains(t, err, "does not exist or is invalid")
}
