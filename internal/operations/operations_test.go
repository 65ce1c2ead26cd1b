package operations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/platform"
	"github.com/psadt/psadt-client/internal/platform/platformtest"
	"github.com/psadt/psadt-client/internal/wire"
)

func newService(t *testing.T) (*Service, *platformtest.Desktop) {
	t.Helper()
	d := platformtest.NewDesktop()
	return New(d.Provider()), d
}

func options(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func TestShowModalDialogValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	opts := options(t, map[string]any{"AppTitle": "Setup"})

	tests := []struct {
		name string
		req  wire.ShowModalDialogRequest
		want clienterr.ExitCode
	}{
		{name: "missing type", req: wire.ShowModalDialogRequest{DialogStyle: "Fluent", Options: opts}, want: clienterr.NoDialogType},
		{name: "unknown type", req: wire.ShowModalDialogRequest{DialogType: "Popup", DialogStyle: "Fluent", Options: opts}, want: clienterr.InvalidDialog},
		{name: "missing style", req: wire.ShowModalDialogRequest{DialogType: "DialogBox", Options: opts}, want: clienterr.NoDialogStyle},
		{name: "unknown style", req: wire.ShowModalDialogRequest{DialogType: "DialogBox", DialogStyle: "Metro", Options: opts}, want: clienterr.InvalidDialogStyle},
		{name: "missing options", req: wire.ShowModalDialogRequest{DialogType: "DialogBox", DialogStyle: "Classic"}, want: clienterr.NoOptions},
		{name: "close apps without state", req: wire.ShowModalDialogRequest{DialogType: "CloseAppsDialog", DialogStyle: "Fluent", Options: opts}, want: clienterr.InvalidRequest},
		{name: "headless renderer", req: wire.ShowModalDialogRequest{DialogType: "InputDialog", DialogStyle: "fluent", Options: opts}, want: clienterr.UnsupportedDialog},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ShowModalDialog(ctx, tc.req, nil)
			require.Error(t, err)
			require.Equal(t, tc.want, clienterr.CodeOf(err))
		})
	}
}

func TestProgressDialogLifecycle(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.False(t, svc.ProgressDialogOpen(ctx))

	_, err := svc.ShowProgressDialog(ctx, wire.ShowProgressDialogRequest{DialogStyle: "Fluent"})
	require.Equal(t, clienterr.NoOptions, clienterr.CodeOf(err))

	open, err := svc.ShowProgressDialog(ctx, wire.ShowProgressDialogRequest{
		DialogStyle: "Fluent",
		Options:     options(t, map[string]any{"ProgressMessageText": "Installing"}),
	})
	require.NoError(t, err)
	require.True(t, open)
	require.True(t, svc.ProgressDialogOpen(ctx))

	pct := 40.0
	ok, err := svc.UpdateProgressDialog(ctx, wire.UpdateProgressDialogRequest{Message: "Copying", Percentage: &pct, Alignment: "center"})
	require.NoError(t, err)
	require.True(t, ok)
	progress := svc.Provider().Dialogs.(*platform.HeadlessDialogs).Progress()
	require.Equal(t, "Copying", *progress.Message)
	require.Nil(t, progress.DetailMessage)
	require.Equal(t, wire.AlignCenter, *progress.Alignment)

	_, err = svc.UpdateProgressDialog(ctx, wire.UpdateProgressDialogRequest{Alignment: "Justify"})
	require.Equal(t, clienterr.InvalidOptions, clienterr.CodeOf(err))

	closed, err := svc.CloseProgressDialog(ctx)
	require.NoError(t, err)
	require.True(t, closed)
	require.False(t, svc.ProgressDialogOpen(ctx))
}

func TestShowBalloonTipRequiresTitleAndText(t *testing.T) {
	svc, d := newService(t)
	ctx := context.Background()

	_, err := svc.ShowBalloonTip(ctx, wire.BalloonTipOptions{Text: "done"})
	require.Equal(t, clienterr.InvalidOptions, clienterr.CodeOf(err))
	require.Contains(t, err.Error(), "BalloonTipTitle")

	ok, err := svc.ShowBalloonTip(ctx, wire.BalloonTipOptions{Title: "Setup", Text: "done", Timeout: 5 * time.Second})
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, d.Balloons, 1)
}

func TestSendKeysRefusesDisabledWindow(t *testing.T) {
	svc, d := newService(t)
	ctx := context.Background()
	d.AddProcess(10, "notepad")
	w := d.AddWindow(10, 100, "Untitled - Notepad")

	ok, err := svc.SendKeys(ctx, wire.SendKeysRequest{WindowHandle: 100, Keys: "^s"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"100:^s"}, d.Keys)

	w.Disabled = true
	_, err = svc.SendKeys(ctx, wire.SendKeysRequest{WindowHandle: 100, Keys: "^s"})
	require.Equal(t, clienterr.WindowNotEnabled, clienterr.CodeOf(err))
	require.Len(t, d.Keys, 1)
}

func TestGetProcessWindowInfoFilters(t *testing.T) {
	svc, d := newService(t)
	ctx := context.Background()
	d.AddProcess(10, "notepad")
	d.AddProcess(20, "winword")
	d.AddWindow(10, 100, "Untitled - Notepad")
	d.AddWindow(20, 200, "Report.docx - Word")

	all, err := svc.GetProcessWindowInfo(ctx, wire.WindowInfoOptions{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	word, err := svc.GetProcessWindowInfo(ctx, wire.WindowInfoOptions{ParentProcessFilter: []string{"WINWORD.exe"}})
	require.NoError(t, err)
	require.Len(t, word, 1)
	require.Equal(t, uint64(200), word[0].WindowHandle)

	none, err := svc.GetProcessWindowInfo(ctx, wire.WindowInfoOptions{WindowTitleFilter: []string{"excel"}})
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}

func TestShellOperationsReturnTrue(t *testing.T) {
	svc, d := newService(t)
	ctx := context.Background()

	for _, op := range []func(context.Context) (bool, error){
		svc.MinimizeAllWindows,
		svc.RestoreAllWindows,
		svc.RefreshDesktopAndEnvironmentVariables,
		svc.GroupPolicyUpdate,
	} {
		ok, err := op(ctx)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, []string{"MinimizeAllWindows", "RestoreAllWindows", "RefreshDesktopAndEnvironmentVariables", "GroupPolicyUpdate"}, d.Calls)

	state, err := svc.GetUserNotificationState(ctx)
	require.NoError(t, err)
	require.Equal(t, wire.NotificationAcceptsNotifications, state)
}

func TestUnsupportedPlatformSurfacesCode(t *testing.T) {
	svc := New(nil)
	_, err := svc.MinimizeAllWindows(context.Background())
	require.Equal(t, clienterr.PlatformUnsupported, clienterr.CodeOf(err))
}

func TestSilentRestartWaitsForDelay(t *testing.T) {
	svc, d := newService(t)

	ok, err := svc.SilentRestart(context.Background(), 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, d.Restarts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.SilentRestart(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, d.Restarts)
}

func TestTicksUsesHostEpoch(t *testing.T) {
	require.Equal(t, int64(dotNetEpochTicks), Ticks(time.Unix(0, 0)))
	require.Equal(t, int64(dotNetEpochTicks+10_000_000), Ticks(time.Unix(1, 0)))
}
