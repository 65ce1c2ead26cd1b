package platform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/wire"
)

func TestMatchWindow(t *testing.T) {
	w := wire.WindowInfo{
		WindowTitle:                   "Quarterly Report - Excel",
		WindowHandle:                  0x40,
		ParentProcess:                 "EXCEL",
		ParentProcessMainWindowHandle: 0x40,
		ParentProcessID:               900,
	}

	tests := []struct {
		name string
		opts wire.WindowInfoOptions
		want bool
	}{
		{name: "no filters", opts: wire.WindowInfoOptions{}, want: true},
		{name: "title substring any case", opts: wire.WindowInfoOptions{WindowTitleFilter: []string{"nothing", "quarterly"}}, want: true},
		{name: "title miss", opts: wire.WindowInfoOptions{WindowTitleFilter: []string{"Word"}}, want: false},
		{name: "handle", opts: wire.WindowInfoOptions{WindowHandleFilter: []uint64{0x40}}, want: true},
		{name: "process with extension", opts: wire.WindowInfoOptions{ParentProcessFilter: []string{"excel.exe"}}, want: true},
		{name: "process miss", opts: wire.WindowInfoOptions{ParentProcessFilter: []string{"winword"}}, want: false},
		{name: "pid", opts: wire.WindowInfoOptions{ParentProcessIDFilter: []uint32{1, 900}}, want: true},
		{name: "main handle miss", opts: wire.WindowInfoOptions{ParentProcessMainWindowHandleFilter: []uint64{1}}, want: false},
		{name: "filters combine", opts: wire.WindowInfoOptions{WindowHandleFilter: []uint64{0x40}, ParentProcessIDFilter: []uint32{1}}, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, MatchWindow(tc.opts, w))
		})
	}
}

func TestHeadlessProgressLifecycle(t *testing.T) {
	ctx := context.Background()
	d := NewHeadlessDialogs()

	require.False(t, d.ProgressOpen(ctx))
	require.Equal(t, clienterr.InvalidRequest, clienterr.CodeOf(d.UpdateProgress(ctx, ProgressUpdate{})))

	require.NoError(t, d.ShowProgress(ctx, wire.DialogStyleFluent, nil))
	require.True(t, d.ProgressOpen(ctx))
	require.Error(t, d.ShowProgress(ctx, wire.DialogStyleFluent, nil))

	msg := "Installing"
	pct := 40.0
	require.NoError(t, d.UpdateProgress(ctx, ProgressUpdate{Message: &msg}))
	require.NoError(t, d.UpdateProgress(ctx, ProgressUpdate{Percentage: &pct}))
	got := d.Progress()
	require.Equal(t, "Installing", *got.Message)
	require.Equal(t, 40.0, *got.Percentage)

	require.NoError(t, d.CloseProgress(ctx))
	require.False(t, d.ProgressOpen(ctx))
}

func TestHeadlessModalIsUnsupported(t *testing.T) {
	_, err := NewHeadlessDialogs().ShowModal(context.Background(), wire.DialogBox, wire.DialogStyleClassic, nil, nil)
	require.Equal(t, clienterr.UnsupportedDialog, clienterr.CodeOf(err))
}

func TestFillSuppliesFallbacks(t *testing.T) {
	p := Fill(&Provider{})
	require.NotNil(t, p.Windows)
	require.NotNil(t, p.Dialogs)
	require.IsType(t, ExecLauncher{}, p.Launcher)

	_, err := p.Windows.Windows(context.Background(), wire.WindowInfoOptions{})
	require.Equal(t, clienterr.PlatformUnsupported, clienterr.CodeOf(err))

	system, err := p.Identity.IsLocalSystem(context.Background())
	require.NoError(t, err)
	require.False(t, system)
}

func TestParseRegistryPath(t *testing.T) {
	tests := []struct {
		in   string
		want RegistryPath
	}{
		{in: `HKEY_LOCAL_MACHINE\SOFTWARE\Vendor`, want: RegistryPath{Hive: "HKEY_LOCAL_MACHINE", Subkey: `SOFTWARE\Vendor`}},
		{in: `hkcu\Environment`, want: RegistryPath{Hive: "HKEY_CURRENT_USER", Subkey: "Environment"}},
		{in: `HKLM:\SOFTWARE\Vendor\`, want: RegistryPath{Hive: "HKEY_LOCAL_MACHINE", Subkey: `SOFTWARE\Vendor`}},
		{in: `Registry::HKEY_USERS\S-1-5-18`, want: RegistryPath{Hive: "HKEY_USERS", Subkey: "S-1-5-18"}},
		{in: `HKCR`, want: RegistryPath{Hive: "HKEY_CLASSES_ROOT"}},
	}
	for _, tc := range tests {
		got, err := ParseRegistryPath(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseRegistryPath(`C:\Windows`)
	require.Error(t, err)
	require.True(t, LooksLikeRegistryPath(`HKEY_LOCAL_MACHINE\X`))
	require.False(t, LooksLikeRegistryPath(`C:\temp\args.txt`))
}

func TestParseDialogBoxOptions(t *testing.T) {
	opts, err := structpb.NewStruct(map[string]any{
		"AppTitle":             "Contoso",
		"MessageText":          "Save your work.",
		"DialogButtons":        4,
		"DialogIcon":           0x40,
		"DialogTopMost":        true,
		"DialogExpiryDuration": 90,
	})
	require.NoError(t, err)

	got, err := ParseDialogBoxOptions(opts)
	require.NoError(t, err)
	require.Equal(t, DialogBoxOptions{
		AppTitle:    "Contoso",
		MessageText: "Save your work.",
		Buttons:     4,
		Icon:        0x40,
		TopMost:     true,
		Expiry:      90 * time.Second,
	}, got)

	_, err = ParseDialogBoxOptions(nil)
	require.Equal(t, clienterr.NoOptions, clienterr.CodeOf(err))

	missing, err := structpb.NewStruct(map[string]any{"AppTitle": "Contoso"})
	require.NoError(t, err)
	_, err = ParseDialogBoxOptions(missing)
	require.Equal(t, clienterr.InvalidOptions, clienterr.CodeOf(err))
	require.Contains(t, err.Error(), "MessageText")
}

func TestDialogBoxResultName(t *testing.T) {
	name, err := DialogBoxResultName(6)
	require.NoError(t, err)
	require.Equal(t, "Yes", name)

	name, err = DialogBoxResultName(32000)
	require.NoError(t, err)
	require.Equal(t, "Timeout", name)

	_, err = DialogBoxResultName(99)
	require.Error(t, err)
}
