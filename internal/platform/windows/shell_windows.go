//go:build windows

package windows

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unsafe"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/wire"
)

const (
	shutdownPrivilege = "SeShutdownPrivilege"

	restartReason = windows.SHTDN_REASON_MAJOR_APPLICATION | windows.SHTDN_REASON_MINOR_INSTALLATION | windows.SHTDN_REASON_FLAG_PLANNED
	restartFlags  = windows.EWX_REBOOT | windows.EWX_FORCEIFHUNG

	systemEnvironmentKey = `SYSTEM\CurrentControlSet\Control\Session Manager\Environment`
	userEnvironmentKey   = "Environment"
)

// Shell implements session-wide desktop operations.
type Shell struct{}

func NewShell() *Shell {
	return &Shell{}
}

func (s *Shell) MinimizeAllWindows(context.Context) error {
	return trayCommand(trayMinimizeAll)
}

func (s *Shell) RestoreAllWindows(context.Context) error {
	return trayCommand(trayMinimizeAllUndo)
}

func trayCommand(cmd uintptr) error {
	tray := findWindow("Shell_TrayWnd")
	if tray == 0 {
		return clienterr.New(clienterr.OperationFailed, "The shell tray window was not found.")
	}
	if err := postMessage(tray, wmCommand, cmd, 0); err != nil {
		return clienterr.Wrap(clienterr.OperationFailed, "Failed to send the shell tray command.", err)
	}
	return nil
}

// RefreshDesktopAndEnvironmentVariables reloads this process's environment
// from the registry, then tells the shell and every window about the change.
func (s *Shell) RefreshDesktopAndEnvironmentVariables(context.Context) error {
	if err := refreshProcessEnvironment(); err != nil {
		return clienterr.Wrap(clienterr.OperationFailed, "Failed to refresh the environment variables.", err)
	}
	_, _, _ = procSHChangeNotify.Call(shcneAssocChanged, shcnfIDList, 0, 0)
	broadcastSettingChange(userEnvironmentKey)
	return nil
}

func refreshProcessEnvironment() error {
	for _, src := range []struct {
		root registry.Key
		path string
	}{
		{registry.LOCAL_MACHINE, systemEnvironmentKey},
		{registry.CURRENT_USER, userEnvironmentKey},
	} {
		k, err := registry.OpenKey(src.root, src.path, registry.READ)
		if err != nil {
			return err
		}
		names, err := k.ReadValueNames(-1)
		if err != nil {
			k.Close()
			return err
		}
		for _, name := range names {
			value, typ, err := k.GetStringValue(name)
			if err != nil {
				continue
			}
			if typ == registry.EXPAND_SZ {
				if expanded, err := registry.ExpandString(value); err == nil {
					value = expanded
				}
			}
			// PATH is the union of both scopes.
			if strings.EqualFold(name, "Path") && src.root == registry.CURRENT_USER {
				if existing := os.Getenv("Path"); existing != "" {
					value = existing + ";" + value
				}
			}
			_ = os.Setenv(name, value)
		}
		k.Close()
	}
	return nil
}

func (s *Shell) UserNotificationState(context.Context) (wire.UserNotificationState, error) {
	var state int32
	hr, _, _ := procSHQueryUserNotificationState.Call(uintptr(unsafe.Pointer(&state)))
	if hr != 0 {
		return 0, clienterr.Newf(clienterr.OperationFailed, "SHQueryUserNotificationState failed with HRESULT 0x%08X.", uint32(hr))
	}
	return wire.UserNotificationState(state), nil
}

type lastInputInfo struct {
	cbSize uint32
	dwTime uint32
}

func (s *Shell) LastInputTime(context.Context) (time.Time, error) {
	info := lastInputInfo{cbSize: uint32(unsafe.Sizeof(lastInputInfo{}))}
	r, _, err := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info)))
	if r == 0 {
		return time.Time{}, clienterr.Wrap(clienterr.OperationFailed, "GetLastInputInfo failed.", err)
	}
	now, _, _ := procGetTickCount64.Call()
	// dwTime is a 32-bit tick count; the subtraction wraps with it.
	idle := uint32(now) - info.dwTime
	return time.Now().Add(-time.Duration(idle) * time.Millisecond), nil
}

func (s *Shell) GroupPolicyUpdate(ctx context.Context) error {
	gpupdate := filepath.Join(os.Getenv("SystemRoot"), "System32", "gpupdate.exe")
	for _, target := range []string{"Computer", "User"} {
		out, err := exec.CommandContext(ctx, gpupdate, "/Target:"+target, "/Force").CombinedOutput()
		if err != nil {
			return clienterr.Wrap(clienterr.OperationFailed,
				fmt.Sprintf("gpupdate /Target:%s failed: %s", target, strings.TrimSpace(string(out))), err)
		}
	}
	return nil
}

func (s *Shell) Restart(context.Context) error {
	if err := winio.RunWithPrivilege(shutdownPrivilege, func() error {
		return windows.ExitWindowsEx(restartFlags, restartReason)
	}); err != nil {
		return clienterr.Wrap(clienterr.OperationFailed, "Failed to restart the computer.", err)
	}
	return nil
}
