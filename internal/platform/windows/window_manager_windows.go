//go:build windows

package windows

import (
	"context"
	"fmt"
	"slices"
	"time"
	"unsafe"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/windows"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/platform"
	"github.com/psadt/psadt-client/internal/processes"
	"github.com/psadt/psadt-client/internal/wire"
)

type topLevelWindow struct {
	hwnd    windows.HWND
	pid     uint32
	title   string
	visible bool
	owned   bool
}

// enumCallback is created once; the runtime caps the number of callbacks a
// process may allocate.
var enumCallback = windows.NewCallback(func(hwnd windows.HWND, lparam uintptr) uintptr {
	list := (*[]topLevelWindow)(unsafe.Pointer(lparam))
	var pid uint32
	_, _ = windows.GetWindowThreadProcessId(hwnd, &pid)
	*list = append(*list, topLevelWindow{
		hwnd:    hwnd,
		pid:     pid,
		title:   windowText(hwnd),
		visible: windows.IsWindowVisible(hwnd),
		owned:   windowOwner(hwnd) != 0,
	})
	return 1
})

func enumTopLevelWindows() ([]topLevelWindow, error) {
	var list []topLevelWindow
	if err := windows.EnumWindows(enumCallback, unsafe.Pointer(&list)); err != nil {
		return nil, fmt.Errorf("enumerate windows: %w", err)
	}
	return list, nil
}

// mainWindows picks each process's main window: the first visible, unowned
// top-level window in z-order.
func mainWindows(list []topLevelWindow) map[uint32]windows.HWND {
	out := make(map[uint32]windows.HWND)
	for _, w := range list {
		if !w.visible || w.owned {
			continue
		}
		if _, ok := out[w.pid]; !ok {
			out[w.pid] = w.hwnd
		}
	}
	return out
}

// WindowManager drives top-level windows through user32.
type WindowManager struct{}

// NewWindowManager returns the user32 window manager.
func NewWindowManager() *WindowManager {
	return &WindowManager{}
}

func (wm *WindowManager) Windows(ctx context.Context, opts wire.WindowInfoOptions) ([]wire.WindowInfo, error) {
	list, err := enumTopLevelWindows()
	if err != nil {
		return nil, clienterr.Wrap(clienterr.OperationFailed, "Failed to enumerate windows.", err)
	}
	mains := mainWindows(list)
	names := make(map[uint32]string)

	var out []wire.WindowInfo
	for _, w := range list {
		if !w.visible || w.title == "" {
			continue
		}
		name, ok := names[w.pid]
		if !ok {
			name = processName(ctx, w.pid)
			names[w.pid] = name
		}
		info := wire.WindowInfo{
			WindowTitle:                   w.title,
			WindowHandle:                  uint64(w.hwnd),
			ParentProcess:                 name,
			ParentProcessMainWindowHandle: uint64(mains[w.pid]),
			ParentProcessID:               w.pid,
		}
		if platform.MatchWindow(opts, info) {
			out = append(out, info)
		}
	}
	return out, nil
}

func processName(ctx context.Context, pid uint32) string {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return ""
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return ""
	}
	return processes.TrimExecutableExt(name)
}

func (wm *WindowManager) BringToFront(_ context.Context, handle uint64) error {
	hwnd := windows.HWND(handle)
	if !windows.IsWindow(hwnd) {
		return clienterr.Newf(clienterr.OperationFailed, "The window handle [%d] does not exist.", handle)
	}
	if isIconic(hwnd) {
		showWindow(hwnd, swRestore)
	}

	// SetForegroundWindow is refused unless this thread shares input with the
	// current foreground thread, or the last input event was ours.
	fgThread, _ := windows.GetWindowThreadProcessId(windows.GetForegroundWindow(), nil)
	self := windows.GetCurrentThreadId()
	if fgThread != 0 && fgThread != self {
		_, _, _ = procAttachThreadInput.Call(uintptr(self), uintptr(fgThread), 1)
		defer procAttachThreadInput.Call(uintptr(self), uintptr(fgThread), 0)
	}
	keybdEvent(platform.VKMenu, false)
	keybdEvent(platform.VKMenu, true)

	_, _, _ = procBringWindowToTop.Call(uintptr(hwnd))
	_, _, _ = procSetForegroundWindow.Call(uintptr(hwnd))
	showWindow(hwnd, swShow)

	if windows.GetForegroundWindow() != hwnd {
		return clienterr.Newf(clienterr.OperationFailed, "Failed to bring window [%d] to the foreground.", handle)
	}
	return nil
}

func (wm *WindowManager) CloseMainWindow(_ context.Context, pid uint32) (bool, error) {
	list, err := enumTopLevelWindows()
	if err != nil {
		return false, clienterr.Wrap(clienterr.OperationFailed, "Failed to enumerate windows.", err)
	}
	hwnd, ok := mainWindows(list)[pid]
	if !ok {
		return false, nil
	}
	// A disabled main window sits behind a modal dialog and will not close.
	if !isWindowEnabled(hwnd) {
		return false, nil
	}
	if err := postMessage(hwnd, wmClose, 0, 0); err != nil {
		return false, clienterr.Wrap(clienterr.OperationFailed, "Failed to post the close request.", err)
	}
	return true, nil
}

func (wm *WindowManager) IsWindowEnabled(_ context.Context, handle uint64) (bool, error) {
	hwnd := windows.HWND(handle)
	if !windows.IsWindow(hwnd) {
		return false, clienterr.Newf(clienterr.InvalidArguments, "The window handle [%d] does not exist.", handle)
	}
	return isWindowEnabled(hwnd), nil
}

func (wm *WindowManager) SendKeys(ctx context.Context, handle uint64, keys string) error {
	strokes, err := platform.ParseKeys(keys)
	if err != nil {
		return clienterr.Wrap(clienterr.InvalidArguments, "The specified keys are invalid.", err)
	}
	if err := wm.BringToFront(ctx, handle); err != nil {
		return err
	}
	for _, s := range strokes {
		if err := sendStroke(s); err != nil {
			return err
		}
	}
	return nil
}

func sendStroke(s platform.KeyStroke) error {
	mods := slices.Clone(s.Modifiers)
	vk := s.VK
	if vk == 0 {
		r, _, _ := procVkKeyScanW.Call(uintptr(s.Char))
		scan := int16(r)
		if scan == -1 {
			return clienterr.Newf(clienterr.InvalidArguments, "The character %q cannot be typed on this keyboard layout.", s.Char)
		}
		vk = uint16(scan) & 0xFF
		shift := uint16(scan) >> 8
		if shift&1 != 0 {
			mods = append(mods, platform.VKShift)
		}
		if shift&2 != 0 {
			mods = append(mods, platform.VKControl)
		}
		if shift&4 != 0 {
			mods = append(mods, platform.VKMenu)
		}
	}

	for _, m := range mods {
		keybdEvent(m, false)
	}
	keybdEvent(vk, false)
	keybdEvent(vk, true)
	for i := len(mods) - 1; i >= 0; i-- {
		keybdEvent(mods[i], true)
	}
	time.Sleep(10 * time.Millisecond)
	return nil
}

func (wm *WindowManager) ForegroundProcessID(context.Context) (uint32, error) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return 0, clienterr.New(clienterr.OperationFailed, "There is no foreground window.")
	}
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return 0, clienterr.Wrap(clienterr.OperationFailed, "Failed to resolve the foreground window's process.", err)
	}
	return pid, nil
}
