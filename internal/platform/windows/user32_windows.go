//go:build windows

package windows

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	shell32  = windows.NewLazySystemDLL("shell32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procSetForegroundWindow = user32.NewProc("SetForegroundWindow")
	procBringWindowToTop    = user32.NewProc("BringWindowToTop")
	procShowWindow          = user32.NewProc("ShowWindow")
	procIsIconic            = user32.NewProc("IsIconic")
	procIsWindowEnabled     = user32.NewProc("IsWindowEnabled")
	procGetWindowTextW      = user32.NewProc("GetWindowTextW")
	procGetWindowTextLength = user32.NewProc("GetWindowTextLengthW")
	procGetWindow           = user32.NewProc("GetWindow")
	procPostMessageW        = user32.NewProc("PostMessageW")
	procSendMessageTimeoutW = user32.NewProc("SendMessageTimeoutW")
	procFindWindowW         = user32.NewProc("FindWindowW")
	procAttachThreadInput   = user32.NewProc("AttachThreadInput")
	procGetLastInputInfo    = user32.NewProc("GetLastInputInfo")
	procKeybdEvent          = user32.NewProc("keybd_event")
	procVkKeyScanW          = user32.NewProc("VkKeyScanW")

	procSHQueryUserNotificationState = shell32.NewProc("SHQueryUserNotificationState")
	procSHChangeNotify               = shell32.NewProc("SHChangeNotify")

	procGetTickCount64 = kernel32.NewProc("GetTickCount64")
)

const (
	swShow    = 5
	swRestore = 9

	gwOwner = 4

	wmClose         = 0x0010
	wmSettingChange = 0x001A
	wmCommand       = 0x0111

	hwndBroadcast   = 0xFFFF
	smtoAbortIfHung = 0x0002

	keyEventKeyUp = 0x0002

	shcneAssocChanged = 0x08000000
	shcnfIDList       = 0x0000

	// Shell_TrayWnd commands behind "Show desktop" and its undo.
	trayMinimizeAll     = 419
	trayMinimizeAllUndo = 416
)

func isIconic(hwnd windows.HWND) bool {
	r, _, _ := procIsIconic.Call(uintptr(hwnd))
	return r != 0
}

func isWindowEnabled(hwnd windows.HWND) bool {
	r, _, _ := procIsWindowEnabled.Call(uintptr(hwnd))
	return r != 0
}

func showWindow(hwnd windows.HWND, cmd int) {
	_, _, _ = procShowWindow.Call(uintptr(hwnd), uintptr(cmd))
}

func windowOwner(hwnd windows.HWND) windows.HWND {
	r, _, _ := procGetWindow.Call(uintptr(hwnd), gwOwner)
	return windows.HWND(r)
}

func windowText(hwnd windows.HWND) string {
	n, _, _ := procGetWindowTextLength.Call(uintptr(hwnd))
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	r, _, _ := procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf[:r])
}

func postMessage(hwnd windows.HWND, msg uint32, wparam, lparam uintptr) error {
	r, _, err := procPostMessageW.Call(uintptr(hwnd), uintptr(msg), wparam, lparam)
	if r == 0 {
		return err
	}
	return nil
}

func findWindow(class string) windows.HWND {
	p, err := windows.UTF16PtrFromString(class)
	if err != nil {
		return 0
	}
	r, _, _ := procFindWindowW.Call(uintptr(unsafe.Pointer(p)), 0)
	return windows.HWND(r)
}

// broadcastSettingChange tells every top-level window that area changed.
// Receivers block the sender, hence the timeout.
func broadcastSettingChange(area string) {
	p, _ := windows.UTF16PtrFromString(area)
	var result uintptr
	_, _, _ = procSendMessageTimeoutW.Call(hwndBroadcast, wmSettingChange, 0, uintptr(unsafe.Pointer(p)),
		smtoAbortIfHung, 3000, uintptr(unsafe.Pointer(&result)))
}

func keybdEvent(vk uint16, up bool) {
	var flags uintptr
	if up {
		flags = keyEventKeyUp
	}
	_, _, _ = procKeybdEvent.Call(uintptr(vk), 0, flags, 0)
}
