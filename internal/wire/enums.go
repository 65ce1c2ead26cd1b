package wire

import (
	"fmt"
	"strings"
)

type DialogType int32

const (
	DialogBox DialogType = iota + 1
	HelpConsole
	InputDialog
	CustomDialog
	RestartDialog
	CloseAppsDialog
)

var dialogTypeNames = map[DialogType]string{
	DialogBox:       "DialogBox",
	HelpConsole:     "HelpConsole",
	InputDialog:     "InputDialog",
	CustomDialog:    "CustomDialog",
	RestartDialog:   "RestartDialog",
	CloseAppsDialog: "CloseAppsDialog",
}

func (t DialogType) String() string {
	if name, ok := dialogTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("DialogType(%d)", int32(t))
}

// ParseDialogType accepts a dialog type name in any case.
func ParseDialogType(s string) (DialogType, bool) {
	return parseName(dialogTypeNames, s)
}

type DialogStyle int32

const (
	DialogStyleClassic DialogStyle = iota + 1
	DialogStyleFluent
)

var dialogStyleNames = map[DialogStyle]string{
	DialogStyleClassic: "Classic",
	DialogStyleFluent:  "Fluent",
}

func (s DialogStyle) String() string {
	if name, ok := dialogStyleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("DialogStyle(%d)", int32(s))
}

func ParseDialogStyle(s string) (DialogStyle, bool) {
	return parseName(dialogStyleNames, s)
}

type MessageAlignment int32

const (
	AlignLeft MessageAlignment = iota + 1
	AlignCenter
	AlignRight
)

var alignmentNames = map[MessageAlignment]string{
	AlignLeft:   "Left",
	AlignCenter: "Center",
	AlignRight:  "Right",
}

func (a MessageAlignment) String() string {
	if name, ok := alignmentNames[a]; ok {
		return name
	}
	return fmt.Sprintf("MessageAlignment(%d)", int32(a))
}

func ParseMessageAlignment(s string) (MessageAlignment, bool) {
	return parseName(alignmentNames, s)
}

// UserNotificationState mirrors the shell's QUERY_USER_NOTIFICATION_STATE.
type UserNotificationState int32

const (
	NotificationNotPresent           UserNotificationState = 1
	NotificationBusy                 UserNotificationState = 2
	NotificationRunningD3DFullScreen UserNotificationState = 3
	NotificationPresentationMode     UserNotificationState = 4
	NotificationAcceptsNotifications UserNotificationState = 5
	NotificationQuietTime            UserNotificationState = 6
	NotificationApp                  UserNotificationState = 7
)

var notificationStateNames = map[UserNotificationState]string{
	NotificationNotPresent:           "QUNS_NOT_PRESENT",
	NotificationBusy:                 "QUNS_BUSY",
	NotificationRunningD3DFullScreen: "QUNS_RUNNING_D3D_FULL_SCREEN",
	NotificationPresentationMode:     "QUNS_PRESENTATION_MODE",
	NotificationAcceptsNotifications: "QUNS_ACCEPTS_NOTIFICATIONS",
	NotificationQuietTime:            "QUNS_QUIET_TIME",
	NotificationApp:                  "QUNS_APP",
}

func (s UserNotificationState) String() string {
	if name, ok := notificationStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UserNotificationState(%d)", int32(s))
}

func parseName[T comparable](names map[T]string, s string) (T, bool) {
	s = strings.TrimSpace(s)
	for v, name := range names {
		if strings.EqualFold(name, s) {
			return v, true
		}
	}
	var zero T
	return zero, false
}
