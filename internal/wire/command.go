// Package wire defines the framed request/response protocol spoken over the
// encrypted pipes: the command and marker tags, the typed payloads, and the
// binary and string codecs for them.
package wire

import (
	"fmt"
	"strings"
)

// Command is the one-byte discriminator leading every request frame.
// Values are part of the protocol; new commands are only ever appended.
type Command byte

const (
	CommandOpen Command = iota + 1
	CommandClose
	CommandInitCloseAppsDialog
	CommandPromptToCloseApps
	CommandShowModalDialog
	CommandShowProgressDialog
	CommandProgressDialogOpen
	CommandUpdateProgressDialog
	CommandCloseProgressDialog
	CommandShowBalloonTip
	CommandMinimizeAllWindows
	CommandRestoreAllWindows
	CommandSendKeys
	CommandGetProcessWindowInfo
	CommandRefreshDesktopAndEnvironmentVariables
	CommandGetUserNotificationState
	CommandGetForegroundWindowProcessID
	CommandGetEnvironmentVariable
	CommandSetEnvironmentVariable
	CommandRemoveEnvironmentVariable
	CommandGroupPolicyUpdate
)

var commandNames = [...]string{
	CommandOpen:                                  "Open",
	CommandClose:                                 "Close",
	CommandInitCloseAppsDialog:                   "InitCloseAppsDialog",
	CommandPromptToCloseApps:                     "PromptToCloseApps",
	CommandShowModalDialog:                       "ShowModalDialog",
	CommandShowProgressDialog:                    "ShowProgressDialog",
	CommandProgressDialogOpen:                    "ProgressDialogOpen",
	CommandUpdateProgressDialog:                  "UpdateProgressDialog",
	CommandCloseProgressDialog:                   "CloseProgressDialog",
	CommandShowBalloonTip:                        "ShowBalloonTip",
	CommandMinimizeAllWindows:                    "MinimizeAllWindows",
	CommandRestoreAllWindows:                     "RestoreAllWindows",
	CommandSendKeys:                              "SendKeys",
	CommandGetProcessWindowInfo:                  "GetProcessWindowInfo",
	CommandRefreshDesktopAndEnvironmentVariables: "RefreshDesktopAndEnvironmentVariables",
	CommandGetUserNotificationState:              "GetUserNotificationState",
	CommandGetForegroundWindowProcessID:          "GetForegroundWindowProcessId",
	CommandGetEnvironmentVariable:                "GetEnvironmentVariable",
	CommandSetEnvironmentVariable:                "SetEnvironmentVariable",
	CommandRemoveEnvironmentVariable:             "RemoveEnvironmentVariable",
	CommandGroupPolicyUpdate:                     "GroupPolicyUpdate",
}

// Commands lists every known command in wire order.
func Commands() []Command {
	out := make([]Command, 0, len(commandNames)-1)
	for c := CommandOpen; c <= CommandGroupPolicyUpdate; c++ {
		out = append(out, c)
	}
	return out
}

// Valid reports whether c is a command this build understands.
func (c Command) Valid() bool {
	return c >= CommandOpen && c <= CommandGroupPolicyUpdate
}

func (c Command) String() string {
	if c.Valid() {
		return commandNames[c]
	}
	return fmt.Sprintf("Command(0x%02X)", byte(c))
}

// ParseCommand resolves a command by name, ignoring case.
func ParseCommand(name string) (Command, bool) {
	for _, c := range Commands() {
		if strings.EqualFold(commandNames[c], name) {
			return c, true
		}
	}
	return 0, false
}

// ResponseMarker leads every response frame and selects how the trailing
// bytes are decoded.
type ResponseMarker byte

const (
	ResponseSuccess ResponseMarker = 0x01
	ResponseError   ResponseMarker = 0x02
)

func (m ResponseMarker) String() string {
	switch m {
	case ResponseSuccess:
		return "Success"
	case ResponseError:
		return "Error"
	default:
		return fmt.Sprintf("ResponseMarker(0x%02X)", byte(m))
	}
}
