// Package cli turns the client's argv into a typed invocation: one mode,
// its named arguments, and the parameters that mode needs.
package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/psadt/psadt-client/internal/clienterr"
)

// Mode is the operation an invocation selects.
type Mode int

const (
	ModeHelp Mode = iota
	ModeVersion
	ModeDoctor
	ModeShowModalDialog
	ModeShowBalloonTip
	ModeGetProcessWindowInfo
	ModeGetUserNotificationState
	ModeGetForegroundWindowProcessID
	ModeRefreshDesktopAndEnvironmentVariables
	ModeMinimizeAllWindows
	ModeRestoreAllWindows
	ModeSendKeys
	ModeGetEnvironmentVariable
	ModeSetEnvironmentVariable
	ModeRemoveEnvironmentVariable
	ModeSilentRestart
	ModeGetLastInputTime
	ModeTokenBroker
	ModeGroupPolicyUpdate
	ModeClientServer
)

type modeSwitch struct {
	mode  Mode
	long  string
	short string
}

// switches is searched in order; the first switch present anywhere in argv
// selects the mode.
var switches = []modeSwitch{
	{ModeShowModalDialog, "/ShowModalDialog", "/smd"},
	{ModeShowBalloonTip, "/ShowBalloonTip", "/sbt"},
	{ModeGetProcessWindowInfo, "/GetProcessWindowInfo", "/gpwi"},
	{ModeGetUserNotificationState, "/GetUserNotificationState", "/guns"},
	{ModeGetForegroundWindowProcessID, "/GetForegroundWindowProcessId", "/gfwpi"},
	{ModeRefreshDesktopAndEnvironmentVariables, "/RefreshDesktopAndEnvironmentVariables", "/rdaev"},
	{ModeMinimizeAllWindows, "/MinimizeAllWindows", "/maw"},
	{ModeRestoreAllWindows, "/RestoreAllWindows", "/raw"},
	{ModeSendKeys, "/SendKeys", "/sk"},
	{ModeGetEnvironmentVariable, "/GetEnvironmentVariable", "/gev"},
	{ModeSetEnvironmentVariable, "/SetEnvironmentVariable", "/sev"},
	{ModeRemoveEnvironmentVariable, "/RemoveEnvironmentVariable", "/rev"},
	{ModeSilentRestart, "/SilentRestart", "/sr"},
	{ModeGetLastInputTime, "/GetLastInputTime", "/glit"},
	{ModeTokenBroker, "/TokenBroker", "/tb"},
	{ModeGroupPolicyUpdate, "/GroupPolicyUpdate", "/gpu"},
	{ModeClientServer, "/ClientServer", "/cs"},
}

func (m Mode) String() string {
	switch m {
	case ModeHelp:
		return "Help"
	case ModeVersion:
		return "Version"
	case ModeDoctor:
		return "Doctor"
	}
	for _, s := range switches {
		if s.mode == m {
			return strings.TrimPrefix(s.long, "/")
		}
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Invocation is one parsed command line. Params is set by Resolve and holds
// the mode's typed parameters.
type Invocation struct {
	Mode Mode
	Args map[string]string
	Argv []string
	// ConfigPath comes from -ConfigPath and is not part of Args.
	ConfigPath string
	Params     any
}

// Parse selects the mode and collects -Key Value pairs.
func Parse(argv []string) (Invocation, error) {
	inv := Invocation{Mode: ModeHelp, Argv: argv}
	if len(argv) == 0 {
		return inv, nil
	}
	switch argv[0] {
	case "-h", "--help", "/?", "/Help":
		return inv, nil
	case "--version", "/Version":
		inv.Mode = ModeVersion
		return inv, nil
	}

	mode, ok := selectMode(argv)
	switch {
	case argv[0] == "--doctor" || argv[0] == "/Doctor":
		inv.Mode = ModeDoctor
	case ok:
		inv.Mode = mode
	default:
		return inv, clienterr.New(clienterr.InvalidMode, "The specified arguments were unable to be resolved into a type of operation.")
	}

	args, err := ParseArguments(argv)
	if err != nil {
		return inv, err
	}
	if path, ok := args["ConfigPath"]; ok {
		inv.ConfigPath = path
		delete(args, "ConfigPath")
	}
	inv.Args = args
	return inv, nil
}

func selectMode(argv []string) (Mode, bool) {
	for _, s := range switches {
		for _, arg := range argv {
			if s.matches(arg) {
				return s.mode, true
			}
		}
	}
	return 0, false
}

// matches accepts the long switch with either a slash or a dash prefix.
func (s modeSwitch) matches(arg string) bool {
	return arg == s.long || arg == s.short || arg == "-"+s.long[1:]
}

// specialForms are the help, version and doctor switches. Only their dash
// spellings could be mistaken for a -Key.
var specialForms = []string{"-h", "--help", "--version", "--doctor"}

func isDashSwitch(arg string) bool {
	if slices.Contains(specialForms, arg) {
		return true
	}
	for _, s := range switches {
		if arg == "-"+s.long[1:] {
			return true
		}
	}
	return false
}

// ParseArguments collects every -Key Value pair. A value must be present,
// non-blank, and must not itself look like a key or a switch.
func ParseArguments(argv []string) (map[string]string, error) {
	args := make(map[string]string)
	for i := 0; i < len(argv); i++ {
		if !strings.HasPrefix(argv[i], "-") || isDashSwitch(argv[i]) {
			continue
		}
		key := strings.TrimSpace(argv[i][1:])
		var value string
		if i+1 < len(argv) {
			value = strings.TrimSpace(argv[i+1])
		}
		if value == "" || strings.HasPrefix(value, "-") || strings.HasPrefix(value, "/") {
			return nil, clienterr.Newf(clienterr.InvalidArguments, "The argument [%s] has an invalid value.", argv[i])
		}
		if _, dup := args[key]; dup {
			return nil, clienterr.Newf(clienterr.InvalidArguments, "The argument [%s] was specified more than once.", argv[i])
		}
		args[key] = value
		i++
	}
	return args, nil
}

// HelpText describes the command line.
func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s /<Operation> [-Key Value ...]

This application is designed to be used with the PSAppDeployToolkit
PowerShell module and should not be directly invoked. If you are an
end-user, please report this message to your helpdesk.

Operations (long names also accept a - prefix):
  /ShowModalDialog (/smd)                        -DialogType -DialogStyle -Options [-BlockExecution]
  /ShowBalloonTip (/sbt)                         -Options
  /GetProcessWindowInfo (/gpwi)                  -Options
  /GetUserNotificationState (/guns)
  /GetForegroundWindowProcessId (/gfwpi)
  /RefreshDesktopAndEnvironmentVariables (/rdaev)
  /MinimizeAllWindows (/maw)
  /RestoreAllWindows (/raw)
  /SendKeys (/sk)                                -Options
  /GetEnvironmentVariable (/gev)                 -Variable
  /SetEnvironmentVariable (/sev)                 -Variable -Value [-Expandable] [-Append] [-Remove]
  /RemoveEnvironmentVariable (/rev)              -Variable
  /SilentRestart (/sr)                           -Delay
  /GetLastInputTime (/glit)
  /TokenBroker (/tb)                             -PipeName -ProcessId -SessionId -UseLinkedAdminToken
  /GroupPolicyUpdate (/gpu)
  /ClientServer (/cs)                            -OutputPipe -InputPipe -LogPipe

Diagnostics:
  --doctor (/Doctor)                             [-ConfigPath]

Any operation also accepts -ArgumentsDictionary (alias -ArgV) naming a
registry value, a file, or a Base64 literal holding the arguments, and
-ConfigPath naming the YAML configuration file.
`, binaryName)
}
