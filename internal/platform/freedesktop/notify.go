// Package freedesktop shows balloon tips through the freedesktop
// notification service on desktops that are not Windows.
package freedesktop

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/psadt/psadt-client/internal/wire"
)

const defaultAppName = "psadt-client"

// Runner executes busctl. Tests replace it.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Notifier sends notifications over the user's session bus via busctl.
type Notifier struct {
	Run Runner
}

func NewNotifier() *Notifier {
	return &Notifier{Run: execRunner}
}

// ShowBalloonTip maps balloon tip options onto a Notify call and returns once
// the notification server accepted it.
func (n *Notifier) ShowBalloonTip(ctx context.Context, opts wire.BalloonTipOptions) error {
	appName := strings.TrimSpace(opts.TrayTitle)
	if appName == "" {
		appName = defaultAppName
	}
	timeout := -1
	if opts.Timeout > 0 {
		timeout = int(opts.Timeout / time.Millisecond)
	}

	_, err := n.notify(ctx, appName, iconName(opts), opts.Title, opts.Text, timeout)
	return err
}

// notify returns the notification ID assigned by the server.
func (n *Notifier) notify(ctx context.Context, appName, icon, summary, body string, timeoutMS int) (uint32, error) {
	args := []string{
		"--user",
		"call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		"Notify",
		"susssasa{sv}i",
		appName,
		"0",
		icon,
		summary,
		body,
		"0", // actions array length
		"0", // hints map length
		strconv.Itoa(timeoutMS),
	}

	run := n.Run
	if run == nil {
		run = execRunner
	}
	out, err := run(ctx, "busctl", args...)
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return 0, fmt.Errorf("desktop notify failed: %w", err)
		}
		return 0, fmt.Errorf("desktop notify failed: %w (%s)", err, trimmed)
	}

	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", strings.TrimSpace(string(out)))
	}

	value, parseErr := strconv.ParseUint(fields[1], 10, 32)
	if parseErr != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], parseErr)
	}
	return uint32(value), nil
}

func iconName(opts wire.BalloonTipOptions) string {
	if opts.TrayIcon != "" {
		return opts.TrayIcon
	}
	switch strings.ToLower(opts.Icon) {
	case "info":
		return "dialog-information"
	case "warning":
		return "dialog-warning"
	case "error":
		return "dialog-error"
	default:
		return ""
	}
}
