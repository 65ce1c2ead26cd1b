// Package doctor runs readiness diagnostics for config, logging, platform
// services, the process table and the pipe encryption channel.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"github.com/psadt/psadt-client/internal/config"
	"github.com/psadt/psadt-client/internal/pipecrypt"
	"github.com/psadt/psadt-client/internal/platform"
	"github.com/psadt/psadt-client/internal/processes"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Inputs is what Run inspects.
type Inputs struct {
	Config   config.Loaded
	LogPath  string
	Provider *platform.Provider
	Source   processes.Source
}

// Run executes the checks. Platform services missing on this OS are reported
// but do not fail the report.
func Run(ctx context.Context, in Inputs) Report {
	checks := []Check{checkConfig(in.Config)}

	if in.LogPath != "" {
		checks = append(checks, Check{Name: "log", Pass: true, Message: fmt.Sprintf("writing to %q", in.LogPath)})
	} else {
		checks = append(checks, Check{Name: "log", Pass: false, Message: "file logging is unavailable"})
	}

	if in.Provider != nil {
		checks = append(checks, checkServices(in.Provider)...)
		checks = append(checks, checkIdentity(ctx, in.Provider.Identity))
	}
	if runtime.GOOS == "windows" {
		checks = append(checks, checkBinary("gpupdate", "GroupPolicyUpdate is available"))
	}

	source := in.Source
	if source == nil {
		source = processes.SystemSource{}
	}
	checks = append(checks, checkProcessTable(ctx, source))
	checks = append(checks, checkPipeEncryption(in.Config.Config.IPC.MaxFrameBytes))

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	msg := fmt.Sprintf("loaded %q", loaded.Path)
	if loaded.Source != "" {
		msg = fmt.Sprintf("%s from %s", msg, loaded.Source)
	}
	if n := len(loaded.Warnings); n > 0 {
		msg = fmt.Sprintf("%s with %d warning(s)", msg, n)
	}
	return Check{Name: "config", Pass: true, Message: msg}
}

// checkServices reports which platform services have a native backend.
func checkServices(p *platform.Provider) []Check {
	services := []struct {
		name    string
		backend any
	}{
		{"platform.windows", p.Windows},
		{"platform.shell", p.Shell},
		{"platform.environment", p.Environment},
		{"platform.notifier", p.Notifier},
		{"platform.dialogs", p.Dialogs},
		{"platform.registry", p.Registry},
	}
	out := make([]Check, 0, len(services))
	for _, s := range services {
		switch s.backend.(type) {
		case nil, platform.Unsupported:
			out = append(out, Check{Name: s.name, Pass: true, Message: "not supported on " + runtime.GOOS})
		case *platform.HeadlessDialogs:
			out = append(out, Check{Name: s.name, Pass: true, Message: "headless; modal dialogs are not rendered"})
		default:
			out = append(out, Check{Name: s.name, Pass: true, Message: fmt.Sprintf("native (%T)", s.backend)})
		}
	}
	return out
}

func checkIdentity(ctx context.Context, id platform.Identity) Check {
	if id == nil {
		return Check{Name: "identity", Pass: true, Message: "not supported on " + runtime.GOOS}
	}
	system, err := id.IsLocalSystem(ctx)
	if err != nil {
		return Check{Name: "identity", Pass: false, Message: err.Error()}
	}
	if system {
		return Check{Name: "identity", Pass: true, Message: "running as Local System; BlockExecution and TokenBroker are available"}
	}
	return Check{Name: "identity", Pass: true, Message: "running as an interactive user"}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkProcessTable(ctx context.Context, source processes.Source) Check {
	procs, err := source.List(ctx)
	if err != nil {
		return Check{Name: "processes", Pass: false, Message: err.Error()}
	}
	return Check{Name: "processes", Pass: true, Message: fmt.Sprintf("%d processes visible", len(procs))}
}

const probe = "psadt-client doctor"

// checkPipeEncryption runs a key exchange and one encrypted frame over an
// in-memory pipe pair.
func checkPipeEncryption(maxFrame int) Check {
	fail := func(err error) Check {
		return Check{Name: "pipe.encryption", Pass: false, Message: err.Error()}
	}

	host, err := pipecrypt.New()
	if err != nil {
		return fail(err)
	}
	defer host.Close()
	client, err := pipecrypt.New()
	if err != nil {
		return fail(err)
	}
	defer client.Close()
	if maxFrame > 0 {
		host.MaxFrameSize, client.MaxFrameSize = maxFrame, maxFrame
	}

	hostR, clientW := io.Pipe()
	clientR, hostW := io.Pipe()
	hostDone := make(chan error, 1)
	go func() {
		err := host.PerformServerKeyExchange(hostW, hostR)
		if err == nil {
			var frame []byte
			frame, err = host.ReadEncrypted(hostR)
			if err == nil && string(frame) != probe {
				err = errors.New("decrypted frame does not match")
			}
		}
		if err != nil {
			_ = hostW.CloseWithError(err)
			_ = hostR.CloseWithError(err)
		}
		hostDone <- err
	}()

	err = client.PerformClientKeyExchange(clientW, clientR)
	if err == nil {
		err = client.WriteEncrypted(clientW, []byte(probe))
	}
	if err != nil {
		_ = clientW.CloseWithError(err)
		_ = clientR.CloseWithError(err)
	}
	hostErr := <-hostDone
	_ = clientW.Close()
	_ = hostW.Close()

	if err := errors.Join(err, hostErr); err != nil {
		return fail(err)
	}
	return Check{Name: "pipe.encryption", Pass: true, Message: "key exchange and frame round trip succeeded"}
}
