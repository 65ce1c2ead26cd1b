// Package app selects the invocation mode and runs it.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/psadt/psadt-client/internal/cli"
	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/config"
	"github.com/psadt/psadt-client/internal/doctor"
	"github.com/psadt/psadt-client/internal/logging"
	"github.com/psadt/psadt-client/internal/operations"
	"github.com/psadt/psadt-client/internal/platform"
	"github.com/psadt/psadt-client/internal/processes"
	"github.com/psadt/psadt-client/internal/tokenbroker"
	"github.com/psadt/psadt-client/internal/version"
	"github.com/psadt/psadt-client/internal/wire"
)

const binaryName = "psadt-client"

// Runner executes one invocation. Zero-valued fields fall back to the
// process's real environment.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	// Provider overrides platform.NewProvider.
	Provider *platform.Provider
	// Tokens and Dial back the token broker.
	Tokens tokenbroker.Tokens
	Dial   tokenbroker.Dialer
	// ParentName reports the parent process name for launcher detection.
	ParentName func(context.Context) (string, error)
	// Executable is this program's path.
	Executable string
	// Abort terminates the process abruptly. It must not return.
	Abort func(error)
}

// Execute runs args with the process defaults.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return int(clienterr.NoArguments)
	}

	inv, err := cli.Parse(args)
	if err != nil {
		return r.fail(ctx, nil, config.Default(), err)
	}
	switch inv.Mode {
	case cli.ModeHelp:
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	case cli.ModeVersion:
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	loaded, err := config.Load(inv.ConfigPath)
	if err != nil {
		return r.fail(ctx, nil, config.Default(), clienterr.Wrap(clienterr.InvalidArguments, "The configuration could not be loaded.", err))
	}
	cfg := loaded.Config

	logRuntime, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: setup logging: %v\n", err)
		logRuntime = logging.Runtime{Logger: slog.New(slog.DiscardHandler)}
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}
	for _, w := range loaded.Warnings {
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}
	logger.Info("invocation start",
		"mode", inv.Mode.String(),
		"config", loaded.Path,
		"config_source", string(loaded.Source),
		"log", logRuntime.Path,
		"version", version.Version,
	)

	provider := r.Provider
	if provider == nil {
		if provider, err = platform.NewProvider(); err != nil {
			return r.fail(ctx, logger, cfg, clienterr.Ensure(err, clienterr.PlatformUnsupported, "The platform services could not be initialised."))
		}
	} else {
		provider = platform.Fill(provider)
	}

	if inv.Mode == cli.ModeDoctor {
		report := doctor.Run(ctx, doctor.Inputs{Config: loaded, LogPath: logRuntime.Path, Provider: provider})
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return int(clienterr.OperationFailed)
	}

	if err := inv.Resolve(ctx, provider.Registry); err != nil {
		return r.fail(ctx, logger, cfg, err)
	}

	if inv.Mode == cli.ModeClientServer {
		if err := r.clientServer(ctx, inv.Params.(cli.ClientServerParams), provider, cfg, logger); err != nil {
			return r.fail(ctx, logger, cfg, err)
		}
		logger.Info("client-server session finished")
		return 0
	}

	ops := operations.New(provider,
		operations.WithListSeparator(cfg.Environment.ListSeparator),
		operations.WithLogger(logger),
	)
	result, code, err := r.standalone(ctx, inv, ops, provider, cfg, logger)
	if err != nil {
		return r.fail(ctx, logger, cfg, err)
	}
	if text, ok := result.(plainText); ok {
		fmt.Fprintln(r.Stdout, string(text))
	} else if result != nil {
		encoded, err := wire.EncodeString(result)
		if err != nil {
			return r.fail(ctx, logger, cfg, err)
		}
		fmt.Fprintln(r.Stdout, encoded)
	}
	logger.Info("invocation complete", "mode", inv.Mode.String(), "exit_code", code)
	return code
}

// fail writes err to stderr in its wire form and returns its exit code. When
// a launcher started this process, the failure aborts the process instead.
func (r Runner) fail(ctx context.Context, logger *slog.Logger, cfg config.Config, err error) int {
	code := clienterr.CodeOf(err)
	if logger != nil {
		logger.ErrorContext(ctx, "invocation failed", "exit_code", code.String(), "error", err.Error())
	}
	fmt.Fprintln(r.Stderr, wire.EncodeErrorString(err))

	if r.launchedByLauncher(ctx, cfg.Launcher.Suffix) {
		abort := r.Abort
		if abort == nil {
			abort = func(err error) { panic(err) }
		}
		abort(err)
	}
	return int(code)
}

func (r Runner) launchedByLauncher(ctx context.Context, suffix string) bool {
	if suffix == "" {
		return false
	}
	exe := r.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return false
		}
	}
	parentName := r.ParentName
	if parentName == nil {
		parentName = processes.ParentProcessName
	}
	parent, err := parentName(ctx)
	if err != nil {
		return false
	}
	self := processes.TrimExecutableExt(filepath.Base(exe))
	return strings.EqualFold(parent, self+suffix)
}
