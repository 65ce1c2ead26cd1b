package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/psadt/psadt-client/internal/cli"
	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/config"
	"github.com/psadt/psadt-client/internal/ipc"
	"github.com/psadt/psadt-client/internal/logging"
	"github.com/psadt/psadt-client/internal/operations"
	"github.com/psadt/psadt-client/internal/platform"
	"github.com/psadt/psadt-client/internal/session"
)

// clientServer opens the inherited pipe handles and serves one session.
func (r Runner) clientServer(ctx context.Context, p cli.ClientServerParams, provider *platform.Provider, cfg config.Config, logger *slog.Logger) error {
	files, err := openPipes(p)
	if err != nil {
		return err
	}
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	return serve(ctx, ipc.Pipes{Output: files[0], Input: files[1], Log: files[2]}, provider, cfg, logger)
}

func openPipes(p cli.ClientServerParams) ([]*os.File, error) {
	specs := []struct {
		value, name string
		invalid     clienterr.ExitCode
	}{
		{p.OutputPipe, "OutputPipe", clienterr.InvalidOutputPipe},
		{p.InputPipe, "InputPipe", clienterr.InvalidInputPipe},
		{p.LogPipe, "LogPipe", clienterr.InvalidLogPipe},
	}
	files := make([]*os.File, 0, len(specs))
	for _, s := range specs {
		f, err := ipc.OpenHandle(s.value, s.name, s.invalid)
		if err != nil {
			for _, opened := range files {
				_ = opened.Close()
			}
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// serve runs the key exchange and the request loop over pipes. Session logs
// go to both the file logger and the host's log channel.
func serve(ctx context.Context, pipes ipc.Pipes, provider *platform.Provider, cfg config.Config, fileLogger *slog.Logger) error {
	sess, err := ipc.Accept(pipes, cfg.IPC.MaxFrameBytes)
	if err != nil {
		return err
	}

	logger := fileLogger
	if log := sess.Log(); log != nil {
		logger = slog.New(logging.Tee(fileLogger.Handler(), logging.NewPipeHandler(log, "psadt-client")))
	}
	ops := operations.New(provider,
		operations.WithListSeparator(cfg.Environment.ListSeparator),
		operations.WithLogger(logger),
	)
	d := session.NewDispatcher(ops, logger, session.Config{
		PollInterval:        cfg.CloseApps.PollInterval,
		KillWaitTimeout:     cfg.CloseApps.KillWaitTimeout,
		ProcessPollInterval: cfg.CloseApps.ProcessPollInterval,
	})
	fileLogger.InfoContext(ctx, "pipe session established", "session_id", d.ID())

	defer func() {
		var errs *multierror.Error
		if cerr := d.Close(); cerr != nil {
			errs = multierror.Append(errs, fmt.Errorf("dispose session state: %w", cerr))
		}
		if cerr := sess.Close(); cerr != nil {
			errs = multierror.Append(errs, fmt.Errorf("close pipe session: %w", cerr))
		}
		if derr := errs.ErrorOrNil(); derr != nil {
			fileLogger.WarnContext(ctx, "pipe session cleanup failed", "error", derr.Error())
		}
	}()

	if err := sess.Serve(ctx, d, fileLogger); err != nil {
		return err
	}
	fileLogger.InfoContext(ctx, "pipe session closed", "session_id", d.ID(), "state", string(sess.State()))
	return nil
}
