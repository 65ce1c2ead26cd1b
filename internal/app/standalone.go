package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psadt/psadt-client/internal/cli"
	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/config"
	"github.com/psadt/psadt-client/internal/operations"
	"github.com/psadt/psadt-client/internal/platform"
	"github.com/psadt/psadt-client/internal/processes"
	"github.com/psadt/psadt-client/internal/tokenbroker"
	"github.com/psadt/psadt-client/internal/wire"
)

// plainText is printed as is instead of in its wire form.
type plainText string

// standaloneEnv is what a single-shot operation may touch.
type standaloneEnv struct {
	r        Runner
	ops      *operations.Service
	provider *platform.Provider
	cfg      config.Config
	logger   *slog.Logger
}

type standaloneFunc func(ctx context.Context, env standaloneEnv, params any) (any, error)

var standaloneOps = map[cli.Mode]standaloneFunc{
	cli.ModeShowBalloonTip: func(ctx context.Context, env standaloneEnv, p any) (any, error) {
		return env.ops.ShowBalloonTip(ctx, p.(cli.BalloonTipParams).Options)
	},
	cli.ModeGetProcessWindowInfo: func(ctx context.Context, env standaloneEnv, p any) (any, error) {
		return env.ops.GetProcessWindowInfo(ctx, p.(cli.WindowInfoParams).Options)
	},
	cli.ModeGetUserNotificationState: func(ctx context.Context, env standaloneEnv, _ any) (any, error) {
		return env.ops.GetUserNotificationState(ctx)
	},
	cli.ModeGetForegroundWindowProcessID: func(ctx context.Context, env standaloneEnv, _ any) (any, error) {
		return env.ops.GetForegroundWindowProcessID(ctx)
	},
	cli.ModeRefreshDesktopAndEnvironmentVariables: func(ctx context.Context, env standaloneEnv, _ any) (any, error) {
		return env.ops.RefreshDesktopAndEnvironmentVariables(ctx)
	},
	cli.ModeMinimizeAllWindows: func(ctx context.Context, env standaloneEnv, _ any) (any, error) {
		return env.ops.MinimizeAllWindows(ctx)
	},
	cli.ModeRestoreAllWindows: func(ctx context.Context, env standaloneEnv, _ any) (any, error) {
		return env.ops.RestoreAllWindows(ctx)
	},
	cli.ModeSendKeys: func(ctx context.Context, env standaloneEnv, p any) (any, error) {
		return env.ops.SendKeys(ctx, p.(cli.SendKeysParams).Request)
	},
	cli.ModeGetEnvironmentVariable: func(ctx context.Context, env standaloneEnv, p any) (any, error) {
		return env.ops.GetEnvironmentVariable(ctx, p.(cli.EnvironmentParams).Request)
	},
	cli.ModeSetEnvironmentVariable: func(ctx context.Context, env standaloneEnv, p any) (any, error) {
		return env.ops.SetEnvironmentVariable(ctx, p.(cli.EnvironmentParams).Request)
	},
	cli.ModeRemoveEnvironmentVariable: func(ctx context.Context, env standaloneEnv, p any) (any, error) {
		return env.ops.RemoveEnvironmentVariable(ctx, p.(cli.EnvironmentParams).Request)
	},
	cli.ModeGroupPolicyUpdate: func(ctx context.Context, env standaloneEnv, _ any) (any, error) {
		return env.ops.GroupPolicyUpdate(ctx)
	},
	cli.ModeGetLastInputTime: func(ctx context.Context, env standaloneEnv, _ any) (any, error) {
		t, err := env.ops.GetLastInputTime(ctx)
		if err != nil {
			return nil, err
		}
		return plainText(strconv.FormatInt(operations.Ticks(t), 10)), nil
	},
	cli.ModeSilentRestart: func(ctx context.Context, env standaloneEnv, p any) (any, error) {
		return env.ops.SilentRestart(ctx, p.(cli.SilentRestartParams).Delay)
	},
	cli.ModeTokenBroker: func(ctx context.Context, env standaloneEnv, p any) (any, error) {
		tokens, dial := env.r.Tokens, env.r.Dial
		if tokens == nil {
			tokens = tokenbroker.SystemTokens()
		}
		if dial == nil {
			dial = tokenbroker.DialPipe
		}
		b := tokenbroker.New(env.provider.Identity, tokens, dial, env.logger)
		if err := b.Broker(ctx, p.(cli.TokenBrokerParams).Request); err != nil {
			return nil, err
		}
		return true, nil
	},
}

// standalone runs one operation. The returned code is the process exit code
// on success; only BlockExecution sets it to something other than zero.
func (r Runner) standalone(ctx context.Context, inv cli.Invocation, ops *operations.Service, provider *platform.Provider, cfg config.Config, logger *slog.Logger) (any, int, error) {
	env := standaloneEnv{r: r, ops: ops, provider: provider, cfg: cfg, logger: logger}
	if inv.Mode == cli.ModeShowModalDialog {
		return showModalDialog(ctx, env, inv.Params.(cli.ModalDialogParams))
	}
	fn, ok := standaloneOps[inv.Mode]
	if !ok {
		return nil, 0, clienterr.Newf(clienterr.InvalidMode, "The mode [%s] cannot be run standalone.", inv.Mode)
	}
	result, err := fn(ctx, env, inv.Params)
	return result, 0, err
}

func showModalDialog(ctx context.Context, env standaloneEnv, p cli.ModalDialogParams) (any, int, error) {
	if p.BlockExecution {
		system, err := env.provider.Identity.IsLocalSystem(ctx)
		if err != nil {
			return nil, 0, clienterr.Ensure(err, clienterr.BlockExecutionFailed, "Failed to determine the caller's identity.")
		}
		if system {
			code, err := blockExecution(ctx, env, p.Command)
			return nil, code, err
		}
	}

	if _, _, err := operations.ParseDialog(p.DialogType, p.DialogStyle); err != nil {
		return nil, 0, err
	}
	raw, err := cli.Options(map[string]string{"Options": p.Options})
	if p.Options == "" {
		err = clienterr.New(clienterr.NoOptions, "The required options were not specified on the command line.")
	}
	if err != nil {
		return nil, 0, err
	}
	opts, err := wire.DecodeString[*structpb.Struct](raw)
	if err != nil {
		return nil, 0, err
	}
	result, err := env.ops.ShowModalDialog(ctx, wire.ShowModalDialogRequest{
		DialogType:  p.DialogType,
		DialogStyle: p.DialogStyle,
		Options:     opts,
	}, nil)
	if err != nil {
		return nil, 0, err
	}
	return result, 0, nil
}

// blockExecution launches a blocked executable with its Image File Execution
// Options hook renamed out of the way, then puts the hook back.
func blockExecution(ctx context.Context, env standaloneEnv, command []string) (int, error) {
	if len(command) == 0 {
		return 0, clienterr.New(clienterr.BlockExecutionFailed, "The blocked executable was not found on the command line.")
	}
	path := command[0]
	key := filepath.Base(path)
	parked := processes.TrimExecutableExt(key) + ".ifeo"
	reg := env.provider.Registry
	ifeo := env.cfg.BlockExecution.IFEOKey

	if err := reg.RenameKey(ctx, ifeo, key, parked); err != nil {
		return 0, clienterr.Ensure(err, clienterr.BlockExecutionFailed, "Failed to suspend the execution block.")
	}
	env.logger.InfoContext(ctx, "launching blocked executable", "path", path, "ifeo_key", key)

	code, runErr := env.provider.Launcher.Run(ctx, path, command[1:], filepath.Dir(path))

	var errs *multierror.Error
	if runErr != nil {
		errs = multierror.Append(errs, fmt.Errorf("launch %s: %w", path, runErr))
	}
	if err := reg.RenameKey(ctx, ifeo, parked, key); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("restore execution block: %w", err))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return 0, clienterr.Wrap(clienterr.BlockExecutionFailed, "Failed to launch the blocked executable.", err)
	}
	env.logger.InfoContext(ctx, "blocked executable exited", "path", path, "exit_code", code)
	return code, nil
}
