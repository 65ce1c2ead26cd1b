package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/psadt/psadt-client/internal/processes"
	"github.com/psadt/psadt-client/internal/wire"
)

// CloseAppsDialogState is the state InitCloseAppsDialog leaves behind for
// the rest of the session. Processes is nil when no definitions were given.
type CloseAppsDialogState struct {
	Processes *processes.Service
}

func newCloseAppsDialogState(ctx context.Context, defs []wire.ProcessDefinition, cfg Config, logger *slog.Logger) (*CloseAppsDialogState, error) {
	if len(defs) == 0 {
		logger.InfoContext(ctx, "close-apps dialog initialised without process definitions")
		return &CloseAppsDialogState{}, nil
	}

	svc := processes.NewService(defs, cfg.ProcessSource)
	err := svc.Start(ctx, cfg.ProcessPollInterval, func(list []processes.ProcessToClose) {
		names := make([]string, len(list))
		for i, p := range list {
			names[i] = p.Description
		}
		logger.Debug("running processes to close changed", "processes", names)
	})
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("start process polling: %w", err)
	}
	logger.InfoContext(ctx, "close-apps dialog initialised", "definitions", len(defs))
	return &CloseAppsDialogState{Processes: svc}, nil
}

// Close stops polling and releases the process service.
func (s *CloseAppsDialogState) Close() error {
	if s == nil || s.Processes == nil {
		return nil
	}
	var errs *multierror.Error
	if s.Processes.Polling() {
		if err := s.Processes.Stop(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("stop process polling: %w", err))
		}
	}
	if err := s.Processes.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("close process service: %w", err))
	}
	return errs.ErrorOrNil()
}
