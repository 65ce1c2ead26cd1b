package operations

import (
	"context"
	"strings"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/wire"
)

func requireVariable(req wire.EnvironmentVariableRequest) error {
	if strings.TrimSpace(req.Variable) == "" {
		return clienterr.New(clienterr.InvalidArguments, "A required Variable was not specified.")
	}
	return nil
}

// GetEnvironmentVariable reads a per-user variable. An unset variable comes
// back as UnsetSentinel.
func (s *Service) GetEnvironmentVariable(ctx context.Context, req wire.EnvironmentVariableRequest) (string, error) {
	if err := requireVariable(req); err != nil {
		return "", err
	}
	value, ok, err := s.p.Environment.Get(ctx, req.Variable)
	if err != nil {
		return "", err
	}
	if !ok {
		return UnsetSentinel, nil
	}
	return value, nil
}

// SetEnvironmentVariable writes a per-user variable. Append adds Value to
// the existing separator-joined list and Remove takes it out of that list.
func (s *Service) SetEnvironmentVariable(ctx context.Context, req wire.EnvironmentVariableRequest) (bool, error) {
	if err := requireVariable(req); err != nil {
		return false, err
	}
	if strings.TrimSpace(req.Value) == "" {
		return false, clienterr.New(clienterr.InvalidArguments, "A required Value was not specified.")
	}
	if req.Append && req.Remove {
		return false, clienterr.New(clienterr.InvalidArguments, "Append and Remove cannot be combined.")
	}

	value := req.Value
	if req.Append || req.Remove {
		existing, _, err := s.p.Environment.Get(ctx, req.Variable)
		if err != nil {
			return false, err
		}
		list := splitList(existing, s.separator)
		if req.Append {
			list = appendUnique(list, req.Value)
		} else {
			list = removeAll(list, req.Value)
		}
		if len(list) == 0 {
			if err := s.p.Environment.Remove(ctx, req.Variable); err != nil {
				return false, err
			}
			return true, nil
		}
		value = strings.Join(list, s.separator)
	}

	if err := s.p.Environment.Set(ctx, req.Variable, value, req.Expandable); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveEnvironmentVariable deletes a per-user variable. Deleting a variable
// that does not exist succeeds.
func (s *Service) RemoveEnvironmentVariable(ctx context.Context, req wire.EnvironmentVariableRequest) (bool, error) {
	if err := requireVariable(req); err != nil {
		return false, err
	}
	if err := s.p.Environment.Remove(ctx, req.Variable); err != nil {
		return false, err
	}
	return true, nil
}

func splitList(value, sep string) []string {
	var out []string
	for _, part := range strings.Split(value, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if strings.EqualFold(v, value) {
			return list
		}
	}
	return append(list, value)
}

func removeAll(list []string, value string) []string {
	out := list[:0]
	for _, v := range list {
		if !strings.EqualFold(v, value) {
			out = append(out, v)
		}
	}
	return out
}
