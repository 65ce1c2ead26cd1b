//go:build windows

package windows

import (
	"context"
	"errors"
	"io/fs"

	"golang.org/x/sys/windows/registry"

	"github.com/psadt/psadt-client/internal/clienterr"
)

// Environment edits the current user's persistent variables under
// HKCU\Environment and announces every change.
type Environment struct{}

func NewEnvironment() *Environment {
	return &Environment{}
}

func (e *Environment) Get(_ context.Context, name string) (string, bool, error) {
	k, err := registry.OpenKey(registry.CURRENT_USER, userEnvironmentKey, registry.READ)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, clienterr.Wrap(clienterr.OperationFailed, "Failed to open the user environment.", err)
	}
	defer k.Close()

	value, _, err := k.GetStringValue(name)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return "", false, nil
		}
		return "", false, clienterr.Wrap(clienterr.OperationFailed, "Failed to read the environment variable.", err)
	}
	return value, true, nil
}

func (e *Environment) Set(_ context.Context, name, value string, expandable bool) error {
	k, _, err := registry.CreateKey(registry.CURRENT_USER, userEnvironmentKey, registry.READ|registry.WRITE)
	if err != nil {
		return clienterr.Wrap(clienterr.OperationFailed, "Failed to open the user environment.", err)
	}
	defer k.Close()

	if expandable {
		err = k.SetExpandStringValue(name, value)
	} else {
		err = k.SetStringValue(name, value)
	}
	if err != nil {
		return clienterr.Wrap(clienterr.OperationFailed, "Failed to write the environment variable.", err)
	}
	broadcastSettingChange(userEnvironmentKey)
	return nil
}

func (e *Environment) Remove(_ context.Context, name string) error {
	k, err := registry.OpenKey(registry.CURRENT_USER, userEnvironmentKey, registry.READ|registry.WRITE)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return clienterr.Wrap(clienterr.OperationFailed, "Failed to open the user environment.", err)
	}
	defer k.Close()

	if err := k.DeleteValue(name); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return clienterr.Wrap(clienterr.OperationFailed, "Failed to remove the environment variable.", err)
	}
	broadcastSettingChange(userEnvironmentKey)
	return nil
}
