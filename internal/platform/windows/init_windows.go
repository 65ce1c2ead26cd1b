//go:build windows

package windows

import "github.com/psadt/psadt-client/internal/platform"

func init() {
	platform.NewProviderFunc = func() (*platform.Provider, error) {
		return &platform.Provider{
			Windows:     NewWindowManager(),
			Shell:       NewShell(),
			Environment: NewEnvironment(),
			Dialogs:     NewDialogs(),
			Identity:    NewIdentity(),
			Registry:    NewRegistry(),
		}, nil
	}
}
