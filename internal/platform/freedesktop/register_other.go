//go:build !windows

package freedesktop

import "github.com/psadt/psadt-client/internal/platform"

func init() {
	platform.NewProviderFunc = func() (*platform.Provider, error) {
		return &platform.Provider{Notifier: NewNotifier()}, nil
	}
}
