//go:build windows

package windows

import (
	"context"

	"golang.org/x/sys/windows"

	"github.com/psadt/psadt-client/internal/clienterr"
)

// Identity inspects the token of the running process.
type Identity struct{}

func NewIdentity() *Identity {
	return &Identity{}
}

func (i *Identity) IsLocalSystem(context.Context) (bool, error) {
	user, err := windows.GetCurrentProcessToken().GetTokenUser()
	if err != nil {
		return false, clienterr.Wrap(clienterr.OperationFailed, "Failed to read the process token user.", err)
	}
	return user.User.Sid.IsWellKnown(windows.WinLocalSystemSid), nil
}
