//go:build windows

package tokenbroker

import (
	"context"
	"io"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"
)

type systemTokens struct{}

// SystemTokens returns the Win32 token API.
func SystemTokens() Tokens {
	return systemTokens{}
}

func (systemTokens) QueryUserToken(_ context.Context, session uint32) (Token, error) {
	var t windows.Token
	if err := windows.WTSQueryUserToken(session, &t); err != nil {
		return 0, err
	}
	return Token(t), nil
}

func (systemTokens) LinkedToken(_ context.Context, t Token) (Token, error) {
	linked, err := windows.Token(t).GetLinkedToken()
	if err != nil {
		return 0, err
	}
	return Token(linked), nil
}

func (systemTokens) PrimaryToken(_ context.Context, t Token) (Token, error) {
	var primary windows.Token
	err := windows.DuplicateTokenEx(windows.Token(t), windows.MAXIMUM_ALLOWED, nil,
		windows.SecurityImpersonation, windows.TokenPrimary, &primary)
	if err != nil {
		return 0, err
	}
	return Token(primary), nil
}

func (systemTokens) DuplicateInto(_ context.Context, t Token, pid uint32) (uint64, error) {
	target, err := windows.OpenProcess(windows.PROCESS_DUP_HANDLE, false, pid)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(target)

	var dup windows.Handle
	err = windows.DuplicateHandle(windows.CurrentProcess(), windows.Handle(t), target, &dup,
		0, true, windows.DUPLICATE_SAME_ACCESS)
	if err != nil {
		return 0, err
	}
	return uint64(dup), nil
}

func (systemTokens) Release(t Token) error {
	return windows.CloseHandle(windows.Handle(t))
}

// DialPipe connects to \\.\pipe\<name>.
func DialPipe(ctx context.Context, name string) (io.WriteCloser, error) {
	return winio.DialPipeContext(ctx, `\\.\pipe\`+name)
}
