package clienterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("pipe broken")
	err := Wrap(PipeReadWriteError, "failed to read or write from the pipe", cause)

	require.Equal(t, "failed to read or write from the pipe: pipe broken", err.Error())
	require.ErrorIs(t, err, cause)
	require.Equal(t, PipeReadWriteError, CodeOf(fmt.Errorf("outer: %w", err)))
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, Success, CodeOf(nil))
	require.Equal(t, Unknown, CodeOf(errors.New("plain")))
	require.Equal(t, InvalidOptions, CodeOf(New(InvalidOptions, "bad")))
}

func TestExitCodesAreDistinctAndNamed(t *testing.T) {
	seen := make(map[string]ExitCode, len(names))
	for code, name := range names {
		prev, dup := seen[name]
		require.False(t, dup, "duplicate name %s for %d and %d", name, prev, code)
		seen[name] = code

		parsed, ok := ParseExitCode(name)
		require.True(t, ok)
		require.Equal(t, code, parsed)
	}
	require.Equal(t, "ExitCode(999)", ExitCode(999).String())
}

func TestHResult(t *testing.T) {
	require.Equal(t, int32(0), New(Success, "ok").HResult())
	require.Equal(t, int32(0x2000001B), New(EncryptionError, "x").HResult())
}

func TestEnsureKeepsExistingClientError(t *testing.T) {
	original := New(InvalidRequest, "out of sequence")
	got := Ensure(fmt.Errorf("ctx: %w", original), Unknown, "ignored")
	require.Same(t, original, got)

	wrapped := Ensure(errors.New("boom"), OperationFailed, "operation failed")
	require.Equal(t, OperationFailed, wrapped.Code)
	require.Equal(t, "operation failed: boom", wrapped.Error())
}
