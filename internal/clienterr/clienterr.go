// Package clienterr defines the client's closed set of failure codes and the
// error type that carries them to the process exit code and the wire.
package clienterr

import (
	"errors"
	"fmt"
)

// ExitCode identifies one distinct local failure. Values are stable and are
// used both as the process exit code and as the error code on the wire.
type ExitCode int32

const (
	Success ExitCode = 0
	Unknown ExitCode = 1

	NoArguments      ExitCode = 10
	InvalidArguments ExitCode = 11
	InvalidMode      ExitCode = 12
	NoOptions        ExitCode = 13
	InvalidOptions   ExitCode = 14
	InvalidResult    ExitCode = 15

	NoOutputPipe       ExitCode = 20
	NoInputPipe        ExitCode = 21
	NoLogPipe          ExitCode = 22
	InvalidOutputPipe  ExitCode = 23
	InvalidInputPipe   ExitCode = 24
	InvalidLogPipe     ExitCode = 25
	PipeReadWriteError ExitCode = 26
	EncryptionError    ExitCode = 27

	InvalidRequest ExitCode = 30
	UnknownCommand ExitCode = 31

	NoDialogType       ExitCode = 40
	InvalidDialog      ExitCode = 41
	NoDialogStyle      ExitCode = 42
	InvalidDialogStyle ExitCode = 43
	UnsupportedDialog  ExitCode = 44

	WindowNotEnabled    ExitCode = 50
	PlatformUnsupported ExitCode = 51
	OperationFailed     ExitCode = 52

	CallerNotLocalSystem   ExitCode = 60
	InvalidSessionID       ExitCode = 61
	TokenQueryFailed       ExitCode = 62
	TokenElevationFailed   ExitCode = 63
	TokenDuplicationFailed ExitCode = 64
	TokenTransmitFailed    ExitCode = 65

	BlockExecutionFailed ExitCode = 70
)

var names = map[ExitCode]string{
	Success:                "Success",
	Unknown:                "Unknown",
	NoArguments:            "NoArguments",
	InvalidArguments:       "InvalidArguments",
	InvalidMode:            "InvalidMode",
	NoOptions:              "NoOptions",
	InvalidOptions:         "InvalidOptions",
	InvalidResult:          "InvalidResult",
	NoOutputPipe:           "NoOutputPipe",
	NoInputPipe:            "NoInputPipe",
	NoLogPipe:              "NoLogPipe",
	InvalidOutputPipe:      "InvalidOutputPipe",
	InvalidInputPipe:       "InvalidInputPipe",
	InvalidLogPipe:         "InvalidLogPipe",
	PipeReadWriteError:     "PipeReadWriteError",
	EncryptionError:        "EncryptionError",
	InvalidRequest:         "InvalidRequest",
	UnknownCommand:         "UnknownCommand",
	NoDialogType:           "NoDialogType",
	InvalidDialog:          "InvalidDialog",
	NoDialogStyle:          "NoDialogStyle",
	InvalidDialogStyle:     "InvalidDialogStyle",
	UnsupportedDialog:      "UnsupportedDialog",
	WindowNotEnabled:       "WindowNotEnabled",
	PlatformUnsupported:    "PlatformUnsupported",
	OperationFailed:        "OperationFailed",
	CallerNotLocalSystem:   "CallerNotLocalSystem",
	InvalidSessionID:       "InvalidSessionID",
	TokenQueryFailed:       "TokenQueryFailed",
	TokenElevationFailed:   "TokenElevationFailed",
	TokenDuplicationFailed: "TokenDuplicationFailed",
	TokenTransmitFailed:    "TokenTransmitFailed",
	BlockExecutionFailed:   "BlockExecutionFailed",
}

func (c ExitCode) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("ExitCode(%d)", int32(c))
}

// ParseExitCode maps a code name back to its value.
func ParseExitCode(name string) (ExitCode, bool) {
	for code, n := range names {
		if n == name {
			return code, true
		}
	}
	return Unknown, false
}

// hresultBase places client codes in the customer-defined facility so they
// never collide with system HRESULTs.
const hresultBase = 0x20000000

// Error is a failure raised by the client with a stable ExitCode.
type Error struct {
	Code    ExitCode
	Message string
	Err     error
}

// New builds a client error without an underlying cause.
func New(code ExitCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a client error with a formatted message.
func Newf(code ExitCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a client error around an underlying cause.
func Wrap(code ExitCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HResult returns the code as a customer-facility HRESULT.
func (e *Error) HResult() int32 {
	if e.Code == Success {
		return 0
	}
	return int32(hresultBase | uint32(e.Code))
}

// CodeOf extracts the ExitCode from err, or Unknown when err does not carry one.
func CodeOf(err error) ExitCode {
	if err == nil {
		return Success
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return Unknown
}

// Ensure returns err as a client error, wrapping foreign errors with code.
func Ensure(err error, code ExitCode, message string) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return Wrap(code, message, err)
}
