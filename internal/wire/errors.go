package wire

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	spb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/psadt/psadt-client/internal/clienterr"
)

// ErrorDomain tags the ErrorInfo detail attached to every error response.
const ErrorDomain = "psadt.client"

// EncodeError renders err as a google.rpc.Status whose ErrorInfo detail
// carries the client exit code, so the host can branch on the code instead
// of parsing message text.
func EncodeError(err error) ([]byte, error) {
	ce := clienterr.Ensure(err, clienterr.Unknown, "An unexpected error occurred")

	info := &errdetails.ErrorInfo{
		Reason: ce.Code.String(),
		Domain: ErrorDomain,
		Metadata: map[string]string{
			"exit_code": strconv.Itoa(int(ce.Code)),
			"hresult":   strconv.Itoa(int(ce.HResult())),
		},
	}
	if ce.Err != nil {
		info.Metadata["cause"] = strings.ToValidUTF8(ce.Err.Error(), "\uFFFD")
	}

	st, detailErr := status.New(grpcCode(ce.Code), strings.ToValidUTF8(ce.Message, "\uFFFD")).WithDetails(info)
	if detailErr != nil {
		return nil, clienterr.Wrap(clienterr.InvalidResult, "An error occurred while serializing the provided result.", detailErr)
	}
	raw, marshalErr := proto.Marshal(st.Proto())
	if marshalErr != nil {
		return nil, clienterr.Wrap(clienterr.InvalidResult, "An error occurred while serializing the provided result.", marshalErr)
	}
	return raw, nil
}

// DecodeError rebuilds the client error carried by an Error response body.
func DecodeError(data []byte) error {
	var sp spb.Status
	if err := proto.Unmarshal(data, &sp); err != nil {
		return clienterr.Wrap(clienterr.InvalidResult, "The received error response could not be decoded.", err)
	}
	st := status.FromProto(&sp)

	out := &clienterr.Error{Code: clienterr.Unknown, Message: st.Message()}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != ErrorDomain {
			continue
		}
		if code, ok := clienterr.ParseExitCode(info.GetReason()); ok {
			out.Code = code
		} else if n, err := strconv.Atoi(info.GetMetadata()["exit_code"]); err == nil {
			out.Code = clienterr.ExitCode(n)
		}
		if cause := info.GetMetadata()["cause"]; cause != "" {
			out.Err = errors.New(cause)
		}
	}
	return out
}

// EncodeErrorString is the text counterpart of EncodeError, written to
// stderr in standalone mode.
func EncodeErrorString(err error) string {
	raw, encErr := EncodeError(err)
	if encErr != nil {
		return err.Error()
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeErrorString reverses EncodeErrorString.
func DecodeErrorString(s string) error {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return clienterr.Wrap(clienterr.InvalidResult, "The received error response could not be decoded.", err)
	}
	return DecodeError(raw)
}

func grpcCode(code clienterr.ExitCode) codes.Code {
	switch code {
	case clienterr.NoArguments, clienterr.InvalidArguments, clienterr.InvalidMode,
		clienterr.NoOptions, clienterr.InvalidOptions,
		clienterr.NoDialogType, clienterr.InvalidDialog, clienterr.NoDialogStyle, clienterr.InvalidDialogStyle,
		clienterr.InvalidSessionID:
		return codes.InvalidArgument
	case clienterr.InvalidRequest, clienterr.WindowNotEnabled:
		return codes.FailedPrecondition
	case clienterr.UnknownCommand, clienterr.UnsupportedDialog, clienterr.PlatformUnsupported:
		return codes.Unimplemented
	case clienterr.CallerNotLocalSystem:
		return codes.PermissionDenied
	case clienterr.NoOutputPipe, clienterr.NoInputPipe, clienterr.NoLogPipe,
		clienterr.InvalidOutputPipe, clienterr.InvalidInputPipe, clienterr.InvalidLogPipe,
		clienterr.PipeReadWriteError, clienterr.EncryptionError:
		return codes.Unavailable
	case clienterr.Unknown:
		return codes.Unknown
	default:
		return codes.Internal
	}
}
