package wire

import "github.com/psadt/psadt-client/internal/clienterr"

// Request is one decoded request frame.
type Request struct {
	Command Command
	Payload []byte
}

// Response is one decoded response frame.
type Response struct {
	Marker ResponseMarker
	Body   []byte
}

// EncodeRequest joins the command tag and payload. The caller encrypts the
// result as a single unit.
func EncodeRequest(cmd Command, payload []byte) []byte {
	out := make([]byte, 1+len(payload))
	out[0] = byte(cmd)
	copy(out[1:], payload)
	return out
}

// DecodeRequest splits a decrypted request frame. Unknown command bytes are
// returned as-is so the dispatcher can answer them with an error response.
func DecodeRequest(frame []byte) (Request, error) {
	if len(frame) == 0 {
		return Request{}, clienterr.New(clienterr.InvalidRequest, "The received request frame was empty.")
	}
	return Request{Command: Command(frame[0]), Payload: frame[1:]}, nil
}

// EncodeResponse joins the response marker and body.
func EncodeResponse(marker ResponseMarker, body []byte) []byte {
	out := make([]byte, 1+len(body))
	out[0] = byte(marker)
	copy(out[1:], body)
	return out
}

// DecodeResponse splits a decrypted response frame.
func DecodeResponse(frame []byte) (Response, error) {
	if len(frame) == 0 {
		return Response{}, clienterr.New(clienterr.InvalidResult, "The received response frame was empty.")
	}
	marker := ResponseMarker(frame[0])
	if marker != ResponseSuccess && marker != ResponseError {
		return Response{}, clienterr.Newf(clienterr.InvalidResult, "The received response marker [%s] is not recognised.", marker)
	}
	return Response{Marker: marker, Body: frame[1:]}, nil
}
