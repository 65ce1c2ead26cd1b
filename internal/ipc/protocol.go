// Package ipc carries the encrypted request/response protocol over a pair
// of inherited pipes, plus the one-way log channel beside them.
package ipc

import (
	"context"

	"github.com/psadt/psadt-client/internal/wire"
)

// Handler answers one decoded request. A returned error is a plumbing fault
// and ends the session; operation failures belong in an Error reply.
type Handler interface {
	Handle(context.Context, wire.Request) (Reply, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, wire.Request) (Reply, error)

func (f HandlerFunc) Handle(ctx context.Context, req wire.Request) (Reply, error) {
	return f(ctx, req)
}

// Reply is one response frame. Close ends the session once it is written.
type Reply struct {
	Marker wire.ResponseMarker
	Body   []byte
	Close  bool
}

// Success wraps an encoded result.
func Success(body []byte) Reply {
	return Reply{Marker: wire.ResponseSuccess, Body: body}
}

// Failure wraps an encoded error.
func Failure(body []byte) Reply {
	return Reply{Marker: wire.ResponseError, Body: body}
}
