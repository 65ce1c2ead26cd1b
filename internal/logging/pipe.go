package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/psadt/psadt-client/internal/wire"
)

// EntryWriter accepts log entries for the host. ipc.LogWriter implements it.
type EntryWriter interface {
	WriteEntry(wire.LogEntry) error
}

// skipped attributes only matter in the file log.
var skipped = map[string]bool{"session_id": true, "stack": true}

// PipeHandler turns records into host log entries. Debug records stay local.
type PipeHandler struct {
	w      EntryWriter
	source string
	attrs  []slog.Attr
	group  string
}

// NewPipeHandler tags every entry with source.
func NewPipeHandler(w EntryWriter, source string) *PipeHandler {
	return &PipeHandler{w: w, source: source}
}

func (h *PipeHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (h *PipeHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		appendAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.group, a)
		return true
	})
	return h.w.WriteEntry(wire.LogEntry{
		Severity: Severity(r.Level),
		Message:  b.String(),
		Source:   h.source,
	})
}

func appendAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) || skipped[a.Key] {
		return
	}
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			appendAttr(b, key, ga)
		}
		return
	}
	fmt.Fprintf(b, " %s=%s", key, a.Value.String())
}

func (h *PipeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	out.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	out.attrs = append(out.attrs, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		out.attrs = append(out.attrs, a)
	}
	return &out
}

func (h *PipeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := *h
	if out.group != "" {
		name = out.group + "." + name
	}
	out.group = name
	return &out
}

// Severity maps an slog level onto the host's scale.
func Severity(level slog.Level) wire.LogSeverity {
	switch {
	case level >= slog.LevelError:
		return wire.SeverityError
	case level >= slog.LevelWarn:
		return wire.SeverityWarning
	default:
		return wire.SeverityInfo
	}
}
