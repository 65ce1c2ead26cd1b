package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/psadt/psadt-client/internal/wire"
)

type entrySink struct {
	entries []wire.LogEntry
	err     error
}

func (s *entrySink) WriteEntry(e wire.LogEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func TestPipeHandlerMapsSeverityAndDropsDebug(t *testing.T) {
	sink := &entrySink{}
	logger := slog.New(NewPipeHandler(sink, "PromptToCloseApps"))

	logger.Debug("noise")
	logger.Info("closing")
	logger.Warn("timeout")
	logger.Error("refused")

	require.Equal(t, []wire.LogEntry{
		{Severity: wire.SeverityInfo, Message: "closing", Source: "PromptToCloseApps"},
		{Severity: wire.SeverityWarning, Message: "timeout", Source: "PromptToCloseApps"},
		{Severity: wire.SeverityError, Message: "refused", Source: "PromptToCloseApps"},
	}, sink.entries)
}

func TestPipeHandlerRendersAttributes(t *testing.T) {
	sink := &entrySink{}
	logger := slog.New(NewPipeHandler(sink, "client")).With("session_id", "abc", "command", "SendKeys")

	logger.WithGroup("req").Warn("request failed", "exit_code", "WindowNotEnabled")

	require.Len(t, sink.entries, 1)
	require.Equal(t, "request failed command=SendKeys req.exit_code=WindowNotEnabled", sink.entries[0].Message)
}

func TestTeeFansOutByLevel(t *testing.T) {
	var file bytes.Buffer
	sink := &entrySink{}
	logger := slog.New(Tee(
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
		NewPipeHandler(sink, "client"),
		nil,
	))

	logger.Debug("local only")
	logger.Info("both")

	require.Contains(t, file.String(), "local only")
	require.Contains(t, file.String(), `"msg":"both"`)
	require.Len(t, sink.entries, 1)
	require.Equal(t, "both", sink.entries[0].Message)
}

func TestTeeReportsHandlerErrors(t *testing.T) {
	sink := &entrySink{err: errors.New("pipe broken")}
	h := Tee(NewPipeHandler(sink, "client"))

	logger := slog.New(h)
	logger.Info("dropped")

	r := slog.Record{Level: slog.LevelInfo, Message: "direct"}
	require.ErrorContains(t, h.Handle(t.Context(), r), "pipe broken")
}
