package ipc

import (
	"io"
	"sync"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/pipecrypt"
	"github.com/psadt/psadt-client/internal/wire"
)

// LogWriter sends log entries to the host, one encrypted frame each.
type LogWriter struct {
	mu sync.Mutex
	w  io.Writer
	ch *pipecrypt.Channel
}

// WriteEntry is safe for concurrent use.
func (l *LogWriter) WriteEntry(e wire.LogEntry) error {
	raw, err := wire.Encode(e)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ch.WriteEncrypted(l.w, raw); err != nil {
		return clienterr.Wrap(clienterr.PipeReadWriteError, "Failed to write to the log pipe.", err)
	}
	return nil
}

func (l *LogWriter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ch.Close()
}
