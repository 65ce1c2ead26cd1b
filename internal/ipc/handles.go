package ipc

import (
	"os"
	"strconv"
	"strings"

	"github.com/psadt/psadt-client/internal/clienterr"
)

// OpenHandle wraps an inherited pipe handle given on the command line as a
// decimal or 0x-prefixed number. name labels the file and the error.
func OpenHandle(value, name string, invalid clienterr.ExitCode) (*os.File, error) {
	h, err := strconv.ParseUint(strings.TrimSpace(value), 0, 64)
	if err != nil || h == 0 {
		return nil, clienterr.Newf(invalid, "The specified %s handle [%s] is invalid.", name, value)
	}
	f := os.NewFile(uintptr(h), name)
	if f == nil {
		return nil, clienterr.Newf(invalid, "The specified %s handle [%s] is invalid.", name, value)
	}
	return f, nil
}
