package wire

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/known/structpb"
)

// Marshaler is implemented by every typed payload.
type Marshaler interface {
	AppendWire(b []byte) ([]byte, error)
}

// Unmarshaler is implemented by pointers to every typed payload.
type Unmarshaler interface {
	UnmarshalWire(b []byte) error
}

// ProcessDefinition names a process the close-apps workflow tracks.
// Name is matched case-insensitively without the executable extension.
type ProcessDefinition struct {
	Name        string
	Description string
}

func (p ProcessDefinition) AppendWire(b []byte) ([]byte, error) {
	b = appendString(b, 1, p.Name)
	b = appendString(b, 2, p.Description)
	return b, nil
}

func (p *ProcessDefinition) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, v, &p.Name)
		case 2:
			return consumeString(typ, v, &p.Description)
		}
		return 0, nil
	})
}

// InitCloseAppsDialogRequest carries the processes to track for the rest of
// the pipe session. An empty list leaves the session without a process
// service.
type InitCloseAppsDialogRequest struct {
	Processes []ProcessDefinition
}

func (r InitCloseAppsDialogRequest) AppendWire(b []byte) ([]byte, error) {
	for _, p := range r.Processes {
		raw, _ := p.AppendWire(nil)
		b = appendBytes(b, 1, raw)
	}
	return b, nil
}

func (r *InitCloseAppsDialogRequest) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		raw, n, err := consumeBytes(typ, v)
		if err != nil {
			return 0, err
		}
		var p ProcessDefinition
		if err := p.UnmarshalWire(raw); err != nil {
			return 0, err
		}
		r.Processes = append(r.Processes, p)
		return n, nil
	})
}

// PromptToCloseAppsRequest bounds how long each window gets to close.
type PromptToCloseAppsRequest struct {
	Timeout time.Duration
}

func (r PromptToCloseAppsRequest) AppendWire(b []byte) ([]byte, error) {
	return appendDuration(b, 1, r.Timeout)
}

func (r *PromptToCloseAppsRequest) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num == 1 {
			return consumeDuration(typ, v, &r.Timeout)
		}
		return 0, nil
	})
}

// ShowModalDialogRequest selects a dialog and passes its options through
// untouched to the renderer.
type ShowModalDialogRequest struct {
	DialogType  string
	DialogStyle string
	Options     *structpb.Struct
}

func (r ShowModalDialogRequest) AppendWire(b []byte) ([]byte, error) {
	b = appendString(b, 1, r.DialogType)
	b = appendString(b, 2, r.DialogStyle)
	return appendStruct(b, 3, r.Options)
}

func (r *ShowModalDialogRequest) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, v, &r.DialogType)
		case 2:
			return consumeString(typ, v, &r.DialogStyle)
		case 3:
			return consumeStruct(typ, v, &r.Options)
		}
		return 0, nil
	})
}

type ShowProgressDialogRequest struct {
	DialogStyle string
	Options     *structpb.Struct
}

func (r ShowProgressDialogRequest) AppendWire(b []byte) ([]byte, error) {
	b = appendString(b, 1, r.DialogStyle)
	return appendStruct(b, 2, r.Options)
}

func (r *ShowProgressDialogRequest) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, v, &r.DialogStyle)
		case 2:
			return consumeStruct(typ, v, &r.Options)
		}
		return 0, nil
	})
}

// UpdateProgressDialogRequest changes only the fields that are set.
type UpdateProgressDialogRequest struct {
	Message       string
	DetailMessage string
	Percentage    *float64
	Alignment     string
}

func (r UpdateProgressDialogRequest) AppendWire(b []byte) ([]byte, error) {
	b = appendString(b, 1, r.Message)
	b = appendString(b, 2, r.DetailMessage)
	if r.Percentage != nil {
		b = appendDouble(b, 3, *r.Percentage)
	}
	b = appendString(b, 4, r.Alignment)
	return b, nil
}

func (r *UpdateProgressDialogRequest) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, v, &r.Message)
		case 2:
			return consumeString(typ, v, &r.DetailMessage)
		case 3:
			var pct float64
			n, err := consumeDouble(typ, v, &pct)
			if err == nil {
				r.Percentage = &pct
			}
			return n, err
		case 4:
			return consumeString(typ, v, &r.Alignment)
		}
		return 0, nil
	})
}

// BalloonTipOptions describes one tray notification.
type BalloonTipOptions struct {
	TrayTitle string
	TrayIcon  string
	Title     string
	Text      string
	Icon      string
	Timeout   time.Duration
}

func (o BalloonTipOptions) AppendWire(b []byte) ([]byte, error) {
	b = appendString(b, 1, o.TrayTitle)
	b = appendString(b, 2, o.TrayIcon)
	b = appendString(b, 3, o.Title)
	b = appendString(b, 4, o.Text)
	b = appendString(b, 5, o.Icon)
	if o.Timeout != 0 {
		return appendDuration(b, 6, o.Timeout)
	}
	return b, nil
}

func (o *BalloonTipOptions) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, v, &o.TrayTitle)
		case 2:
			return consumeString(typ, v, &o.TrayIcon)
		case 3:
			return consumeString(typ, v, &o.Title)
		case 4:
			return consumeString(typ, v, &o.Text)
		case 5:
			return consumeString(typ, v, &o.Icon)
		case 6:
			return consumeDuration(typ, v, &o.Timeout)
		}
		return 0, nil
	})
}

type SendKeysRequest struct {
	WindowHandle uint64
	Keys         string
}

func (r SendKeysRequest) AppendWire(b []byte) ([]byte, error) {
	b = appendUint(b, 1, r.WindowHandle)
	b = appendString(b, 2, r.Keys)
	return b, nil
}

func (r *SendKeysRequest) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint(typ, v, &r.WindowHandle)
		case 2:
			return consumeString(typ, v, &r.Keys)
		}
		return 0, nil
	})
}

// WindowInfoOptions filters a window enumeration. Empty filters match
// everything; non-empty filters are combined with AND.
type WindowInfoOptions struct {
	WindowTitleFilter                   []string
	WindowHandleFilter                  []uint64
	ParentProcessFilter                 []string
	ParentProcessIDFilter               []uint32
	ParentProcessMainWindowHandleFilter []uint64
}

func (o WindowInfoOptions) AppendWire(b []byte) ([]byte, error) {
	for _, s := range o.WindowTitleFilter {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	for _, h := range o.WindowHandleFilter {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, h)
	}
	for _, s := range o.ParentProcessFilter {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	for _, id := range o.ParentProcessIDFilter {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(id))
	}
	for _, h := range o.ParentProcessMainWindowHandleFilter {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, h)
	}
	return b, nil
}

func (o *WindowInfoOptions) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		var (
			s string
			u uint64
		)
		switch num {
		case 1:
			n, err := consumeString(typ, v, &s)
			o.WindowTitleFilter = append(o.WindowTitleFilter, s)
			return n, err
		case 2:
			n, err := consumeUint(typ, v, &u)
			o.WindowHandleFilter = append(o.WindowHandleFilter, u)
			return n, err
		case 3:
			n, err := consumeString(typ, v, &s)
			o.ParentProcessFilter = append(o.ParentProcessFilter, s)
			return n, err
		case 4:
			n, err := consumeUint(typ, v, &u)
			o.ParentProcessIDFilter = append(o.ParentProcessIDFilter, uint32(u))
			return n, err
		case 5:
			n, err := consumeUint(typ, v, &u)
			o.ParentProcessMainWindowHandleFilter = append(o.ParentProcessMainWindowHandleFilter, u)
			return n, err
		}
		return 0, nil
	})
}

// WindowInfo is a read-only snapshot of one visible top-level window.
type WindowInfo struct {
	WindowTitle                   string
	WindowHandle                  uint64
	ParentProcess                 string
	ParentProcessMainWindowHandle uint64
	ParentProcessID               uint32
}

// IsMainWindow reports whether the window is its owning process's main window.
func (w WindowInfo) IsMainWindow() bool {
	return w.WindowHandle != 0 && w.WindowHandle == w.ParentProcessMainWindowHandle
}

func (w WindowInfo) AppendWire(b []byte) ([]byte, error) {
	b = appendString(b, 1, w.WindowTitle)
	b = appendUint(b, 2, w.WindowHandle)
	b = appendString(b, 3, w.ParentProcess)
	b = appendUint(b, 4, w.ParentProcessMainWindowHandle)
	b = appendUint(b, 5, uint64(w.ParentProcessID))
	return b, nil
}

func (w *WindowInfo) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, v, &w.WindowTitle)
		case 2:
			return consumeUint(typ, v, &w.WindowHandle)
		case 3:
			return consumeString(typ, v, &w.ParentProcess)
		case 4:
			return consumeUint(typ, v, &w.ParentProcessMainWindowHandle)
		case 5:
			var pid uint64
			n, err := consumeUint(typ, v, &pid)
			w.ParentProcessID = uint32(pid)
			return n, err
		}
		return 0, nil
	})
}

// WindowInfoList is the result of a window enumeration.
type WindowInfoList []WindowInfo

func (l WindowInfoList) AppendWire(b []byte) ([]byte, error) {
	for _, w := range l {
		raw, _ := w.AppendWire(nil)
		b = appendBytes(b, 1, raw)
	}
	return b, nil
}

func (l *WindowInfoList) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		raw, n, err := consumeBytes(typ, v)
		if err != nil {
			return 0, err
		}
		var w WindowInfo
		if err := w.UnmarshalWire(raw); err != nil {
			return 0, err
		}
		*l = append(*l, w)
		return n, nil
	})
}

// EnvironmentVariableRequest addresses one per-user environment variable.
type EnvironmentVariableRequest struct {
	Variable   string
	Value      string
	Expandable bool
	Append     bool
	Remove     bool
}

func (r EnvironmentVariableRequest) AppendWire(b []byte) ([]byte, error) {
	b = appendString(b, 1, r.Variable)
	b = appendString(b, 2, r.Value)
	b = appendBool(b, 3, r.Expandable)
	b = appendBool(b, 4, r.Append)
	b = appendBool(b, 5, r.Remove)
	return b, nil
}

func (r *EnvironmentVariableRequest) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, v, &r.Variable)
		case 2:
			return consumeString(typ, v, &r.Value)
		case 3:
			return consumeBool(typ, v, &r.Expandable)
		case 4:
			return consumeBool(typ, v, &r.Append)
		case 5:
			return consumeBool(typ, v, &r.Remove)
		}
		return 0, nil
	})
}

// LogSeverity follows the host's log scale.
type LogSeverity uint8

const (
	SeverityInfo    LogSeverity = 1
	SeverityWarning LogSeverity = 2
	SeverityError   LogSeverity = 3
)

// LogEntry is one record on the log channel.
type LogEntry struct {
	Severity LogSeverity
	Message  string
	Source   string
}

func (e LogEntry) AppendWire(b []byte) ([]byte, error) {
	b = appendUint(b, 1, uint64(e.Severity))
	b = appendString(b, 2, e.Message)
	b = appendString(b, 3, e.Source)
	return b, nil
}

func (e *LogEntry) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			var sev uint64
			n, err := consumeUint(typ, v, &sev)
			e.Severity = LogSeverity(sev)
			return n, err
		case 2:
			return consumeString(typ, v, &e.Message)
		case 3:
			return consumeString(typ, v, &e.Source)
		}
		return 0, nil
	})
}
