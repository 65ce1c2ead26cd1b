//go:build windows

package windows

import (
	"context"
	"unsafe"

	"golang.org/x/sys/windows"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/platform"
	"github.com/psadt/psadt-client/internal/wire"
)

var procMessageBoxTimeoutW = user32.NewProc("MessageBoxTimeoutW")

const (
	mbTopMost       = 0x00040000
	mbSetForeground = 0x00010000
	mbSystemModal   = 0x00001000
	mbTaskModal     = 0x00002000
)

// Dialogs shows DialogBox prompts as native message boxes. Every other
// dialog type and the progress dialog fall through to the headless backend.
type Dialogs struct {
	*platform.HeadlessDialogs
}

func NewDialogs() *Dialogs {
	return &Dialogs{HeadlessDialogs: platform.NewHeadlessDialogs()}
}

func (d *Dialogs) ShowModal(ctx context.Context, kind wire.DialogType, style wire.DialogStyle, opts *structpb.Struct, closeApps platform.CloseAppsSource) (*structpb.Value, error) {
	if kind != wire.DialogBox {
		return d.HeadlessDialogs.ShowModal(ctx, kind, style, opts, closeApps)
	}
	o, err := platform.ParseDialogBoxOptions(opts)
	if err != nil {
		return nil, err
	}

	flags := o.Buttons | o.Icon | o.DefaultButton | mbTaskModal | mbSetForeground
	if o.TopMost {
		flags |= mbSystemModal | mbTopMost
	}
	text, err := windows.UTF16PtrFromString(o.MessageText)
	if err != nil {
		return nil, clienterr.Wrap(clienterr.InvalidOptions, "MessageText value is null or invalid.", err)
	}
	caption, err := windows.UTF16PtrFromString(o.AppTitle)
	if err != nil {
		return nil, clienterr.Wrap(clienterr.InvalidOptions, "AppTitle value is null or invalid.", err)
	}

	ret, _, callErr := procMessageBoxTimeoutW.Call(0, uintptr(unsafe.Pointer(text)), uintptr(unsafe.Pointer(caption)),
		uintptr(flags), 0, uintptr(o.Expiry.Milliseconds()))
	if ret == 0 {
		return nil, clienterr.Wrap(clienterr.OperationFailed, "Failed to show the dialog box.", callErr)
	}
	name, err := platform.DialogBoxResultName(int(ret))
	if err != nil {
		return nil, clienterr.Wrap(clienterr.InvalidResult, "The dialog box returned an unexpected result.", err)
	}
	return structpb.NewStringValue(name), nil
}
