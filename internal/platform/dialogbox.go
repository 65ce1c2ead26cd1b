package platform

import (
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psadt/psadt-client/internal/clienterr"
)

// DialogBoxOptions configures a plain message box. Buttons, Icon and
// DefaultButton carry MB_* style bits.
type DialogBoxOptions struct {
	AppTitle      string
	MessageText   string
	Buttons       uint32
	DefaultButton uint32
	Icon          uint32
	TopMost       bool
	Expiry        time.Duration
}

// ParseDialogBoxOptions reads DialogBox options. DialogExpiryDuration is
// seconds, either a number or a Go duration string.
func ParseDialogBoxOptions(opts *structpb.Struct) (DialogBoxOptions, error) {
	if opts == nil {
		return DialogBoxOptions{}, clienterr.New(clienterr.NoOptions, "No options were provided for the DialogBox.")
	}
	f := opts.GetFields()

	var out DialogBoxOptions
	var err error
	if out.AppTitle, err = requiredString(f, "AppTitle"); err != nil {
		return out, err
	}
	if out.MessageText, err = requiredString(f, "MessageText"); err != nil {
		return out, err
	}
	out.Buttons = uint32(f["DialogButtons"].GetNumberValue())
	out.DefaultButton = uint32(f["DialogDefaultButton"].GetNumberValue())
	out.Icon = uint32(f["DialogIcon"].GetNumberValue())
	out.TopMost = f["DialogTopMost"].GetBoolValue()

	switch v := f["DialogExpiryDuration"].GetKind().(type) {
	case nil:
	case *structpb.Value_NumberValue:
		out.Expiry = time.Duration(v.NumberValue * float64(time.Second))
	case *structpb.Value_StringValue:
		d, perr := time.ParseDuration(v.StringValue)
		if perr != nil {
			return out, clienterr.Wrap(clienterr.InvalidOptions, "DialogExpiryDuration value is invalid.", perr)
		}
		out.Expiry = d
	default:
		return out, clienterr.New(clienterr.InvalidOptions, "DialogExpiryDuration value is invalid.")
	}
	return out, nil
}

func requiredString(f map[string]*structpb.Value, key string) (string, error) {
	s := strings.TrimSpace(f[key].GetStringValue())
	if s == "" {
		return "", clienterr.Newf(clienterr.InvalidOptions, "%s value is null or invalid.", key)
	}
	return s, nil
}

var dialogBoxResults = map[int]string{
	1:     "OK",
	2:     "Cancel",
	3:     "Abort",
	4:     "Retry",
	5:     "Ignore",
	6:     "Yes",
	7:     "No",
	8:     "Close",
	10:    "TryAgain",
	11:    "Continue",
	32000: "Timeout",
}

// DialogBoxResultName names a message box return value.
func DialogBoxResultName(id int) (string, error) {
	name, ok := dialogBoxResults[id]
	if !ok {
		return "", fmt.Errorf("unknown DialogBoxResult value: %d", id)
	}
	return name, nil
}
