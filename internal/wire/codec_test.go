package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psadt/psadt-client/internal/clienterr"
)

func TestScalarResultsRoundTrip(t *testing.T) {
	raw, err := Encode(true)
	require.NoError(t, err)
	got, err := Decode[bool](raw)
	require.NoError(t, err)
	require.True(t, got)

	raw, err = Encode(uint32(4242))
	require.NoError(t, err)
	pid, err := Decode[uint32](raw)
	require.NoError(t, err)
	require.Equal(t, uint32(4242), pid)

	raw, err = Encode(NotificationPresentationMode)
	require.NoError(t, err)
	state, err := Decode[UserNotificationState](raw)
	require.NoError(t, err)
	require.Equal(t, NotificationPresentationMode, state)
}

func TestInitCloseAppsDialogRequestKeepsOrder(t *testing.T) {
	in := InitCloseAppsDialogRequest{Processes: []ProcessDefinition{
		{Name: "winword", Description: "Microsoft Word"},
		{Name: "excel"},
	}}
	raw, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode[InitCloseAppsDialogRequest](raw)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestPromptToCloseAppsRequestCarriesDuration(t *testing.T) {
	raw, err := Encode(PromptToCloseAppsRequest{Timeout: 90 * time.Second})
	require.NoError(t, err)

	out, err := Decode[PromptToCloseAppsRequest](raw)
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, out.Timeout)
}

func TestShowModalDialogRequestPassesOptionsThrough(t *testing.T) {
	opts, err := structpb.NewStruct(map[string]any{
		"Title":   "Install",
		"Buttons": []any{"Ok", "Cancel"},
	})
	require.NoError(t, err)

	raw, err := Encode(ShowModalDialogRequest{DialogType: "DialogBox", DialogStyle: "Fluent", Options: opts})
	require.NoError(t, err)

	out, err := Decode[ShowModalDialogRequest](raw)
	require.NoError(t, err)
	require.Equal(t, "DialogBox", out.DialogType)
	require.Equal(t, "Fluent", out.DialogStyle)
	require.Equal(t, opts.AsMap(), out.Options.AsMap())
}

func TestUpdateProgressDialogRequestPercentagePresence(t *testing.T) {
	raw, err := Encode(UpdateProgressDialogRequest{Message: "Copying"})
	require.NoError(t, err)
	out, err := Decode[UpdateProgressDialogRequest](raw)
	require.NoError(t, err)
	require.Nil(t, out.Percentage)

	pct := 0.0
	raw, err = Encode(UpdateProgressDialogRequest{Percentage: &pct})
	require.NoError(t, err)
	out, err = Decode[UpdateProgressDialogRequest](raw)
	require.NoError(t, err)
	require.NotNil(t, out.Percentage)
	require.Zero(t, *out.Percentage)
}

func TestWindowInfoListRoundTrip(t *testing.T) {
	in := []WindowInfo{
		{WindowTitle: "Document1 - Word", WindowHandle: 0x1234, ParentProcess: "WINWORD", ParentProcessMainWindowHandle: 0x1234, ParentProcessID: 812},
		{WindowTitle: "Find", WindowHandle: 0x99, ParentProcess: "WINWORD", ParentProcessMainWindowHandle: 0x1234, ParentProcessID: 812},
	}
	raw, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode[[]WindowInfo](raw)
	require.NoError(t, err)
	require.Equal(t, in, out)
	require.True(t, out[0].IsMainWindow())
	require.False(t, out[1].IsMainWindow())
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	raw, err := Encode(SendKeysRequest{WindowHandle: 7, Keys: "^s"})
	require.NoError(t, err)
	raw = protowire.AppendTag(raw, 99, protowire.BytesType)
	raw = protowire.AppendString(raw, "future")

	out, err := Decode[SendKeysRequest](raw)
	require.NoError(t, err)
	require.Equal(t, SendKeysRequest{WindowHandle: 7, Keys: "^s"}, out)
}

func TestDecodeFailuresAreInvalidOptions(t *testing.T) {
	_, err := Decode[EnvironmentVariableRequest]([]byte{0x0A, 0x05, 'a'})
	require.Error(t, err)
	require.Equal(t, clienterr.InvalidOptions, clienterr.CodeOf(err))

	// Field 1 sent as a varint where a string is expected.
	_, err = Decode[EnvironmentVariableRequest]([]byte{0x08, 0x01})
	require.Equal(t, clienterr.InvalidOptions, clienterr.CodeOf(err))

	_, err = DecodeAt[bool]([]byte{1}, 5)
	require.Equal(t, clienterr.InvalidOptions, clienterr.CodeOf(err))
}

func TestDecodeRejectsInvalidUTF8(t *testing.T) {
	raw, err := Encode(ShowModalDialogRequest{DialogType: "Bad\xff", DialogStyle: "Fluent"})
	require.NoError(t, err)

	_, err = Decode[ShowModalDialogRequest](raw)
	require.Error(t, err)
	require.Equal(t, clienterr.InvalidOptions, clienterr.CodeOf(err))
	require.Contains(t, err.Error(), "invalid UTF-8")
}

func TestEncodeUnsupportedTypeIsInvalidResult(t *testing.T) {
	_, err := Encode(struct{}{})
	require.Equal(t, clienterr.InvalidResult, clienterr.CodeOf(err))
}

func TestDecodeAtSkipsHeader(t *testing.T) {
	body, err := Encode("value")
	require.NoError(t, err)
	frame := EncodeResponse(ResponseSuccess, body)

	got, err := DecodeAt[string](frame, 1)
	require.NoError(t, err)
	require.Equal(t, "value", got)
}

func TestStringCodecDictionary(t *testing.T) {
	in := map[string]string{"Variable": "FOO", "Value": "bar"}
	s, err := EncodeString(in)
	require.NoError(t, err)

	out, err := DecodeString[map[string]string](s)
	require.NoError(t, err)
	require.Equal(t, in, out)

	_, err = DecodeString[map[string]string]("%%%not-base64")
	require.Equal(t, clienterr.InvalidOptions, clienterr.CodeOf(err))
}

func TestDictionaryRejectsNonStringValues(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"Delay": 5})
	require.NoError(t, err)
	raw, err := Encode(s)
	require.NoError(t, err)

	_, err = Decode[map[string]string](raw)
	require.Equal(t, clienterr.InvalidOptions, clienterr.CodeOf(err))
}

func TestLogEntryRoundTrip(t *testing.T) {
	raw, err := Encode(LogEntry{Severity: SeverityWarning, Message: "timeout", Source: "PromptToCloseApps"})
	require.NoError(t, err)

	out, err := Decode[LogEntry](raw)
	require.NoError(t, err)
	require.Equal(t, SeverityWarning, out.Severity)
	require.Equal(t, "timeout", out.Message)
	require.Equal(t, "PromptToCloseApps", out.Source)
}
