package wire

import (
	"encoding/base64"
	"fmt"
	"sort"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/psadt/psadt-client/internal/clienterr"
)

// Encode serializes a payload or result. Failures come back as InvalidResult
// so a handler can always answer with a well-formed error response.
func Encode(v any) ([]byte, error) {
	out, err := encode(v)
	if err != nil {
		return nil, clienterr.Wrap(clienterr.InvalidResult, "An error occurred while serializing the provided result.", err)
	}
	return out, nil
}

func encode(v any) ([]byte, error) {
	switch v := v.(type) {
	case Marshaler:
		return v.AppendWire(nil)
	case []WindowInfo:
		return WindowInfoList(v).AppendWire(nil)
	case map[string]string:
		return encodeDictionary(v)
	case proto.Message:
		return proto.MarshalOptions{Deterministic: true}.Marshal(v)
	case bool:
		return proto.Marshal(wrapperspb.Bool(v))
	case string:
		return proto.Marshal(wrapperspb.String(v))
	case uint32:
		return proto.Marshal(wrapperspb.UInt32(v))
	case int32:
		return proto.Marshal(wrapperspb.Int32(v))
	case int64:
		return proto.Marshal(wrapperspb.Int64(v))
	case float64:
		return proto.Marshal(wrapperspb.Double(v))
	case UserNotificationState:
		return proto.Marshal(wrapperspb.Int32(int32(v)))
	default:
		return nil, fmt.Errorf("type %T has no wire encoding", v)
	}
}

// Decode deserializes data into a T. Failures come back as InvalidOptions.
func Decode[T any](data []byte) (T, error) {
	var out T
	if err := decode(data, &out); err != nil {
		var zero T
		return zero, clienterr.Wrap(clienterr.InvalidOptions, "An error occurred while deserializing the provided input.", err)
	}
	return out, nil
}

// DecodeAt deserializes the bytes of data from offset onwards.
func DecodeAt[T any](data []byte, offset int) (T, error) {
	if offset < 0 || offset > len(data) {
		var zero T
		return zero, clienterr.Newf(clienterr.InvalidOptions, "The offset [%d] is outside the received data.", offset)
	}
	return Decode[T](data[offset:])
}

func decode(data []byte, dst any) error {
	switch p := dst.(type) {
	case Unmarshaler:
		return p.UnmarshalWire(data)
	case *[]WindowInfo:
		return (*WindowInfoList)(p).UnmarshalWire(data)
	case *map[string]string:
		m, err := decodeDictionary(data)
		if err != nil {
			return err
		}
		*p = m
		return nil
	case **structpb.Value:
		v := new(structpb.Value)
		if err := proto.Unmarshal(data, v); err != nil {
			return err
		}
		*p = v
		return nil
	case **structpb.Struct:
		s := new(structpb.Struct)
		if err := proto.Unmarshal(data, s); err != nil {
			return err
		}
		*p = s
		return nil
	case *bool:
		var w wrapperspb.BoolValue
		if err := proto.Unmarshal(data, &w); err != nil {
			return err
		}
		*p = w.GetValue()
	case *string:
		var w wrapperspb.StringValue
		if err := proto.Unmarshal(data, &w); err != nil {
			return err
		}
		*p = w.GetValue()
	case *uint32:
		var w wrapperspb.UInt32Value
		if err := proto.Unmarshal(data, &w); err != nil {
			return err
		}
		*p = w.GetValue()
	case *int32:
		var w wrapperspb.Int32Value
		if err := proto.Unmarshal(data, &w); err != nil {
			return err
		}
		*p = w.GetValue()
	case *int64:
		var w wrapperspb.Int64Value
		if err := proto.Unmarshal(data, &w); err != nil {
			return err
		}
		*p = w.GetValue()
	case *float64:
		var w wrapperspb.DoubleValue
		if err := proto.Unmarshal(data, &w); err != nil {
			return err
		}
		*p = w.GetValue()
	case *UserNotificationState:
		var w wrapperspb.Int32Value
		if err := proto.Unmarshal(data, &w); err != nil {
			return err
		}
		*p = UserNotificationState(w.GetValue())
	default:
		return fmt.Errorf("type %T has no wire decoding", dst)
	}
	return nil
}

// EncodeString is the text counterpart of Encode used on argv and stdout.
func EncodeString(v any) (string, error) {
	raw, err := Encode(v)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeString is the text counterpart of Decode.
func DecodeString[T any](s string) (T, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var zero T
		return zero, clienterr.Wrap(clienterr.InvalidOptions, "An error occurred while deserializing the provided input.", err)
	}
	return Decode[T](raw)
}

func encodeDictionary(m map[string]string) ([]byte, error) {
	fields := make(map[string]any, len(m))
	for k, v := range m {
		fields[k] = v
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(s)
}

func decodeDictionary(data []byte) (map[string]string, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(s.GetFields()))
	for k := range s.GetFields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		sv, ok := s.GetFields()[k].GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("value for key %q is not a string", k)
		}
		out[k] = sv.StringValue
	}
	return out, nil
}
