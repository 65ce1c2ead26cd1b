package platform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseKeys(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []KeyStroke
	}{
		{name: "plain text", in: "ab", want: []KeyStroke{{Char: 'a'}, {Char: 'b'}}},
		{name: "ctrl s", in: "^s", want: []KeyStroke{{Modifiers: []uint16{VKControl}, Char: 's'}}},
		{name: "named key", in: "{tab}", want: []KeyStroke{{VK: 0x09}}},
		{name: "function key", in: "%{F4}", want: []KeyStroke{{Modifiers: []uint16{VKMenu}, VK: 0x73}}},
		{name: "tilde is enter", in: "~", want: []KeyStroke{{VK: 0x0D}}},
		{name: "escaped plus", in: "{+}", want: []KeyStroke{{Char: '+'}}},
		{name: "escaped brace", in: "{}}", want: []KeyStroke{{Char: '}'}}},
		{name: "repeat", in: "{LEFT 2}", want: []KeyStroke{{VK: 0x25}, {VK: 0x25}}},
		{
			name: "group shares modifiers",
			in:   "+(ab)c",
			want: []KeyStroke{
				{Modifiers: []uint16{VKShift}, Char: 'a'},
				{Modifiers: []uint16{VKShift}, Char: 'b'},
				{Char: 'c'},
			},
		},
		{name: "stacked modifiers", in: "^+n", want: []KeyStroke{{Modifiers: []uint16{VKControl, VKShift}, Char: 'n'}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseKeys(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseKeysRejectsMalformedInput(t *testing.T) {
	for _, in := range []string{"{TAB", "(ab", "ab)", "^", "{NOPE}", "{a x}"} {
		_, err := ParseKeys(in)
		require.Error(t, err, in)
	}
}
