package platform

import (
	"fmt"
	"strconv"
	"strings"
)

// Virtual-key codes used by keystroke sequences.
const (
	VKShift   uint16 = 0x10
	VKControl uint16 = 0x11
	VKMenu    uint16 = 0x12
)

// KeyStroke is one key press with its held modifiers. When VK is zero, Char
// is typed as text and the backend picks the key for it.
type KeyStroke struct {
	Modifiers []uint16
	VK        uint16
	Char      rune
}

var namedKeys = map[string]uint16{
	"BACKSPACE":  0x08,
	"BS":         0x08,
	"BKSP":       0x08,
	"TAB":        0x09,
	"CLEAR":      0x0C,
	"ENTER":      0x0D,
	"PAUSE":      0x13,
	"BREAK":      0x13,
	"CAPSLOCK":   0x14,
	"ESC":        0x1B,
	"ESCAPE":     0x1B,
	"SPACE":      0x20,
	"PGUP":       0x21,
	"PGDN":       0x22,
	"END":        0x23,
	"HOME":       0x24,
	"LEFT":       0x25,
	"UP":         0x26,
	"RIGHT":      0x27,
	"DOWN":       0x28,
	"PRTSC":      0x2C,
	"INSERT":     0x2D,
	"INS":        0x2D,
	"DELETE":     0x2E,
	"DEL":        0x2E,
	"HELP":       0x2F,
	"NUMLOCK":    0x90,
	"SCROLLLOCK": 0x91,
}

var modifierKeys = map[rune]uint16{
	'+': VKShift,
	'^': VKControl,
	'%': VKMenu,
}

// ParseKeys turns a SendKeys-style string into keystrokes. "+", "^" and "%"
// hold Shift, Ctrl and Alt for the next key or parenthesised group, "~" is
// Enter, and braces name a key ({TAB}, {F5}), escape a literal ({+}) or
// repeat one ({LEFT 3}).
func ParseKeys(keys string) ([]KeyStroke, error) {
	p := keyParser{src: []rune(keys)}
	out, err := p.sequence(nil, false)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type keyParser struct {
	src []rune
	pos int
}

func (p *keyParser) sequence(mods []uint16, group bool) ([]KeyStroke, error) {
	var out []KeyStroke
	var pending []uint16
	for p.pos < len(p.src) {
		r := p.src[p.pos]
		p.pos++

		if vk, ok := modifierKeys[r]; ok {
			pending = append(pending, vk)
			continue
		}

		held := append(append([]uint16(nil), mods...), pending...)
		pending = nil

		switch r {
		case '(':
			inner, err := p.sequence(held, true)
			if err != nil {
				return nil, err
			}
			out = append(out, inner...)
		case ')':
			if !group {
				return nil, fmt.Errorf("unbalanced ')' at offset %d", p.pos-1)
			}
			return out, nil
		case '{':
			strokes, err := p.braced(held)
			if err != nil {
				return nil, err
			}
			out = append(out, strokes...)
		case '~':
			out = append(out, KeyStroke{Modifiers: held, VK: namedKeys["ENTER"]})
		default:
			out = append(out, KeyStroke{Modifiers: held, Char: r})
		}
	}
	if group {
		return nil, fmt.Errorf("unterminated '(' group")
	}
	if len(pending) > 0 {
		return nil, fmt.Errorf("modifier without a key at end of input")
	}
	return out, nil
}

func (p *keyParser) braced(held []uint16) ([]KeyStroke, error) {
	start := p.pos
	// "{}}" and "{{}" escape the braces themselves.
	end := -1
	for i := start + 1; i < len(p.src); i++ {
		if p.src[i] == '}' {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, fmt.Errorf("unterminated '{' at offset %d", start-1)
	}
	body := string(p.src[start:end])
	p.pos = end + 1

	name, count := body, 1
	if i := strings.LastIndexByte(body, ' '); i > 0 {
		n, err := strconv.Atoi(body[i+1:])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid repeat count in {%s}", body)
		}
		name, count = body[:i], n
	}

	var stroke KeyStroke
	switch runes := []rune(name); {
	case len(runes) == 1:
		stroke = KeyStroke{Modifiers: held, Char: runes[0]}
	default:
		vk, ok := lookupNamedKey(name)
		if !ok {
			return nil, fmt.Errorf("unknown key {%s}", name)
		}
		stroke = KeyStroke{Modifiers: held, VK: vk}
	}

	out := make([]KeyStroke, 0, count)
	for range count {
		out = append(out, stroke)
	}
	return out, nil
}

func lookupNamedKey(name string) (uint16, bool) {
	upper := strings.ToUpper(name)
	if vk, ok := namedKeys[upper]; ok {
		return vk, true
	}
	if strings.HasPrefix(upper, "F") {
		n, err := strconv.Atoi(upper[1:])
		if err == nil && n >= 1 && n <= 24 {
			return 0x70 + uint16(n-1), true
		}
	}
	return 0, false
}
