package keys

import (
	"errors"
	"fmt"
	"strings"
)

// Modifier is a bitmask of modifier keys held with a hotkey.
type Modifier uint8

const (
	ModAlt Modifier = 1 << iota
	ModCtrl
	ModShift
	ModMeta

	ModNone Modifier = 0
)

// modifierNames is ordered the way bubbletea renders key strings ("alt+ctrl+p").
var modifierNames = []struct {
	mod  Modifier
	name string
}{
	{ModAlt, "alt"},
	{ModCtrl, "ctrl"},
	{ModShift, "shift"},
	{ModMeta, "meta"},
}

// modifierAliases maps accepted spellings to a modifier.
var modifierAliases = map[string]Modifier{
	"alt":     ModAlt,
	"option":  ModAlt,
	"opt":     ModAlt,
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"meta":    ModMeta,
	"cmd":     ModMeta,
	"super":   ModMeta,
}

var ErrInvalidHotKey = errors.New("invalid hotkey")

// Has reports whether every bit of other is set in m.
func (m Modifier) Has(other Modifier) bool {
	return m&other == other
}

func (m Modifier) String() string {
	var parts []string
	for _, mn := range modifierNames {
		if m.Has(mn.mod) {
			parts = append(parts, mn.name)
		}
	}
	return strings.Join(parts, "+")
}

// HotKey is a keyboard shortcut: a modifier set plus a key code.
type HotKey struct {
	Modifiers Modifier `json:"modifiers"`
	Code      string   `json:"code"`
}

// String returns the canonical chord, e.g. "ctrl+p".
func (h HotKey) String() string {
	if h.Modifiers == ModNone {
		return h.Code
	}
	return h.Modifiers.String() + "+" + h.Code
}

// ParseHotKey parses a chord such as "ctrl+p", "Ctrl+Shift+Up" or "f5".
// Modifier names are case-insensitive. Single-character codes keep their case
// when unmodified or shift-only, since bubbletea reports shifted letters as
// upper case; with ctrl, alt or meta held the code is lower-cased, matching
// how bubbletea names those chords.
func ParseHotKey(chord string) (HotKey, error) {
	chord = strings.TrimSpace(chord)
	if chord == "" {
		return HotKey{}, fmt.Errorf("%w: empty chord", ErrInvalidHotKey)
	}

	parts := strings.Split(chord, "+")
	code := strings.TrimSpace(parts[len(parts)-1])
	if code == "" {
		return HotKey{}, fmt.Errorf("%w: %q has no key", ErrInvalidHotKey, chord)
	}

	var mods Modifier
	for _, p := range parts[:len(parts)-1] {
		mod, ok := modifierAliases[strings.ToLower(strings.TrimSpace(p))]
		if !ok {
			return HotKey{}, fmt.Errorf("%w: unknown modifier %q in %q", ErrInvalidHotKey, p, chord)
		}
		mods |= mod
	}

	if len([]rune(code)) > 1 || mods&(ModCtrl|ModAlt|ModMeta) != 0 {
		code = strings.ToLower(code)
	}
	return HotKey{Modifiers: mods, Code: code}, nil
}

// MustParseHotKey is like ParseHotKey but panics on error. Meant for static tables.
func MustParseHotKey(chord string) *HotKey {
	h, err := ParseHotKey(chord)
	if err != nil {
		panic(err)
	}
	return &h
}
