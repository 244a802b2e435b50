package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"commandset/cmd"
	"commandset/keys"
	"commandset/log"

	"github.com/agnivade/levenshtein"
)

// StorageKey is where the player's command state is persisted.
const StorageKey = "player"

// CommandKey identifies one of the player's commands.
type CommandKey int

const (
	Play CommandKey = iota
	Mute
	Shuffle
	Repeat
	Theme
)

var commandKeyNames = map[CommandKey]string{
	Play:    "Play",
	Mute:    "Mute",
	Shuffle: "Shuffle",
	Repeat:  "Repeat",
	Theme:   "Theme",
}

func (k CommandKey) String() string {
	if name, ok := commandKeyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CommandKey(%d)", int(k))
}

// AllCommandKeys lists every key in registration order.
var AllCommandKeys = []CommandKey{Play, Mute, Shuffle, Repeat, Theme}

// maxSuggestDistance is the largest edit distance ParseCommandKey still
// offers as a suggestion.
const maxSuggestDistance = 2

// ParseCommandKey finds a key by its name, ignoring case. An unknown name
// that is close to a real one gets a suggestion in the error.
func ParseCommandKey(name string) (CommandKey, error) {
	name = strings.TrimSpace(name)
	for _, k := range AllCommandKeys {
		if strings.EqualFold(k.String(), name) {
			return k, nil
		}
	}

	best, bestDist := "", maxSuggestDistance+1
	for _, k := range AllCommandKeys {
		if d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(k.String())); d < bestDist {
			best, bestDist = k.String(), d
		}
	}
	if best != "" {
		return 0, fmt.Errorf("%q: %w (did you mean %s?)", name, cmd.ErrNotFound, best)
	}
	return 0, fmt.Errorf("%q: %w", name, cmd.ErrNotFound)
}

// selectionOptions lists the values a selection command cycles through.
var selectionOptions = map[CommandKey][]string{
	Repeat: {"off", "one", "all"},
	Theme:  {"dark", "light", "solarized"},
}

// Options returns the values accepted by a selection command, or nil for
// commands that only have a flag.
func Options(k CommandKey) []string {
	return slices.Clone(selectionOptions[k])
}

// defaultHotKeys is the factory keymap. Users can override it with bind.
var defaultHotKeys = map[CommandKey]string{
	Play:    "ctrl+p",
	Mute:    "alt+m",
	Shuffle: "ctrl+s",
	Repeat:  "ctrl+r",
}

// Entries builds a fresh set of player commands. overrides maps a key name to
// a chord that replaces its default hotkey; an empty chord leaves it unbound.
func Entries(overrides map[string]string) func() []cmd.Entry[CommandKey] {
	return func() []cmd.Entry[CommandKey] {
		entries := make([]cmd.Entry[CommandKey], 0, len(AllCommandKeys))
		for _, k := range AllCommandKeys {
			entries = append(entries, cmd.Entry[CommandKey]{Key: k, Command: newCommand(k, overrides)})
		}
		return entries
	}
}

func newCommand(k CommandKey, overrides map[string]string) *cmd.Command {
	opts := []cmd.Option{}
	switch k {
	case Play:
		opts = append(opts, cmd.WithDescription("Start or pause playback"), cmd.WithCategory(cmd.CategoryGeneral))
	case Mute:
		opts = append(opts, cmd.WithDescription("Silence the output without pausing"), cmd.WithCategory(cmd.CategoryGeneral))
	case Shuffle:
		opts = append(opts, cmd.WithDescription("Play the queue in random order"), cmd.WithCategory(cmd.CategoryTools))
	case Repeat:
		opts = append(opts, cmd.WithDescription("Cycle repeat mode: off, one track, the whole queue"), cmd.WithCategory(cmd.CategoryTools))
	case Theme:
		opts = append(opts, cmd.WithDescription("Switch the colour theme"), cmd.WithCategory(cmd.CategoryView))
	}

	if options := selectionOptions[k]; len(options) > 0 {
		opts = append(opts, cmd.WithSelection(options[0]))
	}

	chord, overridden := overrides[k.String()]
	if !overridden {
		chord = defaultHotKeys[k]
	}
	if chord != "" {
		hk, err := keys.ParseHotKey(chord)
		if err != nil {
			log.WarningLog.Printf("%s: ignoring hotkey %q: %v", k, chord, err)
		} else {
			opts = append(opts, cmd.WithHotKey(&hk))
		}
	}

	return cmd.NewCommand(k.String(), opts...)
}

// handlers are subscribed to each command once the registry is initialized.
var handlers = map[CommandKey]cmd.Callback{
	Play:    toggle,
	Mute:    toggle,
	Shuffle: toggle,
	Repeat:  cycleSelection(Repeat),
	Theme:   cycleSelection(Theme),
}

func toggle(_ context.Context, c *cmd.Command) error {
	c.Toggle()
	return nil
}

func cycleSelection(k CommandKey) cmd.Callback {
	return func(_ context.Context, c *cmd.Command) error {
		options := selectionOptions[k]
		next := (slices.Index(options, c.Selection()) + 1) % len(options)
		c.SetSelection(options[next])
		return nil
	}
}
