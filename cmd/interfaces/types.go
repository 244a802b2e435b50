package interfaces

import (
	"context"

	"commandset/keys"
)

// Category groups related commands for help display
type Category string

// Storage is the durable key/value store a registry persists its state into.
type Storage interface {
	// Load decodes the value under key into v. Any error, including a missing
	// key, is treated by the registry as "nothing saved".
	Load(ctx context.Context, key string, v any) error
	// Save replaces the value under key with v.
	Save(ctx context.Context, key string, v any) error
}

// HotKeyContext is one swappable set of active shortcut bindings.
type HotKeyContext interface {
	Add(mods keys.Modifier, code string, action keys.Action) error
	Release(ctx context.Context) error
}

// HotKeys creates binding contexts. Contexts are independent and can coexist.
type HotKeys interface {
	CreateContext() HotKeyContext
}

// HotKeysFunc adapts a function to HotKeys.
type HotKeysFunc func() HotKeyContext

func (f HotKeysFunc) CreateContext() HotKeyContext {
	return f()
}

// Reporter receives failures of background work. Report must not panic.
type Reporter interface {
	Report(err error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(err error)

func (f ReporterFunc) Report(err error) {
	f(err)
}
