package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"commandset/cmd"
	"commandset/config"
	"commandset/keys"
	"commandset/log"
	"commandset/store"
)

// hotKeysStorageKey holds the user's hotkey overrides. The registry only
// persists flags and selections.
const hotKeysStorageKey = StorageKey + ".hotkeys"

// UnboundChord is the chord name bind accepts for "no hotkey".
const UnboundChord = "none"

var (
	ErrUnbound      = errors.New("no command bound to chord")
	ErrHotKeyInUse  = errors.New("hotkey already bound to another command")
	ErrNoSelection  = errors.New("command has no selection")
	ErrInvalidValue = errors.New("invalid selection")

	ErrWatchUnsupported = errors.New("storage backend cannot be watched")
)

// App wires the player's command registry to storage and the hotkey service.
type App struct {
	cfg      *config.Config
	store    store.Store
	hotKeys  *keys.Service
	registry *cmd.CommandRegistry[CommandKey]
	reporter cmd.Reporter

	overrides    map[string]string
	unsubscribes []cmd.Unsubscribe
}

// Option configures an App.
type Option func(*App)

// WithStore uses s instead of opening the configured backend. The App takes
// ownership and closes it.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithReporter sends background failures to r instead of the error log.
func WithReporter(r cmd.Reporter) Option {
	return func(a *App) { a.reporter = r }
}

// New opens storage, restores the player's commands and binds their hotkeys.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	a := &App{
		cfg:     cfg,
		hotKeys: keys.NewService(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.store == nil {
		s, err := store.Open(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
		}
		a.store = s
	}
	if a.reporter == nil {
		a.reporter = log.NewErrorReporter(StorageKey, os.Stderr, time.Minute)
	}

	a.overrides = a.loadOverrides(ctx)
	a.registry = cmd.NewCommandRegistry[CommandKey](
		StorageKey,
		a.store,
		cmd.HotKeysFunc(func() cmd.HotKeyContext { return a.hotKeys.CreateContext() }),
		a.reporter,
		cmd.WithBackgroundTimeout(cfg.SaveTimeout),
	)
	if err := a.registry.Initialize(ctx, Entries(a.overrides)); err != nil {
		_ = a.store.Close()
		return nil, fmt.Errorf("failed to initialize commands: %w", err)
	}

	for _, k := range AllCommandKeys {
		unsubscribe, err := a.registry.Subscribe(k, handlers[k])
		if err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		a.unsubscribes = append(a.unsubscribes, unsubscribe)
	}

	return a, nil
}

// Registry returns the player's command registry.
func (a *App) Registry() *cmd.CommandRegistry[CommandKey] {
	return a.registry
}

// HotKeys returns the service the commands are bound in.
func (a *App) HotKeys() *keys.Service {
	return a.hotKeys
}

// Commands returns the commands in registration order.
func (a *App) Commands() []*cmd.Command {
	entries := a.registry.All()
	commands := make([]*cmd.Command, len(entries))
	for i, e := range entries {
		commands[i] = e.Command
	}
	return commands
}

// Command looks up a command by name, ignoring case.
func (a *App) Command(name string) (CommandKey, *cmd.Command, error) {
	k, err := ParseCommandKey(name)
	if err != nil {
		return 0, nil, err
	}
	c, ok := a.registry.Get(k)
	if !ok {
		return 0, nil, fmt.Errorf("%s: %w", k, cmd.ErrNotFound)
	}
	return k, c, nil
}

// Toggle flips a command's flag and returns the new value.
func (a *App) Toggle(name string) (bool, error) {
	_, c, err := a.Command(name)
	if err != nil {
		return false, err
	}
	return c.Toggle(), nil
}

// Select sets a selection command to one of its options.
func (a *App) Select(name, value string) error {
	k, c, err := a.Command(name)
	if err != nil {
		return err
	}
	options := Options(k)
	if len(options) == 0 {
		return fmt.Errorf("%s: %w", k, ErrNoSelection)
	}
	value = strings.ToLower(strings.TrimSpace(value))
	if !slices.Contains(options, value) {
		return fmt.Errorf("%s: %w %q (one of %s)", k, ErrInvalidValue, value, strings.Join(options, ", "))
	}
	c.SetSelection(value)
	return nil
}

// Bind gives a command a new hotkey, or removes it when chord is "none" or
// empty. The change is saved as an override for future runs.
func (a *App) Bind(ctx context.Context, name, chord string) error {
	k, c, err := a.Command(name)
	if err != nil {
		return err
	}

	var hk *keys.HotKey
	chord = strings.TrimSpace(chord)
	if chord != "" && !strings.EqualFold(chord, UnboundChord) {
		parsed, err := keys.ParseHotKey(chord)
		if err != nil {
			return err
		}
		for _, e := range a.registry.All() {
			if e.Key == k {
				continue
			}
			if other := e.Command.HotKey(); other != nil && *other == parsed {
				return fmt.Errorf("%s: %w (%s)", parsed, ErrHotKeyInUse, e.Key)
			}
		}
		hk = &parsed
	}

	c.SetHotKey(hk)
	// The superseded hotkey context is released in the background; the old
	// chord must be gone when Bind returns.
	a.registry.Wait()

	if hk == nil {
		a.overrides[k.String()] = ""
	} else {
		a.overrides[k.String()] = hk.String()
	}
	if err := a.store.Save(ctx, hotKeysStorageKey, a.overrides); err != nil {
		return fmt.Errorf("failed to save hotkey overrides: %w", err)
	}
	return nil
}

// Press runs whatever command chord is bound to.
func (a *App) Press(ctx context.Context, chord string) error {
	handled, err := a.hotKeys.HandleChord(ctx, chord)
	if err != nil {
		return err
	}
	if !handled {
		return fmt.Errorf("%s: %w", chord, ErrUnbound)
	}
	return nil
}

// Reset restores every command to its factory state and removes everything
// persisted for the player.
func (a *App) Reset(ctx context.Context) error {
	defaults := Entries(nil)()
	for _, d := range defaults {
		c, ok := a.registry.Get(d.Key)
		if !ok {
			continue
		}
		cmd.NewCommandState(d.Command).Apply(c)
		c.SetHotKey(d.Command.HotKey())
	}
	clear(a.overrides)

	// Superseded hotkey contexts must be released, and saves triggered above
	// must land before the deletes.
	a.registry.Wait()

	return errors.Join(
		a.store.Delete(ctx, StorageKey),
		a.store.Delete(ctx, hotKeysStorageKey),
	)
}

// Wait blocks until pending background saves are written.
func (a *App) Wait() {
	a.registry.Wait()
}

// Close flushes pending saves, unbinds every hotkey and closes storage.
func (a *App) Close(ctx context.Context) error {
	a.registry.Wait()
	for _, unsubscribe := range a.unsubscribes {
		unsubscribe()
	}
	a.unsubscribes = nil

	err := a.registry.Dispose(ctx)
	a.registry.Wait()

	return errors.Join(err, a.store.Close())
}

// Watch applies command state that another process saves while this one is
// running, then calls changed. Only the file backend can be watched.
func (a *App) Watch(ctx context.Context, changed func()) (*store.Watcher, error) {
	fs, ok := a.store.(*store.FileStore)
	if !ok {
		return nil, fmt.Errorf("%s: %w", a.cfg.Storage.Backend, ErrWatchUnsupported)
	}
	return fs.Watch(StorageKey, store.DefaultWatchDelay, func() {
		if a.reload(ctx) && changed != nil {
			changed()
		}
	})
}

// reload applies the saved state if it differs from memory. Pending saves of
// our own are flushed first, so a difference means someone else wrote it.
func (a *App) reload(ctx context.Context) bool {
	a.registry.Wait()

	var saved map[string]cmd.CommandState
	if err := a.store.Load(ctx, StorageKey, &saved); err != nil {
		log.WarningLog.Printf("failed to reload %s: %v", StorageKey, err)
		return false
	}
	if maps.Equal(saved, a.registry.Snapshot()) {
		return false
	}

	for _, e := range a.registry.All() {
		if state, ok := saved[e.Key.String()]; ok {
			state.Apply(e.Command)
		}
	}
	log.InfoLog.Printf("reloaded %s after an external change", StorageKey)
	return true
}

func (a *App) loadOverrides(ctx context.Context) map[string]string {
	overrides := map[string]string{}
	if err := a.store.Load(ctx, hotKeysStorageKey, &overrides); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.WarningLog.Printf("ignoring saved hotkeys: %v", err)
		}
		return map[string]string{}
	}
	if overrides == nil {
		overrides = map[string]string{}
	}
	return overrides
}
