package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"commandset/cmd/interfaces"
	"commandset/log"
)

// Use types from interfaces package to avoid duplication
type Category = interfaces.Category
type Storage = interfaces.Storage
type HotKeys = interfaces.HotKeys
type HotKeysFunc = interfaces.HotKeysFunc
type HotKeyContext = interfaces.HotKeyContext
type Reporter = interfaces.Reporter
type ReporterFunc = interfaces.ReporterFunc

var (
	ErrNotFound     = errors.New("command not registered")
	ErrDuplicateKey = errors.New("command key registered twice")
	ErrNilCommand   = errors.New("command cannot be nil")
)

// DefaultBackgroundTimeout bounds each background save and context release.
const DefaultBackgroundTimeout = 10 * time.Second

// Key is the constraint for registry keys: a closed enum whose String value
// is stable, since it is the name persisted state is stored under.
type Key interface {
	comparable
	String() string
}

// Entry pairs a key with its command.
type Entry[K Key] struct {
	Key     K
	Command *Command
}

// CommandRegistry owns a fixed, ordered set of commands. It restores their
// state from storage, persists every change, and keeps one hotkey context
// bound to the commands' current shortcuts.
type CommandRegistry[K Key] struct {
	storageKey        string
	storage           Storage
	hotKeys           HotKeys
	reporter          Reporter
	backgroundTimeout time.Duration

	initialized atomic.Bool

	mu             sync.Mutex
	order          []K
	commands       map[K]*Command
	unsubscribes   []Unsubscribe
	hotKeysContext HotKeyContext
	disposed       bool
	snapshotSeq    uint64

	// saveMu orders background saves; savedSeq is the newest snapshot written.
	saveMu   sync.Mutex
	savedSeq uint64

	// bgN counts running background goroutines; bgIdle is signalled when it
	// drops to zero. Wait may run concurrently with new background work.
	bgMu   sync.Mutex
	bgIdle *sync.Cond
	bgN    int
}

// RegistryOption configures a CommandRegistry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	backgroundTimeout time.Duration
}

// WithBackgroundTimeout bounds each background save and context release.
func WithBackgroundTimeout(d time.Duration) RegistryOption {
	return func(o *registryOptions) {
		if d > 0 {
			o.backgroundTimeout = d
		}
	}
}

// NewCommandRegistry creates an empty, uninitialized registry that persists
// under storageKey. A nil reporter sends failures to the error log.
func NewCommandRegistry[K Key](storageKey string, storage Storage, hotKeys HotKeys, reporter Reporter, opts ...RegistryOption) *CommandRegistry[K] {
	o := registryOptions{backgroundTimeout: DefaultBackgroundTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if reporter == nil {
		reporter = log.NewErrorReporter(storageKey, nil, 0)
	}
	r := &CommandRegistry[K]{
		storageKey:        storageKey,
		storage:           storage,
		hotKeys:           hotKeys,
		reporter:          reporter,
		backgroundTimeout: o.backgroundTimeout,
		commands:          make(map[K]*Command),
	}
	r.bgIdle = sync.NewCond(&r.bgMu)
	return r
}

// StorageKey returns the key the registry persists under.
func (r *CommandRegistry[K]) StorageKey() string {
	return r.storageKey
}

// Get returns the command registered under key.
func (r *CommandRegistry[K]) Get(key K) (*Command, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	command, exists := r.commands[key]
	return command, exists
}

// Initialize populates the registry from supplier, restoring saved state and
// binding hotkeys. Only the first call does anything; later calls return nil
// straight away, even while the first is still running.
//
// A supplier that repeats a key or yields a nil command fails the call before
// anything is registered. The registry then stays empty.
func (r *CommandRegistry[K]) Initialize(ctx context.Context, supplier func() []Entry[K]) error {
	if !r.initialized.CompareAndSwap(false, true) {
		return nil
	}

	entries := supplier()
	// State is persisted by name, so names must be unique as well as keys.
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Command == nil {
			return fmt.Errorf("%s: %w", e.Key, ErrNilCommand)
		}
		name := e.Key.String()
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%s: %w", name, ErrDuplicateKey)
		}
		seen[name] = struct{}{}
	}

	saved := r.load(ctx)
	restored := 0
	for _, e := range entries {
		if state, ok := saved[e.Key.String()]; ok {
			state.Apply(e.Command)
			restored++
		}
	}

	r.mu.Lock()
	for _, e := range entries {
		r.order = append(r.order, e.Key)
		r.commands[e.Key] = e.Command
		r.unsubscribes = append(r.unsubscribes, e.Command.OnStateChanged(r.commandStateChanged))
	}
	err := r.configureHotKeys()
	r.mu.Unlock()

	if err != nil {
		r.reporter.Report(fmt.Errorf("%s: bind hotkeys: %w", r.storageKey, err))
	}
	log.LogForScope(r.storageKey, log.LevelInfo, "initialized %d commands (%d restored)", len(entries), restored)
	return nil
}

// Subscribe attaches cb to the invocation of the command under key.
func (r *CommandRegistry[K]) Subscribe(key K, cb Callback) (Unsubscribe, error) {
	command, ok := r.Get(key)
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return command.Subscribe(cb), nil
}

// All returns the registered entries in registration order.
func (r *CommandRegistry[K]) All() []Entry[K] {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry[K], 0, len(r.order))
	for _, key := range r.order {
		entries = append(entries, Entry[K]{Key: key, Command: r.commands[key]})
	}
	return entries
}

// Keys returns the registered keys in registration order.
func (r *CommandRegistry[K]) Keys() []K {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]K, len(r.order))
	copy(keys, r.order)
	return keys
}

// Len returns the number of registered commands.
func (r *CommandRegistry[K]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Snapshot returns the persistable state of every command, keyed by name.
func (r *CommandRegistry[K]) Snapshot() map[string]CommandState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Dispose detaches the registry from every command and releases the active
// hotkey context. Saves already running are not waited for. Calling Dispose
// again does nothing.
func (r *CommandRegistry[K]) Dispose(ctx context.Context) error {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return nil
	}
	r.disposed = true
	for _, unsubscribe := range r.unsubscribes {
		unsubscribe()
	}
	r.unsubscribes = nil
	active := r.hotKeysContext
	r.hotKeysContext = nil
	r.mu.Unlock()

	if active == nil {
		return nil
	}
	// The registry forgets the context above, so the release must not be
	// skipped because ctx is done.
	if err := active.Release(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to release hotkey context: %w", err)
	}
	return nil
}

// Wait blocks until the background saves and releases started so far are done.
func (r *CommandRegistry[K]) Wait() {
	r.bgMu.Lock()
	defer r.bgMu.Unlock()
	for r.bgN > 0 {
		r.bgIdle.Wait()
	}
}

// commandStateChanged runs on the goroutine that mutated a command. It must
// not block on storage or surface errors to that caller.
func (r *CommandRegistry[K]) commandStateChanged() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	states := r.snapshot()
	r.snapshotSeq++
	seq := r.snapshotSeq
	err := r.configureHotKeys()
	r.mu.Unlock()

	r.goBackground("save", func(ctx context.Context) error {
		return r.save(ctx, seq, states)
	})
	if err != nil {
		r.reporter.Report(fmt.Errorf("%s: bind hotkeys: %w", r.storageKey, err))
	}
}

// configureHotKeys swaps in a freshly built context. The new context is
// active before the previous one is released, so no shortcut that stays
// assigned is ever unbound. Caller holds r.mu.
func (r *CommandRegistry[K]) configureHotKeys() error {
	previous := r.hotKeysContext
	next := r.hotKeys.CreateContext()
	r.hotKeysContext = next

	var errs []error
	for _, key := range r.order {
		command := r.commands[key]
		hk := command.HotKey()
		if hk == nil {
			continue
		}
		if err := next.Add(hk.Modifiers, hk.Code, command.Invoke); err != nil {
			errs = append(errs, fmt.Errorf("%s (%s): %w", key, hk, err))
		}
	}

	if previous != nil {
		r.goBackground("release hotkey context", previous.Release)
	}
	return errors.Join(errs...)
}

// snapshot captures every command's state. Caller holds r.mu.
func (r *CommandRegistry[K]) snapshot() map[string]CommandState {
	states := make(map[string]CommandState, len(r.order))
	for _, key := range r.order {
		states[key.String()] = NewCommandState(r.commands[key])
	}
	return states
}

func (r *CommandRegistry[K]) load(ctx context.Context) map[string]CommandState {
	var states map[string]CommandState
	if err := r.storage.Load(ctx, r.storageKey, &states); err != nil {
		log.LogForScope(r.storageKey, log.LevelWarning, "no saved command state loaded: %v", err)
		return map[string]CommandState{}
	}
	if states == nil {
		states = map[string]CommandState{}
	}
	return states
}

// save writes states unless a newer snapshot has already been written.
func (r *CommandRegistry[K]) save(ctx context.Context, seq uint64, states map[string]CommandState) error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	if seq <= r.savedSeq {
		return nil
	}
	if err := r.storage.Save(ctx, r.storageKey, states); err != nil {
		return err
	}
	r.savedSeq = seq
	return nil
}

// goBackground runs fn without blocking the caller. Errors and panics go to
// the reporter.
func (r *CommandRegistry[K]) goBackground(what string, fn func(context.Context) error) {
	r.bgMu.Lock()
	r.bgN++
	r.bgMu.Unlock()

	go func() {
		defer func() {
			r.bgMu.Lock()
			r.bgN--
			if r.bgN == 0 {
				r.bgIdle.Broadcast()
			}
			r.bgMu.Unlock()
		}()
		defer func() {
			if p := recover(); p != nil {
				r.reporter.Report(fmt.Errorf("%s: %s panicked: %v", r.storageKey, what, p))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.backgroundTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			r.reporter.Report(fmt.Errorf("%s: %s failed: %w", r.storageKey, what, err))
		}
	}()
}
