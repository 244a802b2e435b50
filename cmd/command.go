package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"commandset/keys"
)

// Callback is run when a command is invoked.
type Callback func(ctx context.Context, c *Command) error

// Unsubscribe detaches one subscription. Calling it more than once is harmless.
type Unsubscribe func()

type subscription[T any] struct {
	id uint64
	fn T
}

// Command is a named, stateful action with an optional hotkey. Commands are
// shared: callers construct them and keep references, a registry only
// registers and persists them.
type Command struct {
	Name        string
	Description string
	Category    Category

	mu        sync.Mutex
	flag      bool
	selection string
	hotKey    *keys.HotKey

	nextID    uint64
	callbacks []subscription[Callback]
	listeners []subscription[func()]
}

// Option configures a Command at construction.
type Option func(*Command)

func WithDescription(desc string) Option {
	return func(c *Command) { c.Description = desc }
}

func WithCategory(category Category) Option {
	return func(c *Command) { c.Category = category }
}

// WithHotKey sets the initial shortcut. A nil hotkey leaves the command unbound.
func WithHotKey(hk *keys.HotKey) Option {
	return func(c *Command) { c.hotKey = copyHotKey(hk) }
}

func WithFlag(flag bool) Option {
	return func(c *Command) { c.flag = flag }
}

func WithSelection(selection string) Option {
	return func(c *Command) { c.selection = selection }
}

// NewCommand creates a command
func NewCommand(name string, opts ...Option) *Command {
	c := &Command{Name: name}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Flag returns the on/off state.
func (c *Command) Flag() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flag
}

// SetFlag sets the on/off state, notifying listeners if it changed.
func (c *Command) SetFlag(flag bool) {
	c.setState(&flag, nil)
}

// Toggle flips the flag and returns the new value.
func (c *Command) Toggle() bool {
	c.mu.Lock()
	c.flag = !c.flag
	flag := c.flag
	c.mu.Unlock()

	c.notify()
	return flag
}

// Selection returns the currently selected option.
func (c *Command) Selection() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// SetSelection sets the selected option, notifying listeners if it changed.
func (c *Command) SetSelection(selection string) {
	c.setState(nil, &selection)
}

// HotKey returns a copy of the shortcut, or nil if the command has none.
func (c *Command) HotKey() *keys.HotKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyHotKey(c.hotKey)
}

// SetHotKey replaces the shortcut; nil removes it. Listeners are notified if
// the shortcut changed.
func (c *Command) SetHotKey(hk *keys.HotKey) {
	c.mu.Lock()
	changed := !sameHotKey(c.hotKey, hk)
	c.hotKey = copyHotKey(hk)
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// setState updates the persistable fields in one step so a restore notifies
// at most once. Nil arguments are left alone.
func (c *Command) setState(flag *bool, selection *string) {
	c.mu.Lock()
	changed := false
	if flag != nil && *flag != c.flag {
		c.flag = *flag
		changed = true
	}
	if selection != nil && *selection != c.selection {
		c.selection = *selection
		changed = true
	}
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// Subscribe attaches cb to the command's invocation.
func (c *Command) Subscribe(cb Callback) Unsubscribe {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.callbacks = append(c.callbacks, subscription[Callback]{id: id, fn: cb})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.callbacks = removeSubscription(c.callbacks, id)
	}
}

// OnStateChanged registers fn to run after every change to the flag,
// selection or hotkey. fn runs on the goroutine that made the change.
func (c *Command) OnStateChanged(fn func()) Unsubscribe {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, subscription[func()]{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.listeners = removeSubscription(c.listeners, id)
	}
}

// Invoke runs every subscribed callback in subscription order. All callbacks
// run even if some fail; their errors are joined.
func (c *Command) Invoke(ctx context.Context) error {
	c.mu.Lock()
	callbacks := make([]Callback, 0, len(c.callbacks))
	for _, s := range c.callbacks {
		callbacks = append(callbacks, s.fn)
	}
	c.mu.Unlock()

	var errs []error
	for _, cb := range callbacks {
		if err := cb(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("command %s failed: %w", c.Name, err)
	}
	return nil
}

func (c *Command) notify() {
	c.mu.Lock()
	listeners := make([]func(), 0, len(c.listeners))
	for _, s := range c.listeners {
		listeners = append(listeners, s.fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func removeSubscription[T any](subs []subscription[T], id uint64) []subscription[T] {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

func copyHotKey(hk *keys.HotKey) *keys.HotKey {
	if hk == nil {
		return nil
	}
	cp := *hk
	return &cp
}

func sameHotKey(a, b *keys.HotKey) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
