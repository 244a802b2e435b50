package keys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"commandset/log"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

var (
	ErrEmptyCode = errors.New("hotkey code cannot be empty")
	ErrReleased  = errors.New("hotkey context already released")
)

// Action is run when a bound chord is pressed.
type Action func(ctx context.Context) error

// Service routes key presses to actions registered in binding contexts.
// Any number of contexts can be live at once; dispatch prefers the newest.
type Service struct {
	mu       sync.RWMutex
	contexts []*Context
}

// NewService creates an empty hotkey service
func NewService() *Service {
	return &Service{}
}

// CreateContext returns a new, empty context that is live immediately.
func (s *Service) CreateContext() *Context {
	c := &Context{
		id:      uuid.NewString(),
		service: s,
	}

	s.mu.Lock()
	s.contexts = append(s.contexts, c)
	s.mu.Unlock()

	return c
}

// Live returns the number of contexts that have not been released.
func (s *Service) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contexts)
}

// HandleKey runs the action bound to msg, if any. It reports whether a
// binding matched along with the action's error.
func (s *Service) HandleKey(ctx context.Context, msg tea.KeyMsg) (bool, error) {
	action := s.lookup(func(b *binding) bool {
		return key.Matches(msg, b.key)
	})
	if action == nil {
		return false, nil
	}
	return true, action(ctx)
}

// HandleChord is HandleKey for a chord string such as "ctrl+p".
func (s *Service) HandleChord(ctx context.Context, chord string) (bool, error) {
	hk, err := ParseHotKey(chord)
	if err != nil {
		return false, err
	}
	action := s.lookup(func(b *binding) bool {
		return b.hotKey == hk
	})
	if action == nil {
		return false, nil
	}
	return true, action(ctx)
}

// Bindings returns the bindings of the newest live context, newest binding
// first, for help listings.
func (s *Service) Bindings() []key.Binding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.contexts) == 0 {
		return nil
	}
	c := s.contexts[len(s.contexts)-1]
	c.mu.RLock()
	defer c.mu.RUnlock()

	bindings := make([]key.Binding, 0, len(c.bindings))
	for _, b := range c.bindings {
		bindings = append(bindings, b.key)
	}
	return bindings
}

func (s *Service) lookup(match func(*binding) bool) Action {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.contexts) - 1; i >= 0; i-- {
		if action := s.contexts[i].find(match); action != nil {
			return action
		}
	}
	return nil
}

func (s *Service) remove(c *Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, live := range s.contexts {
		if live == c {
			s.contexts = append(s.contexts[:i], s.contexts[i+1:]...)
			return
		}
	}
}

type binding struct {
	hotKey HotKey
	key    key.Binding
	action Action
}

// Context is one swappable set of chord-to-action bindings.
type Context struct {
	id      string
	service *Service

	mu       sync.RWMutex
	bindings []*binding
	released bool
}

// ID returns the context's unique identifier.
func (c *Context) ID() string {
	return c.id
}

// Len returns the number of bindings in the context.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bindings)
}

// Add binds modifiers+code to action. A later Add for the same chord in the
// same context shadows the earlier one.
func (c *Context) Add(mods Modifier, code string, action Action) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrEmptyCode
	}
	if action == nil {
		return fmt.Errorf("hotkey %s: action cannot be nil", HotKey{Modifiers: mods, Code: code})
	}

	hk := HotKey{Modifiers: mods, Code: code}
	chord := hk.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return fmt.Errorf("bind %s: %w", chord, ErrReleased)
	}

	// Prepend so the newest binding for a chord is found first.
	c.bindings = append([]*binding{{
		hotKey: hk,
		key:    key.NewBinding(key.WithKeys(chord), key.WithHelp(chord, "")),
		action: action,
	}}, c.bindings...)
	return nil
}

// Release removes the context from its service. Its bindings stop matching
// once Release returns. Release never blocks, so it completes even when ctx
// is already done.
func (c *Context) Release(context.Context) error {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return ErrReleased
	}
	c.released = true
	n := len(c.bindings)
	c.mu.Unlock()

	c.service.remove(c)
	log.InfoLog.Printf("released hotkey context %s (%d bindings)", c.id, n)
	return nil
}

func (c *Context) find(match func(*binding) bool) Action {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.released {
		return nil
	}
	for _, b := range c.bindings {
		if match(b) {
			return b.action
		}
	}
	return nil
}
