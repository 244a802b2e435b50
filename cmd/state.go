package cmd

// CommandState is the persistable part of a Command. It is a plain value:
// copying it never aliases a live command.
type CommandState struct {
	Flag      bool   `json:"flag"`
	Selection string `json:"selection,omitempty"`
}

// NewCommandState snapshots c.
func NewCommandState(c *Command) CommandState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CommandState{
		Flag:      c.flag,
		Selection: c.selection,
	}
}

// Apply copies the snapshot onto c. The command's name, hotkey and
// subscriptions are untouched.
func (s CommandState) Apply(c *Command) {
	c.setState(&s.Flag, &s.Selection)
}
