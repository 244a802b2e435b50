package help

import (
	"bytes"
	"strings"
	"testing"

	"commandset/cmd"
	"commandset/keys"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCommands() []*cmd.Command {
	return []*cmd.Command{
		cmd.NewCommand("Theme", cmd.WithCategory(cmd.CategoryView), cmd.WithSelection("dark")),
		cmd.NewCommand("Play",
			cmd.WithCategory(cmd.CategoryGeneral),
			cmd.WithDescription("Start or pause playback"),
			cmd.WithHotKey(keys.MustParseHotKey("ctrl+p"))),
		cmd.NewCommand("Mute", cmd.WithCategory(cmd.CategoryGeneral), cmd.WithFlag(true)),
		cmd.NewCommand("Debug", cmd.WithCategory(cmd.CategorySpecial), cmd.WithHotKey(keys.MustParseHotKey("ctrl+d"))),
		cmd.NewCommand("Shuffle",
			cmd.WithDescription("Shuffle"),
			cmd.WithHotKey(keys.MustParseHotKey("ctrl+s"))),
	}
}

func plainGenerator(width int) *Generator {
	return NewGenerator(&bytes.Buffer{}, WithProfile(termenv.Ascii), WithWidth(width))
}

func TestRender(t *testing.T) {
	out := plainGenerator(80).Render("Player", testCommands())
	lines := strings.Split(out, "\n")

	assert.Equal(t, "Player", lines[0])
	assert.Contains(t, lines, "General:")
	assert.Contains(t, lines, "  ctrl+p      Play [off]")
	assert.Contains(t, lines, "                Start or pause playback")
	assert.Contains(t, lines, "  -           Mute [on]")
	assert.Contains(t, lines, "  -           Theme [off] = dark")
	assert.Contains(t, lines, "Other:")
	assert.NotContains(t, out, "Debug")

	general := strings.Index(out, "General:")
	view := strings.Index(out, "View:")
	other := strings.Index(out, "Other:")
	assert.Less(t, general, view)
	assert.Less(t, view, other)
	assert.Less(t, strings.Index(out, "Play ["), strings.Index(out, "Mute ["), "registration order within a category")
}

func TestRenderWrapsDescriptions(t *testing.T) {
	c := cmd.NewCommand("Repeat",
		cmd.WithDescription("Repeat the current track or the whole queue until told otherwise"))
	out := plainGenerator(40).Render("Player", []*cmd.Command{c})

	var descLines []string
	for _, l := range strings.Split(out, "\n") {
		if strings.HasPrefix(l, strings.Repeat(" ", 16)) {
			descLines = append(descLines, l)
		}
	}
	require.Greater(t, len(descLines), 1)
	for _, l := range descLines {
		assert.LessOrEqual(t, len(strings.TrimSpace(l)), 24)
	}
}

func TestRenderEmpty(t *testing.T) {
	assert.Equal(t, "No commands registered", plainGenerator(80).Render("Player", nil))
}

func TestStatusLine(t *testing.T) {
	g := plainGenerator(80)
	commands := testCommands()

	testCases := []struct {
		name     string
		width    int
		expected string
	}{
		{name: "unlimited", width: 0, expected: "ctrl+p Start or pau... • ctrl+s Shuffle"},
		{name: "fits exactly", width: 39, expected: "ctrl+p Start or pau... • ctrl+s Shuffle"},
		{name: "drops trailing entries", width: 30, expected: "ctrl+p Start or pau..."},
		{name: "nothing fits", width: 5, expected: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, g.StatusLine(commands, tc.width))
		})
	}
}

func TestFilter(t *testing.T) {
	commands := testCommands()

	all := Filter(commands, "  ")
	require.Len(t, all, len(commands))
	for i, m := range all {
		assert.Same(t, commands[i], m.Command)
	}

	matches := Filter(commands, "mu")
	require.Len(t, matches, 1)
	assert.Equal(t, "Mute", matches[0].Command.Name)
	assert.Equal(t, 0.9, matches[0].Score)
	assert.Equal(t, []int{0, 1}, matches[0].Matches)

	matches = Filter(commands, "pause")
	require.Len(t, matches, 1)
	assert.Equal(t, "Play", matches[0].Command.Name)
	assert.Equal(t, 0.8, matches[0].Score)

	assert.Empty(t, Filter(commands, "zzz"))
}

func TestFuzzyMatch(t *testing.T) {
	score, matches := fuzzyMatch("Mute", "Mute")
	assert.Equal(t, 1.0, score)
	assert.Equal(t, []int{0, 1, 2, 3}, matches)

	score, matches = fuzzyMatch("shf", "shuffle")
	assert.Greater(t, score, 0.0)
	assert.Less(t, score, 0.8)
	assert.Equal(t, []int{0, 1, 3}, matches)

	score, _ = fuzzyMatch("xyz", "shuffle")
	assert.Equal(t, 0.0, score)
}
