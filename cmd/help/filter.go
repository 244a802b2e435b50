package help

import (
	"sort"
	"strings"

	"commandset/cmd"
)

// MinScore is the lowest score Filter keeps.
const MinScore = 0.3

// Match is a command that matched a Filter query.
type Match struct {
	Command *cmd.Command

	// Score represents how well the command matched the query (higher is better)
	Score float64

	// Matches contains the byte offsets of matching characters in SearchText
	Matches []int
}

// SearchText is the text Filter matches a query against.
func SearchText(c *cmd.Command) string {
	if c.Description == "" {
		return c.Name
	}
	return c.Name + " " + c.Description
}

// Filter ranks commands by how well they match query. An empty query keeps
// every command in input order; otherwise ties keep input order.
func Filter(commands []*cmd.Command, query string) []Match {
	query = strings.TrimSpace(query)
	if query == "" {
		results := make([]Match, len(commands))
		for i, c := range commands {
			results[i] = Match{Command: c, Score: 1.0, Matches: []int{}}
		}
		return results
	}

	results := make([]Match, 0, len(commands))
	for _, c := range commands {
		score, matches := fuzzyMatch(query, SearchText(c))
		if score >= MinScore {
			results = append(results, Match{Command: c, Score: score, Matches: matches})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// fuzzyMatch calculates a score between 0 and 1 for how well the pattern matches the text
// It also returns the indices of matching characters for highlighting
func fuzzyMatch(pattern, text string) (float64, []int) {
	if len(pattern) == 0 {
		return 1.0, []int{}
	}

	patternLower := strings.ToLower(pattern)
	textLower := strings.ToLower(text)

	span := func(start int) []int {
		matches := make([]int, len(pattern))
		for i := range pattern {
			matches[i] = start + i
		}
		return matches
	}

	switch {
	case pattern == text:
		return 1.0, span(0)
	case strings.HasPrefix(textLower, patternLower):
		return 0.9, span(0)
	case strings.Contains(textLower, patternLower):
		return 0.8, span(strings.Index(textLower, patternLower))
	}

	// Find the pattern's characters in order, keeping the first occurrence of each.
	matches := make([]int, 0, len(pattern))
	var i, j int
	for i < len(patternLower) && j < len(textLower) {
		if patternLower[i] == textLower[j] {
			matches = append(matches, j)
			i++
		}
		j++
	}
	if i < len(patternLower) {
		return 0.0, []int{}
	}

	matchRatio := float64(len(pattern)) / float64(len(text))

	gapPenalty := 0.0
	for i := 1; i < len(matches); i++ {
		if gap := matches[i] - matches[i-1] - 1; gap > 0 {
			gapPenalty += float64(gap) / float64(len(text))
		}
	}

	positionBonus := 0.1 * (1.0 - float64(matches[0])/float64(len(text)))

	// Scale down fuzzy matches compared to prefix/exact
	score := (matchRatio - gapPenalty + positionBonus) * 0.7
	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}
	return score, matches
}
