package analyzer

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/linkmage/analyzer/models"
	"gopkg.in/yaml.v3"
)

// DefaultActionType is the table key used when nothing else matches
const DefaultActionType = "default"

//go:embed actionsets.yaml
var actionSetsYAML []byte

// ActionTable holds the hand-authored action sets keyed by content type
type ActionTable struct {
	sets  map[string][][]models.Action
	names map[string]string // lower-case key -> table key
}

// LoadActionTable parses the embedded action sets
func LoadActionTable() (*ActionTable, error) {
	return ParseActionTable(actionSetsYAML)
}

// ParseActionTable parses a YAML document of content type -> action sets
func ParseActionTable(data []byte) (*ActionTable, error) {
	var sets map[string][][]models.Action
	if err := yaml.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("failed to parse action sets: %w", err)
	}
	if _, ok := sets[DefaultActionType]; !ok {
		return nil, fmt.Errorf("action sets must define %q", DefaultActionType)
	}

	names := make(map[string]string, len(sets))
	for key, groups := range sets {
		if len(groups) == 0 {
			return nil, fmt.Errorf("content type %q has no action sets", key)
		}
		for i, group := range groups {
			if len(group) == 0 {
				return nil, fmt.Errorf("content type %q set %d is empty", key, i)
			}
		}
		names[strings.ToLower(key)] = key
	}

	return &ActionTable{sets: sets, names: names}, nil
}

// Lookup returns the table key matching name case-insensitively
func (t *ActionTable) Lookup(name string) (string, bool) {
	key, ok := t.names[strings.ToLower(strings.TrimSpace(name))]
	return key, ok
}

// Sets returns the action sets for a table key, or the default sets
func (t *ActionTable) Sets(key string) [][]models.Action {
	if sets, ok := t.sets[key]; ok {
		return sets
	}
	return t.sets[DefaultActionType]
}

// Types returns every content type in the table except the default
func (t *ActionTable) Types() []string {
	types := make([]string, 0, len(t.sets))
	for key := range t.sets {
		if key != DefaultActionType {
			types = append(types, key)
		}
	}
	return types
}

// Resolve maps a classified content type onto a table key. An exact match
// wins; otherwise keyword rules are tried in a fixed order.
func (t *ActionTable) Resolve(contentType string) string {
	if key, ok := t.Lookup(contentType); ok {
		return key
	}

	ct := strings.ToLower(contentType)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(ct, w) {
				return true
			}
		}
		return false
	}

	switch {
	case has("github"):
		return "GitHub repository"
	case has("blog", "article"):
		return "blog post"
	case has("product"):
		return "product page"
	case has("youtube", "video"):
		switch {
		case has("sitcom"):
			return "YouTube sitcom"
		case has("movie"):
			return "YouTube movie"
		}
		return "YouTube video"
	case has("doc", "manual"):
		return "documentation"
	case has("news"):
		return "news article"
	case has("portfolio"):
		return "portfolio"
	case has("forum", "discussion"):
		return "forum post"
	case has("review"):
		return "movie review"
	}
	return DefaultActionType
}

// ActionSelection is one page of actions out of a content type's sets
type ActionSelection struct {
	Actions []models.Action
	Index   int
	Total   int
	Next    *int // nil once the rotation would wrap to the first set
}

// Exhausted reports whether this is the last set before wrapping
func (s ActionSelection) Exhausted() bool {
	return s.Next == nil && s.Total > 1
}

// SelectActionSet picks the requested set, cycling modulo the number of
// sets. Negative requests select the first set.
func SelectActionSet(sets [][]models.Action, requested int) ActionSelection {
	n := len(sets)
	if n == 0 {
		return ActionSelection{Actions: []models.Action{}}
	}

	index := requested % n
	if index < 0 {
		index = 0
	}
	next := (index + 1) % n

	sel := ActionSelection{
		Actions: sets[index],
		Index:   index,
		Total:   n,
	}
	if n > 1 && next != 0 {
		sel.Next = &next
	}
	return sel
}
