package analyzer

import (
	"testing"

	"github.com/linkmage/analyzer/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedActionTable(t *testing.T) {
	table, err := LoadActionTable()
	require.NoError(t, err)

	assert.Len(t, table.Types(), 11)
	assert.NotContains(t, table.Types(), DefaultActionType)

	for _, key := range append(table.Types(), DefaultActionType) {
		sets := table.Sets(key)
		require.Len(t, sets, 6, key)
		for i, set := range sets {
			require.Len(t, set, 3, "%s set %d", key, i)
			for _, action := range set {
				assert.NotEmpty(t, action.Title)
				assert.NotEmpty(t, action.Description)
				assert.NotEmpty(t, action.Icon)
			}
		}
	}
}

func TestActionTableLookup(t *testing.T) {
	table, err := LoadActionTable()
	require.NoError(t, err)

	key, ok := table.Lookup("  github REPOSITORY ")
	assert.True(t, ok)
	assert.Equal(t, "GitHub repository", key)

	_, ok = table.Lookup("recipe")
	assert.False(t, ok)

	assert.Equal(t, table.Sets(DefaultActionType), table.Sets("recipe"))
}

func TestActionTableResolve(t *testing.T) {
	table, err := LoadActionTable()
	require.NoError(t, err)

	tests := []struct {
		contentType string
		want        string
	}{
		{"blog post", "blog post"},
		{"Blog Post", "blog post"},
		{"technical article", "blog post"},
		{"github repo", "GitHub repository"},
		{"product listing", "product page"},
		{"youtube sitcom clip", "YouTube sitcom"},
		{"video about a movie", "YouTube movie"},
		{"video", "YouTube video"},
		{"API docs", "documentation"},
		{"user manual", "documentation"},
		{"breaking news", "news article"},
		{"design portfolio", "portfolio"},
		{"discussion thread", "forum post"},
		{"restaurant review", "movie review"},
		{"PDF", DefaultActionType},
		{"unknown", DefaultActionType},
		{"", DefaultActionType},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Resolve(tt.contentType))
		})
	}
}

func TestParseActionTableErrors(t *testing.T) {
	_, err := ParseActionTable([]byte("blog post:\n  - - {title: a, description: b, icon: c}\n"))
	assert.Error(t, err, "missing default")

	_, err = ParseActionTable([]byte("default: []\n"))
	assert.Error(t, err, "no sets")

	_, err = ParseActionTable([]byte("default:\n  - []\n"))
	assert.Error(t, err, "empty set")

	_, err = ParseActionTable([]byte("default: [[{title: a"))
	assert.Error(t, err, "bad yaml")

	table, err := ParseActionTable([]byte("default:\n  - - {title: a, description: b, icon: c}\n"))
	require.NoError(t, err)
	assert.Equal(t, "a", table.Sets(DefaultActionType)[0][0].Title)
}

func numberedSets(n int) [][]models.Action {
	sets := make([][]models.Action, n)
	for i := range sets {
		sets[i] = []models.Action{{Title: string(rune('A' + i))}}
	}
	return sets
}

func TestSelectActionSet(t *testing.T) {
	sets := numberedSets(6)

	tests := []struct {
		name      string
		requested int
		index     int
		next      *int
		exhausted bool
	}{
		{"first", 0, 0, intPtr(1), false},
		{"middle", 3, 3, intPtr(4), false},
		{"last", 5, 5, nil, true},
		{"wraps", 7, 1, intPtr(2), false},
		{"negative", -4, 0, intPtr(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := SelectActionSet(sets, tt.requested)
			assert.Equal(t, tt.index, sel.Index)
			assert.Equal(t, 6, sel.Total)
			assert.Equal(t, sets[tt.index], sel.Actions)
			assert.Equal(t, tt.next, sel.Next)
			assert.Equal(t, tt.exhausted, sel.Exhausted())
		})
	}
}

func TestSelectActionSetSingleAndEmpty(t *testing.T) {
	sel := SelectActionSet(numberedSets(1), 4)
	assert.Equal(t, 0, sel.Index)
	assert.Nil(t, sel.Next)
	assert.False(t, sel.Exhausted())

	sel = SelectActionSet(nil, 2)
	assert.NotNil(t, sel.Actions)
	assert.Empty(t, sel.Actions)
	assert.Zero(t, sel.Total)
}

func intPtr(i int) *int { return &i }
