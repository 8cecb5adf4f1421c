package agentdesk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		query, text string
		ok          bool
		score       int
	}{
		{"", "anything", true, 0},
		{"build", "Build", true, ScoreExact},
		{"bu", "build", true, ScorePrefix},
		{"ild", "build", true, ScoreSubstring},
		{"bld", "build", true, ScoreSubsequence},
		{"dlb", "build", false, 0},
		{"builder", "build", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query+"/"+tt.text, func(t *testing.T) {
			ok, score := Match(tt.query, tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.score, score)
		})
	}
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		query, scope, term string
	}{
		{"m:gpt", ScopeModels, "gpt"},
		{" G : build ", ScopeAgents, "build"},
		{"s:", ScopeSessions, ""},
		{"x:thing", "", "x:thing"},
		{"plain", "", "plain"},
		{"", "", ""},
	}
	for _, tt := range tests {
		scope, term := ParseQuery(tt.query)
		assert.Equal(t, tt.scope, scope, tt.query)
		assert.Equal(t, tt.term, term, tt.query)
	}
}

func TestRecents(t *testing.T) {
	r := Recents{}
	for i := 0; i < MaxRecents+2; i++ {
		r.Touch(ScopeModels, string(rune('a'+i)))
	}
	r.Touch(ScopeModels, "f")

	assert.Len(t, r[ScopeModels], MaxRecents)
	assert.Equal(t, 0, r.Rank(ScopeModels, "f"))
	assert.Equal(t, 1, r.Rank(ScopeModels, "l"))
	assert.Equal(t, -1, r.Rank(ScopeModels, "a"))
	assert.Equal(t, -1, r.Rank(ScopeAgents, "f"))
}

func TestFilter(t *testing.T) {
	items := []PaletteItem{
		{ID: "gpt-4o", Title: "gpt-4o", Scope: ScopeModels},
		{ID: "gpt-4o-mini", Title: "gpt-4o-mini", Scope: ScopeModels},
		{ID: "build", Title: "build", Scope: ScopeAgents},
		{ID: "s1", Title: "gpt migration", Scope: ScopeSessions},
	}

	t.Run("ranked by score then title", func(t *testing.T) {
		got := Filter(items, "gpt", nil)
		assert.Equal(t, []string{"gpt migration", "gpt-4o", "gpt-4o-mini"}, titles(got))
		assert.Equal(t, ScorePrefix, got[0].Score)
	})

	t.Run("scope prefix", func(t *testing.T) {
		assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini"}, titles(Filter(items, "m:gpt", nil)))
		assert.Equal(t, []string{"build"}, titles(Filter(items, "g:", nil)))
	})

	t.Run("recents boost", func(t *testing.T) {
		r := Recents{}
		r.Touch(ScopeModels, "gpt-4o")
		r.Touch(ScopeModels, "gpt-4o-mini")

		got := Filter(items, "gpt", r)
		assert.Equal(t, []string{"gpt-4o-mini", "gpt-4o", "gpt migration"}, titles(got))
		assert.Equal(t, ScorePrefix+500, got[0].Score)
		assert.Equal(t, ScorePrefix+450, got[1].Score)

		recent, byScope := Group(got, r)
		assert.Equal(t, []string{"gpt-4o-mini", "gpt-4o"}, titles(recent))
		assert.Equal(t, []string{"gpt migration"}, titles(byScope[ScopeSessions]))
	})

	t.Run("input untouched", func(t *testing.T) {
		Filter(items, "build", nil)
		assert.Zero(t, items[2].Score)
	})
}

func titles(items []PaletteItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}
