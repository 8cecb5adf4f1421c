package agentdesk

import (
	"sort"
	"strings"
)

// Palette scopes.
const (
	ScopeProviders = "providers"
	ScopeAccounts  = "accounts"
	ScopeModels    = "models"
	ScopeAgents    = "agents"
	ScopeSessions  = "sessions"
)

// ScopePrefixes maps query prefixes ("m:gpt") to scopes.
var ScopePrefixes = map[string]string{
	"p": ScopeProviders,
	"a": ScopeAccounts,
	"m": ScopeModels,
	"g": ScopeAgents,
	"s": ScopeSessions,
}

// Match scores.
const (
	ScoreExact       = 1000
	ScorePrefix      = 800
	ScoreSubstring   = 600
	ScoreSubsequence = 400
)

// PaletteItem is one selectable palette entry.
type PaletteItem struct {
	ID          string
	Title       string
	Description string
	Scope       string
	Score       int
}

// Match fuzzy-matches query against text, case-insensitively. An empty query
// matches everything with score 0.
func Match(query, text string) (bool, int) {
	query = strings.ToLower(query)
	text = strings.ToLower(text)

	switch {
	case query == "":
		return true, 0
	case query == text:
		return true, ScoreExact
	case strings.HasPrefix(text, query):
		return true, ScorePrefix
	case strings.Contains(text, query):
		return true, ScoreSubstring
	}

	q := []rune(query)
	i := 0
	for _, r := range text {
		if i < len(q) && r == q[i] {
			i++
		}
	}
	if i == len(q) {
		return true, ScoreSubsequence
	}
	return false, 0
}

// ParseQuery splits a scope prefix off query. scope is "" when the query has
// no known prefix.
func ParseQuery(query string) (scope, term string) {
	query = strings.TrimSpace(query)
	if prefix, rest, ok := strings.Cut(query, ":"); ok {
		if s, known := ScopePrefixes[strings.ToLower(strings.TrimSpace(prefix))]; known {
			return s, strings.TrimSpace(rest)
		}
	}
	return "", query
}

// MaxRecents is how many recent ids Recents keeps per scope.
const MaxRecents = 10

// Recents tracks recently used item ids per scope, most recent first.
type Recents map[string][]string

// Touch moves id to the front of scope's list.
func (r Recents) Touch(scope, id string) {
	list := []string{id}
	for _, existing := range r[scope] {
		if existing != id {
			list = append(list, existing)
		}
	}
	if len(list) > MaxRecents {
		list = list[:MaxRecents]
	}
	r[scope] = list
}

// Rank returns id's position in scope's list, or -1.
func (r Recents) Rank(scope, id string) int {
	for i, existing := range r[scope] {
		if existing == id {
			return i
		}
	}
	return -1
}

// Filter returns the items matching query, recents boosted, sorted by score
// then title. The input slice is not modified.
func Filter(items []PaletteItem, query string, recents Recents) []PaletteItem {
	scope, term := ParseQuery(query)

	var out []PaletteItem
	for _, item := range items {
		if scope != "" && item.Scope != scope {
			continue
		}
		ok, score := Match(term, item.Title)
		if !ok {
			continue
		}
		if rank := recents.Rank(item.Scope, item.ID); rank >= 0 {
			score += 500 - rank*50
		}
		item.Score = score
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Title < out[j].Title
	})
	return out
}

// Group splits filtered items into recents and per-scope groups in display order.
func Group(items []PaletteItem, recents Recents) (recent []PaletteItem, byScope map[string][]PaletteItem) {
	byScope = make(map[string][]PaletteItem)
	for _, item := range items {
		if recents.Rank(item.Scope, item.ID) >= 0 {
			recent = append(recent, item)
			continue
		}
		byScope[item.Scope] = append(byScope[item.Scope], item)
	}
	return recent, byScope
}

// ScopeOrder is the display order of palette groups.
var ScopeOrder = []string{ScopeProviders, ScopeAccounts, ScopeModels, ScopeAgents, ScopeSessions}
