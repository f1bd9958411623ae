package task

import (
	"maps"
	"slices"
	"sync"

	"github.com/spf13/viper"
)

// Categories holds the keyword buckets used to relate free text to a domain
// ("test", "api", "auth", ...). Projects can customize them in .taskforge.yaml:
//
//	task:
//	  categories:
//	    auth:
//	      - auth
//	      - login
//	    billing:
//	      - invoice
//	      - stripe
//
// Custom buckets are merged over defaultCategoryKeywords.
type Categories struct {
	mu         sync.RWMutex
	buckets    map[string][]string
	minWordLen int
}

// defaultCategoryKeywords covers common software engineering domains.
var defaultCategoryKeywords = map[string][]string{
	"auth":     {"auth", "authentication", "login", "logout", "session", "cookie", "jwt", "token", "password", "credential", "oauth", "sso"},
	"api":      {"api", "endpoint", "handler", "route", "rest", "graphql", "grpc", "request", "response", "middleware"},
	"database": {"database", "db", "sql", "sqlite", "postgres", "mysql", "migration", "schema", "query", "table", "index"},
	"search":   {"search", "vector", "embedding", "similarity", "semantic", "rank", "retrieval", "fuzzy"},
	"llm":      {"llm", "openai", "claude", "gemini", "ollama", "prompt", "completion", "chat", "model", "inference"},
	"cli":      {"cli", "command", "flag", "cobra", "terminal", "argument", "subcommand"},
	"ui":       {"ui", "tui", "interface", "display", "render", "frontend", "component", "css", "layout"},
	"test":     {"test", "testing", "tests", "mock", "fixture", "assert", "benchmark", "coverage", "e2e"},
	"deploy":   {"deploy", "deployment", "docker", "kubernetes", "ci", "pipeline", "release", "helm"},
	"docs":     {"docs", "documentation", "readme", "guide", "tutorial", "changelog"},
}

const (
	defaultMinWordLen         = 3
	defaultMinWordLenCategory = 2 // Shorter for category matching ("db", "ui", "ci")
)

// NewCategories builds buckets from defaults merged with custom (custom wins).
func NewCategories(custom map[string][]string) *Categories {
	c := &Categories{
		buckets:    make(map[string][]string, len(defaultCategoryKeywords)+len(custom)),
		minWordLen: defaultMinWordLen,
	}
	for name, kws := range defaultCategoryKeywords {
		c.buckets[name] = slices.Clone(kws)
	}
	for name, kws := range custom {
		c.buckets[name] = slices.Clone(kws)
	}
	return c
}

// LoadCategories reads task.categories and task.minWordLength from viper.
func LoadCategories() *Categories {
	c := NewCategories(viper.GetStringMapStringSlice("task.categories"))
	if minLen := viper.GetInt("task.minWordLength"); minLen > 0 {
		c.minWordLen = minLen
	}
	return c
}

// Buckets returns a copy of the category to keywords mapping.
func (c *Categories) Buckets() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make(map[string][]string, len(c.buckets))
	for k, v := range c.buckets {
		result[k] = slices.Clone(v)
	}
	return result
}

// MinWordLength is the minimum word length for keyword tokens.
func (c *Categories) MinWordLength() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.minWordLen
}

// Match returns the sorted names of every bucket that shares a keyword with text.
func (c *Categories) Match(text string) []string {
	words := make(map[string]bool)
	for _, w := range Tokenize(text, defaultMinWordLenCategory) {
		words[w] = true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var matched []string
	for name, kws := range c.buckets {
		if slices.ContainsFunc(kws, func(kw string) bool { return words[kw] }) {
			matched = append(matched, name)
		}
	}
	slices.Sort(matched)
	return matched
}

// Infer returns the bucket with the most keyword hits, or "general".
// Ties resolve to the alphabetically first bucket.
func (c *Categories) Infer(text string) string {
	words := make(map[string]bool)
	for _, w := range Tokenize(text, defaultMinWordLenCategory) {
		words[w] = true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	best, bestScore := "general", 0
	for _, name := range slices.Sorted(maps.Keys(c.buckets)) {
		score := 0
		for _, kw := range c.buckets[name] {
			if words[kw] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	return best
}
