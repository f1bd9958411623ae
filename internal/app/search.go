package app

import (
	"context"
	"strings"

	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/config"
	"github.com/josephgoksu/taskforge/internal/retrieval"
)

// SearchApp exposes the relevance ranker and the context gatherer.
type SearchApp struct {
	ctx *Context
}

// NewSearchApp creates a new search application service.
func NewSearchApp(ctx *Context) *SearchApp {
	return &SearchApp{ctx: ctx}
}

// SearchOptions mirror retrieval.RankOptions. A zero MaxResults takes the
// configured default.
type SearchOptions struct {
	MaxResults             int  `json:"maxResults,omitempty"`
	IncludeRecent          bool `json:"includeRecent,omitempty"`
	IncludeCategoryMatches bool `json:"includeCategoryMatches,omitempty"`
}

// SearchResult is a ranked list of tasks and subtasks.
type SearchResult struct {
	Scope   string             `json:"scope"`
	Query   string             `json:"query"`
	IDs     []string           `json:"ids"`
	Results []retrieval.Scored `json:"results"`
}

// SearchTasks ranks the scope's tasks and subtasks against query. The same
// corpus, query and options always give the same order.
func (a *SearchApp) SearchTasks(ctx context.Context, scope, query string, opts SearchOptions) (*SearchResult, error) {
	const op = "searchTasks"
	scope = a.ctx.scope(scope)
	if strings.TrimSpace(query) == "" {
		return nil, apperr.Validation(op, "query is empty").In(scope, nil)
	}
	if opts.MaxResults < 0 {
		return nil, apperr.Validation(op, "maxResults must not be negative, got %d", opts.MaxResults).In(scope, nil)
	}
	if opts.MaxResults == 0 {
		opts.MaxResults = config.DefaultMaxResults
	}

	tasks, err := a.ctx.listTasks(ctx, op, scope)
	if err != nil {
		return nil, err
	}
	scored := a.ctx.Ranker.Rank(retrieval.Flatten(tasks), query, retrieval.RankOptions{
		MaxResults:             opts.MaxResults,
		IncludeRecent:          opts.IncludeRecent,
		IncludeCategoryMatches: opts.IncludeCategoryMatches,
	})
	a.ctx.Logger.Debug("ranked tasks", "scope", scope, "query", query, "corpus", len(tasks), "results", len(scored))
	return &SearchResult{
		Scope:   scope,
		Query:   query,
		IDs:     retrieval.IDs(scored),
		Results: scored,
	}, nil
}

// GatherContext assembles a context string from tasks, files and free text.
// Tasks and files that cannot be read are listed in Skipped, not failed on.
func (a *SearchApp) GatherContext(ctx context.Context, req retrieval.GatherRequest) (*retrieval.Gathered, error) {
	const op = "gatherContext"
	req.Scope = a.ctx.scope(req.Scope)
	switch req.Format {
	case "", retrieval.FormatHuman, retrieval.FormatAI:
	default:
		return nil, apperr.Validation(op, "format must be %q or %q, got %q", retrieval.FormatHuman, retrieval.FormatAI, req.Format).In(req.Scope, nil)
	}
	if len(req.TaskIDs) == 0 && len(req.FilePaths) == 0 && strings.TrimSpace(req.CustomContext) == "" && !req.IncludeProjectTree {
		return nil, apperr.Validation(op, "nothing to gather: give tasks, files, custom context or the project tree").In(req.Scope, nil)
	}

	gathered, err := a.ctx.Gatherer.Gather(ctx, req)
	if err != nil {
		return nil, apperr.Upstream(op, err, "gather context").In(req.Scope, nil)
	}
	if len(gathered.Skipped) > 0 {
		a.ctx.Logger.Warn("context sections skipped", "scope", req.Scope, "skipped", gathered.Skipped)
	}
	return &gathered, nil
}
