package main

import (
	"context"
	"fmt"

	"github.com/hazyhaar/chasse/board"
	"github.com/hazyhaar/chasse/fetch"
)

// pipeline is the acquisition glue. Search pages render through the browser
// because the boards gate plain HTTP aggressively on listings; detail pages
// go over HTTP behind the circuit breaker.
type pipeline struct {
	registry *board.Registry
	client   *fetch.Client
	browser  *fetch.Browser
}

func (p *pipeline) Collect(ctx context.Context, q board.Query) ([]board.Item, error) {
	ex, err := p.registry.Lookup(q.Board)
	if err != nil {
		return nil, err
	}
	searchURL, err := board.SearchURL(q)
	if err != nil {
		return nil, err
	}

	page, err := p.browser.Render(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	items, err := ex.Extract(page.Body)
	if err != nil {
		return nil, err
	}
	if q.MaxResults > 0 && len(items) > q.MaxResults {
		items = items[:q.MaxResults]
	}
	return items, nil
}

func (p *pipeline) FetchDetail(ctx context.Context, item board.Item) (*board.Detail, error) {
	ex, err := p.registry.Lookup(item.Source)
	if err != nil {
		return nil, err
	}
	page, err := p.client.Get(ctx, item.Link)
	if err != nil {
		return nil, err
	}
	return ex.ExtractDetail(page.Body)
}

// clearanceSolver runs the challenge solver and installs the returned
// clearance cookies into the browser, so the retry carries them.
type clearanceSolver struct {
	solver  *fetch.Solver
	browser *fetch.Browser
}

func (s *clearanceSolver) Available(ctx context.Context) bool {
	return s.solver.Available(ctx)
}

func (s *clearanceSolver) Solve(ctx context.Context, targetURL, proxyURL string) (*fetch.Solution, error) {
	sol, err := s.solver.Solve(ctx, targetURL, proxyURL)
	if err != nil {
		return nil, err
	}
	if len(sol.Cookies) > 0 {
		if err := s.browser.SetCookies(sol.Cookies); err != nil {
			return nil, fmt.Errorf("chasse: install clearance: %w", err)
		}
	}
	return sol, nil
}
