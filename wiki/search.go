package wiki

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Pagination limits for prefix listings
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500

	// DefaultMaxPages bounds AllPages so a very large namespace cannot
	// drive an unbounded continuation walk.
	DefaultMaxPages = 20
)

// ListPagesArgs describes one page of a prefix listing
type ListPagesArgs struct {
	Prefix       string
	Limit        int
	ContinueFrom string
}

// ListPagesResult is one page of a prefix listing
type ListPagesResult struct {
	Pages        []PageSummary
	HasMore      bool
	ContinueFrom string
}

// PageSummary identifies one wiki page
type PageSummary struct {
	PageID int
	Title  string
}

// ListPages returns one page of titles starting with the given prefix.
// Prefix must already be the canonical namespaced title.
func (c *Client) ListPages(ctx context.Context, args ListPagesArgs) (ListPagesResult, error) {
	if c.config.DryRun {
		c.logger.Debug("Dry run: list pages", "prefix", args.Prefix)
		return ListPagesResult{}, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "allpages")
	params.Set("apprefix", args.Prefix)
	params.Set("aplimit", strconv.Itoa(limit))
	if args.ContinueFrom != "" {
		params.Set("apcontinue", args.ContinueFrom)
	}

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return ListPagesResult{}, err
	}
	if err := apiError(resp); err != nil {
		return ListPagesResult{}, err
	}

	query := getMap(resp["query"])
	if query == nil {
		return ListPagesResult{}, fmt.Errorf("unexpected response format: missing query")
	}

	allpages := getSlice(query["allpages"])
	pages := make([]PageSummary, 0, len(allpages))
	for _, p := range allpages {
		page := getMap(p)
		if page == nil {
			continue
		}
		pages = append(pages, PageSummary{
			PageID: getInt(page["pageid"]),
			Title:  getString(page["title"]),
		})
	}

	result := ListPagesResult{Pages: pages}
	if cont := getMap(resp["continue"]); cont != nil {
		if apcontinue := getString(cont["apcontinue"]); apcontinue != "" {
			result.HasMore = true
			result.ContinueFrom = apcontinue
		}
	}
	return result, nil
}

// AllPages walks the continuation chain iteratively and collects every
// title under the prefix, stopping after maxPages listing requests
// (DefaultMaxPages when maxPages <= 0).
func (c *Client) AllPages(ctx context.Context, prefix string, maxPages int) ([]PageSummary, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var all []PageSummary
	continueFrom := ""
	for page := 0; page < maxPages; page++ {
		result, err := c.ListPages(ctx, ListPagesArgs{Prefix: prefix, ContinueFrom: continueFrom})
		if err != nil {
			return all, err
		}
		all = append(all, result.Pages...)
		if !result.HasMore {
			return all, nil
		}
		continueFrom = result.ContinueFrom
	}
	c.logger.Warn("Page listing truncated at page bound", "prefix", prefix, "max_pages", maxPages)
	return all, nil
}
