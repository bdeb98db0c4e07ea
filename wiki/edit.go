package wiki

import (
	"context"
	"fmt"
	"net/url"

	"github.com/igem-tools/wikipub/metrics"
)

// EditArgs describes one page edit. Title must already be the canonical
// namespaced title; Text replaces the whole page body.
type EditArgs struct {
	Title   string
	Text    string
	Summary string
}

// EditResult is the outcome of an edit
type EditResult struct {
	Success bool
	Title   string
	NewPage bool
}

// EditPage creates or replaces a page with the given text. HTML, CSS and
// JS assets are published this way, as page text rather than attachments.
func (c *Client) EditPage(ctx context.Context, args EditArgs) (EditResult, error) {
	if args.Title == "" {
		return EditResult{}, &ValidationError{Field: "title", Message: "page title is required"}
	}

	if c.config.DryRun {
		c.logger.Debug("Dry run: edit page", "title", args.Title, "bytes", len(args.Text))
		return EditResult{Success: true, Title: args.Title}, nil
	}

	token, err := c.token(ctx)
	if err != nil {
		return EditResult{}, err
	}

	params := url.Values{}
	params.Set("action", "edit")
	params.Set("assert", "user")
	params.Set("title", args.Title)
	params.Set("text", args.Text)
	params.Set("token", token)
	if args.Summary != "" {
		params.Set("summary", args.Summary)
	}

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		metrics.EditOperations.WithLabelValues("edit", "error").Inc()
		return EditResult{}, err
	}
	if err := apiError(resp); err != nil {
		metrics.EditOperations.WithLabelValues("edit", "error").Inc()
		return EditResult{}, err
	}
	metrics.ContentSize.WithLabelValues("edit").Observe(float64(len(args.Text)))

	edit := getMap(resp["edit"])
	if result := getString(edit["result"]); result != "Success" {
		metrics.EditOperations.WithLabelValues("edit", "error").Inc()
		return EditResult{Success: false, Title: args.Title}, fmt.Errorf("edit of %q failed: %s", args.Title, result)
	}

	metrics.EditOperations.WithLabelValues("edit", "success").Inc()
	return EditResult{
		Success: true,
		Title:   getString(edit["title"]),
		NewPage: edit["new"] != nil,
	}, nil
}

// DeleteArgs describes one page deletion
type DeleteArgs struct {
	Title  string
	Reason string
}

// DeletePage removes a page. The caller is responsible for any
// confirmation prompt; this method always proceeds.
func (c *Client) DeletePage(ctx context.Context, args DeleteArgs) error {
	if args.Title == "" {
		return &ValidationError{Field: "title", Message: "page title is required"}
	}

	if c.config.DryRun {
		c.logger.Debug("Dry run: delete page", "title", args.Title)
		return nil
	}

	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("action", "delete")
	params.Set("title", args.Title)
	params.Set("token", token)
	if args.Reason != "" {
		params.Set("reason", args.Reason)
	}

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		metrics.EditOperations.WithLabelValues("delete", "error").Inc()
		return err
	}
	if err := apiError(resp); err != nil {
		metrics.EditOperations.WithLabelValues("delete", "error").Inc()
		return err
	}
	metrics.EditOperations.WithLabelValues("delete", "success").Inc()
	return nil
}
