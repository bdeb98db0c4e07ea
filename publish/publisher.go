package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/igem-tools/wikipub/metrics"
	"github.com/igem-tools/wikipub/tracing"
	"github.com/igem-tools/wikipub/wiki"
)

// Uploader is the slice of the wiki client the publisher needs
type Uploader interface {
	Upload(ctx context.Context, args wiki.UploadArgs) (wiki.UploadResult, error)
	EditPage(ctx context.Context, args wiki.EditArgs) (wiki.EditResult, error)
}

// Publisher drains the registry in dependency order and publishes each
// asset: resources first, then stylesheets, then scripts, then HTML.
// By the time any asset's content is rewritten, everything it could
// reference is already published (or failed and skipped). Execution is
// strictly sequential; the rewrite of each asset depends on the
// registry reflecting every prior outcome.
type Publisher struct {
	client   Uploader
	registry *Registry
	rewriter *Rewriter
	ns       wiki.Namespace
	comment  string
	logger   *slog.Logger

	// Progress receives the "## Uploading N ..." console lines; nil
	// suppresses them
	Progress func(format string, args ...interface{})
}

// NewPublisher wires the pipeline around a collected registry
func NewPublisher(client Uploader, registry *Registry, ns wiki.Namespace, comment string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client:   client,
		registry: registry,
		rewriter: NewRewriter(ns, registry, logger),
		ns:       ns,
		comment:  comment,
		logger:   logger,
	}
}

// Summary is the outcome of one publish run
type Summary struct {
	Published int
	Failed    int
}

// Run publishes every pending asset. Failures are per-asset and never
// abort the run; the summary reports how many assets reached published.
func (p *Publisher) Run(ctx context.Context) Summary {
	ctx, span := tracing.StartSpan(ctx, "publish.run")
	defer span.End()

	var summary Summary
	for _, kind := range PublishOrder {
		assets := p.registry.PendingByKind(kind)
		p.progress("## Uploading %d %ss", len(assets), kind)
		for _, asset := range assets {
			if err := p.publishOne(ctx, asset); err != nil {
				p.logger.Error("Publish failed", "asset", asset.Path, "error", err)
				metrics.RecordUpload(kind.String(), false)
				summary.Failed++
				continue
			}
			metrics.RecordUpload(kind.String(), true)
			summary.Published++
		}
	}
	span.SetAttributes(
		attribute.Int("publish.published", summary.Published),
		attribute.Int("publish.failed", summary.Failed),
	)
	return summary
}

// publishOne classifies, rewrites, uploads, and registers one asset
func (p *Publisher) publishOne(ctx context.Context, asset *Asset) error {
	ctx, span := tracing.StartSpan(ctx, "publish.asset")
	defer span.End()

	p.resolveDestination(asset)
	tracing.AddAssetAttributes(span, asset.Path, asset.Kind().String(), asset.Destination)

	if _, err := os.Stat(asset.Path); err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("source file missing: %w", err)
	}

	if asset.Kind() == KindResource {
		return p.publishResource(ctx, asset)
	}
	return p.publishText(ctx, asset)
}

// resolveDestination assigns the canonical remote title, exactly once
func (p *Publisher) resolveDestination(asset *Asset) {
	if asset.Published() {
		return
	}
	name := asset.Destination
	if name == "" {
		name = asset.Path
	}
	name = strings.TrimLeft(name, "./")
	if asset.Kind() != KindResource {
		name = strings.TrimSuffix(name, "."+asset.Ext())
	}
	asset.Destination = p.ns.Title(name)
}

// publishResource uploads a binary attachment and records the URL and
// MIME the wiki assigned
func (p *Publisher) publishResource(ctx context.Context, asset *Asset) error {
	p.logger.Info("Uploading attachment", "asset", asset.String())
	result, err := p.client.Upload(ctx, wiki.UploadArgs{
		Title:    asset.Destination,
		FilePath: asset.Path,
		Comment:  p.comment,
	})
	if err != nil {
		return err
	}
	asset.SetPublished(result.URL, result.MIME)
	p.registry.MarkPublished(asset)
	return nil
}

// publishText rewrites and publishes an HTML/CSS/JS asset as page text
func (p *Publisher) publishText(ctx context.Context, asset *Asset) error {
	content, err := os.ReadFile(asset.Path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", asset.Path, err)
	}

	switch asset.Kind() {
	case KindHTML:
		content, err = p.rewriter.RewriteHTML(content)
		if err != nil {
			return fmt.Errorf("cannot rewrite %s: %w", asset.Path, err)
		}
	case KindStylesheet:
		content = p.rewriter.RewriteStylesheet(content)
	case KindScript:
		content = p.rewriter.RewriteScript(content)
	}

	result, err := p.client.EditPage(ctx, wiki.EditArgs{
		Title:   asset.Destination,
		Text:    string(content),
		Summary: p.comment,
	})
	if err != nil {
		return err
	}
	p.logger.Debug("Published page", "asset", asset.String(), "new", result.NewPage)

	asset.SetPublished(p.ns.URL(asset.Destination), textMIME(asset.Kind()))
	p.registry.MarkPublished(asset)
	return nil
}

func textMIME(kind Kind) string {
	switch kind {
	case KindStylesheet:
		return "text/css"
	case KindScript:
		return "text/javascript"
	default:
		return "text/html"
	}
}

func (p *Publisher) progress(format string, args ...interface{}) {
	if p.Progress != nil {
		p.Progress(format, args...)
	}
}
