package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igem-tools/wikipub/wiki"
)

// fakeUploader records every call so tests can assert ordering and
// payloads without a wiki
type fakeUploader struct {
	order   []string
	uploads []wiki.UploadArgs
	edits   map[string]string

	failTitles map[string]bool
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{
		edits:      make(map[string]string),
		failTitles: make(map[string]bool),
	}
}

func (f *fakeUploader) Upload(ctx context.Context, args wiki.UploadArgs) (wiki.UploadResult, error) {
	f.order = append(f.order, args.Title)
	if f.failTitles[args.Title] {
		return wiki.UploadResult{}, errors.New("upload rejected")
	}
	f.uploads = append(f.uploads, args)
	return wiki.UploadResult{
		Success: true,
		URL:     "http://2024.igem.org/wiki/images/0/00/" + filepath.Base(args.FilePath),
		MIME:    "image/png",
	}, nil
}

func (f *fakeUploader) EditPage(ctx context.Context, args wiki.EditArgs) (wiki.EditResult, error) {
	f.order = append(f.order, args.Title)
	if f.failTitles[args.Title] {
		return wiki.EditResult{}, errors.New("edit rejected")
	}
	f.edits[args.Title] = args.Text
	return wiki.EditResult{Success: true, Title: args.Title}, nil
}

// sitePublisher collects the fixture site from its own directory and
// wires a publisher over the fake uploader
func sitePublisher(t *testing.T) (*Publisher, *fakeUploader, *Registry) {
	t.Helper()
	dir := writeSiteFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"),
		[]byte(`<html><head><link rel="stylesheet" href="css/style.css"><script src="js/app.js"></script></head>`+
			`<body><a href="page2.html">next</a><img src="img/logo.png"></body></html>`), 0o644))
	t.Chdir(dir)

	catalog := NewCatalog(false, testLogger())
	assets := catalog.Collect([]string{"*"})
	require.Len(t, assets, 4)

	client := newFakeUploader()
	registry := NewRegistry(assets)
	ns := wiki.Namespace{Team: "Team:X", BaseURL: "http://2024.igem.org"}
	pub := NewPublisher(client, registry, ns, "publish run", testLogger())
	return pub, client, registry
}

func TestPublisher_Run(t *testing.T) {
	pub, client, registry := sitePublisher(t)

	summary := pub.Run(context.Background())
	assert.Equal(t, 4, summary.Published)
	assert.Zero(t, summary.Failed)

	assert.Empty(t, registry.Pending())
	assert.Len(t, registry.Published(), 4)

	// Resources go first, HTML last
	require.Equal(t, []string{
		"Team:X/img/logo.png",
		"Team:X/css/style",
		"Team:X/js/app",
		"Team:X/index",
	}, client.order)

	// Text kinds lose the extension, resources keep it
	require.Len(t, client.uploads, 1)
	assert.Equal(t, "Team:X/img/logo.png", client.uploads[0].Title)
	assert.Equal(t, "publish run", client.uploads[0].Comment)
}

func TestPublisher_RewritesAgainstPublishedURLs(t *testing.T) {
	pub, client, _ := sitePublisher(t)
	pub.Run(context.Background())

	html, ok := client.edits["Team:X/index"]
	require.True(t, ok, "index page was not edited")

	// Stylesheet and script point at the published pages with raw ctypes
	assert.Contains(t, html, "http://2024.igem.org/Team:X/css/style?action=raw&amp;ctype=text/css")
	assert.Contains(t, html, "http://2024.igem.org/Team:X/js/app?action=raw&amp;ctype=text/javascript")
	// The image points at the URL the upload reported
	assert.Contains(t, html, "http://2024.igem.org/wiki/images/0/00/logo.png?action=raw&amp;ctype=image/png")
	// Anchors resolve without consulting the registry
	assert.Contains(t, html, "http://2024.igem.org/Team:X/page2")

	// Non-HTML text bodies go up unmodified
	assert.Equal(t, "body {}", client.edits["Team:X/css/style"])
}

func TestPublisher_FailuresAreIsolated(t *testing.T) {
	pub, client, registry := sitePublisher(t)
	client.failTitles["Team:X/css/style"] = true

	summary := pub.Run(context.Background())
	assert.Equal(t, 3, summary.Published)
	assert.Equal(t, 1, summary.Failed)

	// The failed asset stays pending; everything else still published
	require.Len(t, registry.Pending(), 1)
	assert.Equal(t, KindStylesheet, registry.Pending()[0].Kind())

	// The HTML rewrite falls back to the guessed URL for the failed sheet
	html := client.edits["Team:X/index"]
	assert.Contains(t, html, "http://2024.igem.org/Team:X/css/style?action=raw&amp;ctype=text/css")
}

func TestPublisher_StripModeDestinations(t *testing.T) {
	parent := t.TempDir()
	site := filepath.Join(parent, "site")
	require.NoError(t, os.MkdirAll(filepath.Join(site, "css"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(site, "img"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(site, "index.html"),
		[]byte(`<html><head><link rel="stylesheet" href="css/style.css"></head>`+
			`<body><img src="img/logo.png"></body></html>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(site, "css", "style.css"), []byte("body {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(site, "img", "logo.png"), []byte("png"), 0o644))
	t.Chdir(parent)

	catalog := NewCatalog(true, testLogger())
	assets := catalog.Collect([]string{"site/*"})
	require.Len(t, assets, 3)

	client := newFakeUploader()
	registry := NewRegistry(assets)
	ns := wiki.Namespace{Team: "Team:X", BaseURL: "http://2024.igem.org"}
	pub := NewPublisher(client, registry, ns, "", testLogger())

	summary := pub.Run(context.Background())
	require.Zero(t, summary.Failed)

	// The site/ directory is gone from every remote title
	assert.Equal(t, []string{
		"Team:X/img/logo.png",
		"Team:X/css/style",
		"Team:X/index",
	}, client.order)

	// References written relative to the stripped root still resolve:
	// the image points at the uploaded file URL, not a guessed title
	html := client.edits["Team:X/index"]
	assert.Contains(t, html, "http://2024.igem.org/wiki/images/0/00/logo.png?action=raw&amp;ctype=image/png")
	assert.Contains(t, html, "http://2024.igem.org/Team:X/css/style?action=raw&amp;ctype=text/css")
}

func TestPublisher_MissingSourceFileFails(t *testing.T) {
	client := newFakeUploader()
	registry := NewRegistry([]*Asset{{Path: "no/such/file.png"}})
	ns := wiki.Namespace{Team: "Team:X", BaseURL: "http://2024.igem.org"}
	pub := NewPublisher(client, registry, ns, "", testLogger())

	summary := pub.Run(context.Background())
	assert.Zero(t, summary.Published)
	assert.Equal(t, 1, summary.Failed)
	assert.Empty(t, client.order)
}

func TestPublisher_DryRunEndToEnd(t *testing.T) {
	dir := writeSiteFixture(t)
	t.Chdir(dir)

	catalog := NewCatalog(false, testLogger())
	assets := catalog.Collect([]string{"*"})
	require.Len(t, assets, 4)

	cfg := &wiki.Config{Year: 2024, Team: "Team:X", DryRun: true}
	client := wiki.NewClient(cfg, testLogger())
	registry := NewRegistry(assets)
	pub := NewPublisher(client, registry, cfg.Namespace(), "dry run", testLogger())

	var lines []string
	pub.Progress = func(format string, args ...interface{}) {
		lines = append(lines, format)
	}

	summary := pub.Run(context.Background())
	assert.Equal(t, 4, summary.Published)
	assert.Zero(t, summary.Failed)
	assert.Len(t, lines, len(PublishOrder))

	for _, a := range registry.Published() {
		require.True(t, a.Published(), "asset %s", a)
		if a.Kind() == KindResource {
			// Placeholder URLs mark skipped uploads
			assert.True(t, strings.HasPrefix(a.URL, "http://DRY.RUN/"), "URL %s", a.URL)
		}
	}
}
