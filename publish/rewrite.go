package publish

import (
	"bytes"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/igem-tools/wikipub/metrics"
	"github.com/igem-tools/wikipub/wiki"
)

// Raw-content query suffixes force the wiki to serve page text with the
// right content type instead of rendering it
const (
	rawCSSSuffix = "?action=raw&ctype=text/css"
	rawJSSuffix  = "?action=raw&ctype=text/javascript"
)

// Rewriter rewrites local references inside HTML content to the remote
// URLs of their published counterparts. It reads the registry but never
// mutates it; unpublished references fall back to a best-effort guess.
type Rewriter struct {
	ns       wiki.Namespace
	registry *Registry
	baseHost string
	logger   *slog.Logger
}

// NewRewriter creates a rewriter resolving against the given registry
func NewRewriter(ns wiki.Namespace, registry *Registry, logger *slog.Logger) *Rewriter {
	host := ns.BaseURL
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return &Rewriter{
		ns:       ns,
		registry: registry,
		baseHost: strings.TrimSuffix(host, "/"),
		logger:   logger,
	}
}

// RewriteHTML rewrites the four reference categories of an HTML document:
// stylesheet links, script sources, anchors, and image sources.
func (r *Rewriter) RewriteHTML(content []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	doc.Find("link[rel='stylesheet']").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			uri := r.StylesheetURL(href)
			r.logger.Debug("Rewrote stylesheet href", "from", href, "to", uri)
			s.SetAttr("href", uri)
		}
	})

	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			uri := r.ScriptURL(src)
			r.logger.Debug("Rewrote script src", "from", src, "to", uri)
			s.SetAttr("src", uri)
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			uri := r.PageURL(href)
			if uri != href {
				r.logger.Debug("Rewrote link href", "from", href, "to", uri)
			}
			s.SetAttr("href", uri)
		}
	})

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			uri := r.ImageURL(src)
			if uri != src {
				r.logger.Debug("Rewrote img src", "from", src, "to", uri)
			}
			s.SetAttr("src", uri)
		}
	})

	out, err := doc.Html()
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// RewriteStylesheet passes stylesheet bodies through unmodified.
// Embedded url() references inside CSS are not rewritten.
func (r *Rewriter) RewriteStylesheet(content []byte) []byte {
	return content
}

// RewriteScript passes script bodies through unmodified
func (r *Rewriter) RewriteScript(content []byte) []byte {
	return content
}

// StylesheetURL resolves a stylesheet href to its published URL, or a
// guessed page URL when unpublished, always with the raw CSS suffix.
// Appending is idempotent so repeated rewrites cannot stack suffixes.
func (r *Rewriter) StylesheetURL(href string) string {
	uri, resolved := r.resolveTextAsset(href)
	metrics.RecordRewrite("stylesheet", resolved)
	if !strings.HasSuffix(uri, rawCSSSuffix) {
		uri += rawCSSSuffix
	}
	return uri
}

// ScriptURL resolves a script src like StylesheetURL, with the raw
// JavaScript suffix
func (r *Rewriter) ScriptURL(src string) string {
	uri, resolved := r.resolveTextAsset(src)
	metrics.RecordRewrite("script", resolved)
	if !strings.HasSuffix(uri, rawJSSuffix) {
		uri += rawJSSuffix
	}
	return uri
}

// findPublished looks the reference up as written, then under its
// namespaced title. The second pass is what resolves references whose
// recorded destination no longer carries the source directory.
func (r *Rewriter) findPublished(ref string) *Asset {
	if match := r.registry.FindPublished(ref); match != nil {
		return match
	}
	return r.registry.FindPublished(r.ns.Title(ref))
}

// resolveTextAsset finds the published URL for a stylesheet/script
// reference, falling back to the namespaced guess with the extension
// stripped
func (r *Rewriter) resolveTextAsset(ref string) (string, bool) {
	if match := r.findPublished(ref); match != nil && match.URL != "" {
		return match.URL, true
	}
	r.logger.Debug("Reference not published, guessing URL", "ref", ref)
	return r.ns.URL(stripExtension(ref)), false
}

// PageURL rewrites an anchor href to the canonical page URL. References
// with a foreign host pass through byte-for-byte; fragments survive
// unchanged; a bare "/" maps to the index page.
func (r *Rewriter) PageURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.Path == "" {
		return href
	}
	if u.Host != "" && u.Host != r.baseHost {
		return href
	}

	p := stripExtension(u.Path)
	if p == "/" {
		p = "index"
	}

	result := r.ns.URL(strings.Trim(p, "/"))
	if u.RawQuery != "" {
		result += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		result += "#" + u.Fragment
	}
	metrics.RecordRewrite("anchor", true)
	return result
}

// ImageURL rewrites an img src. Same-site images resolve through the
// registry; the matched asset's MIME (or, failing that, the reference's
// own extension) decides whether an explicit image ctype is appended.
func (r *Rewriter) ImageURL(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return src
	}
	// Images can be internal or external; only rewrite our own
	if u.Path == "" || (u.Host != "" && u.Host != r.baseHost) {
		return r.PageURL(src)
	}

	var uri, mime string
	resolved := false
	if match := r.findPublished(src); match != nil {
		mime = match.MIME
		uri = match.URL
		if uri == "" {
			uri = r.ns.URL(match.Destination)
		}
		resolved = true
	} else {
		r.logger.Debug("Image not published, guessing URL", "src", src)
		uri = r.ns.URL(strings.Trim(u.Path, "/"))
	}
	metrics.RecordRewrite("image", resolved)

	ext := strings.TrimPrefix(mime, "image/")
	if mime == "" || ext == mime {
		ext = strings.TrimPrefix(path.Ext(uri), ".")
	}
	if imageExtensions[ext] {
		suffix := "?action=raw&ctype=image/" + ext
		if !strings.HasSuffix(uri, suffix) {
			uri += suffix
		}
	}
	return uri
}

// stripExtension removes the last extension component of a reference
func stripExtension(ref string) string {
	if idx := strings.LastIndex(ref, "."); idx > 0 {
		return ref[:idx]
	}
	return ref
}
