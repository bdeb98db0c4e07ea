// Package publish implements the asset publishing pipeline: discovery,
// ordered upload, and intra-site link rewriting against the titles the
// wiki actually assigned.
package publish

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Kind classifies an asset by file extension. The declaration order is
// the publish order: resources first, HTML last, so every asset a page
// can reference is published before the page itself is rewritten.
type Kind int

const (
	KindResource Kind = iota
	KindStylesheet
	KindScript
	KindHTML
)

// PublishOrder lists the kinds in the order assets must be published
var PublishOrder = [...]Kind{KindResource, KindStylesheet, KindScript, KindHTML}

func (k Kind) String() string {
	switch k {
	case KindStylesheet:
		return "stylesheet"
	case KindScript:
		return "script"
	case KindHTML:
		return "html"
	default:
		return "resource"
	}
}

// imageExtensions are resource extensions treated as images for MIME
// inference during link rewriting
var imageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "bmp": true, "gif": true,
}

// Asset is one discovered local file slated for publication.
type Asset struct {
	// Path is the source filesystem path, immutable after discovery
	Path string

	// PrefixBase is the glob pattern's directory, stripped from the
	// destination when strip mode is enabled; empty otherwise
	PrefixBase string

	// Destination is the canonical remote title, assigned exactly once
	// before the first upload attempt
	Destination string

	// URL and MIME are assigned at most once, on successful publish
	URL  string
	MIME string
}

// Ext returns the file extension without the leading dot
func (a *Asset) Ext() string {
	return strings.TrimPrefix(filepath.Ext(a.Path), ".")
}

// Kind derives the asset kind from the file extension (exact,
// case-sensitive match; anything unrecognized is a resource)
func (a *Asset) Kind() Kind {
	switch a.Ext() {
	case "html":
		return KindHTML
	case "css":
		return KindStylesheet
	case "js":
		return KindScript
	default:
		return KindResource
	}
}

// IsImage reports whether the asset is an image resource
func (a *Asset) IsImage() bool {
	return imageExtensions[a.Ext()]
}

// FullPath joins the prefix base back onto the source path; it exists
// only as a lookup alias for link resolution
func (a *Asset) FullPath() string {
	if a.PrefixBase == "" {
		return a.Path
	}
	return path.Join(a.PrefixBase, a.Path)
}

// Published reports whether the asset has a resolved URL
func (a *Asset) Published() bool {
	return a.URL != ""
}

// SetPublished records the resolved URL and MIME. Write-once: a second
// call for an already resolved asset is ignored, so a duplicate upload
// can never clobber the URL later assets were rewritten against.
func (a *Asset) SetPublished(url, mime string) {
	if a.URL != "" {
		return
	}
	a.URL = url
	a.MIME = mime
}

// aliases returns the lookup keys for this asset, in match precedence
// order: destination, source path, full path, resolved URL
func (a *Asset) aliases() [4]string {
	return [4]string{a.Destination, a.Path, a.FullPath(), a.URL}
}

func (a *Asset) String() string {
	return fmt.Sprintf("%s => %s", a.Path, a.Destination)
}
