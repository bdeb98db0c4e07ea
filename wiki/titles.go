package wiki

import "strings"

// Namespace builds canonical page titles and URLs for one wiki edition.
// Titles live in a flat namespace addressed by string prefixing: the
// canonical form is "<team>/<prefix>/<title>" with empty segments omitted.
type Namespace struct {
	// Team is the team segment, e.g. "Team:Amsterdam"
	Team string

	// Prefix is an optional segment inserted between team and title
	Prefix string

	// BaseURL is the asset URL root, e.g. "http://2024.igem.org"
	BaseURL string
}

// root returns the joined team+prefix segment with no surrounding slashes
func (n Namespace) root() string {
	team := strings.TrimRight(n.Team, "/")
	prefix := strings.TrimRight(n.Prefix, "/")
	switch {
	case team != "" && prefix != "":
		return team + "/" + prefix
	default:
		return team + prefix
	}
}

// Title resolves a raw title to its canonical namespaced form. Resolution
// is idempotent: a title that already carries the namespace is returned
// unchanged, so Title(Title(t)) == Title(t).
func (n Namespace) Title(raw string) string {
	root := n.root()
	if strings.HasPrefix(raw, root) {
		return raw
	}
	root = strings.Trim(root, "/")
	title := strings.Trim(raw, "/")
	switch {
	case root != "" && title != "":
		return root + "/" + title
	default:
		return root + title
	}
}

// URL appends the resolved title to the base URL with exactly one
// separating slash.
func (n Namespace) URL(title string) string {
	base := n.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + n.Title(title)
}
