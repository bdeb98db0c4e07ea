package publish

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_MoveOnPublish(t *testing.T) {
	a := &Asset{Path: "logo.png"}
	b := &Asset{Path: "index.html"}
	r := NewRegistry([]*Asset{a, b})

	require.Len(t, r.Pending(), 2)
	require.Empty(t, r.Published())

	r.MarkPublished(a)
	assert.Equal(t, []*Asset{b}, r.Pending())
	assert.Equal(t, []*Asset{a}, r.Published())

	// Marking twice must not duplicate the published entry
	r.MarkPublished(a)
	assert.Len(t, r.Published(), 1)
}

func TestRegistry_PendingByKindSnapshot(t *testing.T) {
	html := &Asset{Path: "index.html"}
	css := &Asset{Path: "style.css"}
	png := &Asset{Path: "logo.png"}
	r := NewRegistry([]*Asset{html, css, png})

	assert.Equal(t, []*Asset{png}, r.PendingByKind(KindResource))
	assert.Equal(t, []*Asset{css}, r.PendingByKind(KindStylesheet))
	assert.Equal(t, []*Asset{html}, r.PendingByKind(KindHTML))

	snapshot := r.PendingByKind(KindHTML)
	r.MarkPublished(html)
	// The snapshot is unaffected by registry mutation
	assert.Equal(t, []*Asset{html}, snapshot)
	assert.Empty(t, r.PendingByKind(KindHTML))
}

func TestRegistry_FindPublishedIgnoresPending(t *testing.T) {
	a := &Asset{Path: "css/style.css", Destination: "Team:X/css/style"}
	r := NewRegistry([]*Asset{a})

	assert.Nil(t, r.FindPublished("css/style.css"))

	a.SetPublished("http://2024.igem.org/Team:X/css/style", "text/css")
	r.MarkPublished(a)
	assert.Same(t, a, r.FindPublished("css/style.css"))
}

func TestRegistry_FindPublishedAliases(t *testing.T) {
	a := &Asset{
		Path:        "style.css",
		PrefixBase:  "site/css",
		Destination: "Team:X/style",
	}
	a.SetPublished("http://2024.igem.org/Team:X/style", "text/css")
	r := NewRegistry([]*Asset{a})
	r.MarkPublished(a)

	// Destination, source path, full path, and URL all resolve
	assert.Same(t, a, r.FindPublished("Team:X/style"))
	assert.Same(t, a, r.FindPublished("style.css"))
	assert.Same(t, a, r.FindPublished("site/css/style.css"))
	assert.Same(t, a, r.FindPublished("http://2024.igem.org/Team:X/style"))

	assert.Nil(t, r.FindPublished("other.css"))
}

func TestRegistry_FindPublishedNormalizesDotSlash(t *testing.T) {
	a := &Asset{Path: "js/app.js", Destination: "Team:X/js/app"}
	a.SetPublished("http://2024.igem.org/Team:X/js/app", "text/javascript")
	r := NewRegistry([]*Asset{a})
	r.MarkPublished(a)

	assert.Same(t, a, r.FindPublished("./js/app.js"))
	assert.Same(t, a, r.FindPublished("/js/app.js"))
}

func TestRegistry_FindPublishedFirstWins(t *testing.T) {
	first := &Asset{Path: "a/logo.png", Destination: "Team:X/logo.png"}
	second := &Asset{Path: "b/logo.png", Destination: "Team:X/logo.png"}
	first.SetPublished("http://files/first", "image/png")
	second.SetPublished("http://files/second", "image/png")

	r := NewRegistry([]*Asset{first, second})
	r.MarkPublished(first)
	r.MarkPublished(second)

	// Publication order decides collisions on a shared destination
	assert.Same(t, first, r.FindPublished("Team:X/logo.png"))
}
