package urls

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Filter modes. A run uses exactly one.
const (
	ModeAllowlist = "allowlist"
	ModeDenylist  = "denylist"
)

// PageSource provides the set of canonical page names that exist on a site.
type PageSource interface {
	ValidPages(ctx context.Context, site string) (map[string]struct{}, error)
}

// Policy resolves the URL filter to apply to one site's per-URL rows.
type Policy interface {
	Mode() string
	ForSite(ctx context.Context, site string) (SiteFilter, error)
}

// SiteFilter decides row by row whether a URL is stored.
type SiteFilter interface {
	// Keep receives the raw token from the report and its normalized form.
	Keep(raw, normalized string) bool
	// Seed lists the paths to pre-create as site URLs, in a stable order.
	Seed() []string
}

// NewPolicy builds the policy for mode. source is only used by the allowlist and
// prefixes only by the denylist.
func NewPolicy(mode string, source PageSource, prefixes []string) (Policy, error) {
	switch mode {
	case ModeAllowlist:
		if source == nil {
			return nil, fmt.Errorf("allowlist mode requires a page source")
		}
		return NewAllowlist(source), nil
	case ModeDenylist:
		return NewDenylist(prefixes), nil
	default:
		return nil, fmt.Errorf("unknown filter mode %q", mode)
	}
}

// Allowlist keeps only URLs that name an existing page on the site.
type Allowlist struct {
	source PageSource
}

func NewAllowlist(source PageSource) *Allowlist {
	return &Allowlist{source: source}
}

func (a *Allowlist) Mode() string { return ModeAllowlist }

// ForSite fetches (or reuses) the site's page set. Errors are returned untouched so the
// caller can classify them.
func (a *Allowlist) ForSite(ctx context.Context, site string) (SiteFilter, error) {
	pages, err := a.source.ValidPages(ctx, site)
	if err != nil {
		return nil, err
	}
	return allowFilter{pages: pages}, nil
}

type allowFilter struct {
	pages map[string]struct{}
}

func (f allowFilter) Keep(_, normalized string) bool {
	_, ok := f.pages[normalized]
	return ok
}

func (f allowFilter) Seed() []string {
	seed := make([]string, 0, len(f.pages))
	for page := range f.pages {
		if page != "" {
			seed = append(seed, page)
		}
	}
	sort.Strings(seed)
	return seed
}

// Denylist drops the site root, empty paths and anything under an ignored prefix.
type Denylist struct {
	prefixes []string
}

func NewDenylist(prefixes []string) *Denylist {
	return &Denylist{prefixes: compactPrefixes(prefixes)}
}

func (d *Denylist) Mode() string { return ModeDenylist }

func (d *Denylist) ForSite(context.Context, string) (SiteFilter, error) {
	return denyFilter{prefixes: d.prefixes}, nil
}

// Prefixes returns the configured ignore prefixes.
func (d *Denylist) Prefixes() []string {
	return d.prefixes
}

type denyFilter struct {
	prefixes []string
}

// Keep matches prefixes against the raw token after leading-slash removal, the form
// ignore files are written in.
func (f denyFilter) Keep(raw, normalized string) bool {
	token := strings.TrimPrefix(raw, "/")
	if token == "" || token == "/" || normalized == "" {
		return false
	}
	for _, prefix := range f.prefixes {
		if strings.HasPrefix(token, prefix) {
			return false
		}
	}
	return true
}

func (denyFilter) Seed() []string { return nil }
