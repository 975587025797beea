package urls

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer(DefaultStripPrefix)

	cases := []struct {
		raw  string
		want string
	}{
		{"/wiki/Main_Page", "Main Page"},
		{"/wiki/Caf%C3%A9_du_Monde", "Café du Monde"},
		{"/index.php", "index.php"},
		{"wiki/Bah%C3%A1%27u%27ll%C3%A1h", "Bahá'u'lláh"},
		{"/wiki/100%_Broken", "100% Broken"},
		{"/wiki/Caf%C3%A9_100%", "Café 100%"},
		{"/wiki/%ZZ_and_%41", "%ZZ and A"},
		{"/wiki/Trailing%4", "Trailing%4"},
		{"/wiki/Bad%FF", "Bad\uFFFD"},
		{"/", ""},
		{"//wiki/Double", "/wiki/Double"},
		{"/wiki/Café", "Café"},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, n.Normalize(tc.raw))
		})
	}
}

func TestNormalizeWithoutStripPrefix(t *testing.T) {
	n := NewNormalizer("")
	assert.Equal(t, "wiki/Main Page", n.Normalize("/wiki/Main_Page"))
}

func TestCanonicalTitleMatchesNormalize(t *testing.T) {
	n := NewNormalizer(DefaultStripPrefix)
	assert.Equal(t, n.Normalize("/wiki/Abdu%27l-Bah%C3%A1"), CanonicalTitle("Abdu'l-Bahá"))
	assert.Equal(t, n.Normalize("/wiki/Caf%C3%A9_100%"), CanonicalTitle("Café 100%"))
	assert.Equal(t, "Main Page", CanonicalTitle("Main_Page"))
}

type staticSource struct {
	pages map[string]struct{}
	err   error
	calls int
}

func (s *staticSource) ValidPages(context.Context, string) (map[string]struct{}, error) {
	s.calls++
	return s.pages, s.err
}

func TestAllowlist(t *testing.T) {
	source := &staticSource{pages: map[string]struct{}{"Main Page": {}, "Café": {}, "": {}}}
	policy, err := NewPolicy(ModeAllowlist, source, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeAllowlist, policy.Mode())

	filter, err := policy.ForSite(context.Background(), "example.com")
	require.NoError(t, err)

	assert.True(t, filter.Keep("/wiki/Main_Page", "Main Page"))
	assert.False(t, filter.Keep("/wiki/Unknown", "Unknown"))
	assert.Equal(t, []string{"Café", "Main Page"}, filter.Seed())
}

func TestAllowlistPropagatesSourceErrors(t *testing.T) {
	boom := errors.New("unreachable")
	policy := NewAllowlist(&staticSource{err: boom})

	_, err := policy.ForSite(context.Background(), "example.com")
	assert.ErrorIs(t, err, boom)
}

func TestDenylist(t *testing.T) {
	policy, err := NewPolicy(ModeDenylist, nil, []string{"index.php", "", "images/"})
	require.NoError(t, err)
	assert.Equal(t, ModeDenylist, policy.Mode())

	filter, err := policy.ForSite(context.Background(), "example.com")
	require.NoError(t, err)
	n := NewNormalizer(DefaultStripPrefix)

	cases := []struct {
		raw  string
		keep bool
	}{
		{"/wiki/Main_Page", true},
		{"/", false},
		{"", false},
		{"//", false},
		{"/index.php?title=Special:Search", false},
		{"/images/logo.png", false},
		{"/wiki/", false},
		{"/wiki/images/", true},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.keep, filter.Keep(tc.raw, n.Normalize(tc.raw)))
		})
	}
	assert.Empty(t, filter.Seed())
}

func TestNewPolicyRejectsUnknownMode(t *testing.T) {
	_, err := NewPolicy("everything", nil, nil)
	assert.Error(t, err)

	_, err = NewPolicy(ModeAllowlist, nil, nil)
	assert.Error(t, err)
}

func TestLoadIgnorePrefixes(t *testing.T) {
	dir := t.TempDir()

	t.Run("text file", func(t *testing.T) {
		path := filepath.Join(dir, "ignore_urls.txt")
		require.NoError(t, os.WriteFile(path, []byte("# comment\nindex.php\n\n  images/  \n"), 0o644))

		prefixes, err := LoadIgnorePrefixes(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"index.php", "images/"}, prefixes)
	})

	t.Run("yaml list", func(t *testing.T) {
		path := filepath.Join(dir, "ignore.yaml")
		require.NoError(t, os.WriteFile(path, []byte("- index.php\n- skins/\n"), 0o644))

		prefixes, err := LoadIgnorePrefixes(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"index.php", "skins/"}, prefixes)
	})

	t.Run("yaml document", func(t *testing.T) {
		path := filepath.Join(dir, "ignore.yml")
		require.NoError(t, os.WriteFile(path, []byte("prefixes:\n  - api.php\n  - ''\n"), 0o644))

		prefixes, err := LoadIgnorePrefixes(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"api.php"}, prefixes)
	})

	t.Run("missing file", func(t *testing.T) {
		prefixes, err := LoadIgnorePrefixes(filepath.Join(dir, "absent.txt"))
		require.NoError(t, err)
		assert.Empty(t, prefixes)
	})
}
