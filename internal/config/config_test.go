package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(writeConfigFile(t, "appname: statsync\n"))
	require.NoError(t, err)

	assert.Equal(t, SQLiteDatabase, c.DatabaseType)
	assert.Equal(t, FilterDenylist, c.FilterMode)
	assert.Equal(t, "awstats", c.ReportPrefix)
	assert.Equal(t, "wiki/", c.StripPrefix)
	assert.Equal(t, filepath.Join("storage", "statsync-production.db"), c.DatabaseName)

	require.Len(t, c.Servers, 4)
	assert.Equal(t, uint(1), c.Servers[0].ID)
	assert.Equal(t, "/var/lib/awstats", c.Servers[0].Directory)
	assert.Equal(t, "saopaulo", c.Servers[3].Name)
	assert.Equal(t, uint(4), c.Servers[3].ID)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
environment: test
filtermode: allowlist
servers:
  - id: 7
    name: lab
    directory: /srv/stats/lab
`)
	t.Setenv("STATSYNC_LOG_LEVEL", "debug")
	t.Setenv("STATSYNC_MEDIAWIKI_MAX_PAGES", "5")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Test, c.Environment)
	assert.True(t, c.IsTest())
	assert.Equal(t, FilterAllowlist, c.FilterMode)
	assert.Equal(t, LogLevelDebug, c.LogLevel)
	assert.Equal(t, 5, c.MediaWikiMaxPages)
	require.Len(t, c.Servers, 1)
	assert.Equal(t, Server{ID: 7, Name: "lab", Directory: "/srv/stats/lab"}, c.Servers[0])
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "environment", body: "environment: staging\n", want: "invalid environment"},
		{name: "db type", body: "dbtype: oracle\n", want: "invalid database type"},
		{name: "mysql without dsn", body: "dbtype: mysql\n", want: "requires dbdsn"},
		{name: "filter mode", body: "filtermode: everything\n", want: "invalid filter mode"},
		{name: "api url template", body: "mediawikiapiurl: https://wiki/api.php\n", want: "must contain"},
		{
			name: "duplicate server id",
			body: "servers:\n  - {id: 1, name: a, directory: /a}\n  - {id: 1, name: b, directory: /b}\n",
			want: "duplicate server id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSelectServers(t *testing.T) {
	c := &Config{Servers: []Server{
		{ID: 1, Name: "local", Directory: "/var/lib/awstats"},
		{ID: 2, Name: "frankfurt", Directory: "/home/private/server_stats/frankfurt"},
		{ID: 4, Name: "saopaulo", Directory: "/home/private/server_stats/saopaulo"},
	}}

	all, err := c.SelectServers("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	selected, err := c.SelectServers("frankfurt")
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, uint(2), selected[0].ID)

	selected, err = c.SelectServers("server_stats")
	require.NoError(t, err)
	assert.Len(t, selected, 2)

	_, err = c.SelectServers("tokyo")
	assert.Error(t, err)
}
