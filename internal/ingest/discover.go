package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bahaipedia/server-scripts/internal/awstats"
)

// ReportFile is a report on disk as found by discovery.
type ReportFile struct {
	Name    string
	Path    string
	ModTime time.Time
}

// DiscoverReports lists the report files of one server directory, sorted by name.
// file restricts discovery to one filename; website keeps only files of that site.
// A missing single file returns no files and no error.
func DiscoverReports(dir, prefix, file, website string) ([]ReportFile, error) {
	if file != "" {
		path := filepath.Join(dir, file)
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !matchesWebsite(file, prefix, website) {
			return nil, nil
		}
		return []ReportFile{{Name: file, Path: path, ModTime: info.ModTime()}}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var reports []ReportFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !awstats.LooksLikeReport(name, prefix) {
			continue
		}
		if !matchesWebsite(name, prefix, website) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		reports = append(reports, ReportFile{Name: name, Path: filepath.Join(dir, name), ModTime: info.ModTime()})
	}
	return reports, nil
}

// matchesWebsite keeps every file when no website filter is set. Files whose name does
// not parse cannot belong to the requested site.
func matchesWebsite(name, prefix, website string) bool {
	if website == "" {
		return true
	}
	site, err := awstats.SiteFromFilename(name, prefix)
	return err == nil && site == website
}
