package testsupport

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ReportSection is one BEGIN_<Name>/END_<Name> block of a generated report file.
type ReportSection struct {
	Name  string
	Lines []string
	// Unindexed leaves the section out of the map block.
	Unindexed bool
	// Unterminated drops the END_<Name> line.
	Unterminated bool
}

// GeneralSection returns a POS_GENERAL block carrying the unique-visitor total.
func GeneralSection(totalUnique int64) ReportSection {
	return ReportSection{Name: "GENERAL", Lines: []string{
		"LastLine 20240201000000 1234 0 0 0",
		fmt.Sprintf("TotalUnique %d", totalUnique),
		"MonthHostsKnown 0",
	}}
}

// DaySection returns a POS_DAY block with the given data rows.
func DaySection(rows ...string) ReportSection {
	return ReportSection{Name: "DAY", Lines: append([]string{"# Date - Pages - Hits - Bandwidth - Visits"}, rows...)}
}

// SiderSection returns a POS_SIDER block with the given data rows.
func SiderSection(rows ...string) ReportSection {
	return ReportSection{Name: "SIDER", Lines: append([]string{"# URL - Pages - Bandwidth - Entry - Exit"}, rows...)}
}

// BuildReport renders a report file whose map block points at the real byte offset of
// every BEGIN_<Name> line. Offsets are zero padded so the map length is known up front.
func BuildReport(sections ...ReportSection) []byte {
	header := "AWSTATS DATA FILE 7.8 (build 20200416)\n# If you remove this file, all statistics for date 202401 will be lost/reset.\n"

	indexed := 0
	for _, s := range sections {
		if !s.Unindexed {
			indexed++
		}
	}

	mapBegin := fmt.Sprintf("BEGIN_MAP %d\n", indexed)
	mapEnd := "END_MAP\n"
	mapLen := len(mapBegin) + len(mapEnd)
	for _, s := range sections {
		if !s.Unindexed {
			mapLen += len(fmt.Sprintf("POS_%s %08d\n", s.Name, 0))
		}
	}

	var body bytes.Buffer
	offsets := make([]int, len(sections))
	base := len(header) + mapLen
	for i, s := range sections {
		offsets[i] = base + body.Len()
		fmt.Fprintf(&body, "BEGIN_%s %d\n", s.Name, len(s.Lines))
		for _, line := range s.Lines {
			body.WriteString(line)
			body.WriteString("\n")
		}
		if !s.Unterminated {
			fmt.Fprintf(&body, "END_%s\n", s.Name)
		}
	}

	var out bytes.Buffer
	out.WriteString(header)
	out.WriteString(mapBegin)
	for i, s := range sections {
		if !s.Unindexed {
			fmt.Fprintf(&out, "POS_%s %08d\n", s.Name, offsets[i])
		}
	}
	out.WriteString(mapEnd)
	out.Write(body.Bytes())
	return out.Bytes()
}

// WriteReport writes a generated report into dir and pins its modification time.
func WriteReport(t *testing.T, dir, filename string, modTime time.Time, sections ...ReportSection) string {
	t.Helper()

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, BuildReport(sections...), 0o644); err != nil {
		t.Fatalf("testsupport: writing report %s: %v", filename, err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("testsupport: setting mtime on %s: %v", filename, err)
	}
	return path
}
