package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"

	"github.com/bahaipedia/server-scripts/internal/analytics"
	"github.com/bahaipedia/server-scripts/internal/ingest"
	"github.com/bahaipedia/server-scripts/internal/ledger"
)

// newTable returns a table writer sized to the terminal when stdout is one.
func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if w == os.Stdout && term.IsTerminal(int(os.Stdout.Fd())) {
		if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
			t.SetAllowedRowLength(width)
		}
	}
	return t
}

func count[T ~int | ~int64](n T) string {
	return humanize.Comma(int64(n))
}

// renderRunSummary prints every unit that was not skipped, then the run totals.
func renderRunSummary(w io.Writer, s *ingest.RunSummary) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Server", "File", "Kind", "Outcome", "Rows", "Dropped", "Error"})
	for _, r := range s.Results {
		if r.Outcome == ingest.OutcomeSkipped {
			continue
		}
		errText := ""
		if r.Err != nil {
			errText = fmt.Sprintf("[%s] %v", r.Class, r.Err)
		}
		t.AppendRow(table.Row{r.Server, r.Filename, r.Kind, string(r.Outcome), count(r.Rows), count(r.Dropped), errText})
	}
	t.AppendFooter(table.Row{"", "", "", "",
		fmt.Sprintf("%s processed", count(s.Processed)),
		fmt.Sprintf("%s skipped", count(s.Skipped)),
		fmt.Sprintf("%s failed", count(s.Failed))})
	if len(s.Results) > 0 {
		t.Render()
	}

	elapsed := s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond)
	fmt.Fprintf(w, "Run %s: %s processed, %s skipped, %s failed in %s\n",
		s.RunID, count(s.Processed), count(s.Skipped), count(s.Failed), elapsed)
}

func renderRowCounts(w io.Writer, counts analytics.RowCounts, ledgerEntries int64) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Table", "Rows"})
	t.AppendRows([]table.Row{
		{"websites", count(counts.Websites)},
		{"website_url", count(counts.WebsiteURLs)},
		{"summary", count(counts.Summaries)},
		{"website_url_stats", count(counts.URLStats)},
		{"file_tracking", count(ledgerEntries)},
	})
	t.Render()
}

func renderLedger(w io.Writer, entries []ledger.Entry, servers map[uint]string) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Server", "File", "Kind", "File modified", "Processed"})
	for _, e := range entries {
		server := servers[e.ServerID]
		if server == "" {
			server = fmt.Sprintf("#%d", e.ServerID)
		}
		t.AppendRow(table.Row{
			server,
			e.Filename,
			e.Kind,
			e.ModifiedAt().Format("2006-01-02 15:04:05"),
			humanize.Time(e.ProcessedAt),
		})
	}
	t.Render()
}

func renderRollups(w io.Writer, rollups []analytics.ServerMonth, servers map[uint]string) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Period", "Server", "Unique", "Visits", "Pages", "Hits", "Bandwidth", "Days"})
	for _, r := range rollups {
		server := servers[r.ServerID]
		if server == "" {
			server = fmt.Sprintf("#%d", r.ServerID)
		}
		t.AppendRow(table.Row{
			fmt.Sprintf("%04d-%02d", r.Year, r.Month),
			server,
			count(r.UniqueVisitors),
			count(r.Visits),
			count(r.Pages),
			count(r.Hits),
			humanize.Bytes(uint64(r.Bandwidth)),
			count(r.Days),
		})
	}
	t.Render()
}

func renderTopURLs(w io.Writer, top []analytics.URLTotal) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "URL", "Hits", "Entries", "Exits"})
	for i, u := range top {
		t.AppendRow(table.Row{i + 1, u.URL, count(u.Hits), count(u.Entries), count(u.Exits)})
	}
	t.Render()
}
