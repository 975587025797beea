package awstats

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	commentMarker  = "#"
	totalUniqueKey = "TotalUnique"
	dataFieldCount = 5
)

// DayRecord is one row of the daily breakdown section.
type DayRecord struct {
	Year      int
	Month     int
	Day       int
	Pages     int64
	Hits      int64
	Bandwidth int64
	Visits    int64
}

// URLRecord is one row of the per-URL breakdown section. Path is the raw token as
// written by the analyzer; normalization happens later.
type URLRecord struct {
	Path      string
	Pages     int64
	Bandwidth int64
	Entries   int64
	Exits     int64
}

// DecodeGeneral returns the monthly unique-visitor total from the POS_GENERAL section,
// or nil when the section has no TotalUnique line.
func DecodeGeneral(r io.ReadSeeker, offset int64) (*int64, error) {
	var total *int64
	err := scanSection(r, offset, SectionGeneral, func(line string, lineNo int) error {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != totalUniqueKey {
			return nil
		}
		n, err := parseCounter(fields[1])
		if err != nil {
			return &FormatError{Section: SectionGeneral, Line: lineNo, Reason: fmt.Sprintf("%s: %v", totalUniqueKey, err)}
		}
		total = &n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

// DecodeDays returns every well-formed row of the POS_DAY section. Rows without exactly
// five fields are skipped; a five-field row with bad values fails the whole section.
func DecodeDays(r io.ReadSeeker, offset int64) ([]DayRecord, error) {
	var days []DayRecord
	err := scanSection(r, offset, SectionDay, func(line string, lineNo int) error {
		fields := strings.Fields(line)
		if len(fields) != dataFieldCount {
			return nil
		}
		year, month, day, err := parseDate(fields[0])
		if err != nil {
			return &FormatError{Section: SectionDay, Line: lineNo, Reason: err.Error()}
		}
		counters, err := parseCounters(fields[1:])
		if err != nil {
			return &FormatError{Section: SectionDay, Line: lineNo, Reason: err.Error()}
		}
		days = append(days, DayRecord{
			Year:      year,
			Month:     month,
			Day:       day,
			Pages:     counters[0],
			Hits:      counters[1],
			Bandwidth: counters[2],
			Visits:    counters[3],
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return days, nil
}

// DecodeSider returns every well-formed row of the POS_SIDER section, using the same
// skip rules as DecodeDays.
func DecodeSider(r io.ReadSeeker, offset int64) ([]URLRecord, error) {
	var rows []URLRecord
	err := scanSection(r, offset, SectionSider, func(line string, lineNo int) error {
		fields := strings.Fields(line)
		if len(fields) != dataFieldCount {
			return nil
		}
		counters, err := parseCounters(fields[1:])
		if err != nil {
			return &FormatError{Section: SectionSider, Line: lineNo, Reason: err.Error()}
		}
		rows = append(rows, URLRecord{
			Path:      fields[0],
			Pages:     counters[0],
			Bandwidth: counters[1],
			Entries:   counters[2],
			Exits:     counters[3],
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// scanSection seeks to offset and feeds every data line to fn until END_<NAME>.
// Comment lines and the BEGIN_<NAME> line are skipped. Line numbers are relative to
// the offset, starting at 1.
func scanSection(r io.ReadSeeker, offset int64, section string, fn func(line string, lineNo int) error) error {
	name := strings.TrimPrefix(section, sectionPrefix)
	begin, end := "BEGIN_"+name, "END_"+name

	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("awstats: seeking to %s: %w", section, err)
	}

	scanner := newLineScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, end):
			return nil
		case line == "", strings.HasPrefix(line, commentMarker), strings.HasPrefix(line, begin):
			continue
		}
		if err := fn(line, lineNo); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("awstats: reading %s: %w", section, err)
	}

	return &FormatError{Section: section, Line: lineNo, Reason: fmt.Sprintf("reached end of file before %s", end)}
}

func parseDate(token string) (year, month, day int, err error) {
	if len(token) != 8 {
		return 0, 0, 0, fmt.Errorf("date %q is not YYYYMMDD", token)
	}
	for _, c := range token {
		if c < '0' || c > '9' {
			return 0, 0, 0, fmt.Errorf("date %q is not YYYYMMDD", token)
		}
	}
	year, _ = strconv.Atoi(token[:4])
	month, _ = strconv.Atoi(token[4:6])
	day, _ = strconv.Atoi(token[6:])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, 0, 0, fmt.Errorf("date %q out of range", token)
	}
	return year, month, day, nil
}

func parseCounters(fields []string) ([]int64, error) {
	out := make([]int64, len(fields))
	for i, f := range fields {
		n, err := parseCounter(f)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func parseCounter(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid counter %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative counter %q", s)
	}
	return n, nil
}
