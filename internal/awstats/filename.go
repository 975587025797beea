package awstats

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultPrefix is the report-kind tag the log analyzer puts in front of every data file.
const DefaultPrefix = "awstats"

// ReportName is the metadata encoded in a report filename:
//
//	<prefix><MM><YYYY>.<site segments>.txt
//
// for example awstats012024.example.com.txt is January 2024 for site example.com.
// A single space between month and year is tolerated.
type ReportName struct {
	Filename string
	Month    int
	Year     int
	Site     string
}

// ParseFilename decodes a report filename using DefaultPrefix.
func ParseFilename(filename string) (ReportName, error) {
	return ParseFilenameWithPrefix(filename, DefaultPrefix)
}

// ParseFilenameWithPrefix decodes a report filename. Anything that does not match the
// grammar is a FormatError wrapping ErrFilename, never a partial result.
func ParseFilenameWithPrefix(filename, prefix string) (ReportName, error) {
	re, err := filenamePattern(prefix)
	if err != nil {
		return ReportName{}, err
	}

	m := re.FindStringSubmatch(filename)
	if m == nil {
		return ReportName{}, filenameError(filename, fmt.Sprintf("expected %sMMYYYY.<site>.txt", prefix))
	}

	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return ReportName{}, filenameError(filename, fmt.Sprintf("month %02d out of range", month))
	}

	for _, segment := range strings.Split(m[3], ".") {
		if segment == "" {
			return ReportName{}, filenameError(filename, "empty site name segment")
		}
	}

	return ReportName{
		Filename: filename,
		Month:    month,
		Year:     year,
		Site:     m[3],
	}, nil
}

// SiteFromFilename returns only the site part of a report filename.
func SiteFromFilename(filename, prefix string) (string, error) {
	name, err := ParseFilenameWithPrefix(filename, prefix)
	if err != nil {
		return "", err
	}
	return name.Site, nil
}

// LooksLikeReport is the cheap discovery check used before full parsing: a .txt file
// carrying the prefix somewhere in its name.
func LooksLikeReport(filename, prefix string) bool {
	return strings.HasSuffix(filename, ".txt") && strings.Contains(filename, prefix)
}

func filenamePattern(prefix string) (*regexp.Regexp, error) {
	if prefix == "" {
		return nil, filenameError("", "empty report prefix")
	}
	return regexp.Compile(`^` + regexp.QuoteMeta(prefix) + `(\d{2}) ?(\d{4})\.(.+)\.txt$`)
}

func filenameError(filename, reason string) *FormatError {
	return &FormatError{File: filename, Reason: reason, Err: ErrFilename}
}
