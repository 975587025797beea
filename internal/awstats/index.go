// Package awstats decodes the positional text data files written by the AWStats log
// analyzer.
//
// A data file starts with a map block listing the byte offset of every section:
//
//	BEGIN_MAP 27
//	POS_GENERAL 2045
//	POS_DAY 5120
//	...
//	END_MAP
//
// Each section then lives at its offset between BEGIN_<NAME> and END_<NAME> lines.
package awstats

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Section names as they appear in the map block.
const (
	SectionGeneral = "POS_GENERAL"
	SectionDay     = "POS_DAY"
	SectionSider   = "POS_SIDER"
)

const (
	sectionPrefix = "POS_"
	mapBegin      = "BEGIN_MAP"
	mapEnd        = "END_MAP"

	maxLineSize = 1 << 20
)

// Index maps section names to byte offsets in one report file.
type Index map[string]int64

// ReadIndex scans the map block from the start of r. It stops at END_MAP even if more
// POS_ lines follow; a file without any recognized entry yields an empty Index.
func ReadIndex(r io.ReadSeeker) (Index, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("awstats: seeking to map: %w", err)
	}

	index := make(Index)
	scanner := newLineScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, mapBegin) {
			continue
		}
		if strings.HasPrefix(line, mapEnd) {
			break
		}

		fields := strings.Fields(line)
		if len(fields) != 2 || !strings.HasPrefix(fields[0], sectionPrefix) {
			continue
		}
		offset, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || offset < 0 {
			return nil, &FormatError{Section: fields[0], Line: lineNo, Reason: fmt.Sprintf("invalid offset %q", fields[1])}
		}
		index[fields[0]] = offset
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("awstats: reading map: %w", err)
	}

	return index, nil
}

// Offset returns the offset recorded for section, or a FormatError wrapping
// ErrMissingSection.
func (idx Index) Offset(section string) (int64, error) {
	offset, ok := idx[section]
	if !ok {
		return 0, &FormatError{Section: section, Reason: "not listed in map", Err: ErrMissingSection}
	}
	return offset, nil
}

// Require checks that every named section is present before any decoding starts.
func (idx Index) Require(sections ...string) error {
	for _, s := range sections {
		if _, err := idx.Offset(s); err != nil {
			return err
		}
	}
	return nil
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return scanner
}
