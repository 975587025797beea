package urls

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type ignoreDocument struct {
	Prefixes []string `yaml:"prefixes"`
}

// LoadIgnorePrefixes reads the denylist prefixes. A .yaml/.yml file may hold either a
// plain list or a {prefixes: [...]} document; anything else is read one prefix per line,
// skipping blank lines and # comments. A missing file yields no prefixes.
func LoadIgnorePrefixes(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ignore file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		prefixes, err := parseIgnoreYAML(data)
		if err != nil {
			return nil, fmt.Errorf("parsing ignore file %s: %w", path, err)
		}
		return prefixes, nil
	default:
		return parseIgnoreLines(string(data)), nil
	}
}

func parseIgnoreYAML(data []byte) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return compactPrefixes(list), nil
	}

	var doc ignoreDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return compactPrefixes(doc.Prefixes), nil
}

func parseIgnoreLines(data string) []string {
	var prefixes []string
	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prefixes = append(prefixes, line)
	}
	return prefixes
}

func compactPrefixes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
