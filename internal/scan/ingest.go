package scan

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var httpURLPrefix = regexp.MustCompile(`(?i)^https?://`)

// ParseURLList reads a CSV upload with one URL per row in the first column
// and returns the rows that carry an http(s) URL. Other rows are dropped.
func ParseURLList(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var raw []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read url csv: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		raw = append(raw, record[0])
	}
	urls := FilterURLs(raw)
	if len(urls) == 0 {
		return nil, ErrNoValidURLs
	}
	return urls, nil
}

// FilterURLs trims each entry and keeps those with an http:// or https://
// prefix, preserving order.
func FilterURLs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		u = strings.TrimSpace(strings.TrimPrefix(u, "\ufeff"))
		if u == "" || !httpURLPrefix.MatchString(u) {
			continue
		}
		out = append(out, u)
	}
	return out
}
