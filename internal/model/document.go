package model

import (
	"fmt"
	"sort"
	"strings"
)

// Table is a table record detected by the document analysis provider.
type Table struct {
	RowCount    int     `json:"row_count"`
	ColumnCount int     `json:"column_count"`
	Confidence  float64 `json:"confidence"`
}

// KeyValuePair is a raw key/value extraction candidate. Used when Fields is
// incomplete.
type KeyValuePair struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence,omitempty"`
}

// ExtractionSnapshot is the externally produced result of a document
// analysis pass. Any absent field is valid and treated as missing.
type ExtractionSnapshot struct {
	Content       string         `json:"content"`
	Tables        []Table        `json:"tables"`
	PageCount     int            `json:"page_count"`
	Confidence    float64        `json:"confidence"`
	Fields        map[string]any `json:"fields,omitempty"`
	KeyValuePairs []KeyValuePair `json:"key_value_pairs,omitempty"`
}

// Pages returns the page count, treating a missing (zero) count as one page.
func (s *ExtractionSnapshot) Pages() int {
	if s == nil || s.PageCount < 1 {
		return 1
	}
	return s.PageCount
}

// HasField reports whether a recognized field is present with a non-nil value.
func (s *ExtractionSnapshot) HasField(name string) bool {
	if s == nil || s.Fields == nil {
		return false
	}
	v, ok := s.Fields[name]
	return ok && v != nil
}

// KeyValueText renders the key/value candidates as a single lower-cased
// string for substring discovery.
func (s *ExtractionSnapshot) KeyValueText() string {
	if s == nil || len(s.KeyValuePairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.KeyValuePairs))
	for _, kv := range s.KeyValuePairs {
		parts = append(parts, fmt.Sprintf("%s: %s", kv.Key, kv.Value))
	}
	return strings.ToLower(strings.Join(parts, "; "))
}

// DocumentMetadata is free-form caller metadata about a document.
type DocumentMetadata map[string]any

// Well-known metadata keys.
const (
	MetaVendor    = "vendor"
	MetaSourceURL = "source_url"
)

// String returns the string value stored under key, or "" when absent or not
// a string.
func (m DocumentMetadata) String(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// Vendor returns the vendor name hint, if any.
func (m DocumentMetadata) Vendor() string {
	return m.String(MetaVendor)
}

// Keys returns the metadata keys in sorted order.
func (m DocumentMetadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ProcessRequest is what the router hands to a processing collaborator.
type ProcessRequest struct {
	DocumentID string
	Content    string
	Snapshot   *ExtractionSnapshot
	Metadata   DocumentMetadata
}
