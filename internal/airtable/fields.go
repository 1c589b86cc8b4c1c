package airtable

import (
	"fmt"
	"strconv"
	"strings"
)

// String reads a text field, tolerating numbers and single-element lists.
func (r Record) String(name string) string {
	switch v := r.Fields[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		if len(v) > 0 {
			return fmt.Sprint(v[0])
		}
	}
	return ""
}

// Bool reads a checkbox field.
func (r Record) Bool(name string) bool {
	switch v := r.Fields[name].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	}
	return false
}

// Strings reads a linked-record or multi-select field.
func (r Record) Strings(name string) []string {
	raw, ok := r.Fields[name].([]any)
	if !ok {
		if s := r.String(name); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// AttachmentURLs reads the URLs of an attachment field.
func (r Record) AttachmentURLs(name string) []string {
	raw, ok := r.Fields[name].([]any)
	if !ok {
		return nil
	}
	urls := make([]string, 0, len(raw))
	for _, item := range raw {
		att, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if u, ok := att["url"].(string); ok && u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
