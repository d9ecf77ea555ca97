// Package signing provides the canonical parameter codec and HMAC helpers
// shared by every payment gateway integration. A gateway must use the same
// join (raw or percent-encoded) on the sign path and the verify path; mixing
// the two silently produces signature mismatches.
package signing

import (
	"net/url"
	"sort"
	"strings"
)

// SortedQuery joins the parameters as raw key=value pairs separated by "&",
// with keys sorted byte-wise ascending. Keys listed in exclude (typically the
// signature fields) are removed before joining.
func SortedQuery(params map[string]string, exclude ...string) string {
	return joinSorted(params, func(v string) string { return v }, exclude)
}

// SortedQueryEscaped behaves like SortedQuery but percent-encodes keys and
// values using query escaping.
func SortedQueryEscaped(params map[string]string, exclude ...string) string {
	return joinSortedEscapedKeys(params, exclude)
}

// OrderedQuery joins key=value pairs in the exact order given by keys. Some
// vendors dictate the field order of the signed string as part of the wire
// contract; missing keys are included with an empty value.
func OrderedQuery(keys []string, params map[string]string) string {
	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(params[key])
	}
	return b.String()
}

func joinSorted(params map[string]string, escape func(string) string, exclude []string) string {
	keys := sortedKeys(params, exclude)
	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(escape(params[key]))
	}
	return b.String()
}

func joinSortedEscapedKeys(params map[string]string, exclude []string) string {
	keys := sortedKeys(params, exclude)
	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[key]))
	}
	return b.String()
}

func sortedKeys(params map[string]string, exclude []string) []string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if excluded(key, exclude) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func excluded(key string, exclude []string) bool {
	for _, ex := range exclude {
		if key == ex {
			return true
		}
	}
	return false
}
