// Package normalize turns raw registry values into canonical strings.
//
// The registry returns a mix of nulls, numbers, padded strings and
// placeholder markers such as "н/д" for missing data. Every value that ends
// up in the workbook passes through Scalar, so a missing field is always
// the empty string.
package normalize

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// placeholders are the markers the registry uses for "no value".
// They are compared after Russian case folding.
var placeholders = map[string]struct{}{
	"null":      {},
	"-":         {},
	"н/д":       {},
	"н.д.":      {},
	"нет":       {},
	"n/a":       {},
	"none":      {},
	"undefined": {},
}

// isoDate matches a YYYY-MM-DD prefix, optionally followed by a time part.
var isoDate = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:[T ].*)?$`)

// lower returns a fresh Russian lower-casing caser.
// cases.Caser is stateful and must not be shared between goroutines.
func lower() cases.Caser {
	return cases.Lower(language.Russian)
}

// Scalar returns the canonical string form of a decoded JSON value.
// nil, blank strings and placeholder markers become "". Strings are
// trimmed; json.Number keeps its literal text; other numbers and booleans
// use their shortest textual form.
func Scalar(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s = x
	case json.Number:
		s = x.String()
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case bool:
		s = strconv.FormatBool(x)
	case interface{ String() string }:
		s = x.String()
	default:
		// Objects and arrays are not scalars.
		return ""
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if _, ok := placeholders[lower().String(s)]; ok {
		return ""
	}
	return s
}

// FirstNonEmpty returns the first value whose Scalar form is non-empty.
func FirstNonEmpty(values ...any) string {
	for _, v := range values {
		if s := Scalar(v); s != "" {
			return s
		}
	}
	return ""
}

// Date reformats an ISO date (with or without a time part) to DD.MM.YYYY.
// Values that do not look like an ISO date are returned normalized but
// otherwise unchanged.
func Date(v any) string {
	s := Scalar(v)
	if s == "" {
		return ""
	}
	m := isoDate.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	return m[3] + "." + m[2] + "." + m[1]
}

// QuotedName extracts the trade name embedded in a legal name.
// «…» wins over "…"; without a quoted part the input is returned as is.
func QuotedName(fullName string) string {
	if open := strings.Index(fullName, "«"); open >= 0 {
		rest := fullName[open+len("«"):]
		if end := strings.LastIndex(rest, "»"); end > 0 {
			return rest[:end]
		}
	}
	start := strings.Index(fullName, `"`)
	end := strings.LastIndex(fullName, `"`)
	if start >= 0 && end > start {
		return fullName[start+1 : end]
	}
	return fullName
}

// ContainsFold reports whether sub occurs in s, ignoring case.
// Cyrillic letters fold the same way as Latin ones.
func ContainsFold(s, sub string) bool {
	c := lower()
	return strings.Contains(c.String(s), c.String(sub))
}
