package search

import "strings"

// IndexPattern addresses every date-suffixed index of a family, e.g.
// IndexPattern("forklift", "retry") == "forklift-retry*".
func IndexPattern(prefix, name string) string {
	return prefix + "-" + name + "*"
}

// QueryString builds a free-text query_string clause restricted to fields.
func QueryString(query string, fields ...string) Map {
	clause := Map{"query": query}
	if len(fields) > 0 {
		clause["fields"] = fields
	}
	return Map{"query_string": clause}
}

// Match builds a match clause on a single field.
func Match(field string, value interface{}) Map {
	return Map{
		"match": Map{
			field: value,
		},
	}
}

// Bool combines clauses. should is advisory when must is present.
type Bool struct {
	Must   []Map
	Should []Map
}

func (b Bool) Map() Map {
	inner := Map{}
	switch len(b.Must) {
	case 0:
	case 1:
		inner["must"] = b.Must[0]
	default:
		inner["must"] = b.Must
	}
	if len(b.Should) > 0 {
		inner["should"] = b.Should
	}
	return Map{"bool": inner}
}

// SortDesc sorts on field, newest first.
func SortDesc(field string) SortItem {
	return SortItem{
		field: map[string]string{
			"order": "desc",
		},
	}
}

// QuoteQueryString wraps s in a query_string phrase so it is matched as one
// literal term. Inside quotes only the quote and the backslash are special;
// reserved operators like < and > cannot be escaped outside of a phrase.
func QuoteQueryString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}
