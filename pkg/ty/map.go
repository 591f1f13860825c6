// Package ty provides small generic helpers shared across packages.
package ty

import "sort"

// MI is a shorthand for map[string]interface{}
type MI map[string]interface{}

// MS is a shorthand for map[string]string
type MS map[string]string

// Merge merges another MS into this one.
func (ms *MS) Merge(ms2 MS) {
	if *ms == nil {
		*ms = MS{}
	}
	for k, v := range ms2 {
		(*ms)[k] = v
	}
}

// Clone returns a shallow copy, never nil.
func (ms MS) Clone() MS {
	res := make(MS, len(ms))
	for k, v := range ms {
		res[k] = v
	}
	return res
}

// Keys returns the keys in lexical order.
func (ms MS) Keys() []string {
	keys := make([]string, 0, len(ms))
	for k := range ms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetString returns the value as a string if it exists and is a string, otherwise empty string.
func (mi MI) GetString(key string) string {
	s, _ := mi.GetStringOk(key)
	return s
}

// GetStringOk returns the value as a string if it exists and is a string, along with true.
func (mi MI) GetStringOk(key string) (string, bool) {
	v, ok := mi[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
