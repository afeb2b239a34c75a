package repostore

import (
	"reflect"
	"strings"
	"unicode"
)

// RegionForType derives the default cache region name from an entity type,
// e.g. *myapp.UserProfile becomes "user_profile". Region names feed both
// per-region TTL lookup and BumpRegion messages, so they must be stable
// across nodes; deriving them from the type name keeps every node of a
// cluster in agreement without configuration.
func RegionForType[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	name := t.Name()
	if name == "" {
		name = t.String()
	}
	return toSnake(name)
}

// toSnake converts a type name to snake_case. Anything that is not an
// ASCII letter or digit becomes a separator, so punctuation that reflected
// type names can carry (pointers, generic brackets) never leaks into a
// region name where it would desynchronize TTL lookup and invalidation
// scoping.
func toSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			// An upper rune starts a word when it follows lowercase or a
			// digit, or when it ends an acronym run (next rune is lower).
			if i > 0 {
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prev := runes[i-1]; unicode.IsLower(prev) || unicode.IsDigit(prev) || nextLower {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLower(r):
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i > 0 && !unicode.IsDigit(runes[i-1]) {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	return collapseSeparators(b.String())
}

// collapseSeparators folds runs of underscores and strips them from both
// ends, so toSnake can mark word boundaries without tracking what it
// already emitted.
func collapseSeparators(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pending := false
	for _, r := range s {
		if r == '_' {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte('_')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
