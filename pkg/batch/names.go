package batch

import (
	"fmt"
	"strings"
	"unicode"
)

// maxFileNameLength bounds the sanitized part of a file name.
const maxFileNameLength = 50

// SafeFileName converts an identifier to a file name stem: letters, digits,
// '-' and '_' are kept, spaces become '_', everything else is dropped. The
// result is at most 50 characters and never empty.
func SafeFileName(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}

	safe := b.String()
	if len(safe) > maxFileNameLength {
		safe = safe[:maxFileNameLength]
	}
	safe = strings.Trim(safe, "_")
	if safe == "" {
		return "untitled"
	}
	return safe
}

// nameAllocator hands out distinct file names within one batch.
type nameAllocator struct {
	used map[string]struct{}
}

func newNameAllocator() *nameAllocator {
	return &nameAllocator{used: make(map[string]struct{})}
}

// next returns the file name for id, suffixing -2, -3, ... on collisions.
// Collisions are checked case-insensitively.
func (a *nameAllocator) next(id string) string {
	stem := SafeFileName(id)
	name := stem + ".md"
	for n := 2; ; n++ {
		key := strings.ToLower(name)
		if _, taken := a.used[key]; !taken {
			a.used[key] = struct{}{}
			return name
		}
		name = fmt.Sprintf("%s-%d.md", stem, n)
	}
}
