package mediapath

import "strings"

// traversalSequences are removed repeatedly until none remain. The encoded
// spellings cover the mixed forms seen in backend responses; matching is
// case-insensitive so %2E and %2e are treated alike.
var traversalSequences = []string{
	"../",
	"..\\",
	"%2e%2e%2f",
	"%2e%2e%5c",
	"%2e%2e/",
	"%2e%2e\\",
	"..%2f",
	"..%5c",
}

// Sanitize converts a raw backend path into a relative URL safe to append to
// a trusted base. It returns false when the input is empty or still contains
// a parent-directory segment after cleaning. Absolute http(s) URLs bypass
// sanitization and are returned verbatim.
func Sanitize(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if IsAbsolute(trimmed) {
		return trimmed, true
	}

	cleaned := stripTraversal(trimmed)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	cleaned = strings.TrimPrefix(cleaned, "data/")
	cleaned = strings.TrimLeft(cleaned, "/")
	cleaned = collapseSlashes(cleaned)
	if cleaned == "" {
		return "", false
	}
	for _, segment := range strings.Split(cleaned, "/") {
		if segment == ".." {
			return "", false
		}
	}
	return cleaned, true
}

// Resolve joins a sanitized path onto a trusted base URL. It returns false
// when the path fails sanitization.
func Resolve(base, raw string) (string, bool) {
	cleaned, ok := Sanitize(raw)
	if !ok {
		return "", false
	}
	if IsAbsolute(cleaned) {
		return cleaned, true
	}
	return strings.TrimRight(base, "/") + "/" + cleaned, true
}

// IsAbsolute reports whether the path is a fully-qualified http(s) URL.
func IsAbsolute(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func stripTraversal(value string) string {
	for {
		next := value
		for _, seq := range traversalSequences {
			next = removeFold(next, seq)
		}
		if next == value {
			return next
		}
		value = next
	}
}

// removeFold removes every case-insensitive occurrence of seq from value.
func removeFold(value, seq string) string {
	lowerSeq := strings.ToLower(seq)
	for {
		idx := strings.Index(strings.ToLower(value), lowerSeq)
		if idx < 0 {
			return value
		}
		value = value[:idx] + value[idx+len(seq):]
	}
}

func collapseSlashes(value string) string {
	for strings.Contains(value, "//") {
		value = strings.ReplaceAll(value, "//", "/")
	}
	return value
}
