package framework

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

var (
	globCacheMu sync.RWMutex
	globCache   = map[string]*regexp.Regexp{}
)

// MatchGlob supports both filepath.Match and the '**' recursive glob pattern.
// Values are compared slash-separated.
func MatchGlob(pattern, value string) bool {
	if pattern == "" {
		return false
	}
	pattern = filepath.ToSlash(pattern)
	value = filepath.ToSlash(value)
	if !strings.Contains(pattern, "**") {
		ok, err := filepath.Match(pattern, value)
		if err != nil {
			return false
		}
		return ok
	}
	regex := compileGlob(pattern)
	if regex == nil {
		return false
	}
	return regex.MatchString(value)
}

func compileGlob(pattern string) *regexp.Regexp {
	globCacheMu.RLock()
	regex, ok := globCache[pattern]
	globCacheMu.RUnlock()
	if ok {
		return regex
	}
	regex, err := regexp.Compile(globToRegex(pattern))
	if err != nil {
		regex = nil
	}
	globCacheMu.Lock()
	globCache[pattern] = regex
	globCacheMu.Unlock()
	return regex
}

func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch ch {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				i++
				// "**/" also matches zero directories.
				if i+1 < len(runes) && runes[i+1] == '/' {
					i++
					b.WriteString("(?:.*/)?")
				} else {
					b.WriteString(".*")
				}
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		case '.', '+', '(', ')', '|', '^', '$', '[', ']', '{', '}', '\\':
			b.WriteRune('\\')
			b.WriteRune(ch)
		default:
			b.WriteRune(ch)
		}
	}
	b.WriteString("$")
	return b.String()
}
