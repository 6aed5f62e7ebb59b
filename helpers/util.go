package helpers

import (
	"regexp"
	"strings"
)

var nonPathChars = regexp.MustCompile(`[^\w\-]`)

// SanitizeName makes a shop name safe for use in an object storage key.
func SanitizeName(name string) string {
	return nonPathChars.ReplaceAllString(name, "_")
}

// FileExt returns the extension of a URL's file component, stripped of any
// query string and at most four characters. Defaults to jpg.
func FileExt(url string) string {
	if q := strings.Index(url, "?"); q >= 0 {
		url = url[:q]
	}
	base := url[strings.LastIndex(url, "/")+1:]
	if idx := strings.LastIndex(base, "."); idx >= 0 {
		if ext := base[idx+1:]; ext != "" && len(ext) <= 4 {
			return ext
		}
	}
	return "jpg"
}
