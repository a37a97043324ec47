package scan

import (
	"html"
	"strings"

	"golang.org/x/text/cases"
)

// Matches reports whether target occurs in body, ignoring case. Bodies that
// carry the target entity-encoded (for example "&#47;ptt&#47;") are matched
// on a second pass over the entity-decoded body.
func Matches(body, target string) bool {
	if body == "" || target == "" {
		return false
	}
	fold := cases.Fold()
	needle := fold.String(target)
	if strings.Contains(fold.String(body), needle) {
		return true
	}
	decoded := html.UnescapeString(body)
	if decoded == body {
		return false
	}
	return strings.Contains(fold.String(decoded), needle)
}
