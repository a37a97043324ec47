package scan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		target string
		want   bool
	}{
		{"exact", "<a href=\"/ptt/case-studies/\">x</a>", "/ptt/case-studies/", true},
		{"case insensitive", "<p>Hello WORLD</p>", "hello world", true},
		{"absent", "<p>nothing here</p>", "foo", false},
		{"numeric entities", "<a href=\"&#47;ptt&#47;case-studies&#47;\">", "/ptt/case-studies/", true},
		{"named entities", "Tom &amp; Jerry", "tom & jerry", true},
		{"entity and case", "&lt;SCRIPT&gt;", "<script>", true},
		{"empty body", "", "foo", false},
		{"empty target", "body", "", false},
		{"decoded still absent", "a &amp; b", "c", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Matches(tt.body, tt.target))
		})
	}
}

func TestMatchesInjectedTargetAnyPositionAnyCase(t *testing.T) {
	t.Parallel()

	base := "<html><body><div class=\"content\">lorem ipsum dolor</div></body></html>"
	target := "Case-Studies/Alpha"
	permutations := []string{
		target,
		strings.ToUpper(target),
		strings.ToLower(target),
		"cAsE-sTuDiEs/aLpHa",
	}
	for pos := 0; pos <= len(base); pos += 7 {
		for _, injected := range permutations {
			body := base[:pos] + injected + base[pos:]
			if !Matches(body, target) {
				t.Fatalf("expected match for %q injected at %d", injected, pos)
			}
		}
	}
}
