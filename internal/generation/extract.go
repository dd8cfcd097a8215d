package generation

import (
	"regexp"
	"strings"
)

// fencePattern matches a fenced block with an optional info string. Both
// fences must start a line, optionally indented.
var fencePattern = regexp.MustCompile("(?ms)^[ \\t]*```[^\\n`]*\\n(.*?)\\n?^[ \\t]*```")

// ExtractCode returns the body of the first fenced code block in text and
// fenced=true. When text has no fenced block, the whole response, trimmed,
// is returned with fenced=false. It never fails: an empty response yields
// empty code.
func ExtractCode(text string) (code string, fenced bool) {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return strings.TrimSpace(text), false
}
