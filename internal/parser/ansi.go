package parser

import (
	"regexp"
	"strings"
)

// ansiPattern matches CSI escape sequences, including the rarer ':' parameter
// separator, so color codes cannot split key=value tokens.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;:?]*[A-Za-z]`)

// StripANSI removes terminal control sequences from s. All other bytes are
// left untouched. Removal repeats until no sequence remains, so a nested
// form like "\x1b\x1b[0m[0m" cannot reassemble into a new sequence and
// StripANSI(StripANSI(s)) == StripANSI(s).
func StripANSI(s string) string {
	for strings.IndexByte(s, 0x1b) >= 0 {
		stripped := ansiPattern.ReplaceAllString(s, "")
		if len(stripped) == len(s) {
			break
		}
		s = stripped
	}
	return s
}
