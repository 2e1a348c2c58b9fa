package command

import (
	"strings"

	"github.com/kballard/go-shellquote"
)

// Tokenize splits a command line into arguments with POSIX shell quoting.
//
// Words are separated by whitespace. Single or double quotes group a word and
// may be empty (`SET k ""` yields three tokens). Outside quotes a backslash
// escapes the next rune; inside double quotes it only escapes `"`, `\`, `$`
// and a backquote, and is kept literally before anything else; inside single
// quotes it is always literal. A line with an unterminated quote or a
// trailing backslash is split on whitespace only, quotes kept as literal
// text.
func Tokenize(line string) []string {
	parts, err := shellquote.Split(line)
	if err != nil {
		return strings.Fields(line)
	}
	if len(parts) == 0 {
		return nil
	}
	return parts
}
