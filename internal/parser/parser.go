// Package parser turns raw gateway log text into classified events.
//
// It strips terminal escape sequences, extracts tracing-style key=value
// fields and leading timestamps, and recognizes the six marker phrases the
// gateway emits around request reduction.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"
)

// StdinPath is the input path that selects standard input.
const StdinPath = "-"

// ErrInputNotFound is returned when the input file does not exist.
var ErrInputNotFound = errors.New("log file not found")

// RawLine is one input line with its 1-based position in the input.
type RawLine struct {
	Number int
	Text   string
}

// Parser reads line-oriented log input.
type Parser struct {
	stdin io.Reader
}

// New creates a Parser. stdin is read when the input path is StdinPath; it
// may be nil when standard input is never used.
func New(stdin io.Reader) *Parser {
	if stdin == nil {
		stdin = os.Stdin
	}
	return &Parser{stdin: stdin}
}

// ParseFile reads every line from path, or from stdin when path is "-".
// A missing file yields an error wrapping ErrInputNotFound.
func (p *Parser) ParseFile(path string) ([]RawLine, error) {
	if path == StdinPath {
		return p.Parse(p.stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	lines, err := p.Parse(f)
	if err != nil {
		return lines, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}

// Parse reads all lines from r. Empty lines are kept so that line numbers and
// the total line count match the source. Invalid UTF-8 is replaced with
// U+FFFD and there is no line length limit. Lines break on "\n", "\r\n",
// a lone "\r", and the other Unicode line boundaries (see isLineBreak); a
// trailing terminator does not start an extra empty line.
func (p *Parser) Parse(r io.Reader) ([]RawLine, error) {
	var lines []RawLine
	br := bufio.NewReaderSize(r, 256*1024)

	lineNum := 0
	for {
		chunk, err := br.ReadString('\n')
		if len(chunk) > 0 {
			for _, text := range splitLines(strings.ToValidUTF8(chunk, "\uFFFD")) {
				lineNum++
				lines = append(lines, RawLine{Number: lineNum, Text: text})
			}
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return lines, fmt.Errorf("after line %d: %w", lineNum, err)
		}
	}
}

// splitLines splits s at line boundaries, dropping the terminators. "\r\n"
// counts as one boundary. A chunk from ReadString ends in "\n" unless it is
// the last one, so a "\r\n" pair never spans two chunks.
func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isLineBreak(r) {
			i += size
			continue
		}
		out = append(out, s[start:i])
		i += size
		if r == '\r' && i < len(s) && s[i] == '\n' {
			i++
		}
		start = i
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
		return true
	}
	return false
}

// Lines wraps plain strings as RawLines numbered from 1.
func Lines(texts ...string) []RawLine {
	lines := make([]RawLine, len(texts))
	for i, t := range texts {
		lines[i] = RawLine{Number: i + 1, Text: t}
	}
	return lines
}
