// Package jsonrepair turns loosely formatted model output into parseable JSON.
//
// Judges routinely wrap JSON in markdown fences, annotate it with comments,
// leave trailing commas, or emit raw newlines inside string values. Each of
// those is handled by a separate stage so that stages can be tested against
// adversarial input in isolation:
//
//	ExtractObject / ExtractArray (comment aware) → StripLineComments → StripBlockComments →
//	StripTrailingCommas → EscapeControlChars → json.Unmarshal
//
// Every stage tracks string-literal state, so "//" inside a URL or a comma
// inside a quoted sentence is never touched.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrNoJSON = errors.New("no JSON value found in response")

// Stage is one text transform of the repair pipeline.
type Stage func(string) string

// Stages is the fixed order applied by Repair.
var Stages = []Stage{
	StripLineComments,
	StripBlockComments,
	StripTrailingCommas,
	EscapeControlChars,
}

// Repair runs every stage in order.
func Repair(s string) string {
	for _, stage := range Stages {
		s = stage(s)
	}
	return s
}

// UnmarshalObject extracts the first JSON object from text, repairs it and
// decodes it into v. Clean input is decoded without repair.
func UnmarshalObject(text string, v any) error {
	raw, err := ExtractObject(text)
	if err != nil {
		return err
	}
	return decode(raw, v)
}

// UnmarshalArray is UnmarshalObject for the first JSON array in text.
func UnmarshalArray(text string, v any) error {
	raw, err := ExtractArray(text)
	if err != nil {
		return err
	}
	return decode(raw, v)
}

func decode(raw string, v any) error {
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(Repair(raw)), v); err != nil {
		return fmt.Errorf("failed to parse repaired JSON: %w", err)
	}
	return nil
}

// scanner walks JSON-ish text tracking whether the cursor is inside a
// double-quoted string literal.
type scanner struct {
	inString bool
	escaped  bool
}

// step updates the state for byte c, which is assumed to be emitted.
func (sc *scanner) step(c byte) {
	if sc.inString {
		switch {
		case sc.escaped:
			sc.escaped = false
		case c == '\\':
			sc.escaped = true
		case c == '"':
			sc.inString = false
		}
		return
	}
	if c == '"' {
		sc.inString = true
	}
}

// StripLineComments removes // comments that occur outside string literals.
// The terminating newline is kept.
func StripLineComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var sc scanner
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !sc.inString && c == '/' && i+1 < len(s) && s[i+1] == '/' {
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
			continue
		}
		if !sc.inString && c == '/' && i+1 < len(s) && s[i+1] == '*' {
			// block comments are left for StripBlockComments, quotes and all
			n := commentEnd(s, i)
			b.WriteString(s[i:n])
			i = n - 1
			continue
		}
		sc.step(c)
		b.WriteByte(c)
	}
	return b.String()
}

// StripBlockComments removes /* */ comments outside string literals. An
// unterminated comment swallows the rest of the input.
func StripBlockComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var sc scanner
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !sc.inString && c == '/' && i+1 < len(s) && s[i+1] == '*' {
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				break
			}
			i += 2 + end + 1
			continue
		}
		if !sc.inString && c == '/' && i+1 < len(s) && s[i+1] == '/' {
			n := lineEnd(s, i)
			b.WriteString(s[i:n])
			i = n - 1
			continue
		}
		sc.step(c)
		b.WriteByte(c)
	}
	return b.String()
}

// StripTrailingCommas drops commas that are followed only by whitespace and
// a closing } or ].
func StripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var sc scanner
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !sc.inString && c == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		sc.step(c)
		b.WriteByte(c)
	}
	return b.String()
}

// EscapeControlChars escapes raw control characters inside string literals.
func EscapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	var sc scanner
	for i := 0; i < len(s); i++ {
		c := s[i]
		if sc.inString && !sc.escaped && c < 0x20 {
			switch c {
			case '\n':
				b.WriteString(`\n`)
			case '\t':
				b.WriteString(`\t`)
			case '\r':
				b.WriteString(`\r`)
			case '\b':
				b.WriteString(`\b`)
			case '\f':
				b.WriteString(`\f`)
			default:
				fmt.Fprintf(&b, `\u%04x`, c)
			}
			continue
		}
		sc.step(c)
		b.WriteByte(c)
	}
	return b.String()
}

// commentEnd returns the index just past the */ closing the block comment
// at i, or len(s) when it is unterminated.
func commentEnd(s string, i int) int {
	end := strings.Index(s[i+2:], "*/")
	if end < 0 {
		return len(s)
	}
	return i + 2 + end + 2
}

// lineEnd returns the index of the newline ending the line at i, or len(s).
func lineEnd(s string, i int) int {
	if nl := strings.IndexByte(s[i:], '\n'); nl >= 0 {
		return i + nl
	}
	return len(s)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
