package jsonrepair

import (
	"strings"
)

// ExtractObject returns the first balanced {...} value in text, looking
// inside a ```json fence first when one is present. If the object is never
// closed, everything from the first '{' is returned so that later stages
// and the decoder report the real problem.
func ExtractObject(text string) (string, error) {
	return extract(text, '{', '}')
}

// ExtractArray returns the first balanced [...] value in text.
func ExtractArray(text string) (string, error) {
	return extract(text, '[', ']')
}

func extract(text string, open, close byte) (string, error) {
	body := stripFence(text)

	start := strings.IndexByte(body, open)
	if start < 0 {
		return "", ErrNoJSON
	}

	var sc scanner
	depth := 0
	for i := start; i < len(body); i++ {
		c := body[i]
		if !sc.inString && c == '/' && i+1 < len(body) {
			// comments are kept for the strip stages but their brackets don't count
			switch body[i+1] {
			case '/':
				for i < len(body) && body[i] != '\n' {
					i++
				}
				continue
			case '*':
				end := strings.Index(body[i+2:], "*/")
				if end < 0 {
					return strings.TrimSpace(body[start:]), nil
				}
				i += 2 + end + 1
				continue
			}
		}
		if !sc.inString {
			switch c {
			case open:
				depth++
			case close:
				depth--
				if depth == 0 {
					return body[start : i+1], nil
				}
			}
		}
		sc.step(c)
	}

	return strings.TrimSpace(body[start:]), nil
}

// stripFence returns the body of the first ``` fenced block, or text
// unchanged when there is none.
func stripFence(text string) string {
	open := strings.Index(text, "```")
	if open < 0 {
		return text
	}
	rest := text[open+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
		// language tag line, e.g. ```json
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		return rest[:end]
	}
	return rest
}
