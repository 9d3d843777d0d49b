package jsonrepair

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripLineComments(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{{
		name: "trailing comment",
		in:   "{\"a\": 1, // the score\n\"b\": 2}",
		want: "{\"a\": 1, \n\"b\": 2}",
	}, {
		name: "url inside string is untouched",
		in:   `{"url": "https://example.com/path"}`,
		want: `{"url": "https://example.com/path"}`,
	}, {
		name: "escaped quote does not end the string",
		in:   "{\"q\": \"say \\\"//hi\\\"\"} // done",
		want: "{\"q\": \"say \\\"//hi\\\"\"} ",
	}, {
		name: "comment on last line",
		in:   "{}\n// end",
		want: "{}\n",
	}, {
		name: "quote in block comment does not open a string",
		in:   "{\"a\": /* \" // */ 1, // x\n\"b\": 2}",
		want: "{\"a\": /* \" // */ 1, \n\"b\": 2}",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripLineComments(tt.in))
		})
	}
}

func TestStripBlockComments(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{{
		name: "inline block",
		in:   `{"a": /* best */ 1}`,
		want: `{"a":  1}`,
	}, {
		name: "multi-line block",
		in:   "{/*\n notes\n*/\"a\": 1}",
		want: `{"a": 1}`,
	}, {
		name: "block marker in string",
		in:   `{"glob": "/*.go"}`,
		want: `{"glob": "/*.go"}`,
	}, {
		name: "unterminated block drops rest",
		in:   `{"a": 1} /* oops`,
		want: `{"a": 1} `,
	}, {
		name: "line comment is left alone",
		in:   "{\"a\": 1} // \" /* x",
		want: "{\"a\": 1} // \" /* x",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripBlockComments(tt.in))
		})
	}
}

func TestStripTrailingCommas(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{{
		name: "object",
		in:   `{"a": 1,}`,
		want: `{"a": 1}`,
	}, {
		name: "nested with whitespace",
		in:   "{\"a\": [1, 2,\n ],\n \"b\": {\"c\": 3, },\n}",
		want: "{\"a\": [1, 2\n ],\n \"b\": {\"c\": 3 }\n}",
	}, {
		name: "comma inside string kept",
		in:   `{"t": "a, ]"}`,
		want: `{"t": "a, ]"}`,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripTrailingCommas(tt.in))
		})
	}
}

func TestEscapeControlChars(t *testing.T) {
	in := "{\"critique\": \"line one\nline\ttwo\r\x08\x0c\x01\"}"
	out := EscapeControlChars(in)
	assert.Equal(t, `{"critique": "line one\nline\ttwo\r\b\f\u0001"}`, out)

	// whitespace between tokens is not inside a string and is left alone
	assert.Equal(t, "{\n\"a\": 1\n}", EscapeControlChars("{\n\"a\": 1\n}"))

	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "line one\nline\ttwo\r\b\f\x01", v["critique"])
}

func TestRepairMixedAdversarial(t *testing.T) {
	raw := "Here is my evaluation:\n```json\n{\n" +
		"  // scores for each dimension\n" +
		"  \"scores\": {\"intentAlignment\": 0.8, \"queryCoverage\": 0.7,},\n" +
		"  /* confidence is self-reported */\n" +
		"  \"confidence\": 0.9,\n" +
		"  \"critique\": \"See https://example.com/a//b for\nthe source,\",\n" +
		"}\n```\nThanks!"

	var out struct {
		Scores     map[string]float64 `json:"scores"`
		Confidence float64            `json:"confidence"`
		Critique   string             `json:"critique"`
	}
	require.NoError(t, UnmarshalObject(raw, &out))
	assert.Equal(t, 0.8, out.Scores["intentAlignment"])
	assert.Equal(t, 0.7, out.Scores["queryCoverage"])
	assert.Equal(t, 0.9, out.Confidence)
	assert.Equal(t, "See https://example.com/a//b for\nthe source,", out.Critique)
}

func TestUnmarshalObjectErrors(t *testing.T) {
	var v map[string]any
	assert.ErrorIs(t, UnmarshalObject("no json here", &v), ErrNoJSON)
	assert.Error(t, UnmarshalObject(`{"a": }`, &v))
}

func TestExtractArray(t *testing.T) {
	text := `Claims found: [{"text": "a [bracket] in text"}, {"text": "b"}] and a trailing [1]`
	raw, err := ExtractArray(text)
	require.NoError(t, err)
	assert.Equal(t, `[{"text": "a [bracket] in text"}, {"text": "b"}]`, raw)

	var claims []map[string]string
	require.NoError(t, UnmarshalArray(text, &claims))
	assert.Len(t, claims, 2)
}

func TestExtractObjectInlineFence(t *testing.T) {
	raw, err := ExtractObject("```{\"a\": 1}```")
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, raw)
}

func TestUnmarshalObjectBracketsInComments(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{{
		name: "brace in line comment",
		in:   "{\"scores\": {\"a\": 0.8}, // trailing } here\n \"confidence\": 0.9}",
	}, {
		name: "brace in block comment",
		in:   `{"scores": {"a": 0.8} /* } */, "confidence": 0.9}`,
	}, {
		name: "opening brace and quote in comments",
		in:   "{\"scores\": {\"a\": 0.8}, /* { \" */\n// {{\n\"confidence\": 0.9,}",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Scores     map[string]float64 `json:"scores"`
				Confidence float64            `json:"confidence"`
			}
			require.NoError(t, UnmarshalObject(tt.in, &out))
			assert.Equal(t, 0.8, out.Scores["a"])
			assert.Equal(t, 0.9, out.Confidence)
		})
	}
}

func TestExtractArrayBracketInComment(t *testing.T) {
	raw, err := ExtractArray("[1, // ] not the end\n2]")
	require.NoError(t, err)
	assert.Equal(t, "[1, // ] not the end\n2]", raw)
}
