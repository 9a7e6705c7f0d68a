package reconciliation

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	codeBlockPattern = regexp.MustCompile("(?s)```(\\w*)\\s*\\n(.+?)\\n```")
	trailingComma    = regexp.MustCompile(`,\s*([}\]])`)
)

// decodeReply pulls a JSON object out of an LLM reply. Models are asked to
// put the object on the last line, so that is tried first; then a fenced
// code block; then the first balanced object anywhere in the text. Each
// candidate is retried once with trailing commas removed, and decodes into
// a fresh T so a failed candidate leaves nothing behind. It reports whether
// any candidate decoded.
func decodeReply[T any](reply string) (T, bool) {
	for _, candidate := range replyCandidates(reply) {
		if v, ok := decodeObject[T](candidate); ok {
			return v, true
		}
		if repaired := trailingComma.ReplaceAllString(candidate, "$1"); repaired != candidate {
			if v, ok := decodeObject[T](repaired); ok {
				return v, true
			}
		}
	}
	var zero T
	return zero, false
}

func replyCandidates(reply string) []string {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil
	}

	var out []string
	lines := strings.Split(reply, "\n")
	out = append(out, strings.TrimSpace(lines[len(lines)-1]))

	for _, match := range codeBlockPattern.FindAllStringSubmatch(reply, -1) {
		lang := strings.ToLower(match[1])
		if lang != "" && lang != "json" {
			continue
		}
		out = append(out, strings.TrimSpace(match[2]))
	}

	if start := strings.Index(reply, "{"); start >= 0 {
		if obj := matchingBrace(reply[start:]); obj != "" {
			out = append(out, obj)
		}
	}
	return out
}

// decodeObject only accepts JSON objects; a bare null or scalar on the last
// line would otherwise decode into a zero struct.
func decodeObject[T any](s string) (T, bool) {
	var v T
	if !strings.HasPrefix(s, "{") {
		return v, false
	}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

// matchingBrace returns the prefix of s up to the brace closing s[0].
func matchingBrace(s string) string {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

// looseString accepts a JSON string or number, so a gl_code of 4010 and
// "4010" decode the same.
type looseString string

func (l *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = looseString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*l = looseString(n.String())
	return nil
}

// looseFloat accepts a JSON number or a numeric string, with an optional %
// suffix ("18%").
type looseFloat float64

func (l *looseFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		if s == "" {
			*l = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*l = looseFloat(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*l = looseFloat(f)
	return nil
}

// looseStrings accepts a list of strings or a single string. An empty
// string decodes to an empty list.
type looseStrings []string

func (l *looseStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = looseStrings{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*l = looseStrings{}
			return nil
		}
		*l = looseStrings{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*l = looseStrings(list)
	return nil
}
