package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Local models emit tool calls as text rather than using a native
// tool_calls field, in a few common shapes:
//   - Tagged: <tool_call>{"name": ..., "arguments": {...}}</tool_call>
//   - Raw JSON object or array of objects
//   - JSON buried in surrounding prose
//
// The extraction ladder tries each shape in turn, running every
// candidate through jsonrepair first since model output is frequently
// almost-JSON (trailing commas, single quotes, unquoted keys).

var toolCallTagRE = regexp.MustCompile(`(?s)<tool_call>(.*?)</tool_call>`)

// ExtractToolCalls parses tool calls out of model text. Returns nil
// when the text contains none. Extracted calls are structurally valid
// (non-empty name, object arguments) but not checked against any
// registry; the dispatcher drops unknown names.
func ExtractToolCalls(text string) []ToolCall {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	objects := taggedObjects(text)

	if len(objects) == 0 {
		objects = wholeTextObjects(text)
	}

	if len(objects) == 0 {
		objects = scannedObjects(text)
	}

	var calls []ToolCall
	for _, obj := range objects {
		name, _ := obj["name"].(string)
		if name == "" {
			continue
		}
		args, _ := obj["arguments"].(map[string]any)
		if args == nil {
			args = map[string]any{}
		}
		calls = append(calls, NewToolCall("", name, args))
	}
	return calls
}

// taggedObjects pulls objects out of <tool_call> tags.
func taggedObjects(text string) []map[string]any {
	var objects []map[string]any
	for _, m := range toolCallTagRE.FindAllStringSubmatch(text, -1) {
		objects = append(objects, repairDecode(m[1])...)
	}
	return objects
}

// wholeTextObjects treats the entire text as one JSON value, for
// models that answer with nothing but the call itself.
func wholeTextObjects(text string) []map[string]any {
	if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		return nil
	}
	return named(repairDecode(text))
}

// scannedObjects walks the text for brace-balanced candidates that
// mention a "name" key, for calls buried in prose.
func scannedObjects(text string) []map[string]any {
	var objects []map[string]any
	for _, candidate := range balancedObjects(text) {
		if !strings.Contains(candidate, `"name"`) {
			continue
		}
		objects = append(objects, named(repairDecode(candidate))...)
	}
	return objects
}

// named filters decoded objects down to those carrying a "name" key.
func named(objects []map[string]any) []map[string]any {
	var out []map[string]any
	for _, obj := range objects {
		if _, ok := obj["name"]; ok {
			out = append(out, obj)
		}
	}
	return out
}

// repairDecode runs jsonrepair over a candidate and decodes the result.
// A repaired object yields one entry; a repaired array yields its
// object elements. Anything unrepairable yields nothing.
func repairDecode(candidate string) []map[string]any {
	repaired, err := jsonrepair.JSONRepair(strings.TrimSpace(candidate))
	if err != nil {
		return nil
	}

	var value any
	if err := json.Unmarshal([]byte(repaired), &value); err != nil {
		return nil
	}

	switch v := value.(type) {
	case map[string]any:
		return []map[string]any{v}
	case []any:
		var out []map[string]any
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, obj)
			}
		}
		return out
	default:
		return nil
	}
}

// balancedObjects returns every top-level brace-balanced {...} span in
// the text. The scan counts braces without string awareness, which is
// good enough for model output.
func balancedObjects(text string) []string {
	var spans []string
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		depth := 0
		end := -1
		for j := i; j < len(text); j++ {
			switch text[j] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					end = j
				}
			}
			if end != -1 {
				break
			}
		}
		if end == -1 {
			break
		}
		spans = append(spans, text[i:end+1])
		i = end
	}
	return spans
}

var extraNewlinesRE = regexp.MustCompile(`\n{3,}`)

// ScrubToolCalls removes tool-call artifacts from text the user will
// see: tagged blocks and bare JSON objects carrying a "name" key. The
// surrounding prose is kept.
func ScrubToolCalls(text string) string {
	text = toolCallTagRE.ReplaceAllString(text, "")

	var b strings.Builder
	for i := 0; i < len(text); i++ {
		if text[i] == '{' && looksLikeToolJSON(text[i:]) {
			if span := balancedSpanAt(text, i); span > 0 {
				i += span - 1
				continue
			}
		}
		b.WriteByte(text[i])
	}

	cleaned := extraNewlinesRE.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(cleaned)
}

// looksLikeToolJSON checks whether a brace opens a tool-call object,
// peeking at a short window so ordinary prose braces survive.
func looksLikeToolJSON(tail string) bool {
	window := tail
	if len(window) > 50 {
		window = window[:50]
	}
	return strings.Contains(window, `"name"`)
}

// balancedSpanAt returns the length of the balanced object starting at
// start, or 0 if the braces never close.
func balancedSpanAt(text string, start int) int {
	depth := 0
	for j := start; j < len(text); j++ {
		switch text[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j - start + 1
			}
		}
	}
	return 0
}
