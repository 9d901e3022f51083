package llm

import (
	"strings"
	"testing"
)

func TestExtractToolCalls(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantCount int
		wantName  string // first tool name if wantCount > 0
	}{
		{
			name:      "empty content",
			content:   "",
			wantCount: 0,
		},
		{
			name:      "whitespace only",
			content:   "   \n\t  ",
			wantCount: 0,
		},
		{
			name:      "plain text no JSON",
			content:   "The desk lamp is already on.",
			wantCount: 0,
		},
		{
			name:      "single tool call object",
			content:   `{"name": "control_device", "arguments": {"device_name": "Desk Lamp", "on": true}}`,
			wantCount: 1,
			wantName:  "control_device",
		},
		{
			name:      "array of tool calls",
			content:   `[{"name": "control_room", "arguments": {"room_name": "Kitchen", "on": true}}, {"name": "get_all_devices", "arguments": {}}]`,
			wantCount: 2,
			wantName:  "control_room",
		},
		{
			name:      "tagged tool call",
			content:   `<tool_call>{"name": "control_shade", "arguments": {"device_name": "Bedroom Blind", "action": "close"}}</tool_call>`,
			wantCount: 1,
			wantName:  "control_shade",
		},
		{
			name:      "tagged with preamble and epilogue",
			content:   "Sure, closing them now. <tool_call>{\"name\": \"control_room_shades\", \"arguments\": {\"room_name\": \"Bedroom\", \"action\": \"close\"}}</tool_call> Done!",
			wantCount: 1,
			wantName:  "control_room_shades",
		},
		{
			name:      "multiple tagged calls",
			content:   `<tool_call>{"name": "control_device", "arguments": {"device_name": "A", "on": true}}</tool_call><tool_call>{"name": "control_device", "arguments": {"device_name": "B", "on": true}}</tool_call>`,
			wantCount: 2,
			wantName:  "control_device",
		},
		{
			name:      "buried in prose",
			content:   `I'll turn that on for you: {"name": "control_device", "arguments": {"device_name": "Desk Lamp", "on": true}} give me a second.`,
			wantCount: 1,
			wantName:  "control_device",
		},
		{
			name:      "trailing comma repaired",
			content:   `{"name": "control_device", "arguments": {"device_name": "Desk Lamp", "on": true,},}`,
			wantCount: 1,
			wantName:  "control_device",
		},
		{
			name:      "single quotes repaired",
			content:   `{'name': 'get_all_rooms', 'arguments': {}}`,
			wantCount: 1,
			wantName:  "get_all_rooms",
		},
		{
			name:      "tagged without closing tag",
			content:   `<tool_call>{"name": "get_device_status", "arguments": {"device_name": "Desk Lamp"}}`,
			wantCount: 1,
			wantName:  "get_device_status",
		},
		{
			name:      "missing name key",
			content:   `{"tool": "control_device", "arguments": {}}`,
			wantCount: 0,
		},
		{
			name:      "nested arguments",
			content:   `{"name": "control_device", "arguments": {"device_name": "Strip", "color": {"hue": 120, "saturation": 80}}}`,
			wantCount: 1,
			wantName:  "control_device",
		},
		{
			name:      "prose braces without name key",
			content:   "Use {brackets} like {this} for templates.",
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := ExtractToolCalls(tt.content)
			if len(calls) != tt.wantCount {
				t.Fatalf("ExtractToolCalls() returned %d calls, want %d: %+v", len(calls), tt.wantCount, calls)
			}
			if tt.wantCount > 0 {
				if calls[0].Function.Name != tt.wantName {
					t.Errorf("first call name = %q, want %q", calls[0].Function.Name, tt.wantName)
				}
				if calls[0].Function.Arguments == nil {
					t.Error("arguments is nil, want at least an empty map")
				}
			}
		})
	}
}

func TestExtractToolCallsArguments(t *testing.T) {
	calls := ExtractToolCalls(`{"name": "control_device", "arguments": {"device_name": "Desk Lamp", "brightness": 80}}`)
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	args := calls[0].Function.Arguments
	if args["device_name"] != "Desk Lamp" {
		t.Errorf("device_name = %v", args["device_name"])
	}
	if args["brightness"] != float64(80) {
		t.Errorf("brightness = %v (%T), want 80", args["brightness"], args["brightness"])
	}
}

func TestScrubToolCalls(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "plain text untouched",
			content: "The desk lamp is on.",
			want:    "The desk lamp is on.",
		},
		{
			name:    "tagged block removed",
			content: "Turning it on. <tool_call>{\"name\": \"control_device\", \"arguments\": {}}</tool_call> One moment.",
			want:    "Turning it on.  One moment.",
		},
		{
			name:    "bare tool JSON removed",
			content: `Done! {"name": "control_device", "arguments": {"on": true}}`,
			want:    "Done!",
		},
		{
			name:    "nested braces removed whole",
			content: `{"name": "control_device", "arguments": {"color": {"hue": 10}}} All set.`,
			want:    "All set.",
		},
		{
			name:    "prose braces survive",
			content: "Sets like {1, 2, 3} stay.",
			want:    "Sets like {1, 2, 3} stay.",
		},
		{
			name:    "whitespace collapsed",
			content: "First line.\n\n\n\n<tool_call>{\"name\": \"x\"}</tool_call>\n\nSecond line.",
			want:    "First line.\n\nSecond line.",
		},
		{
			name:    "only a tool call leaves empty",
			content: `{"name": "control_device", "arguments": {}}`,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScrubToolCalls(tt.content); got != tt.want {
				t.Errorf("ScrubToolCalls() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBalancedObjects(t *testing.T) {
	spans := balancedObjects(`before {"a": {"b": 1}} middle {"c": 2} after`)
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2: %v", len(spans), spans)
	}
	if spans[0] != `{"a": {"b": 1}}` {
		t.Errorf("first span = %q", spans[0])
	}
	if spans[1] != `{"c": 2}` {
		t.Errorf("second span = %q", spans[1])
	}

	if spans := balancedObjects("unclosed { brace"); len(spans) != 0 {
		t.Errorf("unclosed brace produced spans: %v", spans)
	}
	if !strings.Contains(balancedObjects(`{"x": 1}`)[0], "x") {
		t.Error("single object not captured")
	}
}
