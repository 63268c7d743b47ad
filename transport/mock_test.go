package transport

import (
	"context"
	"strings"
	"testing"
)

func TestSplitTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "words and spaces",
			input: "a b",
			want:  []string{"a", " ", "b"},
		},
		{
			name:  "tags stay whole",
			input: "x<thought>y",
			want:  []string{"x", "<thought>", "y"},
		},
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitTokens(tt.input)

			if len(got) != len(tt.want) {
				t.Fatalf("SplitTokens(%q) = %q, want %q", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitTokens_Roundtrip(t *testing.T) {
	input := `Before <thought>plan</thought> <command tool="x">{"a": 1}</command>`

	if got := strings.Join(SplitTokens(input), ""); got != input {
		t.Errorf("tokens do not reassemble: %q", got)
	}
}

func TestMockTransport_ScenarioSelection(t *testing.T) {
	mock := &MockTransport{
		Scenarios: []MockScenario{
			{Keywords: []string{"sales"}, Steps: []string{"step one", "step two"}},
		},
		Fallback: []string{"fallback"},
	}

	collect := func(req TurnRequest) string {
		var b strings.Builder

		err := mock.Stream(context.Background(), req, func(chunk string) error {
			b.WriteString(chunk)

			return nil
		})
		if err != nil {
			t.Fatalf("Stream: %v", err)
		}

		return b.String()
	}

	// First round: keyword match, step 0.
	got := collect(TurnRequest{Messages: []Message{
		{Role: "user", Content: "show me SALES data"},
	}})
	if got != "step one" {
		t.Errorf("round 1 = %q", got)
	}

	// Second round: a trailing system message advances the step.
	got = collect(TurnRequest{Messages: []Message{
		{Role: "user", Content: "show me sales data"},
		{Role: "assistant", Content: "calling tool"},
		{Role: "system", Content: "tool result"},
	}})
	if got != "step two" {
		t.Errorf("round 2 = %q", got)
	}

	// No keyword match falls back.
	got = collect(TurnRequest{Messages: []Message{
		{Role: "user", Content: "weather?"},
	}})
	if got != "fallback" {
		t.Errorf("fallback = %q", got)
	}
}

func TestMockTransport_StepClamped(t *testing.T) {
	mock := &MockTransport{
		Scenarios: []MockScenario{
			{Keywords: []string{"x"}, Steps: []string{"only"}},
		},
	}

	var b strings.Builder
	err := mock.Stream(context.Background(), TurnRequest{Messages: []Message{
		{Role: "user", Content: "x"},
		{Role: "system", Content: "r1"},
		{Role: "system", Content: "r2"},
	}}, func(chunk string) error {
		b.WriteString(chunk)

		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if b.String() != "only" {
		t.Errorf("clamped step = %q", b.String())
	}
}

func TestMockTransport_OnChunkErrorStops(t *testing.T) {
	mock := &MockTransport{
		Fallback: []string{"one two three"},
	}

	calls := 0
	err := mock.Stream(context.Background(), TurnRequest{}, func(chunk string) error {
		calls++

		return context.Canceled
	})

	if err != context.Canceled {
		t.Errorf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("onChunk called %d times after error", calls)
	}
}
