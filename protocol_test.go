package agentloop

import "testing"

func TestStripPause(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trailing token", input: "answer<<<WAIT>>>", want: "answer"},
		{name: "token with whitespace", input: "  answer <<<WAIT>>> ", want: "answer"},
		{name: "multiple tokens", input: "<<<WAIT>>>a<<<WAIT>>>b", want: "ab"},
		{name: "no token", input: "plain", want: "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripPause(tt.input); got != tt.want {
				t.Errorf("StripPause(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestContainsPause(t *testing.T) {
	if !ContainsPause("x<<<WAIT>>>") {
		t.Error("full token not detected")
	}
	if ContainsPause("x<<<WAI") {
		t.Error("partial token detected")
	}
}

func TestTrimCodeFence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "json fence", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", input: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "no fence", input: `{"a":1}`, want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trimCodeFence(tt.input); got != tt.want {
				t.Errorf("trimCodeFence(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
