package prompt

import "testing"

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]any
		want     string
	}{
		{
			name:     "substitutes variables",
			template: "stop with {{.pause}} now",
			vars:     map[string]any{"pause": "<<<WAIT>>>"},
			want:     "stop with <<<WAIT>>> now",
		},
		{
			name:     "no vars returns template",
			template: "plain",
			vars:     nil,
			want:     "plain",
		},
		{
			name:     "unknown placeholder left in place",
			template: "keep {{.missing}}",
			vars:     map[string]any{"other": 1},
			want:     "keep {{.missing}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.template, tt.vars); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBulletList_SortedAndFormatted(t *testing.T) {
	got := BulletList(map[string]string{
		"b_tool": "second",
		"a_tool": "first",
	})

	want := "- **a_tool**: first\n- **b_tool**: second\n"
	if got != want {
		t.Errorf("BulletList() = %q, want %q", got, want)
	}
}
