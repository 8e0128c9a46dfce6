package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{
			name:    "bare object",
			content: `{"a": 1}`,
			want:    `{"a": 1}`,
		},
		{
			name:    "object wrapped in prose",
			content: "Here is the routing decision:\n{\"a\": 1}\nHope that helps!",
			want:    `{"a": 1}`,
		},
		{
			name:    "markdown fenced object",
			content: "```json\n{\"a\": {\"b\": 2}}\n```",
			want:    `{"a": {"b": 2}}`,
		},
		{
			name:    "braces inside strings are ignored",
			content: `{"text": "literal } brace and \" quote", "ok": true}`,
			want:    `{"text": "literal } brace and \" quote", "ok": true}`,
		},
		{
			name:    "outermost object wins over nested",
			content: `{"outer": {"inner": 1}} trailing {"second": 2}`,
			want:    `{"outer": {"inner": 1}}`,
		},
		{
			name:    "no object",
			content: "sorry, I cannot answer that",
			wantErr: true,
		},
		{
			name:    "unbalanced object",
			content: `{"a": {"b": 1}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
