package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allowed(ids ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func TestParseRouteResponse(t *testing.T) {
	ids := allowed("FIN_BUDGET", "LEGAL")

	t.Run("complete valid response", func(t *testing.T) {
		raw := `{
			"primary_department_id": "FIN_BUDGET",
			"secondary_department_ids": ["LEGAL"],
			"confidence": 0.82,
			"needs_review": true,
			"rationale": ["бюджетная тематика"],
			"questions": ["уточнить сумму"]
		}`
		resp, err := ParseRouteResponse(raw, ids)
		require.NoError(t, err)

		assert.Equal(t, "FIN_BUDGET", resp.PrimaryDepartmentID)
		assert.Equal(t, []string{"LEGAL"}, resp.SecondaryDepartmentIDs)
		assert.InDelta(t, 0.82, resp.Confidence, 1e-9)
		assert.True(t, resp.NeedsReview)
		assert.False(t, resp.OutOfScope())
	})

	t.Run("response wrapped in prose still parses", func(t *testing.T) {
		raw := "Routing decision:\n{\"primary_department_id\": \"LEGAL\", \"confidence\": 0.5}"
		resp, err := ParseRouteResponse(raw, ids)
		require.NoError(t, err)
		assert.Equal(t, "LEGAL", resp.PrimaryDepartmentID)
	})

	t.Run("optional fields may be absent", func(t *testing.T) {
		resp, err := ParseRouteResponse(`{"primary_department_id": "LEGAL", "confidence": 0.4}`, ids)
		require.NoError(t, err)
		assert.Empty(t, resp.SecondaryDepartmentIDs)
		assert.False(t, resp.NeedsReview)
	})

	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{
			name:    "missing primary",
			raw:     `{"confidence": 0.5}`,
			wantErr: "primary_department_id is missing",
		},
		{
			name:    "primary not a string",
			raw:     `{"primary_department_id": 7, "confidence": 0.5}`,
			wantErr: "primary_department_id must be a string",
		},
		{
			name:    "empty primary",
			raw:     `{"primary_department_id": "", "confidence": 0.5}`,
			wantErr: "primary_department_id is empty",
		},
		{
			name:    "unknown primary",
			raw:     `{"primary_department_id": "HR", "confidence": 0.5}`,
			wantErr: `unknown department id "HR" in primary_department_id`,
		},
		{
			name:    "unknown secondary",
			raw:     `{"primary_department_id": "LEGAL", "secondary_department_ids": ["HR"], "confidence": 0.5}`,
			wantErr: `unknown department id "HR" in secondary_department_ids`,
		},
		{
			name:    "missing confidence",
			raw:     `{"primary_department_id": "LEGAL"}`,
			wantErr: "confidence is missing",
		},
		{
			name:    "confidence not a number",
			raw:     `{"primary_department_id": "LEGAL", "confidence": "high"}`,
			wantErr: "confidence must be a number",
		},
		{
			name:    "rationale not a list",
			raw:     `{"primary_department_id": "LEGAL", "confidence": 0.5, "rationale": "ok"}`,
			wantErr: "rationale must be a list of strings",
		},
		{
			name:    "not an object",
			raw:     `[1, 2, 3]`,
			wantErr: "no JSON object found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRouteResponse(tt.raw, ids)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOutOfScopeSentinel(t *testing.T) {
	ids := allowed("FIN_BUDGET")

	tests := []struct {
		name string
		id   string
		want bool
	}{
		{name: "exact literal", id: "OUT_OF_SCOPE", want: true},
		{name: "lowercase", id: "out_of_scope", want: true},
		{name: "spaces for underscores", id: "OUT OF SCOPE", want: true},
		{name: "surrounding whitespace", id: "  OUT_OF_SCOPE  ", want: true},
		{name: "regular department", id: "FIN_BUDGET", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"primary_department_id": "` + tt.id + `", "confidence": 0.5}`
			resp, err := ParseRouteResponse(raw, ids)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.OutOfScope())
		})
	}
}
