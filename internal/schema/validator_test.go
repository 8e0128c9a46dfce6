package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsh-labs/chancery/internal/common"
	"github.com/vsh-labs/chancery/internal/model"
)

const testSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["schema_version", "request_id", "created_at", "routing"],
	"properties": {
		"schema_version": {"type": "string"},
		"request_id": {"type": "string", "pattern": "^REQ-"},
		"created_at": {"type": "string"},
		"routing": {
			"type": "object",
			"required": ["mode", "final_recommendation"],
			"properties": {
				"mode": {"enum": ["auto_route_allowed", "review_required"]},
				"final_recommendation": {
					"type": "object",
					"properties": {
						"confidence": {"type": "number", "minimum": 0, "maximum": 1}
					}
				}
			}
		}
	}
}`

func writeSchema(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decision.schema.json")
	require.NoError(t, os.WriteFile(path, []byte(testSchema), 0o600))
	return path
}

func testRecord() *model.DecisionRecord {
	return &model.DecisionRecord{
		SchemaVersion: "1.0",
		RequestID:     "REQ-schema-test",
		CreatedAt:     "2026-03-01T09:00:00Z",
		Routing: model.RoutingInfo{
			Mode: model.RecordModeReviewRequired,
			Suggestions: []model.Suggestion{
				{DepartmentID: "FIN_BUDGET", DepartmentName: "Бюджетный отдел", Confidence: 0.8},
			},
			FinalRecommendation: model.FinalRecommendation{
				DepartmentIDs: []string{"FIN_BUDGET"},
				Confidence:    0.8,
			},
			ReviewReasons: []string{},
		},
	}
}

func testCatalog() *model.Catalog {
	return &model.Catalog{
		Departments: []model.Department{
			{ID: "FIN_BUDGET", Name: "Бюджетный отдел"},
		},
	}
}

func TestValidator(t *testing.T) {
	validator, err := NewValidator(writeSchema(t))
	require.NoError(t, err)

	t.Run("conforming record passes", func(t *testing.T) {
		assert.NoError(t, validator.Validate(testRecord(), testCatalog()))
	})

	t.Run("schema violation is fatal", func(t *testing.T) {
		record := testRecord()
		record.Routing.Mode = "maybe_later"

		err := validator.Validate(record, testCatalog())
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrSchemaValidation)
	})

	t.Run("confidence out of range fails", func(t *testing.T) {
		record := testRecord()
		record.Routing.FinalRecommendation.Confidence = 1.5

		err := validator.Validate(record, testCatalog())
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrSchemaValidation)
	})

	t.Run("unknown suggestion department fails", func(t *testing.T) {
		record := testRecord()
		record.Routing.Suggestions[0].DepartmentID = "GHOST"

		err := validator.Validate(record, testCatalog())
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrUnknownDepartment)
	})

	t.Run("unknown final department fails", func(t *testing.T) {
		record := testRecord()
		record.Routing.FinalRecommendation.DepartmentIDs = []string{"GHOST"}

		err := validator.Validate(record, testCatalog())
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrUnknownDepartment)
	})
}

func TestNewValidatorBadSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type": 42}`), 0o600))

	_, err := NewValidator(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrSchemaValidation)
}
