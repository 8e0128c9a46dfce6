// Package schema validates assembled decision records against the external
// JSON Schema contract and the routing catalog.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vsh-labs/chancery/internal/common"
	"github.com/vsh-labs/chancery/internal/model"
)

// Validator checks decision records before they leave the process. Both
// failure classes are fatal for the run: a record that violates the schema
// or references an unknown department must never reach a consumer.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the JSON Schema at path.
func NewValidator(path string) (*Validator, error) {
	compiled, err := jsonschema.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to compile schema %s: %v", common.ErrSchemaValidation, path, err)
	}
	return &Validator{schema: compiled}, nil
}

// Validate checks the record against the schema and verifies that every
// department reference resolves against the catalog.
func (v *Validator) Validate(record *model.DecisionRecord, catalog *model.Catalog) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal record: %v", common.ErrSchemaValidation, err)
	}

	var document any
	if err := json.Unmarshal(payload, &document); err != nil {
		return fmt.Errorf("%w: record is not valid JSON: %v", common.ErrSchemaValidation, err)
	}

	if err := v.schema.Validate(document); err != nil {
		return fmt.Errorf("%w: %v", common.ErrSchemaValidation, err)
	}

	return checkDepartmentRefs(record, catalog)
}

// checkDepartmentRefs verifies every department id in the routing section
// against the catalog.
func checkDepartmentRefs(record *model.DecisionRecord, catalog *model.Catalog) error {
	for _, suggestion := range record.Routing.Suggestions {
		if catalog.Department(suggestion.DepartmentID) == nil {
			return fmt.Errorf("%w: suggestion references %q", common.ErrUnknownDepartment, suggestion.DepartmentID)
		}
	}
	for _, id := range record.Routing.FinalRecommendation.DepartmentIDs {
		if catalog.Department(id) == nil {
			return fmt.Errorf("%w: final recommendation references %q", common.ErrUnknownDepartment, id)
		}
	}
	return nil
}
