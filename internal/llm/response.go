package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OutOfScopeSentinel is the literal the reasoning service returns when the
// letter belongs to none of the offered departments.
const OutOfScopeSentinel = "OUT_OF_SCOPE"

// RouteResponse is the validated reply of the reasoning service.
type RouteResponse struct {
	PrimaryDepartmentID    string   `json:"primary_department_id"`
	SecondaryDepartmentIDs []string `json:"secondary_department_ids"`
	Confidence             float64  `json:"confidence"`
	NeedsReview            bool     `json:"needs_review"`
	Rationale              []string `json:"rationale"`
	Questions              []string `json:"questions"`
}

// OutOfScope reports whether the service chose the out-of-scope sentinel.
func (r *RouteResponse) OutOfScope() bool {
	return isSentinel(r.PrimaryDepartmentID)
}

func isSentinel(id string) bool {
	normalized := strings.ReplaceAll(strings.TrimSpace(id), " ", "_")
	return strings.EqualFold(normalized, OutOfScopeSentinel)
}

// ParseRouteResponse extracts the JSON object from the raw response and
// validates it against the routing contract. Validation errors name the
// offending field so the repair prompt can quote them back to the service.
func ParseRouteResponse(raw string, allowedIDs map[string]struct{}) (*RouteResponse, error) {
	object, err := ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(object), &fields); err != nil {
		return nil, fmt.Errorf("response is not a valid JSON object: %w", err)
	}

	rawPrimary, ok := fields["primary_department_id"]
	if !ok {
		return nil, fmt.Errorf("primary_department_id is missing")
	}

	var resp RouteResponse
	if err := json.Unmarshal(rawPrimary, &resp.PrimaryDepartmentID); err != nil {
		return nil, fmt.Errorf("primary_department_id must be a string")
	}
	if resp.PrimaryDepartmentID == "" {
		return nil, fmt.Errorf("primary_department_id is empty")
	}
	if !resp.OutOfScope() {
		if _, known := allowedIDs[resp.PrimaryDepartmentID]; !known {
			return nil, fmt.Errorf("unknown department id %q in primary_department_id", resp.PrimaryDepartmentID)
		}
	}

	if rawSecondary, ok := fields["secondary_department_ids"]; ok {
		if err := json.Unmarshal(rawSecondary, &resp.SecondaryDepartmentIDs); err != nil {
			return nil, fmt.Errorf("secondary_department_ids must be a list of strings")
		}
		for _, id := range resp.SecondaryDepartmentIDs {
			if _, known := allowedIDs[id]; !known {
				return nil, fmt.Errorf("unknown department id %q in secondary_department_ids", id)
			}
		}
	}

	rawConfidence, ok := fields["confidence"]
	if !ok {
		return nil, fmt.Errorf("confidence is missing")
	}
	if err := json.Unmarshal(rawConfidence, &resp.Confidence); err != nil {
		return nil, fmt.Errorf("confidence must be a number")
	}

	if rawReview, ok := fields["needs_review"]; ok {
		if err := json.Unmarshal(rawReview, &resp.NeedsReview); err != nil {
			return nil, fmt.Errorf("needs_review must be a boolean")
		}
	}

	if rawRationale, ok := fields["rationale"]; ok {
		if err := json.Unmarshal(rawRationale, &resp.Rationale); err != nil {
			return nil, fmt.Errorf("rationale must be a list of strings")
		}
	}

	if rawQuestions, ok := fields["questions"]; ok {
		if err := json.Unmarshal(rawQuestions, &resp.Questions); err != nil {
			return nil, fmt.Errorf("questions must be a list of strings")
		}
	}

	return &resp, nil
}
