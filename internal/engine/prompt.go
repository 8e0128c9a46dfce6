package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vsh-labs/chancery/internal/model"
)

// Request-building bounds. The payload must stay compact enough for small
// local models while still carrying the evidence a reviewer would want.
const (
	maxLetterChars    = 6000
	maxCardKeywords   = 8
	maxCardOutOfScope = 5
	maxSnippets       = 12
	snippetContextLen = 80
	maxMalformedEcho  = 1200
)

const routeSystemPrompt = `You are a routing assistant for incoming official correspondence. ` +
	`Pick the single best destination department for the letter from the offered candidates. ` +
	`You MUST respond with ONLY a valid JSON object matching the response_example in the user payload. ` +
	`Do not include any explanatory text, markdown formatting, or commentary before or after the JSON. ` +
	`Start your response directly with { and end with }. ` +
	`If the letter belongs to none of the offered departments, set primary_department_id to "OUT_OF_SCOPE".`

// routeRequest is the user payload sent to the reasoning service.
type routeRequest struct {
	LetterText    string             `json:"letter_text"`
	Candidates    []requestCandidate `json:"candidates"`
	Departments   []departmentCard   `json:"departments"`
	ReviewReasons []string           `json:"review_reasons"`
	Evidence      []string           `json:"evidence"`
	Example       routeExample       `json:"response_example"`
}

type requestCandidate struct {
	DepartmentID    string   `json:"department_id"`
	DepartmentName  string   `json:"department_name"`
	Score           float64  `json:"score"`
	MatchedKeywords []string `json:"matched_keywords"`
}

// departmentCard is a compact department summary: enough for the model to
// judge fit without shipping the whole catalog.
type departmentCard struct {
	DepartmentID string   `json:"department_id"`
	Name         string   `json:"name"`
	Mission      string   `json:"mission"`
	Keywords     []string `json:"sample_keywords"`
	OutOfScope   []string `json:"out_of_scope_examples"`
}

type routeExample struct {
	PrimaryDepartmentID    string   `json:"primary_department_id"`
	SecondaryDepartmentIDs []string `json:"secondary_department_ids"`
	Confidence             float64  `json:"confidence"`
	NeedsReview            bool     `json:"needs_review"`
	Rationale              []string `json:"rationale"`
	Questions              []string `json:"questions"`
}

// buildRouteRequest assembles the escalation payload: bounded letter text,
// the top-K candidates, department cards, triage review reasons, and matched
// keyword snippets with their surrounding context.
func buildRouteRequest(letter *model.NormalizedLetter, catalog *model.Catalog, candidates model.Candidates, rc *model.RulesContext, topK int) (string, error) {
	shortlist := candidates.TopN(topK)

	reqCandidates := make([]requestCandidate, 0, len(shortlist))
	cards := make([]departmentCard, 0, len(shortlist))
	var evidence []string

	for i := range shortlist {
		candidate := &shortlist[i]
		reqCandidates = append(reqCandidates, requestCandidate{
			DepartmentID:    candidate.DepartmentID,
			DepartmentName:  candidate.DepartmentName,
			Score:           candidate.Score,
			MatchedKeywords: candidate.MatchedKeywords(),
		})

		if department := catalog.Department(candidate.DepartmentID); department != nil {
			cards = append(cards, buildCard(department))
		}

		evidence = appendSnippets(evidence, letter.CleanText, candidate)
	}

	request := routeRequest{
		LetterText:    truncate(letter.CleanText, maxLetterChars),
		Candidates:    reqCandidates,
		Departments:   cards,
		ReviewReasons: rc.ReviewReasons,
		Evidence:      evidence,
		Example: routeExample{
			PrimaryDepartmentID:    shortlistExampleID(shortlist),
			SecondaryDepartmentIDs: []string{},
			Confidence:             0.85,
			NeedsReview:            false,
			Rationale:              []string{"short explanation of the choice"},
			Questions:              []string{},
		},
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal route request: %w", err)
	}
	return string(payload), nil
}

func shortlistExampleID(shortlist model.Candidates) string {
	if top := shortlist.Top(); top != nil {
		return top.DepartmentID
	}
	return OutOfScopeExampleID
}

// OutOfScopeExampleID seeds the response example when no candidate exists.
const OutOfScopeExampleID = "OUT_OF_SCOPE"

func buildCard(department *model.Department) departmentCard {
	keywords := make([]string, 0, maxCardKeywords)
	for _, tier := range []string{model.TierHighPrecision, model.TierMediumPrecision} {
		for _, spec := range department.Keywords[tier] {
			if len(keywords) == maxCardKeywords {
				break
			}
			keywords = append(keywords, spec.Text)
		}
	}

	outOfScope := make([]string, 0, maxCardOutOfScope)
	for _, spec := range department.Keywords[model.TierOutOfScope] {
		if len(outOfScope) == maxCardOutOfScope {
			break
		}
		outOfScope = append(outOfScope, spec.Text)
	}

	return departmentCard{
		DepartmentID: department.ID,
		Name:         department.Name,
		Mission:      department.Mission,
		Keywords:     keywords,
		OutOfScope:   outOfScope,
	}
}

// appendSnippets adds one deduplicated context snippet per matched keyword:
// the first occurrence of the keyword text with surrounding characters.
func appendSnippets(evidence []string, text string, candidate *model.Candidate) []string {
	lowered := strings.ToLower(text)
	for _, tier := range []string{model.TierHighPrecision, model.TierMediumPrecision} {
		for _, hit := range candidate.Hits[tier] {
			if len(evidence) == maxSnippets {
				return evidence
			}
			snippet := contextSnippet(text, lowered, hit.Text)
			if snippet == "" || containsString(evidence, snippet) {
				continue
			}
			evidence = append(evidence, snippet)
		}
	}
	return evidence
}

// contextSnippet counts in runes so Cyrillic text gets the full context
// window and the slice never lands mid-rune.
func contextSnippet(text, lowered, keyword string) string {
	idx := strings.Index(lowered, strings.ToLower(keyword))
	if idx < 0 {
		return ""
	}
	runes := []rune(text)
	prefix := utf8.RuneCountInString(text[:idx])

	start := prefix - snippetContextLen/2
	if start < 0 {
		start = 0
	}
	end := prefix + utf8.RuneCountInString(keyword) + snippetContextLen/2
	if end > len(runes) {
		end = len(runes)
	}
	return strings.TrimSpace(string(runes[start:end]))
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// buildRepairPrompt asks the service to correct a malformed response. The
// validation error and the previous output are quoted so the model can see
// exactly what to fix.
func buildRepairPrompt(validationErr error, previous string) string {
	return fmt.Sprintf(
		"Your previous response was invalid: %s.\n\nPrevious response:\n%s\n\n"+
			"Respond again with ONLY the corrected JSON object, nothing else.",
		validationErr, truncate(previous, maxMalformedEcho))
}

// truncate cuts the string at a rune boundary at or below limit bytes.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
