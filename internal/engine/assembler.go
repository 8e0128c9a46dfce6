package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vsh-labs/chancery/internal/model"
	"github.com/vsh-labs/chancery/internal/score"
)

// Assembly thresholds.
const (
	schemaVersion = "1.0"

	// reviewThreshold forces human review below this final confidence.
	reviewThreshold = 0.4

	// budgetConflictShare: a budget-control department with a
	// high-precision hit scoring at or above this share of the top score
	// blocks auto-routing.
	budgetConflictShare = 0.9

	// pageJoinLen is the length of the separator between concatenated pages.
	pageJoinLen = len("\n\n")

	ocrConfidenceNative = 0.95
	ocrConfidenceMixed  = 0.7

	summaryMaxChars = 200

	heuristicModelName = "heuristic-router"
)

// Assembler turns the scored pipeline state into the final DecisionRecord.
type Assembler struct {
	weights      score.Weights
	modelName    string
	modelVersion string
}

// NewAssembler creates a record assembler. modelName identifies the external
// reasoning model; it is only reported when the decision actually used it.
func NewAssembler(weights score.Weights, modelName, modelVersion string) *Assembler {
	return &Assembler{weights: weights, modelName: modelName, modelVersion: modelVersion}
}

// Assemble builds the complete decision record for one letter.
func (a *Assembler) Assemble(
	letter *model.NormalizedLetter,
	catalog *model.Catalog,
	candidates model.Candidates,
	rc *model.RulesContext,
	decision model.RoutingDecision,
	started time.Time,
) *model.DecisionRecord {
	gate, gateReasons := a.autoRouteGate(catalog, candidates, rc)

	reasons := make([]string, 0, len(rc.ReviewReasons)+len(gateReasons))
	reasons = append(reasons, rc.ReviewReasons...)
	reasons = append(reasons, gateReasons...)
	if decision.FallbackReason != model.FallbackNone {
		reasons = appendUnique(reasons, string(decision.FallbackReason))
	}

	needsReview := len(reasons) > 0 || decision.Confidence < reviewThreshold || !gate

	mode := model.RecordModeAutoRoute
	if !gate || needsReview {
		mode = model.RecordModeReviewRequired
	}

	record := &model.DecisionRecord{
		SchemaVersion: schemaVersion,
		RequestID:     letter.RequestID,
		CreatedAt:     letter.CreatedAt.UTC().Format(time.RFC3339),
		Input: model.InputInfo{
			SourceChannel: letter.SourceChannel,
			File: model.FileInfo{
				Filename: letter.Filename,
				Pages:    len(letter.Pages),
			},
			Metadata: letter.Metadata,
		},
		Extraction:    a.extraction(letter),
		Understanding: a.understanding(letter, rc),
		Routing: model.RoutingInfo{
			Mode:        mode,
			Suggestions: a.suggestions(letter, candidates, rc),
			FinalRecommendation: model.FinalRecommendation{
				DepartmentIDs: decision.DepartmentIDs,
				Confidence:    decision.Confidence,
				Comment:       decision.Comment,
			},
			NeedsHumanReview: needsReview,
			ReviewReasons:    reasons,
		},
		Compliance: model.ComplianceInfo{
			SensitiveFlags: []string{},
			SafeToLogText:  "masked",
			Masking: model.MaskingInfo{
				Enabled:      false,
				MaskedFields: []string{},
			},
		},
		Diagnostics: model.DiagnosticsInfo{
			ProcessingTimeMS: time.Since(started).Milliseconds(),
			Model:            a.modelInfo(decision),
			Trace: model.TraceInfo{
				RulesVersion:   catalog.Version,
				CatalogVersion: catalog.Version,
			},
			Errors:   []string{},
			Warnings: []string{},
		},
	}
	return record
}

// autoRouteGate decides whether the top candidate may be routed without a
// human. The gate opens on a high-precision hit, or on a triggered
// priority rule backed by at least a medium-precision hit. A budget-control
// department scoring close to the top forces the gate shut so spending
// questions always pass through review.
func (a *Assembler) autoRouteGate(catalog *model.Catalog, candidates model.Candidates, rc *model.RulesContext) (bool, []string) {
	top := candidates.Top()
	if top == nil {
		return false, nil
	}

	gate := top.HasHit(model.TierHighPrecision) ||
		(rc.HasPriorityBoost(top.DepartmentID) && top.HasHit(model.TierMediumPrecision))

	var reasons []string
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.DepartmentID == top.DepartmentID {
			continue
		}
		department := catalog.Department(candidate.DepartmentID)
		if department == nil || !department.BudgetControl {
			continue
		}
		if candidate.HasHit(model.TierHighPrecision) && candidate.Score >= budgetConflictShare*top.Score {
			gate = false
			reasons = append(reasons, fmt.Sprintf(
				"budget_control_conflict: %s scores within 90%% of top candidate", candidate.DepartmentID))
		}
	}
	return gate, reasons
}

func (a *Assembler) extraction(letter *model.NormalizedLetter) model.ExtractionInfo {
	pageMap := make([]model.PageSpan, 0, len(letter.Pages))
	cursor := 0
	for i, page := range letter.Pages {
		if i > 0 {
			cursor += pageJoinLen
		}
		pageMap = append(pageMap, model.PageSpan{
			Page:       page.Page,
			TextSpanID: fmt.Sprintf("p%d", page.Page),
			CharStart:  cursor,
			CharEnd:    cursor + len([]rune(page.CleanText)),
		})
		cursor += len([]rune(page.CleanText))
	}

	source := letter.TextSource()
	quality := model.QualityInfo{
		OCRConfidence:       ocrConfidenceNative,
		HasTables:           false,
		HasStampsSignatures: "unknown",
		Warnings:            []string{},
	}
	if source != model.TextSourceNative {
		quality.OCRConfidence = ocrConfidenceMixed
		quality.Warnings = append(quality.Warnings, "OCR used for at least one page")
	}

	return model.ExtractionInfo{
		TextSource: source,
		Language:   "ru",
		PageMap:    pageMap,
		Quality:    quality,
	}
}

func (a *Assembler) understanding(letter *model.NormalizedLetter, rc *model.RulesContext) model.Understanding {
	urgency := model.UrgencyInfo{Level: "normal", Signals: []string{}}
	boosted := make([]string, 0, len(rc.PriorityBoosts))
	for departmentID, count := range rc.PriorityBoosts {
		if count > 0 {
			boosted = append(boosted, departmentID)
		}
	}
	sort.Strings(boosted)
	for _, departmentID := range boosted {
		urgency.Level = "high"
		urgency.Signals = append(urgency.Signals,
			fmt.Sprintf("triage rule raised priority for %s", departmentID))
	}

	topics := letter.Topics
	if topics == nil {
		topics = []string{}
	}

	return model.Understanding{
		DocType: "letter",
		Summary: summarize(letter),
		Topics:  topics,
		Urgency: urgency,
		Entities: model.Entities{
			Organizations: organizations(letter),
			People:        []string{},
			Numbers: model.NumberRefs{
				ContractNumbers: []string{},
				InvoiceNumbers:  []string{},
				LetterNumbers:   []string{},
				LawRefs:         []string{},
			},
			Dates:     []string{},
			Amounts:   []string{},
			Locations: []string{},
		},
	}
}

// summarize prefers the declared subject and falls back to the opening of
// the letter body.
func summarize(letter *model.NormalizedLetter) string {
	if subject := strings.TrimSpace(letter.Subject); subject != "" {
		return subject
	}
	text := strings.TrimSpace(letter.CleanText)
	runes := []rune(text)
	if len(runes) > summaryMaxChars {
		return string(runes[:summaryMaxChars]) + "…"
	}
	return text
}

func organizations(letter *model.NormalizedLetter) []model.OrganizationEntity {
	orgs := make([]model.OrganizationEntity, 0, 2)
	if issuer := strings.TrimSpace(letter.Issuer); issuer != "" {
		orgs = append(orgs, model.OrganizationEntity{Name: issuer, Role: "sender"})
	}
	if addressee := strings.TrimSpace(letter.Addressee); addressee != "" {
		orgs = append(orgs, model.OrganizationEntity{Name: addressee, Role: "recipient"})
	}
	return orgs
}

// suggestions renders every scored candidate for the consumer, best first.
// Per-suggestion confidence is the score normalized against the top score.
func (a *Assembler) suggestions(letter *model.NormalizedLetter, candidates model.Candidates, rc *model.RulesContext) []model.Suggestion {
	maxScore := candidates.MaxScore()
	suggestions := make([]model.Suggestion, 0, len(candidates))

	for i := range candidates {
		candidate := &candidates[i]

		confidence := 0.0
		if maxScore > 0 && candidate.Score > 0 {
			confidence = clip01(candidate.Score / maxScore)
		}

		priority := "normal"
		if rc.HasPriorityBoost(candidate.DepartmentID) {
			priority = "high"
		}

		keywords := candidate.MatchedKeywords()
		triggered := rc.Triggered[candidate.DepartmentID]
		if triggered == nil {
			triggered = []string{}
		}

		suggestions = append(suggestions, model.Suggestion{
			DepartmentID:   candidate.DepartmentID,
			DepartmentName: candidate.DepartmentName,
			Confidence:     confidence,
			Priority:       priority,
			Why:            whyText(keywords, triggered),
			MatchedSignals: model.MatchedSignals{
				Keywords:       keywords,
				RulesTriggered: triggered,
				SemanticScore:  candidate.Score,
			},
			Evidence:    appendSnippets([]string{}, letter.CleanText, candidate),
			NextActions: []string{},
		})
	}
	return suggestions
}

func whyText(keywords, triggered []string) string {
	var sb strings.Builder
	if len(keywords) > 0 {
		sb.WriteString("Совпали ключевые слова: ")
		sb.WriteString(strings.Join(keywords, ", "))
	} else {
		sb.WriteString("Ключевых совпадений нет")
	}
	if len(triggered) > 0 {
		sb.WriteString("; сработали правила триажа")
	}
	return sb.String()
}

func (a *Assembler) modelInfo(decision model.RoutingDecision) model.ModelInfo {
	if decision.UsedLLM {
		return model.ModelInfo{Name: a.modelName, Version: a.modelVersion}
	}
	return model.ModelInfo{Name: heuristicModelName, Version: schemaVersion}
}

func appendUnique(list []string, value string) []string {
	for _, item := range list {
		if item == value {
			return list
		}
	}
	return append(list, value)
}
