package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsh-labs/chancery/internal/model"
	"github.com/vsh-labs/chancery/internal/score"
)

func newTestAssembler() *Assembler {
	return NewAssembler(score.DefaultWeights(), "gpt-oss", "1")
}

func heuristicFor(candidates model.Candidates, confidence float64) model.RoutingDecision {
	return heuristicDecision(candidates, Calibration{Confidence: confidence}, model.ModeHeuristicOnly)
}

func TestAssemblerAutoRouteGate(t *testing.T) {
	assembler := newTestAssembler()
	letter := testLetter()
	rc := model.NewRulesContext()

	t.Run("full high hit opens the gate", func(t *testing.T) {
		candidates := strongCandidates()
		record := assembler.Assemble(letter, testCatalog(), candidates, rc, heuristicFor(candidates, 0.8), time.Now())

		assert.Equal(t, model.RecordModeAutoRoute, record.Routing.Mode)
		assert.False(t, record.Routing.NeedsHumanReview)
		assert.Empty(t, record.Routing.ReviewReasons)
	})

	t.Run("no qualifying hit keeps the gate shut", func(t *testing.T) {
		candidates := weakCandidates()
		record := assembler.Assemble(letter, testCatalog(), candidates, rc, heuristicFor(candidates, 0.8), time.Now())

		assert.Equal(t, model.RecordModeReviewRequired, record.Routing.Mode)
		assert.True(t, record.Routing.NeedsHumanReview)
	})

	t.Run("priority rule with medium hit opens the gate", func(t *testing.T) {
		boosted := model.NewRulesContext()
		boosted.PriorityBoosts["FIN_BUDGET"] = 2

		candidates := weakCandidates()
		record := assembler.Assemble(letter, testCatalog(), candidates, boosted, heuristicFor(candidates, 0.8), time.Now())

		assert.Equal(t, model.RecordModeAutoRoute, record.Routing.Mode)
	})

	t.Run("budget-control runner-up forces review", func(t *testing.T) {
		catalog := testCatalog()
		catalog.Departments[1].BudgetControl = true

		candidates := model.Candidates{
			strongCandidates()[0],
			{
				DepartmentID:   "LEGAL",
				DepartmentName: "Правовой отдел",
				Hits:           fullHigh(),
				Score:          5.8,
				Breakdown:      map[string]float64{model.TierHighPrecision: 5.8},
			},
		}

		record := assembler.Assemble(letter, catalog, candidates, rc, heuristicFor(candidates, 0.8), time.Now())

		assert.Equal(t, model.RecordModeReviewRequired, record.Routing.Mode)
		assert.True(t, record.Routing.NeedsHumanReview)
		require.NotEmpty(t, record.Routing.ReviewReasons)
		assert.Contains(t, record.Routing.ReviewReasons[0], "budget_control_conflict: LEGAL")
	})

	t.Run("distant budget-control candidate does not interfere", func(t *testing.T) {
		catalog := testCatalog()
		catalog.Departments[1].BudgetControl = true

		candidates := model.Candidates{
			strongCandidates()[0],
			{
				DepartmentID: "LEGAL",
				Hits:         fullHigh(),
				Score:        1.0,
				Breakdown:    map[string]float64{model.TierHighPrecision: 1.0},
			},
		}

		record := assembler.Assemble(letter, catalog, candidates, rc, heuristicFor(candidates, 0.8), time.Now())
		assert.Equal(t, model.RecordModeAutoRoute, record.Routing.Mode)
	})
}

func TestAssemblerReviewReasons(t *testing.T) {
	assembler := newTestAssembler()
	letter := testLetter()

	t.Run("low confidence forces review", func(t *testing.T) {
		candidates := strongCandidates()
		record := assembler.Assemble(letter, testCatalog(), candidates, model.NewRulesContext(), heuristicFor(candidates, 0.3), time.Now())

		assert.True(t, record.Routing.NeedsHumanReview)
		assert.Equal(t, model.RecordModeReviewRequired, record.Routing.Mode)
	})

	t.Run("triage reasons carry into the record", func(t *testing.T) {
		rc := model.NewRulesContext()
		rc.AddReviewReason("передать соисполнителю")

		candidates := strongCandidates()
		record := assembler.Assemble(letter, testCatalog(), candidates, rc, heuristicFor(candidates, 0.8), time.Now())

		assert.True(t, record.Routing.NeedsHumanReview)
		assert.Contains(t, record.Routing.ReviewReasons, "передать соисполнителю")
	})

	t.Run("fallback reason lands in review reasons once", func(t *testing.T) {
		candidates := strongCandidates()
		decision := heuristicFor(candidates, 0.8)
		decision.FallbackReason = model.FallbackLLMUnavailable

		record := assembler.Assemble(letter, testCatalog(), candidates, model.NewRulesContext(), decision, time.Now())

		count := 0
		for _, reason := range record.Routing.ReviewReasons {
			if reason == string(model.FallbackLLMUnavailable) {
				count++
			}
		}
		assert.Equal(t, 1, count)
		assert.True(t, record.Routing.NeedsHumanReview)
	})
}

func TestAssemblerExtraction(t *testing.T) {
	assembler := newTestAssembler()

	t.Run("mixed ocr pages lower quality and warn", func(t *testing.T) {
		letter := &model.NormalizedLetter{
			RequestID:     "REQ-pages",
			CreatedAt:     time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
			SourceChannel: "email",
			Filename:      "letter.pdf",
			Pages: []model.NormalizedPage{
				{Page: 1, Source: model.PageSourceText, CleanText: "первая страница"},
				{Page: 2, Source: model.PageSourceOCR, CleanText: "вторая", OCRUsed: true},
			},
			CleanText: "первая страница\n\nвторая",
			Metadata:  map[string]string{},
		}

		candidates := strongCandidates()
		record := assembler.Assemble(letter, testCatalog(), candidates, model.NewRulesContext(), heuristicFor(candidates, 0.8), time.Now())

		assert.Equal(t, model.TextSourceMixed, record.Extraction.TextSource)
		assert.Equal(t, "2026-02-10T12:00:00Z", record.CreatedAt)
		assert.Equal(t, 2, record.Input.File.Pages)

		require.Len(t, record.Extraction.PageMap, 2)
		first := record.Extraction.PageMap[0]
		second := record.Extraction.PageMap[1]
		assert.Equal(t, 0, first.CharStart)
		assert.Equal(t, len([]rune("первая страница")), first.CharEnd)
		assert.Equal(t, first.CharEnd+2, second.CharStart)
		assert.Equal(t, second.CharStart+len([]rune("вторая")), second.CharEnd)

		assert.InDelta(t, 0.7, record.Extraction.Quality.OCRConfidence, 1e-9)
		assert.NotEmpty(t, record.Extraction.Quality.Warnings)
	})

	t.Run("native pages keep full quality", func(t *testing.T) {
		letter := testLetter()
		candidates := strongCandidates()
		record := assembler.Assemble(letter, testCatalog(), candidates, model.NewRulesContext(), heuristicFor(candidates, 0.8), time.Now())

		assert.Equal(t, model.TextSourceNative, record.Extraction.TextSource)
		assert.InDelta(t, 0.95, record.Extraction.Quality.OCRConfidence, 1e-9)
		assert.Empty(t, record.Extraction.Quality.Warnings)
	})
}

func TestAssemblerSuggestions(t *testing.T) {
	assembler := newTestAssembler()
	letter := testLetter()
	letter.CleanText = "прошу выделить бюджетное финансирование учреждению"
	letter.Pages[0].CleanText = letter.CleanText

	rc := model.NewRulesContext()
	rc.Triggered["FIN_BUDGET"] = []string{"высокий приоритет"}
	rc.PriorityBoosts["FIN_BUDGET"] = 2

	candidates := model.Candidates{
		strongCandidates()[0],
		{
			DepartmentID:   "LEGAL",
			DepartmentName: "Правовой отдел",
			Hits:           map[string][]model.Hit{},
			Score:          0,
			Breakdown:      map[string]float64{},
		},
	}

	record := assembler.Assemble(letter, testCatalog(), candidates, rc, heuristicFor(candidates, 0.8), time.Now())
	require.Len(t, record.Routing.Suggestions, 2)

	top := record.Routing.Suggestions[0]
	assert.Equal(t, "FIN_BUDGET", top.DepartmentID)
	assert.InDelta(t, 1.0, top.Confidence, 1e-9)
	assert.Equal(t, "high", top.Priority)
	assert.Contains(t, top.Why, "Совпали ключевые слова")
	assert.Contains(t, top.Why, "сработали правила триажа")
	assert.Equal(t, []string{"высокий приоритет"}, top.MatchedSignals.RulesTriggered)
	assert.InDelta(t, 6.0, top.MatchedSignals.SemanticScore, 1e-9)
	assert.NotEmpty(t, top.Evidence, "matched keyword context should be quoted")

	second := record.Routing.Suggestions[1]
	assert.Zero(t, second.Confidence)
	assert.Equal(t, "normal", second.Priority)
	assert.Equal(t, "Ключевых совпадений нет", second.Why)
	assert.Empty(t, second.MatchedSignals.Keywords)
}

func TestAssemblerDiagnostics(t *testing.T) {
	assembler := newTestAssembler()
	letter := testLetter()
	candidates := strongCandidates()

	t.Run("heuristic decisions report the heuristic model", func(t *testing.T) {
		record := assembler.Assemble(letter, testCatalog(), candidates, model.NewRulesContext(), heuristicFor(candidates, 0.8), time.Now())
		assert.Equal(t, "heuristic-router", record.Diagnostics.Model.Name)
		assert.Equal(t, "v1", record.Diagnostics.Trace.CatalogVersion)
	})

	t.Run("llm decisions report the llm model", func(t *testing.T) {
		decision := heuristicFor(candidates, 0.8)
		decision.UsedLLM = true

		record := assembler.Assemble(letter, testCatalog(), candidates, model.NewRulesContext(), decision, time.Now())
		assert.Equal(t, "gpt-oss", record.Diagnostics.Model.Name)
	})
}
