package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vsh-labs/chancery/internal/lemma"
	"github.com/vsh-labs/chancery/internal/model"
	"github.com/vsh-labs/chancery/internal/score"
)

// lowSignalReason is recorded when the top score sits below the floor and
// the decision must not leave the review queue.
const lowSignalReason = "low_signal_mandatory_review"

// CatalogProvider yields the current routing catalog. The hot-reloading
// watcher and a fixed in-memory catalog both satisfy it.
type CatalogProvider interface {
	Catalog() *model.Catalog
}

// StaticCatalog wraps a catalog loaded once.
type StaticCatalog struct {
	catalog *model.Catalog
}

// NewStaticCatalog returns a provider that always serves the same catalog.
func NewStaticCatalog(catalog *model.Catalog) *StaticCatalog {
	return &StaticCatalog{catalog: catalog}
}

// Catalog returns the wrapped catalog.
func (s *StaticCatalog) Catalog() *model.Catalog {
	return s.catalog
}

// RecordValidator checks an assembled record against the output contract.
type RecordValidator interface {
	Validate(record *model.DecisionRecord, catalog *model.Catalog) error
}

// Engine runs the full routing pipeline for one letter: lemma profile,
// triage rules, keyword scoring, boost merge, calibration, optional
// escalation, record assembly, and contract validation.
type Engine struct {
	normalizer lemma.Normalizer
	scorer     *score.Scorer
	rules      *score.RuleEvaluator
	escalator  *Escalator
	assembler  *Assembler
	catalogs   CatalogProvider
	validator  RecordValidator
	mode       model.RoutingMode
	logger     *slog.Logger
}

// Options configures an Engine. Escalator and Validator are optional;
// Normalizer, Catalogs, and Mode are required.
type Options struct {
	Normalizer lemma.Normalizer
	Weights    score.Weights
	Catalogs   CatalogProvider
	Escalator  *Escalator
	Validator  RecordValidator
	Mode       model.RoutingMode
	ModelName  string
	Logger     *slog.Logger
}

// New creates a routing engine.
func New(opts Options) (*Engine, error) {
	if opts.Normalizer == nil {
		return nil, fmt.Errorf("normalizer is required")
	}
	if opts.Catalogs == nil {
		return nil, fmt.Errorf("catalog provider is required")
	}
	if opts.Mode != model.ModeHeuristicOnly && opts.Mode != model.ModeLLMAssisted {
		return nil, fmt.Errorf("unknown routing mode: %q", opts.Mode)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		normalizer: opts.Normalizer,
		scorer:     score.NewScorer(opts.Weights),
		rules:      score.NewRuleEvaluator(opts.Weights),
		escalator:  opts.Escalator,
		assembler:  NewAssembler(opts.Weights, opts.ModelName, "1"),
		catalogs:   opts.Catalogs,
		validator:  opts.Validator,
		mode:       opts.Mode,
		logger:     logger,
	}, nil
}

// Route produces the decision record for one normalized letter. The record
// is deterministic for a fixed letter, catalog, and weight set when no
// external reasoning service is consulted.
func (e *Engine) Route(ctx context.Context, letter *model.NormalizedLetter) (*model.DecisionRecord, error) {
	started := time.Now()
	catalog := e.catalogs.Catalog()
	if catalog == nil {
		return nil, fmt.Errorf("no catalog available")
	}

	profile := e.normalizer.Normalize(letter.CleanText)
	rc := e.rules.Evaluate(profile, catalog)
	candidates := e.scorer.Score(profile, catalog)
	candidates = score.MergeBoosts(candidates, rc, e.scorer.Weights())

	cal := Calibrate(candidates, rc, e.scorer.Weights())
	if cal.MandatoryReview {
		rc.AddReviewReason(lowSignalReason)
	}

	var decision model.RoutingDecision
	switch {
	case e.mode == model.ModeLLMAssisted && e.escalator != nil:
		decision = e.escalator.Decide(ctx, letter, catalog, candidates, rc, cal, e.scorer.Weights())
	case e.mode == model.ModeLLMAssisted:
		decision = heuristicDecision(candidates, cal, model.ModeLLMAssisted)
		decision.FallbackReason = model.FallbackLLMNotConfigured
	default:
		decision = heuristicDecision(candidates, cal, model.ModeHeuristicOnly)
	}

	record := e.assembler.Assemble(letter, catalog, candidates, rc, decision, started)

	if e.validator != nil {
		if err := e.validator.Validate(record, catalog); err != nil {
			return nil, fmt.Errorf("decision record failed contract validation: %w", err)
		}
	}

	e.logger.Info("letter routed",
		"request_id", letter.RequestID,
		"mode", string(decision.Mode),
		"departments", decision.DepartmentIDs,
		"confidence", decision.Confidence,
		"needs_review", record.Routing.NeedsHumanReview,
		"used_llm", decision.UsedLLM,
		"duration_ms", time.Since(started).Milliseconds())

	return record, nil
}
