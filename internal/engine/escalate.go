package engine

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/vsh-labs/chancery/internal/llm"
	"github.com/vsh-labs/chancery/internal/model"
	"github.com/vsh-labs/chancery/internal/score"
)

// EscalationState tracks progress through the external-confirmation flow.
type EscalationState int

// Escalation states.
const (
	StateHeuristicOnly EscalationState = iota
	StateNeedsExternalReview
	StateResponsePending
	StateValidated
	StateExhausted
)

// String renders the state for logs.
func (s EscalationState) String() string {
	switch s {
	case StateHeuristicOnly:
		return "heuristic_only"
	case StateNeedsExternalReview:
		return "needs_external_review"
	case StateResponsePending:
		return "external_response_pending"
	case StateValidated:
		return "validated"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// outOfScopeConfidenceCap bounds confidence when the service judges the
// letter to belong to no offered department.
const outOfScopeConfidenceCap = 0.2

// Escalator decides whether the heuristic decision needs confirmation by
// the external reasoning service and runs the bounded request/repair loop.
type Escalator struct {
	client      llm.Client
	logger      *slog.Logger
	topK        int
	maxAttempts int
	backoff     time.Duration
	force       bool
}

// EscalatorConfig configures the escalation controller.
type EscalatorConfig struct {
	TopK        int
	MaxAttempts int
	Backoff     time.Duration
	Force       bool
}

// NewEscalator creates an escalation controller. A nil client is valid and
// makes every escalation fall back to the heuristic decision.
func NewEscalator(client llm.Client, cfg EscalatorConfig, logger *slog.Logger) *Escalator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &Escalator{
		client:      client,
		logger:      logger,
		topK:        cfg.TopK,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		force:       cfg.Force,
	}
}

// shouldEscalate applies the skip conditions: a confident decision backed by
// a full high-precision hit never leaves the process.
func (e *Escalator) shouldEscalate(candidates model.Candidates, cal Calibration, weights score.Weights) bool {
	top := candidates.Top()
	if top == nil {
		return false
	}
	if e.force {
		return true
	}
	if top.Score < weights.ScoreFloor {
		return true
	}
	if cal.Confidence < escalateBelow {
		return true
	}
	if !top.HasFullHit(model.TierHighPrecision) {
		return true
	}
	if !top.HasHit(model.TierHighPrecision) && !top.HasHit(model.TierMediumPrecision) {
		return true
	}
	return false
}

// Decide returns the final routing decision for llm_assisted mode: the
// heuristic decision when escalation is unnecessary, the validated external
// decision when the exchange succeeds, and a heuristic fallback with a
// machine-readable reason otherwise. Escalation failure is never fatal.
func (e *Escalator) Decide(
	ctx context.Context,
	letter *model.NormalizedLetter,
	catalog *model.Catalog,
	candidates model.Candidates,
	rc *model.RulesContext,
	cal Calibration,
	weights score.Weights,
) model.RoutingDecision {
	heuristic := heuristicDecision(candidates, cal, model.ModeLLMAssisted)

	if !e.shouldEscalate(candidates, cal, weights) {
		return heuristic
	}

	if e.client == nil {
		heuristic.FallbackReason = model.FallbackLLMNotConfigured
		heuristic.Comment = "Reasoning service not configured; used heuristic decision."
		return heuristic
	}
	if letter == nil || strings.TrimSpace(letter.CleanText) == "" || catalog == nil {
		heuristic.FallbackReason = model.FallbackLLMInputsMissing
		heuristic.Comment = "Escalation inputs unavailable; used heuristic decision."
		return heuristic
	}

	userPrompt, err := buildRouteRequest(letter, catalog, candidates, rc, e.topK)
	if err != nil {
		e.logger.Error("failed to build escalation request",
			"request_id", letter.RequestID, "error", err)
		heuristic.FallbackReason = model.FallbackLLMInvalidOutput
		return heuristic
	}

	allowed := make(map[string]struct{}, len(catalog.Departments))
	for _, id := range catalog.IDs() {
		allowed[id] = struct{}{}
	}

	// Bounded repair loop: an explicit attempt counter and last error, not
	// loop-variable mutation. Each failed validation turns into a corrective
	// prompt quoting the error and the malformed response.
	state := StateNeedsExternalReview
	prompt := userPrompt
	var lastErr error
	var lastValidation bool

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				e.logger.Warn("escalation cancelled",
					"request_id", letter.RequestID, "state", state.String())
				heuristic.FallbackReason = model.FallbackLLMUnavailable
				return heuristic
			case <-time.After(time.Duration(attempt-1) * e.backoff):
			}
		}

		state = StateResponsePending
		raw, chatErr := e.client.Chat(ctx, routeSystemPrompt, prompt)
		if chatErr != nil {
			e.logger.Warn("reasoning service request failed",
				"request_id", letter.RequestID,
				"attempt", attempt,
				"error", chatErr)
			lastErr = chatErr
			lastValidation = false
			state = StateNeedsExternalReview
			if errors.Is(chatErr, context.Canceled) || errors.Is(chatErr, context.DeadlineExceeded) {
				break
			}
			continue
		}

		resp, parseErr := llm.ParseRouteResponse(raw, allowed)
		if parseErr != nil {
			e.logger.Warn("reasoning service response invalid",
				"request_id", letter.RequestID,
				"attempt", attempt,
				"error", parseErr)
			lastErr = parseErr
			lastValidation = true
			state = StateNeedsExternalReview
			prompt = buildRepairPrompt(parseErr, raw)
			continue
		}

		state = StateValidated
		return e.validatedDecision(resp, heuristic, letter.RequestID)
	}

	state = StateExhausted
	e.logger.Warn("escalation exhausted, using heuristic decision",
		"request_id", letter.RequestID,
		"state", state.String(),
		"attempts", e.maxAttempts,
		"last_error", lastErr)

	if lastValidation {
		heuristic.FallbackReason = model.FallbackLLMInvalidOutput
		heuristic.Comment = "Reasoning service returned invalid output; used heuristic decision."
	} else {
		heuristic.FallbackReason = model.FallbackLLMUnavailable
		heuristic.Comment = "Reasoning service unavailable; used heuristic decision."
	}
	return heuristic
}

// validatedDecision maps a validated response onto a RoutingDecision.
func (e *Escalator) validatedDecision(resp *llm.RouteResponse, heuristic model.RoutingDecision, requestID string) model.RoutingDecision {
	if resp.OutOfScope() {
		decision := heuristic
		decision.Confidence = math.Min(heuristic.Confidence, outOfScopeConfidenceCap)
		decision.UsedLLM = true
		decision.FallbackReason = model.FallbackLLMOutOfScope
		decision.Comment = "External review judged the letter outside every offered department."
		e.logger.Info("escalation returned out-of-scope",
			"request_id", requestID)
		return decision
	}

	ids := append([]string{resp.PrimaryDepartmentID}, resp.SecondaryDepartmentIDs...)
	comment := strings.Join(resp.Rationale, " ")
	if comment == "" {
		comment = "Confirmed by external review."
	}

	e.logger.Info("escalation validated",
		"request_id", requestID,
		"primary", resp.PrimaryDepartmentID,
		"confidence", resp.Confidence)

	return model.RoutingDecision{
		DepartmentIDs:  dedupeIDs(ids),
		Confidence:     clip01(resp.Confidence),
		Mode:           model.ModeLLMAssisted,
		Comment:        comment,
		UsedLLM:        true,
		FallbackReason: model.FallbackNone,
	}
}

// heuristicDecision builds the decision derived purely from scoring.
func heuristicDecision(candidates model.Candidates, cal Calibration, mode model.RoutingMode) model.RoutingDecision {
	top := candidates.Top()
	if top == nil {
		return model.RoutingDecision{
			DepartmentIDs: []string{},
			Confidence:    0,
			Mode:          mode,
			Comment:       "No candidates available.",
			UsedLLM:       false,
		}
	}
	return model.RoutingDecision{
		DepartmentIDs: []string{top.DepartmentID},
		Confidence:    cal.Confidence,
		Mode:          mode,
		Comment:       "Heuristic selection based on keyword scores.",
		UsedLLM:       false,
	}
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
