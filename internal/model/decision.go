package model

// RoutingMode selects how much the pipeline may lean on the external
// reasoning service.
type RoutingMode string

// Supported routing modes.
const (
	ModeHeuristicOnly RoutingMode = "heuristic_only"
	ModeLLMAssisted   RoutingMode = "llm_assisted"
)

// FallbackReason is a machine-readable code explaining why an escalated
// decision degraded to the heuristic one.
type FallbackReason string

// Fallback reason codes. Empty means no fallback occurred.
const (
	FallbackNone             FallbackReason = ""
	FallbackLLMNotConfigured FallbackReason = "llm_not_configured"
	FallbackLLMInputsMissing FallbackReason = "llm_inputs_unavailable"
	FallbackLLMUnavailable   FallbackReason = "llm_unavailable"
	FallbackLLMInvalidOutput FallbackReason = "llm_invalid_output"
	FallbackLLMOutOfScope    FallbackReason = "llm_out_of_scope"
)

// RoutingDecision is the terminal routing value for one document: the chosen
// department ids (primary first), calibrated confidence, and how the decision
// was reached. Never mutated after construction.
type RoutingDecision struct {
	DepartmentIDs  []string
	Confidence     float64
	Mode           RoutingMode
	Comment        string
	UsedLLM        bool
	FallbackReason FallbackReason
}
