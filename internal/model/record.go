package model

// DecisionRecord is the external decision document emitted per letter. The
// field layout is part of the output contract and is validated against an
// externally supplied JSON Schema before the pipeline run is considered
// complete.
type DecisionRecord struct {
	SchemaVersion string          `json:"schema_version"`
	RequestID     string          `json:"request_id"`
	CreatedAt     string          `json:"created_at"`
	Input         InputInfo       `json:"input"`
	Extraction    ExtractionInfo  `json:"extraction"`
	Understanding Understanding   `json:"understanding"`
	Routing       RoutingInfo     `json:"routing"`
	Compliance    ComplianceInfo  `json:"compliance"`
	Diagnostics   DiagnosticsInfo `json:"diagnostics"`
}

// InputInfo describes where the letter came from.
type InputInfo struct {
	SourceChannel string            `json:"source_channel"`
	File          FileInfo          `json:"file"`
	Metadata      map[string]string `json:"metadata"`
}

// FileInfo identifies the ingested file.
type FileInfo struct {
	Filename string `json:"filename"`
	Pages    int    `json:"pages"`
}

// ExtractionInfo carries text provenance and layout diagnostics.
type ExtractionInfo struct {
	TextSource string      `json:"text_source"`
	Language   string      `json:"language"`
	PageMap    []PageSpan  `json:"page_map"`
	Quality    QualityInfo `json:"quality"`
}

// PageSpan maps a page onto its character span in the concatenated text.
type PageSpan struct {
	Page       int    `json:"page"`
	TextSpanID string `json:"text_span_id"`
	CharStart  int    `json:"char_start"`
	CharEnd    int    `json:"char_end"`
}

// QualityInfo summarizes extraction quality.
type QualityInfo struct {
	OCRConfidence       float64  `json:"ocr_confidence"`
	HasTables           bool     `json:"has_tables"`
	HasStampsSignatures string   `json:"has_stamps_signatures"`
	Warnings            []string `json:"warnings"`
}

// Understanding holds the light structural reading of the letter.
type Understanding struct {
	DocType  string      `json:"doc_type"`
	Summary  string      `json:"summary"`
	Topics   []string    `json:"topics"`
	Urgency  UrgencyInfo `json:"urgency"`
	Entities Entities    `json:"entities"`
}

// UrgencyInfo marks how urgent the letter appears.
type UrgencyInfo struct {
	Level   string   `json:"level"`
	Signals []string `json:"signals"`
}

// Entities lists structured references found in the letter.
type Entities struct {
	Organizations []OrganizationEntity `json:"organizations"`
	People        []string             `json:"people"`
	Numbers       NumberRefs           `json:"numbers"`
	Dates         []string             `json:"dates"`
	Amounts       []string             `json:"amounts"`
	Locations     []string             `json:"locations"`
}

// OrganizationEntity is one referenced organization and its role.
type OrganizationEntity struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// NumberRefs groups document number references by kind.
type NumberRefs struct {
	ContractNumbers []string `json:"contract_numbers"`
	InvoiceNumbers  []string `json:"invoice_numbers"`
	LetterNumbers   []string `json:"letter_numbers"`
	LawRefs         []string `json:"law_refs"`
}

// Routing modes of the final record.
const (
	RecordModeAutoRoute      = "auto_route_allowed"
	RecordModeReviewRequired = "review_required"
)

// RoutingInfo is the routing section of the record.
type RoutingInfo struct {
	Mode                string              `json:"mode"`
	Suggestions         []Suggestion        `json:"suggestions"`
	FinalRecommendation FinalRecommendation `json:"final_recommendation"`
	NeedsHumanReview    bool                `json:"needs_human_review"`
	ReviewReasons       []string            `json:"review_reasons"`
}

// Suggestion is one candidate department rendered for the consumer.
type Suggestion struct {
	DepartmentID   string         `json:"department_id"`
	DepartmentName string         `json:"department_name"`
	Confidence     float64        `json:"confidence"`
	Priority       string         `json:"priority"`
	Why            string         `json:"why"`
	MatchedSignals MatchedSignals `json:"matched_signals"`
	Evidence       []string       `json:"evidence"`
	NextActions    []string       `json:"next_actions"`
}

// MatchedSignals lists what drove a suggestion.
type MatchedSignals struct {
	Keywords       []string `json:"keywords"`
	RulesTriggered []string `json:"rules_triggered"`
	SemanticScore  float64  `json:"semantic_score"`
}

// FinalRecommendation is the single chosen routing outcome.
type FinalRecommendation struct {
	DepartmentIDs []string `json:"department_ids"`
	Confidence    float64  `json:"confidence"`
	Comment       string   `json:"comment"`
}

// ComplianceInfo carries logging/masking policy flags.
type ComplianceInfo struct {
	SensitiveFlags []string    `json:"sensitive_flags"`
	SafeToLogText  string      `json:"safe_to_log_text"`
	Masking        MaskingInfo `json:"masking"`
}

// MaskingInfo describes field masking applied to the record.
type MaskingInfo struct {
	Enabled      bool     `json:"enabled"`
	MaskedFields []string `json:"masked_fields"`
}

// DiagnosticsInfo carries processing metadata.
type DiagnosticsInfo struct {
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	Model            ModelInfo `json:"model"`
	Trace            TraceInfo `json:"trace"`
	Errors           []string  `json:"errors"`
	Warnings         []string  `json:"warnings"`
}

// ModelInfo names the decision engine that produced the record.
type ModelInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// TraceInfo pins the rule and catalog versions used for the decision.
type TraceInfo struct {
	RulesVersion   string `json:"rules_version"`
	CatalogVersion string `json:"catalog_version"`
}
