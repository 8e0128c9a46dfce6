// Package catalog loads and compiles the departments catalog.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/vsh-labs/chancery/internal/common"
	"github.com/vsh-labs/chancery/internal/lemma"
	"github.com/vsh-labs/chancery/internal/model"
)

// structuralTermLimit caps how many top terms are derived from a
// department's free-text profile into the structural tier.
const structuralTermLimit = 12

// Loader parses catalog JSON and compiles the immutable keyword index.
// Compilation stems every keyword with the same normalizer the scorer uses
// on documents, so catalog and letter text meet in the same stem space.
type Loader struct {
	normalizer lemma.Normalizer
	logger     *slog.Logger
}

// NewLoader creates a catalog loader.
func NewLoader(normalizer lemma.Normalizer, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{normalizer: normalizer, logger: logger}
}

// Load reads and compiles the catalog file. Any validation failure is fatal
// and names the offending department.
func (l *Loader) Load(path string) (*model.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrCatalogNotFound, path, err)
	}
	return l.Parse(data)
}

// departmentJSON mirrors one catalog department entry on disk.
type departmentJSON struct {
	DepartmentID    string                       `json:"department_id"`
	DepartmentName  string                       `json:"department_name"`
	Description     string                       `json:"description"`
	Functions       []string                     `json:"functions"`
	RoutingKeywords map[string][]json.RawMessage `json:"routing_keywords"`
	OutOfScope      []json.RawMessage            `json:"out_of_scope"`
	NegativeContext []json.RawMessage            `json:"negative_context"`
	BudgetControl   bool                         `json:"budget_control"`
	TriageRules     []triageRuleJSON             `json:"triage_rules"`
}

type triageRuleJSON struct {
	IfAny    []string `json:"if_any"`
	Any      []string `json:"any"`
	All      []string `json:"all"`
	Then     string   `json:"then"`
	Priority string   `json:"priority"`
}

type catalogEnvelope struct {
	CatalogVersion string            `json:"catalog_version"`
	Departments    []json.RawMessage `json:"departments"`
}

// Parse accepts the three catalog payload shapes: an envelope object with a
// departments list, a bare array of departments, or a single department
// object.
func (l *Loader) Parse(data []byte) (*model.Catalog, error) {
	version := "dev"
	var items []json.RawMessage

	var envelope catalogEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Departments) > 0 {
		items = envelope.Departments
		if envelope.CatalogVersion != "" {
			version = envelope.CatalogVersion
		}
	} else if err := json.Unmarshal(data, &items); err != nil {
		var single json.RawMessage
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("%w: payload must be an object or list of objects", common.ErrInvalidCatalog)
		}
		items = []json.RawMessage{single}
	}

	seen := make(map[string]bool, len(items))
	departments := make([]model.Department, 0, len(items))

	for _, item := range items {
		var entry departmentJSON
		if err := json.Unmarshal(item, &entry); err != nil {
			return nil, fmt.Errorf("%w: malformed department entry: %v", common.ErrInvalidCatalog, err)
		}
		if entry.DepartmentID == "" {
			return nil, fmt.Errorf("%w: department_id is required for each department", common.ErrInvalidCatalog)
		}
		if seen[entry.DepartmentID] {
			return nil, fmt.Errorf("%w: department_id must be unique: %s", common.ErrInvalidCatalog, entry.DepartmentID)
		}
		seen[entry.DepartmentID] = true

		if len(entry.RoutingKeywords) == 0 {
			return nil, fmt.Errorf("%w: routing_keywords missing for %s", common.ErrInvalidCatalog, entry.DepartmentID)
		}
		if entry.TriageRules == nil {
			return nil, fmt.Errorf("%w: triage_rules missing for %s", common.ErrInvalidCatalog, entry.DepartmentID)
		}

		department, err := l.compileDepartment(entry)
		if err != nil {
			return nil, err
		}
		departments = append(departments, department)
	}

	return &model.Catalog{Departments: departments, Version: version}, nil
}

func (l *Loader) compileDepartment(entry departmentJSON) (model.Department, error) {
	name := entry.DepartmentName
	if name == "" {
		name = entry.DepartmentID
	}

	keywords := make(map[string][]model.KeywordSpec, len(entry.RoutingKeywords)+3)
	for tier, raw := range entry.RoutingKeywords {
		specs, err := l.compileKeywords(entry.DepartmentID, tier, raw)
		if err != nil {
			return model.Department{}, err
		}
		keywords[tier] = specs
	}

	outOfScope, err := l.compileKeywords(entry.DepartmentID, model.TierOutOfScope, entry.OutOfScope)
	if err != nil {
		return model.Department{}, err
	}
	keywords[model.TierOutOfScope] = append(keywords[model.TierOutOfScope], outOfScope...)

	negative, err := l.compileKeywords(entry.DepartmentID, model.TierNegativeContext, entry.NegativeContext)
	if err != nil {
		return model.Department{}, err
	}
	keywords[model.TierNegativeContext] = append(keywords[model.TierNegativeContext], negative...)

	keywords[model.TierStructural] = append(keywords[model.TierStructural],
		l.structuralKeywords(entry.Description, entry.Functions)...)

	rules := make([]model.TriageRule, 0, len(entry.TriageRules))
	for _, rule := range entry.TriageRules {
		anyTriggers := rule.IfAny
		if len(anyTriggers) == 0 {
			anyTriggers = rule.Any
		}
		if len(anyTriggers) == 0 && len(rule.All) == 0 {
			continue
		}
		action := rule.Then
		if action == "" {
			action = "rule matched"
		}
		rules = append(rules, model.TriageRule{
			Any:          l.compileTriggers(anyTriggers),
			All:          l.compileTriggers(rule.All),
			Action:       action,
			HighPriority: highPriority(action, rule.Priority),
		})
	}

	return model.Department{
		ID:            entry.DepartmentID,
		Name:          name,
		Mission:       entry.Description,
		Keywords:      keywords,
		TriageRules:   rules,
		BudgetControl: entry.BudgetControl,
	}, nil
}

// keywordObject is the object form of a keyword entry; the alternative is a
// plain JSON string. The union is resolved here, once, at load time.
type keywordObject struct {
	Text    string   `json:"text"`
	Anchors []string `json:"anchors"`
}

func (l *Loader) compileKeywords(departmentID, tier string, raw []json.RawMessage) ([]model.KeywordSpec, error) {
	specs := make([]model.KeywordSpec, 0, len(raw))
	for _, item := range raw {
		var text string
		var anchors []string

		trimmed := strings.TrimSpace(string(item))
		if strings.HasPrefix(trimmed, `"`) {
			if err := json.Unmarshal(item, &text); err != nil {
				return nil, fmt.Errorf("%w: bad keyword in %s/%s: %v", common.ErrInvalidCatalog, departmentID, tier, err)
			}
		} else {
			var obj keywordObject
			if err := json.Unmarshal(item, &obj); err != nil || obj.Text == "" {
				return nil, fmt.Errorf("%w: bad keyword object in %s/%s", common.ErrInvalidCatalog, departmentID, tier)
			}
			text = obj.Text
			anchors = obj.Anchors
		}

		spec, ok := l.compileSpec(text, anchors)
		if !ok {
			l.logger.Warn("keyword produced no stems, skipping",
				"department", departmentID, "tier", tier, "keyword", text)
			continue
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (l *Loader) compileTriggers(texts []string) []model.KeywordSpec {
	specs := make([]model.KeywordSpec, 0, len(texts))
	for _, text := range texts {
		if spec, ok := l.compileSpec(text, nil); ok {
			specs = append(specs, spec)
		}
	}
	return specs
}

func (l *Loader) compileSpec(text string, anchors []string) (model.KeywordSpec, bool) {
	lemmas := dedupe(l.normalizer.Normalize(text).Sequence)
	if len(lemmas) == 0 {
		return model.KeywordSpec{}, false
	}
	var anchorStems []string
	for _, anchor := range anchors {
		anchorStems = append(anchorStems, dedupe(l.normalizer.Normalize(anchor).Sequence)...)
	}
	return model.KeywordSpec{Text: text, Lemmas: lemmas, Anchors: dedupe(anchorStems)}, true
}

// structuralKeywords derives single-stem specs from the department's
// free-text profile: the most frequent non-stopword stems across the
// description and function list.
func (l *Loader) structuralKeywords(description string, functions []string) []model.KeywordSpec {
	counts := make(map[string]int)
	order := make([]string, 0, 64)
	texts := append([]string{description}, functions...)
	for _, text := range texts {
		for _, stem := range l.normalizer.Normalize(text).Sequence {
			if structuralStopwords[stem] {
				continue
			}
			if counts[stem] == 0 {
				order = append(order, stem)
			}
			counts[stem]++
		}
	}

	// Stable top-N: frequency descending, first appearance breaking ties.
	top := make([]string, len(order))
	copy(top, order)
	for i := 1; i < len(top); i++ {
		for j := i; j > 0 && counts[top[j]] > counts[top[j-1]]; j-- {
			top[j], top[j-1] = top[j-1], top[j]
		}
	}
	if len(top) > structuralTermLimit {
		top = top[:structuralTermLimit]
	}

	specs := make([]model.KeywordSpec, 0, len(top))
	for _, stem := range top {
		specs = append(specs, model.KeywordSpec{Text: stem, Lemmas: []string{stem}})
	}
	return specs
}

func highPriority(action, marker string) bool {
	if marker != "" {
		lowered := strings.ToLower(marker)
		if strings.Contains(lowered, "high") || strings.Contains(lowered, "высок") {
			return true
		}
	}
	lowered := strings.ToLower(action)
	return strings.Contains(lowered, "высок") && strings.Contains(lowered, "приоритет")
}

func dedupe(stems []string) []string {
	seen := make(map[string]struct{}, len(stems))
	out := make([]string, 0, len(stems))
	for _, stem := range stems {
		if _, ok := seen[stem]; ok {
			continue
		}
		seen[stem] = struct{}{}
		out = append(out, stem)
	}
	return out
}

// structuralStopwords filters connective stems out of derived structural
// keywords. Stemmed forms, matching the Snowball normalizer output.
var structuralStopwords = map[string]bool{
	"был": true, "для": true, "как": true, "котор": true,
	"над": true, "обеспечен": true, "организац": true,
	"осуществлен": true, "отдел": true, "под": true, "при": true,
	"провед": true, "вопрос": true, "работ": true, "сфер": true,
	"так": true, "такж": true, "управлен": true, "учрежден": true,
	"деятельн": true,
	"and": true, "the": true, "for": true, "with": true,
}
