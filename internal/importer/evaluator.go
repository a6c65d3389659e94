package importer

import "strings"

// Evaluator applies a bound rule set to chunks of rows. Evaluation is pure:
// it never mutates rows and keeps no state between chunks, so a chunk can be
// re-evaluated or evaluated while an earlier chunk is still committing.
type Evaluator struct {
	rules      []BoundRule
	messages   map[string]string // "<attribute>.<kind>" -> message override
	attributes map[string]string // attribute -> display name override
}

// NewEvaluator binds the rule set against the attribute map and captures the
// message and attribute-name overrides.
func NewEvaluator(set *RuleSet, attrs *AttributeMap, messages, attributes map[string]string) (*Evaluator, error) {
	bound, err := set.Bind(attrs)
	if err != nil {
		return nil, err
	}
	return &Evaluator{rules: bound, messages: messages, attributes: attributes}, nil
}

// EvaluateChunk returns every failure in the chunk, merged per row/attribute
// and ordered by row position then attribute. Chunk-scoped rules see all
// rows of the chunk; their failures are still attributed to the specific
// row that violated them.
func (e *Evaluator) EvaluateChunk(chunk Chunk) []Failure {
	var raw []Failure

	for _, rule := range e.rules {
		if rule.ChunkScoped() {
			raw = append(raw, e.evaluateChunkRule(rule, chunk)...)
			continue
		}
		for _, row := range chunk.Rows {
			if !rule.check(row.Cell(rule.Index)) {
				raw = append(raw, Failure{
					Row:       row.Position,
					Attribute: rule.Attribute,
					Errors:    []string{e.message(rule)},
				})
			}
		}
	}

	return NormalizeFailures(raw)
}

// evaluateChunkRule handles cross-row rules. Only distinct exists today:
// every occurrence of a value after its first within the chunk fails.
func (e *Evaluator) evaluateChunkRule(rule BoundRule, chunk Chunk) []Failure {
	seen := make(map[string]bool, len(chunk.Rows))
	var failures []Failure

	for _, row := range chunk.Rows {
		value := strings.ToLower(row.Cell(rule.Index))
		if value == "" {
			continue
		}
		if seen[value] {
			failures = append(failures, Failure{
				Row:       row.Position,
				Attribute: rule.Attribute,
				Errors:    []string{e.message(rule)},
			})
			continue
		}
		seen[value] = true
	}

	return failures
}

// message resolves the failure message for a rule: the custom override for
// "<attribute>.<kind>" when present, the rule kind's default otherwise, with
// the ":attribute" placeholder replaced by the display name.
func (e *Evaluator) message(rule BoundRule) string {
	msg, ok := e.messages[rule.Attribute+"."+string(rule.Kind)]
	if !ok {
		msg = rule.defaultMessage()
	}
	if strings.Contains(msg, ":attribute") {
		msg = strings.ReplaceAll(msg, ":attribute", e.displayName(rule.Attribute))
	}
	return msg
}

func (e *Evaluator) displayName(attribute string) string {
	if name, ok := e.attributes[attribute]; ok {
		return name
	}
	return attribute
}
