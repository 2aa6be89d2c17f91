package normalize

import (
	"errors"
	"strings"

	"github.com/rhuss/ormodeler/pkg/model"
)

// Strategy is one recovery step. Apply receives the fence-stripped text and
// either returns a model or the reason it could not.
//
// A Partial strategy produces a degraded model; the normalizer marks its
// result with the parse failure of the earlier strategies.
type Strategy struct {
	Name    string
	Partial bool
	Apply   func(text string) (*model.Model, error)
}

// Strategy names, also used as metric labels.
const (
	StrategyRepaired          = "repaired"
	StrategyCurrencyUnescaped = "currency-unescaped"
	StrategyEmbeddedObject    = "embedded-object"
	StrategyPartial           = "partial-extraction"
)

var errNoObject = errors.New("no JSON object found in text")

// DefaultStrategies returns the recovery chain in the order it is tried.
//
// The first two are alternatives applied to the same input, not stages
// applied on top of each other: unescaping every "\$" after the literal
// repair would undo the doubling that repair performed.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyRepaired, Apply: parseRepaired},
		{Name: StrategyCurrencyUnescaped, Apply: parseCurrencyUnescaped},
		{Name: StrategyEmbeddedObject, Apply: parseEmbeddedObject},
		{Name: StrategyPartial, Partial: true, Apply: extractPartial},
	}
}

// Repair applies the character-level repairs of the first strategy.
func Repair(text string) string {
	return RepairEscapes(NormalizeCurrency(text))
}

func parseRepaired(text string) (*model.Model, error) {
	return model.Parse(Repair(text))
}

func parseCurrencyUnescaped(text string) (*model.Model, error) {
	return model.Parse(UnescapeCurrency(text))
}

func parseEmbeddedObject(text string) (*model.Model, error) {
	obj, ok := extractObject(text)
	if !ok {
		return nil, errNoObject
	}
	if obj == text {
		// Same input as the first strategy; it already failed.
		return nil, errNoObject
	}
	return model.Parse(Repair(obj))
}

// Placeholder values used by partial extraction.
const (
	PlaceholderSets        = "Extracted sets failed - see raw output"
	PlaceholderParameters  = "Parameters extraction failed"
	PlaceholderVariables   = "Variables extraction failed"
	PlaceholderObjective   = "Extracted objective failed"
	PlaceholderExpression  = "See raw output"
	PlaceholderConstraints = "Constraints extraction failed"
)

var errNoFields = errors.New("no model fields found in text")

// extractPartial looks for the names of the top-level fields in text and
// fills each one it finds with a placeholder. It never tries to parse
// values, so it cannot be fooled by the malformed text that defeated the
// parsing strategies.
func extractPartial(text string) (*model.Model, error) {
	m := &model.Model{}
	found := false
	if mentions(text, "sets") {
		m.Sets = []string{PlaceholderSets}
		found = true
	}
	if mentions(text, "parameters") {
		m.Parameters = model.Mapping{{Key: "Error", Value: PlaceholderParameters}}
		found = true
	}
	if mentions(text, "variables") {
		m.Variables = model.Mapping{{Key: "Error", Value: PlaceholderVariables}}
		found = true
	}
	if mentions(text, "objective") {
		m.Objective = &model.Objective{
			Kind:       model.ObjectiveKind(PlaceholderObjective),
			Expression: PlaceholderExpression,
		}
		found = true
	}
	if mentions(text, "constraints") {
		m.Constraints = []string{PlaceholderConstraints}
		found = true
	}
	if !found {
		return nil, errNoFields
	}
	return m, nil
}

// mentions reports whether text contains field as a quoted key.
func mentions(text, field string) bool {
	return strings.Contains(text, `"`+field+`"`) || strings.Contains(text, `'`+field+`'`)
}
