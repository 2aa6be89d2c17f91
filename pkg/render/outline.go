package render

import (
	"strings"

	"github.com/rhuss/ormodeler/pkg/model"
)

// NoComponentsOutline is returned by Outline when no section has content.
const NoComponentsOutline = "No model components found to render."

// Outline section titles, in output order.
const (
	OutlineSets        = "SETS"
	OutlineParameters  = "PARAMETERS"
	OutlineVariables   = "VARIABLES"
	OutlineObjective   = "OBJECTIVE FUNCTION"
	OutlineConstraints = "CONSTRAINTS"
	OutlineData        = "DATA"
)

// ErrorOutline is the outline of a model carrying an error.
func ErrorOutline(msg string) string {
	return "Error: " + msg
}

// Outline renders m as plain text: one "--- TITLE ---" header per populated
// section, followed by "- item" lines for sequences, "key: value" lines for
// mappings, or "<Kind>: <expression>" for the objective. Sections are
// separated by a blank line. Values are written verbatim.
func Outline(m *model.Model) string {
	if m == nil {
		return ErrorOutline("invalid model representation")
	}
	if m.HasError() {
		return ErrorOutline(m.Error)
	}

	var sections []string
	add := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		sections = append(sections, "--- "+title+" ---\n"+strings.Join(lines, "\n"))
	}

	add(OutlineSets, bullets(m.Sets))
	add(OutlineParameters, pairs(m.Parameters))
	add(OutlineVariables, pairs(m.Variables))
	if !m.Objective.IsZero() {
		kind, expr := objectiveLabels(string(m.Objective.Kind), m.Objective.Expression)
		add(OutlineObjective, []string{kind + ": " + expr})
	}
	add(OutlineConstraints, bullets(m.Constraints))
	add(OutlineData, dataLines(m.Data))

	if len(sections) == 0 {
		return NoComponentsOutline
	}
	return strings.Join(sections, "\n\n") + "\n"
}

func bullets(items []string) []string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return lines
}

func pairs(m model.Mapping) []string {
	lines := make([]string, len(m))
	for i, e := range m {
		lines[i] = e.Key + ": " + e.Value
	}
	return lines
}

func dataLines(data []model.DataEntry) []string {
	lines := make([]string, len(data))
	for i, d := range data {
		lines[i] = d.Key + ": " + d.Value.String()
	}
	return lines
}
