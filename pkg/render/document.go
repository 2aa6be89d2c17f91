package render

import (
	"fmt"
	"strings"

	"github.com/rhuss/ormodeler/pkg/model"
)

// NoComponentsDocument is written in place of a body when the model has no
// renderable section.
const NoComponentsDocument = "No model components found to render or model structure is not as expected."

// Section headings of the typeset document, in output order.
const (
	HeadingSets        = `\section*{Sets}`
	HeadingParameters  = `\section*{Parameters}`
	HeadingVariables   = `\section*{Decision Variables}`
	HeadingObjective   = `\section*{Objective Function}`
	HeadingConstraints = `\section*{Constraints}`
	HeadingData        = `\section*{Data Values}`
	HeadingError       = `\section*{Error in Model Generation}`
)

var preamble = []string{
	`\documentclass{article}`,
	`\usepackage[utf8]{inputenc}`,
	`\usepackage[T1]{fontenc}`,
	`\usepackage{amsmath}`,
	`\usepackage{amsfonts}`,
	`\usepackage{amssymb}`,
	`\usepackage{array}`,
	`\usepackage{booktabs}`,
	`\usepackage[margin=1in]{geometry}`,
	`\usepackage{parskip}`,
	`\usepackage{xcolor}`,
	``,
	`\newcommand{\safemath}[1]{\ensuremath{#1}}`,
	`\title{Operations Research Model Formulation}`,
	`\author{Auto-Modeler}`,
	`\date{\today}`,
	`\begin{document}`,
	`\maketitle`,
	`\section*{Problem Overview}`,
	`This document presents the mathematical formulation of the Operations Research problem using standard notation.`,
}

const endDocument = `\end{document}`

// Document renders m as a self-contained LaTeX document. It is total: a nil
// model or one carrying Error yields a minimal error document, and a model
// without any section yields the preamble with a notice.
func Document(m *model.Model) string {
	if m == nil {
		return errorDocument("invalid model representation")
	}
	if m.HasError() {
		return errorDocument(m.Error)
	}

	w := &lineWriter{}
	for _, line := range preamble {
		w.line(line)
	}

	if m.IsEmpty() {
		w.line(NoComponentsDocument)
	} else {
		writeSets(w, m.Sets)
		writeMapping(w, HeadingParameters, m.Parameters)
		writeMapping(w, HeadingVariables, m.Variables)
		writeObjective(w, m.Objective)
		writeConstraints(w, m.Constraints)
		writeData(w, m.Data)
	}

	w.line(endDocument)
	return w.String()
}

func errorDocument(msg string) string {
	w := &lineWriter{}
	w.line(`\documentclass{article}`)
	w.line(`\usepackage{amsmath}`)
	w.line(`\usepackage{xcolor}`)
	w.line(`\begin{document}`)
	w.line(HeadingError)
	w.linef(`\textcolor{red}{Error: %s}`, EscapeProse(msg))
	w.line(``)
	w.line(`Please check your problem statement and try again.`)
	w.line(endDocument)
	return w.String()
}

func writeSets(w *lineWriter, sets []string) {
	if len(sets) == 0 {
		return
	}
	w.line(HeadingSets)
	w.line(`\begin{itemize}`)
	for _, s := range sets {
		w.linef(`    \item %s`, Text(s))
	}
	w.line(`\end{itemize}`)
}

func writeMapping(w *lineWriter, heading string, m model.Mapping) {
	if len(m) == 0 {
		return
	}
	w.line(heading)
	w.line(`\begin{itemize}`)
	for _, e := range m {
		w.linef(`    \item %s: %s`, safeMath(e.Key), Text(e.Value))
	}
	w.line(`\end{itemize}`)
}

func writeObjective(w *lineWriter, obj *model.Objective) {
	if obj.IsZero() {
		return
	}
	kind, expr := objectiveLabels(string(obj.Kind), obj.Expression)
	body := Math(expr)
	if strings.TrimSpace(obj.Expression) == "" {
		body = `\text{N/A}`
	}
	w.line(HeadingObjective)
	w.line(`\begin{center}`)
	w.linef(`\textbf{%s:}`, EscapeProse(kind))
	w.line(`\begin{equation*}`)
	w.line(body)
	w.line(`\end{equation*}`)
	w.line(`\end{center}`)
}

func writeConstraints(w *lineWriter, constraints []string) {
	if len(constraints) == 0 {
		return
	}
	w.line(HeadingConstraints)
	w.line(`\noindent\textbf{Subject to:}`)
	w.line(`\begin{itemize}`)
	for _, c := range constraints {
		formula, description := splitConstraint(c)
		w.line(`    \item`)
		w.line(`    \begin{center}`)
		w.line(`    \begin{minipage}{0.9\textwidth}`)
		w.line(`    \begin{equation*}`)
		w.linef(`    %s`, Math(formula))
		w.line(`    \end{equation*}`)
		if description != "" {
			w.linef(`    \centering{%s}`, Text(description))
		}
		w.line(`    \end{minipage}`)
		w.line(`    \end{center}`)
	}
	w.line(`\end{itemize}`)
}

func writeData(w *lineWriter, data []model.DataEntry) {
	if len(data) == 0 {
		return
	}
	w.line(HeadingData)
	w.line(`\begin{itemize}`)
	for _, d := range data {
		key := dataKey(d.Key)
		switch d.Value.Kind {
		case model.MapValue:
			w.linef(`    \item %s:`, key)
			w.line(`    \begin{center}`)
			w.line(`    \begin{tabular}{lr}`)
			w.line(`    \toprule`)
			w.line(`    \textbf{Index} & \textbf{Value} \\`)
			w.line(`    \midrule`)
			for _, e := range d.Value.Map {
				w.linef(`    %s & %s \\`, Text(e.Key), Text(e.Value))
			}
			w.line(`    \bottomrule`)
			w.line(`    \end{tabular}`)
			w.line(`    \end{center}`)
		case model.ListValue:
			items := make([]string, len(d.Value.List))
			for i, item := range d.Value.List {
				items[i] = Text(item)
			}
			w.linef(`    \item %s: [%s]`, key, strings.Join(items, ", "))
		default:
			w.linef(`    \item %s: %s`, key, Text(d.Value.Scalar))
		}
	}
	w.line(`\end{itemize}`)
}

// dataKey renders a data key. A key that is one math span typesets as
// math; anything else is prose, so "total_cost" keeps its underscore.
func dataKey(key string) string {
	if segs := segments(strings.TrimSpace(key)); len(segs) == 1 && segs[0].math {
		return safeMath(key)
	}
	return Text(key)
}

// safeMath wraps a symbol in \safemath so it typesets in math mode whether
// or not the source delimited it.
func safeMath(symbol string) string {
	return `\safemath{` + Math(symbol) + `}`
}

type lineWriter struct {
	b strings.Builder
}

func (w *lineWriter) line(s string) {
	w.b.WriteString(s)
	w.b.WriteByte('\n')
}

func (w *lineWriter) linef(format string, args ...any) {
	fmt.Fprintf(&w.b, format, args...)
	w.b.WriteByte('\n')
}

func (w *lineWriter) String() string {
	return strings.TrimSuffix(w.b.String(), "\n")
}
