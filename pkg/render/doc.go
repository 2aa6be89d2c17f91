// Package render turns a model into its two textual forms: a LaTeX document
// for people and a plain-text outline that feeds code generation.
//
// Both renderers are total. They never fail or panic for any model value,
// including nil, an error marker, or a model with no sections. Field values
// arrive from a text-generation backend and may already contain LaTeX: the
// document renderer escapes prose, keeps inline math spans, and strips a
// single surrounding delimiter pair from values placed in math mode so they
// are never delimited twice.
package render
