// Package model defines the structured representation of an optimization
// model as produced by the text-generation backend: sets, parameters,
// decision variables, an objective, constraints and optional data values.
//
// Every field is optional. Parameters, variables and data keep the order
// in which their keys appeared in the source document, because the
// renderers emit them in that order. Decoding is ordered (see [Parse]) and
// encoding writes keys back in the same order.
//
// A Model with Error set is an error marker. Renderers give Error priority
// over any other populated field.
package model
