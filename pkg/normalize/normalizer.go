package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rhuss/ormodeler/pkg/debug"
	"github.com/rhuss/ormodeler/pkg/model"
	"github.com/rhuss/ormodeler/pkg/observability"
)

// StrategyFallback is the metric label used when every strategy failed.
const StrategyFallback = "fallback"

var errEmptyInput = errors.New("empty response text")

// Normalizer turns raw backend text into a model by trying its strategies
// in order. It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	strategies []Strategy
	logger     *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithStrategies replaces the default recovery chain.
func WithStrategies(strategies ...Strategy) Option {
	return func(n *Normalizer) { n.strategies = strategies }
}

// WithLogger sets the logger used for parse failure warnings.
func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) { n.logger = l }
}

// New creates a Normalizer using DefaultStrategies unless overridden.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		strategies: DefaultStrategies(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var defaultNormalizer = New()

// Normalize runs the default recovery chain over raw.
func Normalize(raw string) *model.Model {
	return defaultNormalizer.Normalize(raw)
}

// Normalize extracts a model from raw. It never fails: when no strategy
// succeeds the returned model carries Error and RawOutput only.
func (n *Normalizer) Normalize(raw string) *model.Model {
	text := StripFences(raw)

	var firstErr error
	if text == "" {
		firstErr = errEmptyInput
	}

	for _, s := range n.strategies {
		if text == "" {
			break
		}
		m, err := apply(s, text)
		if err != nil || m == nil {
			if err == nil {
				err = fmt.Errorf("strategy %s returned no model", s.Name)
			}
			if firstErr == nil {
				firstErr = err
			}
			debug.Log("normalize", "strategy failed", "strategy", s.Name, "error", err.Error())
			continue
		}

		if s.Partial {
			m.Error = fmt.Sprintf("JSON parsing error, but partial extraction was attempted: %v", firstErr)
			m.RawOutput = raw
			n.logger.Warn("model output could not be parsed, returning partial extraction",
				"strategy", s.Name,
				"error", errString(firstErr),
				"raw", debug.Truncate(raw, 200),
			)
		} else {
			debug.Log("normalize", "strategy succeeded", "strategy", s.Name)
		}
		observability.NormalizeTotal.WithLabelValues(s.Name).Inc()
		return m
	}

	if firstErr == nil {
		firstErr = errors.New("no recovery strategy configured")
	}
	n.logger.Warn("model output could not be parsed",
		"error", firstErr.Error(),
		"raw", debug.Truncate(raw, 200),
	)
	observability.NormalizeTotal.WithLabelValues(StrategyFallback).Inc()
	return &model.Model{
		Error:     fmt.Sprintf("failed to parse model output: %v", firstErr),
		RawOutput: raw,
	}
}

// apply runs a strategy, converting a panic into a strategy failure.
func apply(s Strategy, text string) (m *model.Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			m = nil
			err = fmt.Errorf("strategy %s panicked: %v", s.Name, r)
		}
	}()
	return s.Apply(text)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}
