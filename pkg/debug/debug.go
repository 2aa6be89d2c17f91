// Package debug gates verbose logging by component.
//
// ORMODELER_DEBUG (or logging.debug in the config file) names the components
// whose debug lines are emitted; ORMODELER_LOG_LEVEL (or logging.level) sets
// the slog level of the default logger:
//
//	ORMODELER_DEBUG=normalize,sandbox ORMODELER_LOG_LEVEL=DEBUG server
//
// Model output and generated code are untrusted and can be large. Log them
// through Truncate at DEBUG and in full only at TRACE.
package debug

import (
	"log/slog"
	"os"
	"slices"
	"strings"
	"unicode/utf8"
)

// LevelTrace sits below slog.LevelDebug. Full model output and code are
// only logged at this level.
const LevelTrace = slog.LevelDebug - 4

// Environment variables read by Init.
const (
	EnvCategories = "ORMODELER_DEBUG"
	EnvLevel      = "ORMODELER_LOG_LEVEL"
)

// Known lists the components that log through this package. "all" enables
// every one of them.
var Known = []string{"normalize", "sandbox", "provider", "engine", "mcp", "auth", "config"}

// enabled is written by Init before any goroutines start and only read after.
var enabled = parseCategories(os.Getenv(EnvCategories))

// Init installs a text handler on stderr as the default slog logger and
// selects the enabled categories. Environment values win over the ones
// from the config file. Unknown category names are reported and ignored.
func Init(configCategories, configLevel string) {
	cats := firstNonEmpty(os.Getenv(EnvCategories), configCategories)
	level := firstNonEmpty(os.Getenv(EnvLevel), configLevel, "INFO")

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})))

	enabled = parseCategories(cats)
	for cat := range enabled {
		if cat != "all" && !slices.Contains(Known, cat) {
			slog.Warn("unknown debug category", "category", cat, "known", strings.Join(Known, ","))
			delete(enabled, cat)
		}
	}
}

// Enabled reports whether debug output is on for category.
func Enabled(category string) bool {
	return enabled["all"] || enabled[category]
}

// Log emits a DEBUG record tagged with category, if the category is enabled.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a TRACE record tagged with category, if the category is enabled.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(nil, LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// ParseLevel maps a level name to a slog.Level. Unrecognized names give INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Truncate returns s cut to at most maxLen bytes, with "..." appended if
// anything was removed. The cut never splits a UTF-8 sequence.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		if cat = strings.ToLower(strings.TrimSpace(cat)); cat != "" {
			m[cat] = true
		}
	}
	return m
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
