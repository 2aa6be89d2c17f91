package render

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// segment is a run of text that is either prose or a math span. Math
// segments keep their delimiters.
type segment struct {
	text string
	math bool
}

// segments splits s at inline math spans delimited by "$...$", "$$...$$" or
// "\(...\)". An opening delimiter without a matching close is left in the
// prose segment it appears in. Escaped dollars ("\$") and currency signs
// never delimit.
func segments(s string) []segment {
	var out []segment
	prose := 0
	for i := 0; i < len(s); {
		switch {
		case s[i] == '\\' && i+1 < len(s) && s[i+1] == '(':
			if end := strings.Index(s[i+2:], `\)`); end >= 0 {
				stop := i + 2 + end + 2
				out = appendProse(out, s[prose:i])
				out = append(out, segment{text: s[i:stop], math: true})
				i, prose = stop, stop
				continue
			}
			i += 2
		case s[i] == '\\':
			// Skip the escaped character, so "\$" is not a delimiter.
			i += 2
		case s[i] == '$':
			delim := "$"
			if strings.HasPrefix(s[i:], "$$") {
				delim = "$$"
			} else if currencySign(s, i) {
				i++
				continue
			}
			if end := closingDollar(s, i+len(delim), delim); end >= 0 {
				stop := end + len(delim)
				out = appendProse(out, s[prose:i])
				out = append(out, segment{text: s[i:stop], math: true})
				i, prose = stop, stop
				continue
			}
			i += len(delim)
		default:
			i++
		}
	}
	return appendProse(out, s[prose:])
}

// currencySign reports whether the single "$" at i is a currency sign
// rather than an opening delimiter: it is followed by the end of s,
// whitespace, "/" or ")" as in "($/unit)" and "($)", or by an amount whose
// next "$" has a space before it, as in "$100 for $p$".
func currencySign(s string, i int) bool {
	if i+1 >= len(s) {
		return true
	}
	switch c := s[i+1]; {
	case c == ' ', c == '\t', c == '\n', c == '/', c == ')':
		return true
	case c >= '0' && c <= '9':
		end := closingDollar(s, i+1, "$")
		return end < 0 || s[end-1] == ' '
	}
	return false
}

func appendProse(out []segment, text string) []segment {
	if text == "" {
		return out
	}
	return append(out, segment{text: text})
}

// closingDollar finds the next unescaped delim at or after from, requiring a
// non-empty span in between.
func closingDollar(s string, from int, delim string) int {
	for j := from; j < len(s); j++ {
		switch {
		case s[j] == '\\':
			j++
		case strings.HasPrefix(s[j:], delim):
			if j == from {
				return -1
			}
			return j
		}
	}
	return -1
}

// stripDelimiters removes the delimiters of a math segment.
func stripDelimiters(math string) string {
	for _, pair := range [][2]string{{"$$", "$$"}, {`\(`, `\)`}, {`\[`, `\]`}, {"$", "$"}} {
		if len(math) >= len(pair[0])+len(pair[1]) && strings.HasPrefix(math, pair[0]) && strings.HasSuffix(math, pair[1]) {
			return math[len(pair[0]) : len(math)-len(pair[1])]
		}
	}
	return math
}

// proseEscapes maps reserved typesetting characters to literal-safe forms.
var proseEscapes = map[byte]string{
	'&':  `\&`,
	'%':  `\%`,
	'$':  `\$`,
	'#':  `\#`,
	'_':  `\_`,
	'{':  `\{`,
	'}':  `\}`,
	'~':  `\textasciitilde{}`,
	'^':  `\textasciicircum{}`,
	'\\': `\textbackslash{}`,
}

// EscapeProse escapes every reserved character in s. Sequences that are
// already escaped ("\$", "\%", "\&", "\#", "\_", "\{", "\}") are kept.
func EscapeProse(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && strings.IndexByte(`$%&#_{}`, s[i+1]) >= 0 {
			b.WriteByte(c)
			b.WriteByte(s[i+1])
			i++
			continue
		}
		if esc, ok := proseEscapes[c]; ok {
			b.WriteString(esc)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// neutralizeMath escapes the characters that would break a math context
// taken from the source as-is: a bare "%" starts a comment, a lone "$"
// would close the surrounding math mode, and "&" and "#" are only legal
// inside alignments and macro definitions.
func neutralizeMath(s string) string {
	if !strings.ContainsAny(s, "%$&#") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			b.WriteByte(c)
			b.WriteByte(s[i+1])
			i++
		case c == '%', c == '$', c == '&', c == '#':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Text renders s for a prose context. Inline math spans pass through with
// their delimiters; everything else is escaped.
func Text(s string) string {
	var b strings.Builder
	for _, seg := range segments(s) {
		if seg.math {
			opening, inner, closing := splitDelimiters(seg.text)
			b.WriteString(opening + neutralizeMath(inner) + closing)
			continue
		}
		b.WriteString(EscapeProse(seg.text))
	}
	return b.String()
}

func splitDelimiters(math string) (opening, inner, closing string) {
	inner = stripDelimiters(math)
	if len(inner) == len(math) {
		return "", math, ""
	}
	n := (len(math) - len(inner)) / 2
	return math[:n], inner, math[len(math)-n:]
}

// Math renders s for a context that is already in math mode. A value fully
// wrapped in one delimiter pair loses the pair so it is never delimited
// twice; a value without any delimiters is taken as math as written. When s
// mixes prose and math spans, the prose parts are wrapped in \text{}.
func Math(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	segs := segments(s)
	if len(segs) == 1 && segs[0].math {
		return strings.TrimSpace(neutralizeMath(stripDelimiters(segs[0].text)))
	}
	if whole := stripDelimiters(s); len(whole) < len(s) && strings.HasPrefix(s, `\[`) {
		return strings.TrimSpace(neutralizeMath(whole))
	}
	hasMath := false
	for _, seg := range segs {
		hasMath = hasMath || seg.math
	}
	if !hasMath {
		return neutralizeMath(s)
	}

	var b strings.Builder
	for _, seg := range segs {
		switch {
		case seg.math:
			b.WriteString(neutralizeMath(stripDelimiters(seg.text)))
		case strings.TrimSpace(seg.text) == "":
			b.WriteString(seg.text)
		default:
			b.WriteString(`\text{` + EscapeProse(seg.text) + `}`)
		}
	}
	return b.String()
}

// splitConstraint splits a constraint at the first "(" outside any math
// span into a formula and a trailing description. Without such a
// parenthesis, or when it starts the string, the whole value is the formula.
func splitConstraint(s string) (formula, description string) {
	s = strings.TrimSpace(s)
	offset := 0
	for _, seg := range segments(s) {
		if !seg.math {
			if idx := strings.IndexByte(seg.text, '('); idx >= 0 {
				at := offset + idx
				if strings.TrimSpace(s[:at]) == "" {
					return s, ""
				}
				return strings.TrimSpace(s[:at]), strings.TrimSpace(s[at:])
			}
		}
		offset += len(seg.text)
	}
	return s, ""
}

// capitalize upper-cases the first letter of s and lower-cases the rest,
// so "MAXIMIZE" and "maximize" both read "Maximize". Casers carry state, so
// one is built per call.
func capitalize(s string) string {
	s = strings.TrimSpace(s)
	for i := range s {
		if i == 0 {
			continue
		}
		return cases.Upper(language.Und).String(s[:i]) + cases.Lower(language.Und).String(s[i:])
	}
	return cases.Upper(language.Und).String(s)
}

// objectiveLabels returns the display kind and expression of an objective,
// with defaults for missing parts.
func objectiveLabels(kind, expression string) (string, string) {
	label := capitalize(kind)
	if label == "" {
		label = "Objective"
	}
	expr := strings.TrimSpace(expression)
	if expr == "" {
		expr = "N/A"
	}
	return label, expr
}
