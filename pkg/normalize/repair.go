package normalize

import (
	"regexp"
	"strings"
)

const fence = "```"

// StripFences removes a code fence from the very start and the very end of
// the trimmed text. An info string on the opening fence ("```json",
// "```python") is dropped with it when it is a single word on the fence line.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, fence) {
		trimmed = trimmed[len(fence):]
		line, rest, found := strings.Cut(trimmed, "\n")
		if isInfoString(line) {
			if found {
				trimmed = rest
			} else {
				trimmed = ""
			}
		}
	}
	trimmed = strings.TrimSpace(trimmed)
	if strings.HasSuffix(trimmed, fence) {
		trimmed = strings.TrimSuffix(trimmed, fence)
	}
	return strings.TrimSpace(trimmed)
}

// StripCodeFence removes Markdown fences from generated source code.
func StripCodeFence(code string) string {
	return StripFences(code)
}

func isInfoString(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	for _, r := range line {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '+', r == '.':
		default:
			return false
		}
	}
	return true
}

// currencyGroup matches the parenthesized currency annotations the backend
// escapes for LaTeX, e.g. "(\$)" and "(\$/unit)".
var currencyGroup = regexp.MustCompile(`\(\\\$(/[A-Za-z][A-Za-z ]*)?\)`)

// NormalizeCurrency rewrites escaped currency annotations such as "(\$)" and
// "(\$/unit)" to their unescaped form. A lone backslash before "$" is not a
// valid JSON escape, and in these positions it carries no meaning.
func NormalizeCurrency(text string) string {
	return currencyGroup.ReplaceAllString(text, `($$$1)`)
}

// UnescapeCurrency turns every escaped dollar sign into a bare one. Only odd
// backslash runs are touched, so an escaped backslash followed by "$" is left
// alone.
func UnescapeCurrency(text string) string {
	if !strings.Contains(text, `\$`) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		if text[i] != '\\' {
			b.WriteByte(text[i])
			i++
			continue
		}
		n := backslashRun(text, i)
		if n%2 == 1 && i+n < len(text) && text[i+n] == '$' {
			n--
			b.WriteString(text[i : i+n])
			i += n + 1
			continue
		}
		b.WriteString(text[i : i+n])
		i += n
	}
	return b.String()
}

// RepairEscapes fixes backslashes inside every string literal of text so the
// result can be parsed as JSON. Text outside string literals is copied
// unchanged.
//
// Within a literal, a lone backslash is doubled unless it starts an escape
// that LaTeX never produces: \" \/ \uXXXX, or one of \n \r \t \b \f whose
// letters do not spell a known LaTeX command. "\frac" and "\nu" therefore
// become "\\frac" and "\\nu", while "\n" in "one\ntwo" stays a newline. Runs
// of two or more backslashes are left as they are. Raw control characters
// are escaped.
func RepairEscapes(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/8)
	for i := 0; i < len(text); {
		if text[i] != '"' {
			b.WriteByte(text[i])
			i++
			continue
		}
		end := literalEnd(text, i)
		if end < 0 {
			b.WriteString(text[i:])
			break
		}
		b.WriteByte('"')
		repairLiteral(&b, text[i+1:end])
		b.WriteByte('"')
		i = end + 1
	}
	return b.String()
}

// literalEnd returns the index of the quote closing the literal opened at
// start, or -1 when the literal is unterminated.
func literalEnd(text string, start int) int {
	for j := start + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case '"':
			return j
		}
	}
	return -1
}

func repairLiteral(b *strings.Builder, content string) {
	for i := 0; i < len(content); {
		c := content[i]
		switch c {
		case '\\':
			n := backslashRun(content, i)
			if n == 1 && !keepsEscape(content, i) {
				b.WriteString(`\\`)
			} else {
				b.WriteString(content[i : i+n])
			}
			i += n
			continue
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
		i++
	}
}

// keepsEscape reports whether the lone backslash at i begins a JSON escape
// that should be kept.
func keepsEscape(s string, i int) bool {
	if i+1 >= len(s) {
		return false
	}
	switch s[i+1] {
	case '"', '/':
		return true
	case 'u':
		return i+6 <= len(s) && isHex(s[i+2:i+6])
	case 'n', 'r', 't', 'b', 'f':
		return !latexCommands[commandName(s, i+1)]
	default:
		return false
	}
}

// commandName returns the run of ASCII letters starting at i.
func commandName(s string, i int) string {
	j := i
	for j < len(s) && isLetter(s[j]) {
		j++
	}
	return s[i:j]
}

// latexCommands holds the math and text commands whose names start with a
// letter that is also a JSON control escape. A lone "\n", "\r", "\t",
// "\b" or "\f" is only doubled when it spells one of these.
var latexCommands = map[string]bool{
	"nu": true, "neq": true, "ne": true, "nabla": true, "neg": true, "not": true,
	"ni": true, "notin": true, "nleq": true, "ngeq": true, "nmid": true,
	"nexists": true, "natural": true, "nearrow": true, "nwarrow": true,
	"newline": true, "noindent": true, "nonumber": true, "nolimits": true,
	"nsubseteq": true, "nparallel": true,

	"rho": true, "right": true, "rightarrow": true, "rangle": true, "rceil": true,
	"rfloor": true, "rbrace": true, "rbrack": true, "rvert": true, "rVert": true,
	"rm": true, "root": true, "rightleftharpoons": true, "restriction": true,

	"tau": true, "theta": true, "times": true, "to": true, "top": true,
	"text": true, "textbf": true, "textit": true, "textrm": true, "texttt": true,
	"textnormal": true, "textsf": true, "tilde": true, "triangle": true,
	"triangleq": true, "tfrac": true, "tbinom": true, "tan": true, "tanh": true,
	"therefore": true, "thinspace": true, "tag": true, "textstyle": true,

	"beta": true, "bar": true, "bf": true, "big": true, "bigl": true, "bigr": true,
	"bigg": true, "biggl": true, "biggr": true, "bigcup": true, "bigcap": true,
	"bigvee": true, "bigwedge": true, "bigoplus": true, "bigotimes": true,
	"binom": true, "bmod": true, "bot": true, "boldsymbol": true, "backslash": true,
	"because": true, "begin": true, "bullet": true, "bmatrix": true, "boxed": true,
	"breve": true,

	"frac": true, "forall": true, "flat": true, "frown": true, "footnote": true,
	"fbox": true,
}

func backslashRun(s string, i int) int {
	n := 0
	for i+n < len(s) && s[i+n] == '\\' {
		n++
	}
	return n
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// extractObject returns the first balanced JSON object in text. Braces inside
// string literals are ignored.
func extractObject(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escape := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if start == -1 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}
		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
