package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Name is a normalized player name. The zero value is the empty name, which
// never matches anything.
type Name struct {
	Tokens []string
}

// String joins the tokens with single spaces.
func (n Name) String() string {
	return strings.Join(n.Tokens, " ")
}

// Empty reports whether the name has no tokens.
func (n Name) Empty() bool {
	return len(n.Tokens) == 0
}

// Equal reports token-sequence equality.
func (n Name) Equal(o Name) bool {
	if len(n.Tokens) != len(o.Tokens) {
		return false
	}
	for i := range n.Tokens {
		if n.Tokens[i] != o.Tokens[i] {
			return false
		}
	}
	return true
}

// First returns the first token, or "".
func (n Name) First() string {
	if len(n.Tokens) == 0 {
		return ""
	}
	return n.Tokens[0]
}

// Last returns the last token, or "". It is the surname proxy.
func (n Name) Last() string {
	if len(n.Tokens) == 0 {
		return ""
	}
	return n.Tokens[len(n.Tokens)-1]
}

// without returns a copy of n minus the token at i.
func (n Name) without(i int) Name {
	out := make([]string, 0, len(n.Tokens)-1)
	out = append(out, n.Tokens[:i]...)
	out = append(out, n.Tokens[i+1:]...)
	return Name{Tokens: out}
}

// Letters NFD leaves intact because Unicode does not define them as a base
// letter plus a mark.
var foldings = map[rune]string{
	'ø': "o", 'Ø': "o",
	'ł': "l", 'Ł': "l",
	'đ': "d", 'Đ': "d",
	'ð': "d", 'Ð': "d",
	'þ': "th", 'Þ': "th",
	'æ': "ae", 'Æ': "ae",
	'œ': "oe", 'Œ': "oe",
	'ß': "ss", 'ẞ': "ss",
	'ı': "i",
}

// Normalize canonicalizes a raw name: canonical decomposition, combining
// marks dropped, hyphens and whitespace runs collapsed to one separator,
// lower-cased, punctuation removed, split into tokens. It never fails.
func Normalize(raw string) Name {
	if strings.TrimSpace(raw) == "" {
		return Name{}
	}

	// Transformers carry state, so each call builds its own chain.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	decomposed, _, err := transform.String(stripMarks, raw)
	if err != nil {
		decomposed = raw
	}

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		// Lowered before folding so every cased form hits the table.
		r = unicode.ToLower(r)
		if fold, ok := foldings[r]; ok {
			b.WriteString(fold)
			continue
		}
		switch {
		case isSeparator(r):
			b.WriteByte(' ')
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}

	tokens := strings.Fields(b.String())
	if len(tokens) == 0 {
		return Name{}
	}
	return Name{Tokens: tokens}
}

func isSeparator(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '-', '‐', '‑', '‒', '–', '—', '_':
		return true
	}
	return false
}
