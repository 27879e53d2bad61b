// Package query turns user search input into a structured query: escaped
// free text with boolean operators and wildcards, plus exact-case phrases.
package query

import (
	"regexp"
	"slices"
	"strings"

	"github.com/sha1n/seekql/internal/domain"
)

// Kind identifies the type of a clause
type Kind string

const (
	// KindFreeText is a case-insensitive boolean clause over the content field
	KindFreeText Kind = "free_text"
	// KindPhrase is an exact-case, zero-slop phrase over the content.cs field
	KindPhrase Kind = "phrase"
)

// Clause is one required part of a Query
type Clause struct {
	Kind            Kind   `json:"kind"`
	Field           string `json:"field"`
	Text            string `json:"text"`
	DefaultOperator string `json:"default_operator,omitempty"`
	AnalyzeWildcard bool   `json:"analyze_wildcard,omitempty"`
	Slop            int    `json:"slop"`
}

// Query is an ordered list of clauses that must all match
type Query struct {
	Clauses []Clause `json:"clauses"`
}

// Empty reports whether the query has no clauses
func (q Query) Empty() bool {
	return len(q.Clauses) == 0
}

// FreeText returns the free-text clause, if any
func (q Query) FreeText() (Clause, bool) {
	for _, c := range q.Clauses {
		if c.Kind == KindFreeText {
			return c, true
		}
	}
	return Clause{}, false
}

// Phrases returns the phrase clauses in input order
func (q Query) Phrases() []Clause {
	var out []Clause
	for _, c := range q.Clauses {
		if c.Kind == KindPhrase {
			out = append(out, c)
		}
	}
	return out
}

const (
	// reservedChars are escaped in every non-operator token. * and ? are wildcards and pass through.
	reservedChars = `+-!(){}[]^"~:\/`

	// userSingleWildcard is the single-character wildcard accepted from users
	userSingleWildcard = "%"
)

var (
	phrasePattern     = regexp.MustCompile(`"([^"]*)"`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Escape backslash-escapes every reserved character in term
func Escape(term string) string {
	var sb strings.Builder
	sb.Grow(len(term))
	for _, r := range term {
		if strings.ContainsRune(reservedChars, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// isOperator reports whether tok is a boolean keyword, in any case
func isOperator(tok string) bool {
	switch strings.ToUpper(tok) {
	case "AND", "OR", "NOT":
		return true
	}
	return false
}

// escapeFreeText maps the user wildcard, uppercases operators and escapes
// every other token, keeping the original whitespace between tokens.
func escapeFreeText(text string) string {
	text = strings.ReplaceAll(text, userSingleWildcard, "?")

	var sb strings.Builder
	last := 0
	for _, loc := range whitespacePattern.FindAllStringIndex(text, -1) {
		sb.WriteString(escapeToken(text[last:loc[0]]))
		sb.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	sb.WriteString(escapeToken(text[last:]))
	return sb.String()
}

func escapeToken(tok string) string {
	if tok == "" {
		return ""
	}
	if isOperator(tok) {
		return strings.ToUpper(tok)
	}
	return Escape(tok)
}

// Translate converts raw user input into a Query.
// Every "quoted" segment becomes its own exact-case phrase clause; blank
// quotes are dropped. What remains becomes one free-text clause with % mapped
// to the single-character wildcard, AND/OR/NOT preserved as operators and all
// other reserved characters escaped. An unmatched quote stays in the free
// text and is escaped.
func Translate(raw string) Query {
	var q Query

	var phrases []string
	for _, m := range phrasePattern.FindAllStringSubmatch(raw, -1) {
		if strings.TrimSpace(m[1]) != "" {
			phrases = append(phrases, m[1])
		}
	}
	remaining := strings.TrimSpace(phrasePattern.ReplaceAllString(raw, " "))

	if remaining != "" {
		q.Clauses = append(q.Clauses, freeTextClause(escapeFreeText(remaining)))
	}
	for _, p := range phrases {
		q.Clauses = append(q.Clauses, Clause{
			Kind:  KindPhrase,
			Field: domain.FieldContentCS,
			Text:  p,
			Slop:  0,
		})
	}

	return q
}

func freeTextClause(text string) Clause {
	return Clause{
		Kind:            KindFreeText,
		Field:           domain.FieldContent,
		Text:            text,
		DefaultOperator: "AND",
		AnalyzeWildcard: true,
	}
}

// Build constructs a boolean query string from term groups: allOf terms are
// AND-joined, anyOf terms OR-joined inside parentheses, and each noneOf term
// is prefixed with NOT. Non-empty groups are AND-joined in that order.
// All terms are escaped; blank terms are ignored.
func Build(allOf, anyOf, noneOf []string) string {
	var parts []string
	if all := escapeAll(allOf, ""); len(all) > 0 {
		parts = append(parts, strings.Join(all, " AND "))
	}
	if anyTerms := escapeAll(anyOf, ""); len(anyTerms) > 0 {
		parts = append(parts, "("+strings.Join(anyTerms, " OR ")+")")
	}
	if none := escapeAll(noneOf, "NOT "); len(none) > 0 {
		parts = append(parts, strings.Join(none, " "))
	}
	return strings.Join(parts, " AND ")
}

// BuildQuery wraps the Build output in a single free-text clause
func BuildQuery(allOf, anyOf, noneOf []string) Query {
	text := Build(allOf, anyOf, noneOf)
	if text == "" {
		return Query{}
	}
	return Query{Clauses: []Clause{freeTextClause(text)}}
}

// And returns a query requiring both q and other. The free-text clauses are
// merged into one, kept at the position of the first.
func (q Query) And(other Query) Query {
	var out Query
	merged := -1
	for _, c := range append(slices.Clone(q.Clauses), other.Clauses...) {
		if c.Kind != KindFreeText {
			out.Clauses = append(out.Clauses, c)
			continue
		}
		if merged < 0 {
			merged = len(out.Clauses)
			out.Clauses = append(out.Clauses, c)
			continue
		}
		prev := out.Clauses[merged].Text
		out.Clauses[merged] = freeTextClause("(" + prev + ") AND (" + c.Text + ")")
	}
	return out
}

func escapeAll(terms []string, prefix string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, prefix+Escape(t))
		}
	}
	return out
}
