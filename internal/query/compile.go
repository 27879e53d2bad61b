package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	bq "github.com/blevesearch/bleve/v2/search/query"

	"github.com/sha1n/seekql/internal/domain"
)

// ErrSyntax is returned for free text that is not a valid boolean expression
var ErrSyntax = errors.New("invalid query syntax")

// Analyzers tokenizes clause text the same way the index does
type Analyzers struct {
	// CaseInsensitive is applied to free-text terms
	CaseInsensitive analysis.Analyzer
	// CaseSensitive is applied to phrases
	CaseSensitive analysis.Analyzer
}

// Compile converts q into a Bleve query. Clauses are combined with AND.
// A query without effective clauses matches nothing.
func Compile(q Query, analyzers Analyzers) (bq.Query, error) {
	var must []bq.Query

	for _, c := range q.Clauses {
		switch c.Kind {
		case KindFreeText:
			compiled, err := compileFreeText(c, analyzers.CaseInsensitive)
			if err != nil {
				return nil, err
			}
			if compiled != nil {
				must = append(must, compiled)
			}
		case KindPhrase:
			must = append(must, compilePhrase(c, analyzers.CaseSensitive))
		default:
			return nil, fmt.Errorf("%w: unknown clause kind %q", ErrSyntax, c.Kind)
		}
	}

	switch len(must) {
	case 0:
		return bleve.NewMatchNoneQuery(), nil
	case 1:
		return must[0], nil
	default:
		return bleve.NewConjunctionQuery(must...), nil
	}
}

// compilePhrase builds a zero-slop phrase query over the analyzed phrase tokens.
// A phrase without tokens matches nothing.
func compilePhrase(c Clause, analyzer analysis.Analyzer) bq.Query {
	field := c.Field
	if field == "" {
		field = domain.FieldContentCS
	}
	terms := analyzeTerms(analyzer, c.Text)
	if len(terms) == 0 {
		return bleve.NewMatchNoneQuery()
	}
	if len(terms) == 1 {
		tq := bleve.NewTermQuery(terms[0])
		tq.SetField(field)
		return tq
	}
	return bleve.NewPhraseQuery(terms, field)
}

func compileFreeText(c Clause, analyzer analysis.Analyzer) (bq.Query, error) {
	tokens, err := lex(c.Text)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	field := c.Field
	if field == "" {
		field = domain.FieldContent
	}

	p := &parser{tokens: tokens, field: field, analyzer: analyzer}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("%w: unexpected %s", ErrSyntax, p.peek())
	}
	return node, nil
}

func analyzeTerms(analyzer analysis.Analyzer, text string) []string {
	if analyzer == nil {
		return strings.Fields(text)
	}
	stream := analyzer.Analyze([]byte(text))
	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		terms = append(terms, string(tok.Term))
	}
	return terms
}

type tokenKind int

const (
	tokTerm tokenKind = iota
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	// text is the unescaped term text
	text string
	// parts splits text into literal runs and runs of unescaped * or ?
	parts []termPart
}

type termPart struct {
	text     string
	wildcard bool
}

func (t token) wildcard() bool {
	for _, part := range t.parts {
		if part.wildcard {
			return true
		}
	}
	return false
}

func appendPart(parts []termPart, r rune, wildcard bool) []termPart {
	if n := len(parts); n > 0 && parts[n-1].wildcard == wildcard {
		parts[n-1].text += string(r)
		return parts
	}
	return append(parts, termPart{text: string(r), wildcard: wildcard})
}

func (t token) String() string {
	switch t.kind {
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNot:
		return "NOT"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	}
	return fmt.Sprintf("term %q", t.text)
}

// lex splits escaped free text into terms, operators and parentheses
func lex(text string) ([]token, error) {
	var tokens []token
	runes := []rune(text)

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v':
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen})
			i++
		default:
			var sb strings.Builder
			var parts []termPart
			escapedAny := false
		term:
			for i < len(runes) {
				c := runes[i]
				switch {
				case c == '\\':
					if i+1 >= len(runes) {
						return nil, fmt.Errorf("%w: dangling escape character", ErrSyntax)
					}
					sb.WriteRune(runes[i+1])
					parts = appendPart(parts, runes[i+1], false)
					escapedAny = true
					i += 2
				case c == '(' || c == ')' || c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
					break term
				default:
					sb.WriteRune(c)
					parts = appendPart(parts, c, c == '*' || c == '?')
					i++
				}
			}
			word := sb.String()
			if !escapedAny {
				switch word {
				case "AND":
					tokens = append(tokens, token{kind: tokAnd})
					continue
				case "OR":
					tokens = append(tokens, token{kind: tokOr})
					continue
				case "NOT":
					tokens = append(tokens, token{kind: tokNot})
					continue
				}
			}
			tokens = append(tokens, token{kind: tokTerm, text: word, parts: parts})
		}
	}

	return tokens, nil
}

// parser is a recursive descent parser over lexed tokens.
// Precedence from low to high: OR, AND (explicit or implicit), NOT.
// Sub-expressions that analyze to nothing compile to nil and are dropped
// by their parent.
type parser struct {
	tokens   []token
	pos      int
	field    string
	analyzer analysis.Analyzer
}

func (p *parser) done() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) parseOr() (bq.Query, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []bq.Query{first}

	for !p.done() && p.peek().kind == tokOr {
		p.next()
		if p.done() {
			return nil, fmt.Errorf("%w: OR without right operand", ErrSyntax)
		}
		child, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	children = compact(children)
	switch len(children) {
	case 0:
		return nil, nil
	case 1:
		return children[0], nil
	default:
		return bleve.NewDisjunctionQuery(children...), nil
	}
}

func (p *parser) parseAnd() (bq.Query, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	children := []bq.Query{first}

	for !p.done() {
		t := p.peek()
		switch t.kind {
		case tokAnd:
			p.next()
			if p.done() {
				return nil, fmt.Errorf("%w: AND without right operand", ErrSyntax)
			}
		case tokTerm, tokNot, tokLParen:
			// implicit AND
		default:
			return conjunction(children), nil
		}
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	return conjunction(children), nil
}

func conjunction(children []bq.Query) bq.Query {
	children = compact(children)
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	default:
		return bleve.NewConjunctionQuery(children...)
	}
}

func (p *parser) parseUnary() (bq.Query, error) {
	if p.done() {
		return nil, fmt.Errorf("%w: unexpected end of query", ErrSyntax)
	}
	if p.peek().kind == tokNot {
		p.next()
		if p.done() {
			return nil, fmt.Errorf("%w: NOT without operand", ErrSyntax)
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if operand == nil {
			return nil, nil
		}
		// a boolean query with only must-not clauses matches every other document
		return bq.NewBooleanQuery(nil, nil, []bq.Query{operand}), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (bq.Query, error) {
	t := p.next()
	switch t.kind {
	case tokTerm:
		return p.termQuery(t), nil
	case tokLParen:
		if !p.done() && p.peek().kind == tokRParen {
			return nil, fmt.Errorf("%w: empty parentheses", ErrSyntax)
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.done() || p.peek().kind != tokRParen {
			return nil, fmt.Errorf("%w: missing closing parenthesis", ErrSyntax)
		}
		p.next()
		return inner, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %s", ErrSyntax, t)
	}
}

func (p *parser) termQuery(t token) bq.Query {
	if t.wildcard() {
		return p.wildcardQuery(t.parts)
	}

	terms := analyzeTerms(p.analyzer, t.text)
	children := make([]bq.Query, 0, len(terms))
	for _, term := range terms {
		tq := bleve.NewTermQuery(term)
		tq.SetField(p.field)
		children = append(children, tq)
	}
	return conjunction(children)
}

// wildcardQuery analyzes the literal runs of a wildcard term. A wildcard run
// attaches to the tokens it touches, so "ord?rs" stays one pattern while
// "count(*)" reduces to the token "count". Each resulting pattern or token
// is required.
func (p *parser) wildcardQuery(parts []termPart) bq.Query {
	var patterns []wildcardPattern
	joinable := false

	for _, part := range parts {
		if part.wildcard {
			if joinable {
				last := &patterns[len(patterns)-1]
				last.text += part.text
				last.wildcard = true
			} else {
				patterns = append(patterns, wildcardPattern{text: part.text, wildcard: true})
			}
			joinable = true
			continue
		}

		tokens := analyzeTokens(p.analyzer, part.text)
		for i, tok := range tokens {
			if i == 0 && joinable && tok.Start == 0 {
				patterns[len(patterns)-1].text += string(tok.Term)
			} else {
				patterns = append(patterns, wildcardPattern{text: string(tok.Term)})
			}
		}
		joinable = len(tokens) > 0 && tokens[len(tokens)-1].End == len(part.text)
	}

	children := make([]bq.Query, 0, len(patterns))
	matchAll := false
	for _, pat := range patterns {
		switch {
		case !pat.wildcard:
			tq := bleve.NewTermQuery(pat.text)
			tq.SetField(p.field)
			children = append(children, tq)
		case strings.Trim(pat.text, "*") == "":
			matchAll = true
		default:
			wq := bleve.NewWildcardQuery(pat.text)
			wq.SetField(p.field)
			children = append(children, wq)
		}
	}
	if len(children) == 0 && matchAll {
		return bleve.NewMatchAllQuery()
	}
	return conjunction(children)
}

type wildcardPattern struct {
	text     string
	wildcard bool
}

// analyzeTokens returns the analyzed tokens of text with byte offsets into text
func analyzeTokens(analyzer analysis.Analyzer, text string) analysis.TokenStream {
	if analyzer == nil {
		return analysis.TokenStream{{Term: []byte(strings.ToLower(text)), Start: 0, End: len(text)}}
	}
	return analyzer.Analyze([]byte(text))
}

func compact(qs []bq.Query) []bq.Query {
	out := qs[:0]
	for _, q := range qs {
		if q != nil {
			out = append(out, q)
		}
	}
	return out
}
