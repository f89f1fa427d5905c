// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package parse is a minimal reference surface-syntax parser. spec.md §1
// scopes the parser as an external collaborator specified only by the
// contract it must fulfill: consume bytes, produce the value.V AST the
// core consumes. This implementation is intentionally small — it exists
// so the CLI and tests have something to compile source through, not as
// part of the core.
package parse

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/luxfi/mettatron/value"
)

// Parser tokenizes and parses MeTTa surface syntax into top-level forms.
type Parser struct {
	interner *value.Interner
	src      []rune
	pos      int
}

func New(interner *value.Interner) *Parser {
	return &Parser{interner: interner}
}

// ParseProgram parses every top-level form in src, in source order.
func (p *Parser) ParseProgram(src string) ([]value.V, error) {
	p.src = []rune(src)
	p.pos = 0

	var forms []value.V
	for {
		p.skipSpaceAndComments()
		if p.atEOF() {
			break
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		forms = append(forms, v)
	}
	return forms, nil
}

func (p *Parser) atEOF() bool { return p.pos >= len(p.src) }

func (p *Parser) peek() rune { return p.src[p.pos] }

func (p *Parser) skipSpaceAndComments() {
	for !p.atEOF() {
		c := p.peek()
		switch {
		case unicode.IsSpace(c):
			p.pos++
		case c == ';':
			for !p.atEOF() && p.peek() != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *Parser) parseExpr() (value.V, error) {
	p.skipSpaceAndComments()
	if p.atEOF() {
		return value.V{}, fmt.Errorf("parse: unexpected end of input")
	}

	switch c := p.peek(); {
	case c == '!':
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return value.V{}, err
		}
		return value.SExpr(value.NewAtom(p.interner, "!"), inner), nil
	case c == '(':
		return p.parseSExpr()
	case c == '"':
		return p.parseString()
	default:
		return p.parseAtomOrLiteral()
	}
}

func (p *Parser) parseSExpr() (value.V, error) {
	p.pos++ // consume '('
	var items []value.V
	for {
		p.skipSpaceAndComments()
		if p.atEOF() {
			return value.V{}, fmt.Errorf("parse: unterminated list")
		}
		if p.peek() == ')' {
			p.pos++
			return value.SExpr(items...), nil
		}
		item, err := p.parseExpr()
		if err != nil {
			return value.V{}, err
		}
		items = append(items, item)
	}
}

func (p *Parser) parseString() (value.V, error) {
	p.pos++ // consume opening quote
	var sb strings.Builder
	for {
		if p.atEOF() {
			return value.V{}, fmt.Errorf("parse: unterminated string literal")
		}
		c := p.peek()
		p.pos++
		if c == '"' {
			return value.Str(sb.String()), nil
		}
		if c == '\\' && !p.atEOF() {
			esc := p.peek()
			p.pos++
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			default:
				sb.WriteRune(esc)
			}
			continue
		}
		sb.WriteRune(c)
	}
}

func (p *Parser) parseAtomOrLiteral() (value.V, error) {
	start := p.pos
	for !p.atEOF() && !unicode.IsSpace(p.peek()) && p.peek() != '(' && p.peek() != ')' {
		p.pos++
	}
	tok := string(p.src[start:p.pos])
	if tok == "" {
		return value.V{}, fmt.Errorf("parse: empty token")
	}

	switch tok {
	case "Nil":
		return value.Nil, nil
	case "()":
		return value.Unit, nil
	case "True":
		return value.True, nil
	case "False":
		return value.False, nil
	}

	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return value.Long(n), nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return value.Float(f), nil
	}
	if strings.HasPrefix(tok, "$") {
		if tok == "$" {
			return value.FreshVarMarker, nil
		}
		return value.NewVariable(tok)
	}
	if strings.Contains(tok, "://") {
		return value.URI(tok), nil
	}
	return value.NewAtom(p.interner, tok), nil
}
