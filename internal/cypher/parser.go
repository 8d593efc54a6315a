package cypher

import (
	"fmt"
	"strconv"

	"github.com/DeusData/codegraph/internal/store"
)

// Parser is a recursive-descent parser over the token stream of one query.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse parses MATCH [WHERE] [RETURN] into a Query.
func Parse(input string) (*Query, error) {
	tokens, err := Lex(input)
	if err != nil {
		return nil, fmt.Errorf("lex: %w", err)
	}
	p := &Parser{tokens: tokens}
	return p.parseQuery()
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	t := p.peek()
	p.pos++
	return t
}

// accept consumes the next token if it has type typ.
func (p *Parser) accept(typ TokenType) bool {
	if p.peek().Type != typ {
		return false
	}
	p.pos++
	return true
}

func (p *Parser) expect(typ TokenType, what string) (Token, error) {
	t := p.advance()
	if t.Type != typ {
		return t, fmt.Errorf("expected %s, got %q at pos %d", what, t.Value, t.Pos)
	}
	return t, nil
}

func (p *Parser) ident(what string) (string, error) {
	t, err := p.expect(TokIdent, what)
	return t.Value, err
}

func (p *Parser) number(what string) (int, error) {
	t, err := p.expect(TokNumber, what)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(t.Value)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", what, t.Value)
	}
	return n, nil
}

func (p *Parser) parseQuery() (*Query, error) {
	if _, err := p.expect(TokMatch, "MATCH"); err != nil {
		return nil, err
	}
	pat, err := p.parsePattern()
	if err != nil {
		return nil, fmt.Errorf("match pattern: %w", err)
	}
	q := &Query{Match: &MatchClause{Pattern: pat}}

	if p.accept(TokWhere) {
		if q.Where, err = p.parseWhere(); err != nil {
			return nil, err
		}
	}
	if p.accept(TokReturn) {
		if q.Return, err = p.parseReturn(); err != nil {
			return nil, err
		}
	}
	if t := p.peek(); t.Type != TokEOF {
		return nil, fmt.Errorf("unexpected %q at pos %d", t.Value, t.Pos)
	}
	return q, nil
}

// parsePattern reads node (rel node)*.
func (p *Parser) parsePattern() (*Pattern, error) {
	node, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	pat := &Pattern{Elements: []PatternElement{node}}
	for t := p.peek().Type; t == TokDash || t == TokLT; t = p.peek().Type {
		rel, err := p.parseRel()
		if err != nil {
			return nil, err
		}
		if node, err = p.parseNode(); err != nil {
			return nil, err
		}
		pat.Elements = append(pat.Elements, rel, node)
	}
	return pat, nil
}

// parseRel reads -[...]->, <-[...]- or -[...]-; the bracket part is optional.
func (p *Parser) parseRel() (*RelPattern, error) {
	rel := &RelPattern{MinHops: 1, MaxHops: 1}
	in := p.accept(TokLT)
	if _, err := p.expect(TokDash, "'-' in relationship"); err != nil {
		return nil, err
	}
	if p.accept(TokLBracket) {
		if err := p.parseRelBody(rel); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokDash, "'-' after relationship"); err != nil {
		return nil, err
	}
	out := p.accept(TokGT)

	switch {
	case out && !in:
		rel.Direction = store.Outbound
	case in && !out:
		rel.Direction = store.Inbound
	default:
		rel.Direction = store.Both
	}
	return rel, nil
}

func (p *Parser) parseRelBody(rel *RelPattern) error {
	if p.peek().Type == TokIdent {
		rel.Variable = p.advance().Value
	}
	if p.accept(TokColon) {
		for {
			typ, err := p.ident("relationship type")
			if err != nil {
				return err
			}
			rel.Types = append(rel.Types, typ)
			if !p.accept(TokPipe) {
				break
			}
		}
	}
	if p.accept(TokStar) {
		if err := p.parseHops(rel); err != nil {
			return err
		}
	}
	_, err := p.expect(TokRBracket, "']' to close relationship")
	return err
}

// parseHops reads the range after '*'. A bare '*' or an open upper bound
// leaves MaxHops at 0 (unbounded); '*N' means 1..N.
func (p *Parser) parseHops(rel *RelPattern) error {
	rel.MinHops, rel.MaxHops = 1, 0
	if p.peek().Type == TokNumber {
		n, err := p.number("hop count")
		if err != nil {
			return err
		}
		if !p.accept(TokDotDot) {
			rel.MaxHops = n
			return nil
		}
		rel.MinHops = n
	} else if !p.accept(TokDotDot) {
		return nil
	}
	if p.peek().Type == TokNumber {
		m, err := p.number("hop count")
		if err != nil {
			return err
		}
		rel.MaxHops = m
	}
	return nil
}

func (p *Parser) parseNode() (*NodePattern, error) {
	if _, err := p.expect(TokLParen, "'(' for node pattern"); err != nil {
		return nil, err
	}
	node := &NodePattern{}
	if p.peek().Type == TokIdent {
		node.Variable = p.advance().Value
	}
	if p.accept(TokColon) {
		label, err := p.ident("label name after ':'")
		if err != nil {
			return nil, err
		}
		node.Label = label
	}
	if p.accept(TokLBrace) {
		props, err := p.parseProps()
		if err != nil {
			return nil, err
		}
		node.Props = props
	}
	if _, err := p.expect(TokRParen, "')' to close node pattern"); err != nil {
		return nil, err
	}
	return node, nil
}

// parseProps reads key: "value" pairs up to the closing brace.
func (p *Parser) parseProps() (map[string]string, error) {
	props := make(map[string]string)
	for !p.accept(TokRBrace) {
		if len(props) > 0 {
			if _, err := p.expect(TokComma, "',' between properties"); err != nil {
				return nil, err
			}
		}
		key, err := p.ident("property key")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokColon, "':' after property key"); err != nil {
			return nil, err
		}
		val, err := p.expect(TokString, "string value for property "+key)
		if err != nil {
			return nil, err
		}
		props[key] = val.Value
	}
	return props, nil
}

func (p *Parser) parseWhere() (*WhereClause, error) {
	w := &WhereClause{}
	for {
		c, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		w.Conditions = append(w.Conditions, c)

		switch {
		case p.accept(TokAnd):
		case p.accept(TokOr):
			w.Any = true
		default:
			return w, nil
		}
	}
}

var comparisons = map[TokenType]Op{
	TokEQ:       OpEq,
	TokNEQ:      OpNeq,
	TokRegex:    OpRegex,
	TokGT:       OpGT,
	TokLT:       OpLT,
	TokGTE:      OpGTE,
	TokLTE:      OpLTE,
	TokContains: OpContains,
}

// parseCondition reads [NOT] var.prop <op> literal.
func (p *Parser) parseCondition() (Condition, error) {
	c := Condition{Negate: p.accept(TokNot)}
	var err error
	if c.Variable, err = p.ident("variable name in condition"); err != nil {
		return c, err
	}
	if _, err = p.expect(TokDot, "'.' after variable in condition"); err != nil {
		return c, err
	}
	if c.Property, err = p.ident("property name in condition"); err != nil {
		return c, err
	}

	op := p.advance()
	if cmp, ok := comparisons[op.Type]; ok {
		c.Op = cmp
	} else if op.Type == TokStarts {
		if _, err := p.expect(TokWith, "WITH after STARTS"); err != nil {
			return c, err
		}
		c.Op = OpStartsWith
	} else {
		return c, fmt.Errorf("expected comparison operator, got %q at pos %d", op.Value, op.Pos)
	}

	val := p.advance()
	if val.Type != TokString && val.Type != TokNumber {
		return c, fmt.Errorf("expected value in condition, got %q at pos %d", val.Value, val.Pos)
	}
	c.Value = val.Value
	return c, nil
}

func (p *Parser) parseReturn() (*ReturnClause, error) {
	r := &ReturnClause{Distinct: p.accept(TokDistinct)}
	for {
		item, err := p.parseReturnItem()
		if err != nil {
			return nil, err
		}
		r.Items = append(r.Items, item)
		if !p.accept(TokComma) {
			break
		}
	}

	if p.accept(TokOrder) {
		if _, err := p.expect(TokBy, "BY after ORDER"); err != nil {
			return nil, err
		}
		field, err := p.ident("field name for ORDER BY")
		if err != nil {
			return nil, err
		}
		if p.accept(TokDot) {
			prop, err := p.ident("property for ORDER BY")
			if err != nil {
				return nil, err
			}
			field += "." + prop
		}
		r.OrderBy = field
		if !p.accept(TokAsc) {
			r.Desc = p.accept(TokDesc)
		}
	}

	var err error
	if p.accept(TokSkip) {
		if r.Skip, err = p.number("number after SKIP"); err != nil {
			return nil, err
		}
	}
	if p.accept(TokLimit) {
		if r.Limit, err = p.number("number after LIMIT"); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// parseReturnItem reads COUNT(var), var or var.prop, each with an optional
// AS alias.
func (p *Parser) parseReturnItem() (ReturnItem, error) {
	var item ReturnItem
	var err error
	if p.accept(TokCount) {
		item.Count = true
		if _, err = p.expect(TokLParen, "'(' after COUNT"); err != nil {
			return item, err
		}
		if item.Variable, err = p.ident("variable in COUNT()"); err != nil {
			return item, err
		}
		if _, err = p.expect(TokRParen, "')' after COUNT variable"); err != nil {
			return item, err
		}
	} else {
		if item.Variable, err = p.ident("variable in RETURN item"); err != nil {
			return item, err
		}
		if p.accept(TokDot) {
			if item.Property, err = p.ident("property after '.'"); err != nil {
				return item, err
			}
		}
	}
	if p.accept(TokAs) {
		if item.Alias, err = p.ident("alias after AS"); err != nil {
			return item, err
		}
	}
	return item, nil
}
