package lang

import (
	"errors"
	"unicode/utf8"
)

// ErrInvalidSource is returned when the input is not valid UTF-8; callers
// treat it as "no tree" rather than failing the request.
var ErrInvalidSource = errors.New("lang: source is not valid UTF-8")

// Parse builds a syntax tree for one source snapshot. The parser is
// error-tolerant: unexpected input degrades into generic nodes, it never
// fails on well-encoded text.
func Parse(source []byte) (*Tree, error) {
	if !utf8.Valid(source) {
		return nil, ErrInvalidSource
	}
	p := &parser{toks: scan(source), source: source}
	var stmts []*Node
	for !p.atEOF() {
		before := p.pos
		if n := p.parseStmt(); n != nil {
			stmts = append(stmts, n)
		}
		if p.pos == before {
			// Defensive progression on input the grammar does not cover.
			stmts = append(stmts, p.leaf(p.next(), "error", false))
		}
	}

	eof := p.toks[len(p.toks)-1]
	root := &Node{
		kind:  "source_file",
		named: true,
		span: Span{
			StartByte: 0,
			EndByte:   uint32(len(source)),
			Start:     Point{},
			End:       eof.span.End,
		},
		children: stmts,
	}
	for _, c := range stmts {
		c.parent = root
	}
	return &Tree{root: root, lines: lineStarts(source), size: uint32(len(source))}, nil
}

type parser struct {
	toks   []token
	pos    int
	source []byte
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) atEOF() bool { return p.cur().kind == tokEOF }

func (p *parser) peek() token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() token {
	t := p.cur()
	if p.cur().kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) at(text string) bool {
	return p.cur().kind != tokEOF && p.cur().text == text
}

// leaf wraps a token into a childless node.
func (p *parser) leaf(t token, kind string, named bool) *Node {
	return &Node{kind: kind, named: named, span: t.span}
}

// node builds an interior node spanning its children and wires parent links.
func node(kind string, named bool, children ...*Node) *Node {
	var kept []*Node
	for _, c := range children {
		if c != nil {
			kept = append(kept, c)
		}
	}
	n := &Node{kind: kind, named: named, children: kept}
	if len(kept) > 0 {
		n.span = Span{
			StartByte: kept[0].span.StartByte,
			EndByte:   kept[len(kept)-1].span.EndByte,
			Start:     kept[0].span.Start,
			End:       kept[len(kept)-1].span.End,
		}
	}
	for _, c := range kept {
		c.parent = n
	}
	return n
}

// eat consumes the current token as an anonymous leaf when it matches.
func (p *parser) eat(text string) *Node {
	if p.at(text) {
		return p.leaf(p.next(), text, false)
	}
	return nil
}

func (p *parser) ident(kind string) *Node {
	if p.cur().kind == tokIdent {
		return p.leaf(p.next(), kind, true)
	}
	return nil
}

func (p *parser) parseStmt() *Node {
	switch t := p.cur(); {
	case t.kind == tokComment:
		return p.leaf(p.next(), "comment", true)
	case t.kind == tokDirective:
		return p.parseDirective()
	case t.kind == tokPunct && t.text == "{":
		return p.parseBlock()
	case t.kind == tokPunct && t.text == ";":
		p.next()
		return nil
	case t.kind == tokIdent:
		switch t.text {
		case "module":
			return node("module_decl", true, p.leaf(p.next(), "module", false), p.ident("id"), p.eat(";"))
		case "export":
			return p.parseExport()
		case "global", "local", "const", "option":
			return p.parseVarDecl()
		case "redef":
			return p.parseRedef()
		case "type":
			return p.parseTypeDecl()
		case "function", "event", "hook":
			return p.parseFuncDef()
		case "for":
			return p.parseFor()
		case "if", "while", "when":
			return p.parseCondStmt(t.text)
		case "else":
			return node("else_stmt", true, p.leaf(p.next(), "else", false), p.parseStmt())
		case "return", "print", "break", "next", "fallthrough", "delete", "add", "schedule":
			return p.parseSimpleStmt(t.text)
		}
	}
	return p.parseExprStmt()
}

// parseDirective handles @load and the other preprocessor-style lines. The
// path of a load directive extends to the end of its line.
func (p *parser) parseDirective() *Node {
	t := p.next()
	kw := p.leaf(t, t.text, false)
	if t.text != "@load" && t.text != "@load-sigs" {
		// Skip the rest of the directive line.
		var rest []*Node
		for !p.atEOF() && p.cur().span.Start.Row == t.span.Start.Row && p.cur().kind != tokComment {
			rest = append(rest, p.leaf(p.next(), "directive_arg", false))
		}
		return node("directive", true, append([]*Node{kw}, rest...)...)
	}

	var first, last *token
	for !p.atEOF() && p.cur().span.Start.Row == t.span.Start.Row && p.cur().kind != tokComment {
		tok := p.next()
		if first == nil {
			f := tok
			first = &f
		}
		l := tok
		last = &l
	}
	var path *Node
	if first != nil {
		path = &Node{kind: "path", named: true, span: Span{
			StartByte: first.span.StartByte,
			EndByte:   last.span.EndByte,
			Start:     first.span.Start,
			End:       last.span.End,
		}}
	}
	return node("load_directive", true, kw, path)
}

func (p *parser) parseExport() *Node {
	kw := p.leaf(p.next(), "export", false)
	open := p.eat("{")
	var body []*Node
	for !p.atEOF() && !p.at("}") {
		before := p.pos
		if n := p.parseStmt(); n != nil {
			body = append(body, n)
		}
		if p.pos == before {
			body = append(body, p.leaf(p.next(), "error", false))
		}
	}
	children := append([]*Node{kw, open}, body...)
	return node("export_decl", true, append(children, p.eat("}"))...)
}

func (p *parser) parseVarDecl() *Node {
	kw := p.next()
	kind := map[string]string{
		"global": "global_decl",
		"local":  "local_decl",
		"const":  "const_decl",
		"option": "option_decl",
	}[kw.text]
	children := []*Node{p.leaf(kw, kw.text, false), p.ident("id")}
	if colon := p.eat(":"); colon != nil {
		children = append(children, colon, p.parseType())
	}
	children = append(children, p.parseAttrs()...)
	if eq := p.eat("="); eq != nil {
		children = append(children, eq, p.parseExpr())
	}
	children = append(children, p.parseAttrs()...)
	children = append(children, p.eat(";"))
	return node(kind, true, children...)
}

func (p *parser) parseRedef() *Node {
	kw := p.leaf(p.next(), "redef", false)
	switch {
	case p.at("record"):
		rec := p.leaf(p.next(), "record", false)
		id := p.ident("id")
		op := p.eat("+=")
		body := p.parseRecordBody()
		rest := append(p.parseAttrs(), p.eat(";"))
		return node("redef_record_decl", true, append([]*Node{kw, rec, id, op, body}, rest...)...)
	case p.at("enum"):
		en := p.leaf(p.next(), "enum", false)
		id := p.ident("id")
		op := p.eat("+=")
		body := p.parseEnumBody()
		return node("redef_enum_decl", true, kw, en, id, op, body, p.eat(";"))
	default:
		children := []*Node{kw, p.ident("id")}
		for !p.atEOF() && !p.at(";") && !p.at("}") {
			before := p.pos
			children = append(children, p.parseExpr())
			if p.pos == before {
				children = append(children, p.leaf(p.next(), "error", false))
			}
		}
		children = append(children, p.eat(";"))
		return node("redef_decl", true, children...)
	}
}

func (p *parser) parseTypeDecl() *Node {
	kw := p.leaf(p.next(), "type", false)
	id := p.ident("id")
	colon := p.eat(":")
	var body *Node
	switch {
	case p.at("record"):
		rec := p.leaf(p.next(), "record", false)
		body = node("record_type", true, rec, p.parseRecordBody())
	case p.at("enum"):
		en := p.leaf(p.next(), "enum", false)
		body = node("enum_type", true, en, p.parseEnumBody())
	default:
		body = p.parseType()
	}
	rest := append(p.parseAttrs(), p.eat(";"))
	return node("type_decl", true, append([]*Node{kw, id, colon, body}, rest...)...)
}

func (p *parser) parseRecordBody() *Node {
	open := p.eat("{")
	var fields []*Node
	for !p.atEOF() && !p.at("}") {
		if p.cur().kind == tokComment {
			fields = append(fields, p.leaf(p.next(), "comment", true))
			continue
		}
		id := p.ident("id")
		if id == nil {
			fields = append(fields, p.leaf(p.next(), "error", false))
			continue
		}
		children := []*Node{id}
		if colon := p.eat(":"); colon != nil {
			children = append(children, colon, p.parseType())
		}
		children = append(children, p.parseAttrs()...)
		children = append(children, p.eat(";"))
		fields = append(fields, node("field_decl", true, children...))
	}
	children := append([]*Node{open}, fields...)
	return node("record_body", true, append(children, p.eat("}"))...)
}

func (p *parser) parseEnumBody() *Node {
	open := p.eat("{")
	var members []*Node
	for !p.atEOF() && !p.at("}") {
		if p.cur().kind == tokComment {
			members = append(members, p.leaf(p.next(), "comment", true))
			continue
		}
		id := p.ident("id")
		if id == nil {
			members = append(members, p.leaf(p.next(), "error", false))
			continue
		}
		children := []*Node{id}
		if eq := p.eat("="); eq != nil {
			children = append(children, eq, p.parseExpr())
		}
		children = append(children, p.eat(","))
		members = append(members, node("enum_member", true, children...))
	}
	children := append([]*Node{open}, members...)
	return node("enum_body", true, append(children, p.eat("}"))...)
}

// parseType collects a type expression. Callable types carry their formal
// arguments so declarations like `global f: event(c: count)` keep a
// resolvable parameter list.
func (p *parser) parseType() *Node {
	if t := p.cur(); t.kind == tokIdent && (t.text == "function" || t.text == "event" || t.text == "hook") && p.peek().is("(") {
		kw := p.leaf(p.next(), t.text, false)
		args := p.parseFormalArgs()
		children := []*Node{kw, args}
		if colon := p.eat(":"); colon != nil {
			children = append(children, colon, p.parseType())
		}
		return node("callable_type", true, children...)
	}

	var children []*Node
	depth := 0
scan:
	for !p.atEOF() {
		t := p.cur()
		if depth == 0 {
			if t.kind == tokComment || t.kind == tokDirective || t.is(";") ||
				t.is("=") || t.is(",") || t.is("{") || t.is(")") || t.is("}") ||
				t.is("]") || t.is("&") || t.is("+=") {
				break
			}
		}
		switch {
		case t.is("[") || t.is("(") || t.is("{"):
			depth++
			children = append(children, p.leaf(p.next(), t.text, false))
		case t.is("]") || t.is(")") || t.is("}"):
			depth--
			children = append(children, p.leaf(p.next(), t.text, false))
		case t.kind == tokIdent && t.text == "of":
			children = append(children, p.leaf(p.next(), "of", false))
		case t.kind == tokIdent:
			children = append(children, p.ident("id"))
		default:
			children = append(children, p.leaf(p.next(), t.text, false))
		}
		if depth == 0 && len(children) > 0 {
			// A type ends before a following identifier unless a compound
			// continues through `of` (`table[...] of T`).
			if p.cur().kind == tokIdent && p.cur().text != "of" && children[len(children)-1].named {
				break scan
			}
		}
	}
	if len(children) == 0 {
		return nil
	}
	return node("type", true, children...)
}

// parseAttrs consumes `&attr` or `&attr=expr` sequences.
func (p *parser) parseAttrs() []*Node {
	var attrs []*Node
	for p.at("&") {
		amp := p.leaf(p.next(), "&", false)
		children := []*Node{amp}
		if p.cur().kind == tokIdent {
			children = append(children, p.leaf(p.next(), "attr_name", false))
		}
		if eq := p.eat("="); eq != nil {
			children = append(children, eq, p.parseExpr())
		}
		attrs = append(attrs, node("attr", false, children...))
	}
	return attrs
}

func (p *parser) parseFormalArgs() *Node {
	open := p.eat("(")
	var args []*Node
	for !p.atEOF() && !p.at(")") {
		if p.at(",") {
			args = append(args, p.eat(","))
			continue
		}
		id := p.ident("id")
		if id == nil {
			args = append(args, p.leaf(p.next(), "error", false))
			continue
		}
		children := []*Node{id}
		if colon := p.eat(":"); colon != nil {
			children = append(children, colon, p.parseType())
		}
		children = append(children, p.parseAttrs()...)
		args = append(args, node("formal_arg", true, children...))
	}
	children := append([]*Node{open}, args...)
	return node("formal_args", true, append(children, p.eat(")"))...)
}

func (p *parser) parseFuncDef() *Node {
	kw := p.next()
	kind := map[string]string{
		"function": "func_def",
		"event":    "event_def",
		"hook":     "hook_def",
	}[kw.text]
	children := []*Node{p.leaf(kw, kw.text, false), p.ident("id")}
	if p.at("(") {
		children = append(children, p.parseFormalArgs())
	}
	if colon := p.eat(":"); colon != nil {
		children = append(children, colon, p.parseType())
	}
	if p.at("{") {
		children = append(children, p.parseBlock())
	}
	children = append(children, p.eat(";"))
	return node(kind, true, children...)
}

func (p *parser) parseFor() *Node {
	kw := p.leaf(p.next(), "for", false)
	children := []*Node{kw, p.eat("("), p.ident("id")}
	if comma := p.eat(","); comma != nil {
		children = append(children, comma, p.ident("id"))
	}
	if in := p.eat("in"); in != nil {
		children = append(children, in, p.parseExpr())
	}
	children = append(children, p.eat(")"), p.parseStmt())
	return node("for_stmt", true, children...)
}

func (p *parser) parseCondStmt(kw string) *Node {
	children := []*Node{p.leaf(p.next(), kw, false)}
	if open := p.eat("("); open != nil {
		children = append(children, open, p.parseExpr(), p.eat(")"))
	}
	children = append(children, p.parseStmt())
	return node(kw+"_stmt", true, children...)
}

func (p *parser) parseSimpleStmt(kw string) *Node {
	children := []*Node{p.leaf(p.next(), kw, false)}
	for !p.atEOF() && !p.at(";") && !p.at("}") {
		before := p.pos
		children = append(children, p.parseExpr())
		if p.pos == before {
			children = append(children, p.leaf(p.next(), "error", false))
		}
		if comma := p.eat(","); comma != nil {
			children = append(children, comma)
			continue
		}
		break
	}
	children = append(children, p.eat(";"))
	return node(kw+"_stmt", true, children...)
}

func (p *parser) parseBlock() *Node {
	open := p.eat("{")
	var body []*Node
	for !p.atEOF() && !p.at("}") {
		before := p.pos
		if n := p.parseStmt(); n != nil {
			body = append(body, n)
		}
		if p.pos == before {
			body = append(body, p.leaf(p.next(), "error", false))
		}
	}
	children := append([]*Node{open}, body...)
	return node("block", true, append(children, p.eat("}"))...)
}

func (p *parser) parseExprStmt() *Node {
	expr := p.parseExpr()
	if expr == nil {
		return nil
	}
	return node("expr_stmt", true, expr, p.eat(";"))
}

func (p *parser) parseExpr() *Node {
	left := p.parsePostfix()
	if left == nil {
		return nil
	}
	for {
		t := p.cur()
		isBinary := (t.kind == tokPunct && !isCloser(t.text) && t.text != "{" && t.text != ";") ||
			(t.kind == tokIdent && (t.text == "in" || t.text == "of"))
		if !isBinary {
			return left
		}
		op := p.leaf(p.next(), t.text, false)
		right := p.parsePostfix()
		left = node("expr", true, left, op, right)
	}
}

func isCloser(text string) bool {
	switch text {
	case ")", "]", "}", ",", ";":
		return true
	}
	return false
}

func (p *parser) parsePostfix() *Node {
	n := p.parsePrimary()
	if n == nil {
		return nil
	}
	for {
		switch t := p.cur(); {
		case t.kind == tokDollar:
			dollar := p.leaf(p.next(), "$", false)
			n = node("field_access", true, n, dollar, p.ident("id"))
		case t.kind == tokQuestDollar:
			qd := p.leaf(p.next(), "?$", false)
			n = node("field_check", true, n, qd, p.ident("id"))
		case t.is("("):
			open := p.leaf(p.next(), "(", false)
			children := []*Node{n, open}
			for !p.atEOF() && !p.at(")") {
				before := p.pos
				children = append(children, p.parseExpr())
				if comma := p.eat(","); comma != nil {
					children = append(children, comma)
				}
				if p.pos == before {
					children = append(children, p.leaf(p.next(), "error", false))
				}
			}
			n = node("call", true, append(children, p.eat(")"))...)
		case t.is("["):
			open := p.leaf(p.next(), "[", false)
			children := []*Node{n, open}
			for !p.atEOF() && !p.at("]") {
				before := p.pos
				children = append(children, p.parseExpr())
				if comma := p.eat(","); comma != nil {
					children = append(children, comma)
				}
				if p.pos == before {
					children = append(children, p.leaf(p.next(), "error", false))
				}
			}
			n = node("index", true, append(children, p.eat("]"))...)
		default:
			return n
		}
	}
}

func (p *parser) parsePrimary() *Node {
	switch t := p.cur(); {
	case t.kind == tokIdent:
		return p.leaf(p.next(), "id", true)
	case t.kind == tokNumber:
		return p.leaf(p.next(), "number", true)
	case t.kind == tokString:
		return p.leaf(p.next(), "string", true)
	case t.is("-") || t.is("!"):
		op := p.leaf(p.next(), t.text, false)
		return node("unary_expr", true, op, p.parsePostfix())
	case t.is("("):
		open := p.leaf(p.next(), "(", false)
		return node("paren_expr", true, open, p.parseExpr(), p.eat(")"))
	case t.is("["):
		// Bare constructor like [$a=1, $b=2]; consumed loosely.
		open := p.leaf(p.next(), "[", false)
		children := []*Node{open}
		for !p.atEOF() && !p.at("]") {
			before := p.pos
			if p.cur().kind == tokDollar {
				children = append(children, p.leaf(p.next(), "$", false))
				continue
			}
			children = append(children, p.parseExpr())
			if comma := p.eat(","); comma != nil {
				children = append(children, comma)
			}
			if p.pos == before {
				children = append(children, p.leaf(p.next(), "error", false))
			}
		}
		return node("initializer", true, append(children, p.eat("]"))...)
	default:
		return nil
	}
}
