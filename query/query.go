package query

import (
	"strings"

	"go.lsp.dev/uri"

	"github.com/lexcodex/zeekls/lang"
)

// Decls extracts the declarations introduced directly by node: a file or
// export block yields its statement-level declarations, a block its local
// variables, a callable definition its parameters, a loop its index
// bindings, a record or enum body its fields and members. Nested scopes are
// not entered; the scope walker visits those as it ascends.
func Decls(node *lang.Node, u uri.URI, source []byte) []Decl {
	if node == nil {
		return nil
	}
	switch node.Kind() {
	case "source_file":
		prefix := enclosingModule(node, source)
		var out []Decl
		out = append(out, statementDecls(node, u, source, prefix)...)
		for _, c := range node.NamedChildren() {
			if c.Kind() == "export_decl" {
				out = append(out, statementDecls(c, u, source, prefix)...)
			}
		}
		return out
	case "export_decl":
		return statementDecls(node, u, source, enclosingModule(node, source))
	case "block":
		return statementDecls(node, u, source, "")
	case "func_def", "event_def", "hook_def":
		return paramDecls(node.NamedChild("formal_args"), u, source)
	case "for_stmt":
		return loopDecls(node, u, source)
	case "record_body":
		return fieldDecls(node, u, source, ownerFQID(node, source))
	case "enum_body":
		return memberDecls(node, u, source, ownerFQID(node, source))
	}
	return nil
}

// Loads returns the load targets referenced by the file's load directives.
func Loads(root *lang.Node, source []byte) []string {
	var out []string
	var walk func(n *lang.Node)
	walk = func(n *lang.Node) {
		for _, c := range n.NamedChildren() {
			switch c.Kind() {
			case "load_directive":
				if p := c.NamedChild("path"); p != nil {
					if text := strings.TrimSpace(p.Content(source)); text != "" {
						out = append(out, text)
					}
				}
			case "export_decl":
				walk(c)
			}
		}
	}
	walk(root)
	return out
}

// ModuleOf aggregates the file's module: declared name, range, owned
// declarations, and load targets.
func ModuleOf(tree *lang.Tree, u uri.URI, source []byte) Module {
	root := tree.Root()
	return Module{
		ID:    enclosingModule(root, source),
		Range: lang.ToRange(root.Span()),
		Decls: Decls(root, u, source),
		Loads: Loads(root, source),
	}
}

// ModuleName returns the module name declared in the file containing node,
// or "" when the file declares none.
func ModuleName(node *lang.Node, source []byte) string {
	return enclosingModule(node, source)
}

// enclosingModule finds the declared module name governing node, walking to
// the file root if needed.
func enclosingModule(node *lang.Node, source []byte) string {
	root := node
	for root.Parent() != nil {
		root = root.Parent()
	}
	m := root.NamedChild("module_decl")
	if m == nil {
		return ""
	}
	id := m.NamedChild("id")
	if id == nil {
		return ""
	}
	return id.Content(source)
}

// statementDecls walks the direct statement children of a container node,
// pairing each declaration with the comment block immediately above it.
func statementDecls(container *lang.Node, u uri.URI, source []byte, prefix string) []Decl {
	var out []Decl
	children := container.NamedChildren()
	for i, c := range children {
		d, ok := declOfStatement(c, u, source, prefix)
		if !ok {
			continue
		}
		d.Documentation = precedingDoc(children, i, source)
		out = append(out, d)
	}
	return out
}

func declOfStatement(stmt *lang.Node, u uri.URI, source []byte, prefix string) (Decl, bool) {
	switch stmt.Kind() {
	case "global_decl":
		return varDecl(stmt, u, source, prefix, Global)
	case "local_decl":
		return varDecl(stmt, u, source, prefix, Variable)
	case "const_decl":
		return varDecl(stmt, u, source, prefix, Const)
	case "option_decl":
		return varDecl(stmt, u, source, prefix, Option)
	case "redef_decl":
		return simpleDecl(stmt, u, source, prefix, Redef)
	case "redef_record_decl":
		d, ok := simpleDecl(stmt, u, source, prefix, RedefRecord)
		if !ok {
			return Decl{}, false
		}
		d.Fields = fieldDecls(stmt.NamedChild("record_body"), u, source, d.FQID)
		return d, true
	case "redef_enum_decl":
		d, ok := simpleDecl(stmt, u, source, prefix, RedefEnum)
		if !ok {
			return Decl{}, false
		}
		d.Members = memberDecls(stmt.NamedChild("enum_body"), u, source, d.FQID)
		return d, true
	case "type_decl":
		return typeDecl(stmt, u, source, prefix)
	case "func_def":
		return callableDef(stmt, u, source, prefix, FuncDef)
	case "event_def":
		return callableDef(stmt, u, source, prefix, EventDef)
	case "hook_def":
		return callableDef(stmt, u, source, prefix, HookDef)
	}
	return Decl{}, false
}

func simpleDecl(stmt *lang.Node, u uri.URI, source []byte, prefix string, kind DeclKind) (Decl, bool) {
	id := stmt.NamedChild("id")
	if id == nil {
		return Decl{}, false
	}
	name := id.Content(source)
	return Decl{
		ID:             name,
		FQID:           qualify(prefix, name),
		Kind:           kind,
		Range:          lang.ToRange(stmt.Span()),
		SelectionRange: lang.ToRange(id.Span()),
		URI:            u,
	}, true
}

func varDecl(stmt *lang.Node, u uri.URI, source []byte, prefix string, kind DeclKind) (Decl, bool) {
	d, ok := simpleDecl(stmt, u, source, prefix, kind)
	if !ok {
		return Decl{}, false
	}
	// A callable-typed variable is a declaration of that callable: `global
	// evt: event(c: count)` declares the event evt.
	if ct := stmt.NamedChild("callable_type"); ct != nil {
		switch {
		case ct.Child(0) != nil && ct.Child(0).Kind() == "event":
			d.Kind = EventDecl
		case ct.Child(0) != nil && ct.Child(0).Kind() == "hook":
			d.Kind = HookDecl
		default:
			d.Kind = FuncDecl
		}
		d.Signature = &Signature{Args: paramDecls(ct.NamedChild("formal_args"), u, source)}
		return d, true
	}
	d.TypeName = nominalType(stmt.NamedChild("type"), source)
	return d, true
}

func typeDecl(stmt *lang.Node, u uri.URI, source []byte, prefix string) (Decl, bool) {
	d, ok := simpleDecl(stmt, u, source, prefix, Type)
	if !ok {
		return Decl{}, false
	}
	if rt := stmt.NamedChild("record_type"); rt != nil {
		d.Fields = fieldDecls(rt.NamedChild("record_body"), u, source, d.FQID)
		return d, true
	}
	if et := stmt.NamedChild("enum_type"); et != nil {
		d.Kind = Enum
		d.Members = memberDecls(et.NamedChild("enum_body"), u, source, d.FQID)
		return d, true
	}
	d.TypeName = nominalType(stmt.NamedChild("type"), source)
	return d, true
}

func callableDef(stmt *lang.Node, u uri.URI, source []byte, prefix string, kind DeclKind) (Decl, bool) {
	d, ok := simpleDecl(stmt, u, source, prefix, kind)
	if !ok {
		return Decl{}, false
	}
	d.Signature = &Signature{Args: paramDecls(stmt.NamedChild("formal_args"), u, source)}
	return d, true
}

// paramDecls yields one Variable declaration per formal argument. Both
// ranges cover the whole `name: type` text so signature rendering can
// recover the argument verbatim from its span.
func paramDecls(args *lang.Node, u uri.URI, source []byte) []Decl {
	if args == nil {
		return nil
	}
	var out []Decl
	for _, arg := range args.NamedChildren() {
		if arg.Kind() != "formal_arg" {
			continue
		}
		id := arg.NamedChild("id")
		if id == nil {
			continue
		}
		out = append(out, Decl{
			ID:             id.Content(source),
			FQID:           id.Content(source),
			Kind:           Variable,
			TypeName:       nominalType(arg.NamedChild("type"), source),
			Range:          lang.ToRange(arg.Span()),
			SelectionRange: lang.ToRange(arg.Span()),
			URI:            u,
		})
	}
	return out
}

func loopDecls(loop *lang.Node, u uri.URI, source []byte) []Decl {
	var out []Decl
	idx := 0
	for _, c := range loop.NamedChildren() {
		if c.Kind() != "id" {
			continue
		}
		// Only the index bindings before `in` belong to the loop header.
		if c.Span().StartByte >= loopInOffset(loop) {
			break
		}
		name := c.Content(source)
		out = append(out, Decl{
			ID:             name,
			FQID:           name,
			Kind:           LoopIndex,
			Range:          lang.ToRange(c.Span()),
			SelectionRange: lang.ToRange(c.Span()),
			URI:            u,
			LoopKind:       "for",
			LoopIndex:      idx,
		})
		idx++
	}
	return out
}

func loopInOffset(loop *lang.Node) uint32 {
	for _, c := range loop.Children() {
		if !c.IsNamed() && c.Kind() == "in" {
			return c.Span().StartByte
		}
	}
	return loop.Span().EndByte
}

func fieldDecls(body *lang.Node, u uri.URI, source []byte, owner string) []Decl {
	if body == nil {
		return nil
	}
	var out []Decl
	children := body.NamedChildren()
	for i, f := range children {
		if f.Kind() != "field_decl" {
			continue
		}
		id := f.NamedChild("id")
		if id == nil {
			continue
		}
		name := id.Content(source)
		out = append(out, Decl{
			ID:             name,
			FQID:           qualify(owner, name),
			Kind:           Field,
			TypeName:       nominalType(f.NamedChild("type"), source),
			Range:          lang.ToRange(f.Span()),
			SelectionRange: lang.ToRange(id.Span()),
			Documentation:  precedingDoc(children, i, source),
			URI:            u,
		})
	}
	return out
}

func memberDecls(body *lang.Node, u uri.URI, source []byte, owner string) []Decl {
	if body == nil {
		return nil
	}
	var out []Decl
	children := body.NamedChildren()
	for i, m := range children {
		if m.Kind() != "enum_member" {
			continue
		}
		id := m.NamedChild("id")
		if id == nil {
			continue
		}
		name := id.Content(source)
		out = append(out, Decl{
			ID:             name,
			FQID:           qualify(owner, name),
			Kind:           EnumMember,
			Range:          lang.ToRange(m.Span()),
			SelectionRange: lang.ToRange(id.Span()),
			Documentation:  precedingDoc(children, i, source),
			URI:            u,
		})
	}
	return out
}

// ownerFQID names the type a record or enum body belongs to, qualified with
// the enclosing module.
func ownerFQID(body *lang.Node, source []byte) string {
	prefix := enclosingModule(body, source)
	for n := body.Parent(); n != nil; n = n.Parent() {
		switch n.Kind() {
		case "type_decl", "redef_record_decl", "redef_enum_decl":
			if id := n.NamedChild("id"); id != nil {
				return qualify(prefix, id.Content(source))
			}
			return ""
		}
	}
	return ""
}

// precedingDoc gathers the contiguous comment block that ends on the line
// directly above children[i], rendered as markdown text.
func precedingDoc(children []*lang.Node, i int, source []byte) string {
	target := children[i]
	wantRow := target.Span().Start.Row
	var lines []string
	for j := i - 1; j >= 0; j-- {
		c := children[j]
		if c.Kind() != "comment" || wantRow == 0 || c.Span().End.Row != wantRow-1 {
			break
		}
		lines = append([]string{cleanComment(c.Content(source))}, lines...)
		wantRow = c.Span().Start.Row
	}
	return strings.Join(lines, "\n")
}

func cleanComment(text string) string {
	text = strings.TrimLeft(text, "#")
	return strings.TrimPrefix(text, " ")
}

// nominalType names the declared type an identifier can be resolved
// against: the last identifier of the type expression, so compound types
// like `table[count] of Info` yield their element type.
func nominalType(typ *lang.Node, source []byte) string {
	if typ == nil {
		return ""
	}
	var name string
	for _, c := range typ.NamedChildren() {
		if c.Kind() == "id" {
			name = c.Content(source)
		}
	}
	return name
}
