package lang

import (
	"errors"
	"testing"
)

func mustParse(t *testing.T, source string) *Tree {
	t.Helper()
	tree, err := Parse([]byte(source))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	return tree
}

func TestParseRejectsInvalidUTF8(t *testing.T) {
	_, err := Parse([]byte{0xff, 0xfe})
	if !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}
}

func TestParseModuleDecl(t *testing.T) {
	src := "module Conn;\n"
	tree := mustParse(t, src)
	mod := tree.Root().NamedChild("module_decl")
	if mod == nil {
		t.Fatal("no module_decl under root")
	}
	id := mod.NamedChild("id")
	if id == nil || id.Content([]byte(src)) != "Conn" {
		t.Fatalf("module id = %v", id)
	}
}

func TestParseGlobalDeclType(t *testing.T) {
	src := "global x: count;\n"
	tree := mustParse(t, src)
	decl := tree.Root().NamedChild("global_decl")
	if decl == nil {
		t.Fatal("no global_decl under root")
	}
	if got := decl.NamedChild("id").Content([]byte(src)); got != "x" {
		t.Fatalf("id = %q", got)
	}
	typ := decl.NamedChild("type")
	if typ == nil || typ.Content([]byte(src)) != "count" {
		t.Fatalf("type = %v", typ)
	}
}

func TestParseRecordType(t *testing.T) {
	src := "type Info: record {\n\tts: time;\n\tmsg: string;\n};\n"
	tree := mustParse(t, src)
	decl := tree.Root().NamedChild("type_decl")
	if decl == nil {
		t.Fatal("no type_decl under root")
	}
	body := decl.NamedChild("record_type").NamedChild("record_body")
	var fields []string
	for _, f := range body.NamedChildren() {
		if f.Kind() == "field_decl" {
			fields = append(fields, f.NamedChild("id").Content([]byte(src)))
		}
	}
	if len(fields) != 2 || fields[0] != "ts" || fields[1] != "msg" {
		t.Fatalf("fields = %v", fields)
	}
}

func TestParseEnumType(t *testing.T) {
	src := "type Color: enum {\n\tRed,\n\tBlue,\n};\n"
	tree := mustParse(t, src)
	body := tree.Root().NamedChild("type_decl").NamedChild("enum_type").NamedChild("enum_body")
	var members []string
	for _, m := range body.NamedChildren() {
		if m.Kind() == "enum_member" {
			members = append(members, m.NamedChild("id").Content([]byte(src)))
		}
	}
	if len(members) != 2 || members[0] != "Red" || members[1] != "Blue" {
		t.Fatalf("members = %v", members)
	}
}

func TestParseCallableTypedGlobal(t *testing.T) {
	src := "global evt: event(c: count);\n"
	tree := mustParse(t, src)
	decl := tree.Root().NamedChild("global_decl")
	ct := decl.NamedChild("callable_type")
	if ct == nil {
		t.Fatal("no callable_type")
	}
	args := ct.NamedChild("formal_args")
	if args == nil {
		t.Fatal("no formal_args")
	}
	arg := args.NamedChild("formal_arg")
	if arg == nil || arg.Content([]byte(src)) != "c: count" {
		t.Fatalf("formal_arg = %v", arg)
	}
}

func TestParseFunctionKeepsReturnTypeAndBody(t *testing.T) {
	src := "function f(): bool {\n\tlocal ok: bool = T;\n\treturn ok;\n}\n"
	tree := mustParse(t, src)
	def := tree.Root().NamedChild("func_def")
	if def == nil {
		t.Fatal("no func_def")
	}
	typ := def.NamedChild("type")
	if typ == nil || typ.Content([]byte(src)) != "bool" {
		t.Fatalf("return type = %v", typ)
	}
	block := def.NamedChild("block")
	if block == nil {
		t.Fatal("no block")
	}
	if block.NamedChild("local_decl") == nil {
		t.Fatal("no local_decl inside block")
	}
}

func TestParseLoadDirectivePath(t *testing.T) {
	src := "@load base/protocols/conn\n"
	tree := mustParse(t, src)
	ld := tree.Root().NamedChild("load_directive")
	if ld == nil {
		t.Fatal("no load_directive")
	}
	p := ld.NamedChild("path")
	if p == nil || p.Content([]byte(src)) != "base/protocols/conn" {
		t.Fatalf("path = %v", p)
	}
}

func TestParseTrailingFieldAccess(t *testing.T) {
	src := "foo$\n"
	tree := mustParse(t, src)
	stmt := tree.Root().NamedChild("expr_stmt")
	if stmt == nil {
		t.Fatal("no expr_stmt")
	}
	access := stmt.NamedChild("field_access")
	if access == nil {
		t.Fatal("no field_access")
	}
	if recv := access.NamedChild("id"); recv == nil || recv.Content([]byte(src)) != "foo" {
		t.Fatalf("receiver = %v", recv)
	}
}

func TestParseFieldCheck(t *testing.T) {
	src := "if ( c?$id )\n\tprint c;\n"
	tree := mustParse(t, src)
	var found *Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Kind() == "field_check" {
			found = n
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(tree.Root())
	if found == nil {
		t.Fatal("no field_check in tree")
	}
	if got := found.Content([]byte(src)); got != "c?$id" {
		t.Fatalf("field_check text = %q", got)
	}
}

func TestParseNeverStallsOnGarbage(t *testing.T) {
	inputs := []string{
		"]]]]",
		"type ;;;",
		"redef += ;",
		"function (((",
		"@if xyz\n&&&",
		"global : = ;",
	}
	for _, src := range inputs {
		if _, err := Parse([]byte(src)); err != nil {
			t.Fatalf("Parse(%q) returned error: %v", src, err)
		}
	}
}

func TestDescendantForPointEndInclusive(t *testing.T) {
	src := "foo$\n"
	tree := mustParse(t, src)
	// One past the end of the line clamps to the line end and still hits
	// the trailing token.
	n := tree.DescendantForPoint(Point{Row: 0, Column: 99})
	if n == nil || n.Kind() != "$" {
		t.Fatalf("node at EOL = %v", n)
	}
	named := tree.NamedDescendantForPoint(Point{Row: 0, Column: 2})
	if named == nil || named.Kind() != "id" || named.Content([]byte(src)) != "foo" {
		t.Fatalf("named node = %v", named)
	}
}

func TestDescendantForPointOutsideText(t *testing.T) {
	tree := mustParse(t, "global x: count;\n")
	if n := tree.DescendantForPoint(Point{Row: 10, Column: 0}); n != nil {
		t.Fatalf("expected nil for out-of-range row, got %v", n)
	}
}

func TestNamedDescendantForSpan(t *testing.T) {
	src := "global x: count;\n"
	tree := mustParse(t, src)
	id := tree.Root().NamedChild("global_decl").NamedChild("id")
	got := tree.NamedDescendantForSpan(id.Span())
	if got == nil || got.Content([]byte(src)) != "x" {
		t.Fatalf("NamedDescendantForSpan = %v", got)
	}
}

func TestSpanForRangeRoundTrip(t *testing.T) {
	src := "global x: count;\nglobal y: string;\n"
	tree := mustParse(t, src)
	for _, decl := range tree.Root().NamedChildren() {
		span := decl.Span()
		got, ok := tree.SpanForRange(ToRange(span))
		if !ok {
			t.Fatalf("SpanForRange failed for %v", span)
		}
		if got.StartByte != span.StartByte || got.EndByte != span.EndByte {
			t.Fatalf("round trip %v != %v", got, span)
		}
	}
}

func TestModuleQualifiedIdentIsOneToken(t *testing.T) {
	src := "redef Log::enable = T;\n"
	tree := mustParse(t, src)
	decl := tree.Root().NamedChild("redef_decl")
	if decl == nil {
		t.Fatal("no redef_decl")
	}
	if got := decl.NamedChild("id").Content([]byte(src)); got != "Log::enable" {
		t.Fatalf("id = %q", got)
	}
}
