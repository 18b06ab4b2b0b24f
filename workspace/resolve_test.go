package workspace

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.lsp.dev/uri"

	"github.com/lexcodex/zeekls/lang"
	"github.com/lexcodex/zeekls/query"
)

func addFile(t *testing.T, s *Store, path, source string) uri.URI {
	t.Helper()
	u := uri.File(path)
	s.AddFile(u, source)
	return u
}

func fqids(decls []query.Decl) []string {
	out := make([]string, 0, len(decls))
	for _, d := range decls {
		out = append(out, d.FQID)
	}
	return out
}

func TestScopeDeclsNearestFirst(t *testing.T) {
	s := NewStore(nil)
	src := "module M;\n\nglobal g: count;\n\nfunction f(p: count)\n{\n\tlocal l: string;\n\tl;\n}\n"
	u := addFile(t, s, "/ws/m.zeek", src)

	tree, ok := s.Parse(u)
	require.True(t, ok)
	// The bare `l` reference inside the body.
	anchor := tree.NamedDescendantForPoint(lang.Point{Row: 7, Column: 1})
	require.NotNil(t, anchor)
	require.Equal(t, "l", anchor.Content([]byte(src)))

	got := fqids(s.ScopeDecls(u, anchor, []byte(src)))
	require.Equal(t, []string{"l", "p", "g", "f"}, got)
}

func TestScopeDeclsStripsOwnModulePrefix(t *testing.T) {
	s := NewStore(nil)
	src := "module Conn;\n\nexport {\n\tglobal seen: count;\n}\n"
	u := addFile(t, s, "/ws/conn.zeek", src)

	tree, ok := s.Parse(u)
	require.True(t, ok)
	got := fqids(s.ScopeDecls(u, tree.Root(), []byte(src)))
	require.Equal(t, []string{"seen"}, got)
}

func TestResolvePrefersNearestScope(t *testing.T) {
	s := NewStore(nil)
	src := "global x: count;\n\nfunction f()\n{\n\tlocal x: string;\n\tx;\n}\n"
	u := addFile(t, s, "/ws/shadow.zeek", src)

	tree, ok := s.Parse(u)
	require.True(t, ok)
	ref := tree.NamedDescendantForPoint(lang.Point{Row: 5, Column: 1})
	require.Equal(t, "x", ref.Content([]byte(src)))

	d, ok := s.Resolve(query.LocationOf(u, ref))
	require.True(t, ok)
	require.Equal(t, query.Variable, d.Kind)
	require.Equal(t, "string", d.TypeName)
}

func TestResolveFallsBackToLoadedFiles(t *testing.T) {
	s := NewStore(nil)
	dep := "module Dep;\n\nexport {\n\tglobal answer: count;\n}\n"
	addFile(t, s, "/ws/dep.zeek", dep)
	src := "@load ./dep\n\nDep::answer;\n"
	u := addFile(t, s, "/ws/main.zeek", src)

	tree, ok := s.Parse(u)
	require.True(t, ok)
	ref := tree.NamedDescendantForPoint(lang.Point{Row: 2, Column: 3})
	require.Equal(t, "Dep::answer", ref.Content([]byte(src)))

	d, ok := s.Resolve(query.LocationOf(u, ref))
	require.True(t, ok)
	require.Equal(t, "Dep::answer", d.FQID)
	require.Equal(t, query.Global, d.Kind)
}

func TestExplicitDeclsRecursiveFollowsChains(t *testing.T) {
	s := NewStore(nil)
	addFile(t, s, "/ws/a.zeek", "@load ./b\nglobal aa: count;\n")
	addFile(t, s, "/ws/b.zeek", "@load ./c\nglobal bb: count;\n")
	addFile(t, s, "/ws/c.zeek", "global cc: count;\n")
	main := addFile(t, s, "/ws/main.zeek", "@load ./a\n")

	got := fqids(s.ExplicitDeclsRecursive(main))
	require.ElementsMatch(t, []string{"a::aa", "b::bb", "c::cc"}, got)
}

func TestExplicitDeclsRecursiveTerminatesOnCycle(t *testing.T) {
	s := NewStore(nil)
	a := addFile(t, s, "/ws/a.zeek", "@load ./b\nglobal aa: count;\n")
	addFile(t, s, "/ws/b.zeek", "@load ./a\nglobal bb: count;\n")

	got := fqids(s.ExplicitDeclsRecursive(a))
	require.ElementsMatch(t, []string{"a::aa", "b::bb"}, got)
}

func TestExplicitDeclsRecursiveDropsUnresolvable(t *testing.T) {
	s := NewStore(nil)
	u := addFile(t, s, "/ws/a.zeek", "@load ./missing\nglobal aa: count;\n")

	require.Empty(t, s.ExplicitDeclsRecursive(u))
}

func TestImplicitDecls(t *testing.T) {
	s := NewStore(nil)
	u := addFile(t, s, "/dist/base/init-bare.zeek", "global init_done: bool;\n")
	s.MarkImplicit(u)
	s.MarkImplicit(u) // idempotent

	got := fqids(s.ImplicitDecls())
	require.Equal(t, []string{"init-bare::init_done"}, got)
}

func TestTypFoldsRedefFields(t *testing.T) {
	s := NewStore(nil)
	base := "module Conn;\n\ntype Info: record {\n\tts: time;\n};\n\nglobal c: Info;\n"
	u := addFile(t, s, "/ws/conn.zeek", base)
	addFile(t, s, "/ws/extend.zeek", "redef record Conn::Info += {\n\tcountry: string;\n};\n")

	tree, ok := s.Parse(u)
	require.True(t, ok)
	decls := query.Decls(tree.Root(), u, []byte(base))

	var c query.Decl
	for _, d := range decls {
		if d.ID == "c" {
			c = d
		}
	}
	require.Equal(t, "Info", c.TypeName)

	typ, ok := s.Typ(c)
	require.True(t, ok)
	require.Equal(t, query.Type, typ.Kind)
	require.ElementsMatch(t, []string{"Conn::Info::ts", "Conn::Info::country"}, fqids(typ.Fields))
}

func TestTypUnknownTypeName(t *testing.T) {
	s := NewStore(nil)
	u := addFile(t, s, "/ws/a.zeek", "global c: Mystery;\n")
	tree, ok := s.Parse(u)
	require.True(t, ok)
	decls := query.Decls(tree.Root(), u, []byte("global c: Mystery;\n"))
	require.Len(t, decls, 1)

	_, ok = s.Typ(decls[0])
	require.False(t, ok)
}
