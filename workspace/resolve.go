package workspace

import (
	"strings"

	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/lexcodex/zeekls/lang"
	"github.com/lexcodex/zeekls/query"
)

// ScopeDecls collects every declaration visible at the anchor node,
// nearest scope first, by ascending to the tree root. FQIDs of candidates
// inside the file's own module lose their `module::` prefix so local
// completions show short names; on collision of rewritten FQIDs the nearer
// declaration wins.
func (s *Store) ScopeDecls(u uri.URI, anchor *lang.Node, source []byte) []query.Decl {
	if anchor == nil {
		return nil
	}
	module := query.ModuleName(anchor, source)
	seen := make(map[string]struct{})
	var out []query.Decl
	for n := anchor; n != nil; n = n.Parent() {
		for _, d := range query.Decls(n, u, source) {
			if module != "" {
				d.FQID = strings.TrimPrefix(d.FQID, module+"::")
			}
			if _, dup := seen[d.FQID]; dup {
				continue
			}
			seen[d.FQID] = struct{}{}
			out = append(out, d)
		}
	}
	return out
}

// moduleDecls returns a file's declarations qualified with its module name
// (declared, or filename-derived). Redefinitions keep their base FQID: they
// extend an existing declaration rather than introducing a module-local one.
func (s *Store) moduleDecls(u uri.URI) []query.Decl {
	tree, source, ok := s.Snapshot(u)
	if !ok {
		return nil
	}
	mod := query.ModuleOf(tree, u, []byte(source))
	name := mod.Name(u)
	out := make([]query.Decl, 0, len(mod.Decls))
	for _, d := range mod.Decls {
		if !query.IsRedef(d) {
			d.FQID = qualifyFQID(name, d.ID)
		}
		out = append(out, d)
	}
	return out
}

func qualifyFQID(module, id string) string {
	if id == "" || module == "" || strings.Contains(id, "::") {
		return id
	}
	return module + "::" + id
}

// ImplicitDecls aggregates the declarations of the always-loaded system
// files.
func (s *Store) ImplicitDecls() []query.Decl {
	var out []query.Decl
	for _, u := range s.implicitURIs() {
		out = append(out, s.moduleDecls(u)...)
	}
	return out
}

// ExplicitDeclsRecursive resolves the transitive closure of files loaded
// from u and aggregates their module-qualified declarations. The closure is
// an iterative fixed point over a visited set, so mutually loading files
// terminate. Unresolvable load targets are dropped; an incomplete workspace
// must degrade to fewer suggestions, not fail.
func (s *Store) ExplicitDeclsRecursive(u uri.URI) []query.Decl {
	tree, source, ok := s.Snapshot(u)
	if !ok {
		return nil
	}

	byLoad := make(map[string][]File)
	for _, f := range s.Files() {
		byLoad[f.Load] = append(byLoad[f.Load], f)
	}

	visited := make(map[uri.URI]struct{})
	var closure []uri.URI
	worklist := query.Loads(tree.Root(), []byte(source))
	resolvedLoads := make(map[string]struct{})

	for len(worklist) > 0 {
		load := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if _, done := resolvedLoads[load]; done {
			continue
		}
		resolvedLoads[load] = struct{}{}

		files, ok := byLoad[load]
		if !ok {
			s.logger.Debug("unresolvable load target", zap.String("load", load))
			continue
		}
		for _, f := range files {
			if _, seen := visited[f.URI]; seen {
				continue
			}
			visited[f.URI] = struct{}{}
			closure = append(closure, f.URI)

			ftree, fsource, ok := s.Snapshot(f.URI)
			if !ok {
				continue
			}
			for _, l := range query.Loads(ftree.Root(), []byte(fsource)) {
				if _, done := resolvedLoads[l]; !done {
					worklist = append(worklist, l)
				}
			}
		}
	}

	var out []query.Decl
	for _, fu := range closure {
		out = append(out, s.moduleDecls(fu)...)
	}
	return out
}

// ExternalDecls is the union of the implicit system declarations and the
// explicit transitive load closure of u.
func (s *Store) ExternalDecls(u uri.URI) []query.Decl {
	return append(s.ExplicitDeclsRecursive(u), s.ImplicitDecls()...)
}

// Resolve maps an identifier occurrence to the declaration introducing it,
// with nearest-scope precedence, falling back to externally loaded and
// implicit declarations.
func (s *Store) Resolve(loc query.NodeLocation) (query.Decl, bool) {
	tree, source, ok := s.Snapshot(loc.URI)
	if !ok {
		return query.Decl{}, false
	}
	node := tree.NamedDescendantForSpan(loc.Span)
	if node == nil {
		return query.Decl{}, false
	}
	name := strings.TrimSpace(node.Content([]byte(source)))
	if name == "" {
		return query.Decl{}, false
	}

	for n := node; n != nil; n = n.Parent() {
		for _, d := range query.Decls(n, loc.URI, []byte(source)) {
			if d.ID == name || d.FQID == name {
				return d, true
			}
		}
	}
	for _, d := range s.ExternalDecls(loc.URI) {
		if d.FQID == name || d.ID == name {
			return d, true
		}
	}
	return query.Decl{}, false
}

// Typ follows a declaration to its declared nominal type. Only record-like
// types participate in member completion; the returned declaration's field
// list already folds in every record redefinition sharing the type's FQID.
func (s *Store) Typ(d query.Decl) (query.Decl, bool) {
	if d.TypeName == "" {
		return query.Decl{}, false
	}

	candidates := s.fileDecls(d.URI)
	candidates = append(candidates, s.ExternalDecls(d.URI)...)

	for _, c := range candidates {
		if c.Kind != query.Type && c.Kind != query.Enum {
			continue
		}
		if c.ID != d.TypeName && c.FQID != d.TypeName {
			continue
		}
		if c.Kind == query.Type {
			c.Fields = append(c.Fields, s.redefFields(c.FQID)...)
		}
		return c, true
	}
	return query.Decl{}, false
}

// fileDecls returns a file's own top-level declarations with raw FQIDs.
func (s *Store) fileDecls(u uri.URI) []query.Decl {
	tree, source, ok := s.Snapshot(u)
	if !ok {
		return nil
	}
	return query.Decls(tree.Root(), u, []byte(source))
}

// redefFields gathers the fields added to a type by record redefinitions
// anywhere in the workspace. Redefs share the FQID of their base type and
// are additive.
func (s *Store) redefFields(fqid string) []query.Decl {
	var out []query.Decl
	for _, f := range s.Files() {
		for _, d := range s.fileDecls(f.URI) {
			if d.Kind == query.RedefRecord && d.FQID == fqid {
				out = append(out, d.Fields...)
			}
		}
	}
	return out
}
