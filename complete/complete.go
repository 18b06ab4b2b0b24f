// Package complete turns a cursor position into an ordered candidate list.
// Dispatch tries member-access, file-load, and callable-signature contexts in
// order and falls back to general identifier completion.
package complete

import (
	"regexp"
	"strings"

	"github.com/sahilm/fuzzy"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/lexcodex/zeekls/lang"
	"github.com/lexcodex/zeekls/query"
	"github.com/lexcodex/zeekls/workspace"
)

var leadingWordRe = regexp.MustCompile(`^(\w+)\s+\w*`)

// Complete computes completion candidates for a cursor position. Failures
// degrade to an empty list; the caller never sees an error for unparseable
// or incomplete input.
func Complete(store *workspace.Store, u uri.URI, pos protocol.Position, trigger string) []protocol.CompletionItem {
	tree, text, ok := store.Snapshot(u)
	if !ok {
		return nil
	}
	src := []byte(text)

	node := tree.DescendantForPoint(lang.FromPosition(pos))
	if node == nil {
		return nil
	}
	node = anchorNode(tree, node, src, pos)

	typed := typedText(node, src)

	if items, ok := memberAccess(store, tree, node, u, src, trigger); ok {
		return items
	}
	if node.Kind() == "source_file" || underLoadDirective(node) {
		return loadCandidates(store, u)
	}
	if items, ok := signatureStub(store, tree, node, u, src); ok {
		return items
	}
	return general(store, node, u, src, typed)
}

// anchorNode steps the cursor node left until it has interesting text. The
// grammar may land the cursor on sentinel tokens (`$`, `?$`) or whitespace
// regions; completion wants the nearest node carrying an identifier.
func anchorNode(tree *lang.Tree, node *lang.Node, src []byte, pos protocol.Position) *lang.Node {
	for {
		text := strings.TrimSpace(node.Content(src))
		text = strings.NewReplacer("$", "", "?", "").Replace(text)
		if text != "" {
			return node
		}
		start := node.Span().Start.Column
		if start == 0 {
			return node
		}
		next := tree.DescendantForPoint(lang.Point{Row: pos.Line, Column: start - 1})
		if next == nil || next == node {
			return node
		}
		node = next
	}
}

// typedText is the prefix being typed at the cursor: the anchor's first
// source line, trimmed.
func typedText(node *lang.Node, src []byte) string {
	text := node.Content(src)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// memberAccess handles `stem$field` and `stem?$field` completion: resolve
// the receiver, follow it to its record type, and offer that type's fields.
func memberAccess(store *workspace.Store, tree *lang.Tree, node *lang.Node, u uri.URI, src []byte, trigger string) ([]protocol.CompletionItem, bool) {
	triggered := trigger == "$"
	if !triggered {
		end := node.Span().End
		if next := tree.DescendantForPoint(lang.Point{Row: end.Row, Column: end.Column}); next != nil {
			triggered = strings.HasSuffix(next.Content(src), "$")
		}
	}
	parent := node.Parent()
	accessParent := parent != nil && (parent.Kind() == "field_access" || parent.Kind() == "field_check")
	if !triggered && !accessParent {
		return nil, false
	}

	// With text after the `$` the anchor is the partial field, and the
	// receiver is the access expression's first named child; otherwise the
	// anchor is the receiver itself.
	stem, preselect := node, ""
	if accessParent {
		if recv := firstNamed(parent); recv != nil && recv != node {
			stem = recv
			preselect = typedText(node, src)
		}
	}

	d, ok := store.Resolve(query.LocationOf(u, stem))
	if !ok {
		return nil, false
	}
	typ, ok := store.Typ(d)
	if !ok || typ.Kind != query.Type {
		return nil, false
	}

	var items []protocol.CompletionItem
	for _, f := range typ.Fields {
		if preselect != "" && !strings.HasPrefix(f.ID, preselect) {
			continue
		}
		item := toItem(f)
		// Field FQIDs read module::type::field; completion wants the bare
		// field name.
		if i := strings.LastIndex(item.Label, "::"); i >= 0 {
			item.Label = item.Label[i+2:]
		}
		items = append(items, item)
	}
	return items, true
}

func firstNamed(n *lang.Node) *lang.Node {
	for _, c := range n.Children() {
		if c.IsNamed() {
			return c
		}
	}
	return nil
}

func underLoadDirective(node *lang.Node) bool {
	for n := node; n != nil; n = n.Parent() {
		if n.Kind() == "load_directive" {
			return true
		}
	}
	return false
}

func loadCandidates(store *workspace.Store, u uri.URI) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	for _, load := range store.PossibleLoads(u) {
		items = append(items, protocol.CompletionItem{
			Label: load,
			Kind:  protocol.CompletionItemKindFile,
		})
	}
	return items
}

// signatureStub completes `event e`, `function f`, `hook h` definition
// headers with matching known declarations, rendered as callable stubs.
func signatureStub(store *workspace.Store, tree *lang.Tree, node *lang.Node, u uri.URI, src []byte) ([]protocol.CompletionItem, bool) {
	if node.Kind() != "id" {
		return nil, false
	}
	line := lineText(src, node.Span().Start.Row)
	m := leadingWordRe.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	var want query.DeclKind
	switch m[1] {
	case "event":
		want = query.EventDecl
	case "function":
		want = query.FuncDecl
	case "hook":
		want = query.HookDecl
	default:
		return nil, false
	}

	candidates := query.Decls(tree.Root(), u, src)
	candidates = append(candidates, store.ImplicitDecls()...)
	candidates = append(candidates, store.ExplicitDeclsRecursive(u)...)

	seen := make(map[string]struct{})
	var items []protocol.CompletionItem
	for _, d := range candidates {
		if d.Kind != want || d.Signature == nil {
			continue
		}
		if _, dup := seen[d.FQID]; dup {
			continue
		}
		seen[d.FQID] = struct{}{}

		var args []string
		for _, arg := range d.Signature.Args {
			if text, ok := argText(store, arg); ok {
				args = append(args, text)
			}
		}
		item := toItem(d)
		item.Label = d.FQID + "(" + strings.Join(args, ", ") + ") {}"
		items = append(items, item)
	}
	return items, true
}

// argText re-renders a parameter declaration from its source span in the
// declaring file.
func argText(store *workspace.Store, arg query.Decl) (string, bool) {
	tree, source, ok := store.Snapshot(arg.URI)
	if !ok {
		return "", false
	}
	span, ok := tree.SpanForRange(arg.SelectionRange)
	if !ok {
		return "", false
	}
	n := tree.NamedDescendantForSpan(span)
	if n == nil {
		return "", false
	}
	return n.Content([]byte(source)), true
}

// general is the identifier fallback: everything visible in scope, external
// declarations that fuzzily match the typed prefix, and keywords.
func general(store *workspace.Store, node *lang.Node, u uri.URI, src []byte, typed string) []protocol.CompletionItem {
	seen := make(map[string]struct{})
	var items []protocol.CompletionItem

	for _, d := range store.ScopeDecls(u, node, src) {
		if _, dup := seen[d.FQID]; dup {
			continue
		}
		seen[d.FQID] = struct{}{}
		items = append(items, toItem(d))
	}

	external := append(store.ExplicitDeclsRecursive(u), store.ImplicitDecls()...)
	for _, d := range external {
		// Redefs only add noise here; their base declaration is already a
		// candidate.
		if query.IsRedef(d) {
			continue
		}
		if !fuzzyMatch(typed, d.FQID) {
			continue
		}
		if _, dup := seen[d.FQID]; dup {
			continue
		}
		seen[d.FQID] = struct{}{}
		items = append(items, toItem(d))
	}

	for _, kw := range lang.Keywords {
		if !fuzzyMatch(typed, kw) {
			continue
		}
		items = append(items, protocol.CompletionItem{
			Label: kw,
			Kind:  protocol.CompletionItemKindKeyword,
		})
	}
	return items
}

// fuzzyMatch keeps a candidate when no prefix is being typed or the
// lower-cased subsequence similarity is non-zero. The exact scoring is a
// policy choice; the filter only requires "shares ordered characters".
func fuzzyMatch(typed, candidate string) bool {
	if typed == "" {
		return true
	}
	return len(fuzzy.Find(strings.ToLower(typed), []string{strings.ToLower(candidate)})) > 0
}

func lineText(src []byte, row uint32) string {
	lines := strings.Split(string(src), "\n")
	if int(row) >= len(lines) {
		return ""
	}
	return lines[row]
}

func toItem(d query.Decl) protocol.CompletionItem {
	item := protocol.CompletionItem{
		Label: d.FQID,
		Kind:  completionItemKind(d.Kind),
	}
	if d.Documentation != "" {
		item.Documentation = &protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: d.Documentation,
		}
	}
	if d.TypeName != "" {
		item.Detail = d.TypeName
	}
	return item
}

func completionItemKind(kind query.DeclKind) protocol.CompletionItemKind {
	switch kind {
	case query.Global, query.Variable, query.Redef, query.LoopIndex:
		return protocol.CompletionItemKindVariable
	case query.Option:
		return protocol.CompletionItemKindProperty
	case query.Const:
		return protocol.CompletionItemKindConstant
	case query.Enum, query.RedefEnum:
		return protocol.CompletionItemKindEnum
	case query.Type, query.RedefRecord:
		return protocol.CompletionItemKindClass
	case query.FuncDecl, query.FuncDef:
		return protocol.CompletionItemKindFunction
	case query.HookDecl, query.HookDef:
		return protocol.CompletionItemKindOperator
	case query.EventDecl, query.EventDef:
		return protocol.CompletionItemKindEvent
	case query.Field:
		return protocol.CompletionItemKindField
	case query.EnumMember:
		return protocol.CompletionItemKindEnumMember
	}
	return protocol.CompletionItemKindText
}
