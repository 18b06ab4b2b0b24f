package server

import (
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/lexcodex/zeekls/complete"
	"github.com/lexcodex/zeekls/lang"
	"github.com/lexcodex/zeekls/query"
)

func (s *Server) completion(params protocol.CompletionParams) []protocol.CompletionItem {
	trigger := ""
	if params.Context != nil {
		trigger = params.Context.TriggerCharacter
	}
	items := complete.Complete(s.store, params.TextDocument.URI, params.Position, trigger)
	s.logger.Debug("completion",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Int("items", len(items)))
	return items
}

// hover shows the syntax tree fragment under the cursor. Unknown files and
// positions outside any node produce an empty result rather than an error.
func (s *Server) hover(params protocol.HoverParams) *protocol.Hover {
	tree, source, ok := s.store.Snapshot(params.TextDocument.URI)
	if !ok {
		return nil
	}
	node := tree.NamedDescendantForPoint(lang.FromPosition(params.Position))
	if node == nil {
		return nil
	}
	rng := lang.ToRange(node.Span())
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.PlainText,
			Value: node.Sexp([]byte(source)),
		},
		Range: &rng,
	}
}

// documentSymbol reports one module symbol per file with its declarations as
// children; record and enum types additionally nest their fields and members.
func (s *Server) documentSymbol(params protocol.DocumentSymbolParams) []protocol.DocumentSymbol {
	tree, source, ok := s.store.Snapshot(params.TextDocument.URI)
	if !ok {
		return nil
	}
	module := query.ModuleOf(tree, params.TextDocument.URI, []byte(source))

	children := make([]protocol.DocumentSymbol, 0, len(module.Decls))
	for _, d := range module.Decls {
		children = append(children, declSymbol(d))
	}
	return []protocol.DocumentSymbol{{
		Name:           module.Name(params.TextDocument.URI),
		Kind:           protocol.SymbolKindModule,
		Range:          module.Range,
		SelectionRange: module.Range,
		Children:       children,
	}}
}

func declSymbol(d query.Decl) protocol.DocumentSymbol {
	sym := protocol.DocumentSymbol{
		Name:           d.ID,
		Detail:         d.TypeName,
		Kind:           symbolKind(d.Kind),
		Range:          d.Range,
		SelectionRange: d.SelectionRange,
	}
	for _, f := range d.Fields {
		sym.Children = append(sym.Children, declSymbol(f))
	}
	for _, m := range d.Members {
		sym.Children = append(sym.Children, declSymbol(m))
	}
	return sym
}

func symbolKind(kind query.DeclKind) protocol.SymbolKind {
	switch kind {
	case query.Global, query.Variable, query.LoopIndex:
		return protocol.SymbolKindVariable
	case query.Const:
		return protocol.SymbolKindConstant
	case query.Option, query.Redef:
		return protocol.SymbolKindProperty
	case query.Type, query.RedefRecord:
		return protocol.SymbolKindClass
	case query.Enum, query.RedefEnum:
		return protocol.SymbolKindEnum
	case query.Field:
		return protocol.SymbolKindField
	case query.EnumMember:
		return protocol.SymbolKindEnumMember
	case query.FuncDecl, query.FuncDef:
		return protocol.SymbolKindFunction
	case query.HookDecl, query.HookDef:
		return protocol.SymbolKindOperator
	case query.EventDecl, query.EventDef:
		return protocol.SymbolKindEvent
	}
	return protocol.SymbolKindVariable
}
