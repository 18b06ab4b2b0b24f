// Package query extracts the symbol model from syntax trees: declarations,
// per-file modules, and load targets.
package query

import (
	"path"
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/lexcodex/zeekls/lang"
)

// DeclKind tags the variant of a declaration. Consumers switch exhaustively
// so a new kind forces an audit of every consumption site.
type DeclKind int

const (
	Global DeclKind = iota
	Variable
	Const
	Option
	Redef
	Type
	RedefRecord
	Enum
	RedefEnum
	Field
	EnumMember
	FuncDecl
	FuncDef
	HookDecl
	HookDef
	EventDecl
	EventDef
	LoopIndex
)

var declKindNames = map[DeclKind]string{
	Global:      "global",
	Variable:    "variable",
	Const:       "const",
	Option:      "option",
	Redef:       "redef",
	Type:        "type",
	RedefRecord: "redef_record",
	Enum:        "enum",
	RedefEnum:   "redef_enum",
	Field:       "field",
	EnumMember:  "enum_member",
	FuncDecl:    "func_decl",
	FuncDef:     "func_def",
	HookDecl:    "hook_decl",
	HookDef:     "hook_def",
	EventDecl:   "event_decl",
	EventDef:    "event_def",
	LoopIndex:   "loop_index",
}

func (k DeclKind) String() string { return declKindNames[k] }

// Signature carries the parameter declarations of a callable.
type Signature struct {
	Args []Decl
}

// Decl is the central symbol record. Decls are value types recomputed from
// the tree on every query, never mutated in place.
type Decl struct {
	ID             string
	FQID           string
	Kind           DeclKind
	TypeName       string // declared nominal type, "" when none
	Range          protocol.Range
	SelectionRange protocol.Range
	Documentation  string
	URI            uri.URI

	Fields    []Decl     // Type and RedefRecord payload
	Members   []Decl     // Enum and RedefEnum payload
	Signature *Signature // callable payload

	LoopKind  string // LoopIndex payload
	LoopIndex int
}

// IsRedef reports whether the declaration extends an existing one rather
// than introducing a new name.
func IsRedef(d Decl) bool {
	switch d.Kind {
	case Redef, RedefRecord, RedefEnum:
		return true
	case Global, Variable, Const, Option, Type, Enum, Field, EnumMember,
		FuncDecl, FuncDef, HookDecl, HookDef, EventDecl, EventDef, LoopIndex:
		return false
	}
	return false
}

// IsCallable reports whether the declaration has a signature payload.
func IsCallable(d Decl) bool {
	switch d.Kind {
	case FuncDecl, FuncDef, HookDecl, HookDef, EventDecl, EventDef:
		return true
	case Global, Variable, Const, Option, Redef, Type, RedefRecord, Enum,
		RedefEnum, Field, EnumMember, LoopIndex:
		return false
	}
	return false
}

// NodeLocation keys name resolution by (file, node span); identical text at
// different positions may resolve differently.
type NodeLocation struct {
	URI  uri.URI
	Span lang.Span
}

// LocationOf builds the resolution key for a node occurrence.
func LocationOf(u uri.URI, n *lang.Node) NodeLocation {
	return NodeLocation{URI: u, Span: n.Span()}
}

// Module aggregates a file's symbol surface.
type Module struct {
	ID    string // declared module name, "" when absent
	Range protocol.Range
	Decls []Decl
	Loads []string
}

// Name returns the declared module name or the filename-derived default.
func (m Module) Name(u uri.URI) string {
	if m.ID != "" {
		return m.ID
	}
	return DefaultModuleName(u)
}

// DefaultModuleName derives a module name from the file's stem.
func DefaultModuleName(u uri.URI) string {
	base := path.Base(u.Filename())
	return strings.TrimSuffix(base, path.Ext(base))
}

func qualify(prefix, id string) string {
	if id == "" {
		return ""
	}
	if prefix == "" || strings.Contains(id, "::") {
		return id
	}
	return prefix + "::" + id
}
