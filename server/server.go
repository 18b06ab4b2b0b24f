// Package server binds the completion engine to an LSP transport over
// JSON-RPC 2.0 with VSCode-style framing.
package server

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/lexcodex/zeekls/system"
	"github.com/lexcodex/zeekls/workspace"
)

// Server handles LSP requests against a shared workspace store. File-set
// mutations run under the store's write lock; queries are read-only and
// side-effect-free apart from parse memoization.
type Server struct {
	store  *workspace.Store
	cfg    system.Config
	logger *zap.Logger

	watchCancel context.CancelFunc
}

// New builds a server around a fresh store.
func New(cfg system.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:  workspace.NewStore(logger),
		cfg:    cfg,
		logger: logger,
	}
}

// Store exposes the workspace for inspection tooling and tests.
func (s *Server) Store() *workspace.Store { return s.store }

// Run serves LSP over the given transport until the client disconnects.
func (s *Server) Run(ctx context.Context, rwc io.ReadWriteCloser) error {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))
	defer conn.Close()
	select {
	case <-conn.DisconnectNotify():
	case <-ctx.Done():
	}
	if s.watchCancel != nil {
		s.watchCancel()
	}
	return nil
}

// RunStdio serves LSP over stdin/stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, &stdioReadWriteCloser{reader: os.Stdin, writer: os.Stdout})
}

func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	switch req.Method {
	case "initialize":
		return s.initialize(), nil
	case "initialized":
		s.initialized(ctx)
		return nil, nil
	case "shutdown":
		return nil, nil
	case "exit":
		return nil, nil
	case "textDocument/didOpen":
		var params protocol.DidOpenTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		s.store.AddFile(params.TextDocument.URI, params.TextDocument.Text)
		return nil, nil
	case "textDocument/didChange":
		var params protocol.DidChangeTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		s.didChange(params)
		return nil, nil
	case "workspace/didCreateFiles":
		var params protocol.CreateFilesParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		s.didCreateFiles(params)
		return nil, nil
	case "textDocument/completion":
		var params protocol.CompletionParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.completion(params), nil
	case "textDocument/hover":
		var params protocol.HoverParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.hover(params), nil
	case "textDocument/documentSymbol":
		var params protocol.DocumentSymbolParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.documentSymbol(params), nil
	default:
		if req.Notif {
			return nil, nil
		}
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not handled: " + req.Method}
	}
}

func unmarshalParams(req *jsonrpc2.Request, out interface{}) error {
	if req.Params == nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(*req.Params, out); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func (s *Server) initialize() *protocol.InitializeResult {
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
			},
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{"$", "?"},
			},
			HoverProvider:          true,
			DocumentSymbolProvider: true,
		},
	}
}

// initialized wires up the system distribution: script prefixes for load
// normalization, the always-visible bootstrap files, and a watcher that
// installs scripts created under the prefixes later.
func (s *Server) initialized(ctx context.Context) {
	prefixes := system.Prefixes(ctx, s.cfg, s.logger)
	s.store.SetPrefixes(prefixes)

	files, err := system.ScriptFiles(prefixes)
	if err != nil {
		s.logger.Warn("system file discovery failed", zap.Error(err))
	}
	for _, path := range files {
		s.installSystemFile(path)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel
	created, err := system.Watch(watchCtx, prefixes, s.logger)
	if err != nil {
		s.logger.Warn("prefix watch unavailable", zap.Error(err))
		return
	}
	go func() {
		for path := range created {
			s.installSystemFile(path)
		}
	}()
}

func (s *Server) installSystemFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("cannot read system file", zap.String("path", path), zap.Error(err))
		return
	}
	u := uri.File(path)
	s.store.AddFile(u, string(data))
	if isImplicitLoad(s.store.LoadPattern(u)) {
		s.store.MarkImplicit(u)
	}
}

// isImplicitLoad marks the bootstrap scripts every Zeek run loads without an
// explicit directive.
func isImplicitLoad(pattern string) bool {
	switch {
	case pattern == "base/init-bare", pattern == "base/init-default", pattern == "base/init-frameworks-and-bifs":
		return true
	}
	return false
}

func (s *Server) didChange(params protocol.DidChangeTextDocumentParams) {
	// Full-document sync: exactly one whole-text change per notification.
	if len(params.ContentChanges) != 1 || params.ContentChanges[0].Range != (protocol.Range{}) {
		s.logger.Warn("unexpected change shape in full sync mode",
			zap.String("uri", string(params.TextDocument.URI)),
			zap.Int("changes", len(params.ContentChanges)))
		return
	}
	s.store.AddFile(params.TextDocument.URI, params.ContentChanges[0].Text)
}

func (s *Server) didCreateFiles(params protocol.CreateFilesParams) {
	for _, f := range params.Files {
		data, err := os.ReadFile(uri.URI(f.URI).Filename())
		if err != nil {
			s.logger.Warn("cannot read created file", zap.String("uri", f.URI), zap.Error(err))
			continue
		}
		s.store.AddFile(uri.URI(f.URI), string(data))
	}
}

type stdioReadWriteCloser struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error)  { return s.reader.Read(p) }
func (s *stdioReadWriteCloser) Write(p []byte) (int, error) { return s.writer.Write(p) }
func (s *stdioReadWriteCloser) Close() error {
	_ = s.reader.Close()
	return s.writer.Close()
}
