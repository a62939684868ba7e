package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "litsearch-mcp"
	ServerVersion   = "1.0.0"
)

// Server serves the ToolRegistry over JSON-RPC 2.0 HTTP, plus an
// optional /events websocket progress stream. It takes a *Service
// rather than a narrower executor interface since every handler needs
// the full dependency bundle.
type Server struct {
	mu       sync.RWMutex
	registry *ToolRegistry
	service  *Service
	events   *EventHub
	addr     string
	server   *http.Server
}

// NewServer builds a Server bound to addr, serving registry's tools
// against service, with events (may be nil to disable /events).
func NewServer(addr string, registry *ToolRegistry, service *Service, events *EventHub) *Server {
	return &Server{addr: addr, registry: registry, service: service, events: events}
}

// Start runs the HTTP server until Stop is called or it fails.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	mux.HandleFunc("/health", s.handleHealth)
	if s.events != nil {
		mux.HandleFunc("/events", s.events.HandleWebsocket)
	}

	s.server = &http.Server{Addr: s.addr, Handler: mux}
	log.Info().Str("addr", s.addr).Msg("starting MCP server")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, nil, ErrParse, "failed to read request body")
		return
	}
	defer r.Body.Close()

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, nil, ErrParse, "failed to parse JSON-RPC request")
		return
	}
	if req.JSONRPC != "2.0" {
		s.writeError(w, req.ID, ErrInvalidRequest, "invalid JSON-RPC version")
		return
	}

	log.Debug().Str("method", req.Method).Interface("id", req.ID).Msg("mcp request received")

	result, mcpErr := s.handleMethod(r.Context(), req)
	if mcpErr != nil {
		s.writeErrorResponse(w, req.ID, mcpErr)
		return
	}
	s.writeResult(w, req.ID, result)
}

func (s *Server) handleMethod(ctx context.Context, req Request) (interface{}, *Error) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req.Params)
	case "initialized":
		return nil, nil
	case "tools/list":
		return s.handleListTools(), nil
	case "tools/call":
		return s.handleCallTool(ctx, req.Params)
	case "ping":
		return map[string]interface{}{}, nil
	default:
		return nil, &Error{Code: ErrMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}
}

func (s *Server) handleInitialize(params json.RawMessage) (*InitializeResult, *Error) {
	var initParams InitializeParams
	if params != nil {
		if err := json.Unmarshal(params, &initParams); err != nil {
			return nil, &Error{Code: ErrInvalidParams, Message: "failed to parse initialize params"}
		}
	}
	log.Info().Str("client", initParams.ClientInfo.Name).Str("protocolVersion", initParams.ProtocolVersion).Msg("mcp client connected")

	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    Capabilities{Tools: &ToolsCapability{ListChanged: false}},
		ServerInfo:      ServerInfo{Name: ServerName, Version: ServerVersion},
	}, nil
}

func (s *Server) handleListTools() *ListToolsResult {
	return &ListToolsResult{Tools: s.registry.ListTools()}
}

func (s *Server) handleCallTool(ctx context.Context, params json.RawMessage) (*CallToolResult, *Error) {
	var callParams CallToolParams
	if err := json.Unmarshal(params, &callParams); err != nil {
		return nil, &Error{Code: ErrInvalidParams, Message: "failed to parse tool call params"}
	}

	log.Debug().Str("tool", callParams.Name).Interface("args", callParams.Arguments).Msg("executing tool")

	result, err := s.registry.Execute(ctx, s.service, callParams.Name, callParams.Arguments)
	if err != nil {
		log.Error().Err(err).Str("tool", callParams.Name).Msg("tool execution failed")
		return &CallToolResult{Content: []Content{NewTextContent(err.Error())}, IsError: true}, nil
	}
	return &result, nil
}

func (s *Server) writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		s.writeError(w, id, ErrInternal, "failed to marshal result")
		return
	}
	resp := Response{JSONRPC: "2.0", ID: id, Result: resultJSON}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	s.writeErrorResponse(w, id, &Error{Code: code, Message: message})
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, id interface{}, err *Error) {
	resp := Response{JSONRPC: "2.0", ID: id, Error: err}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
