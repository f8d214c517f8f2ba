// Package mcp provides an MCP (Model Context Protocol) server that exposes
// PREQSTATION task operations as tools for AI coding assistants.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/valter-silva-au/preqstation-mcp/internal/core"
	"github.com/valter-silva-au/preqstation-mcp/internal/integration"
	"github.com/valter-silva-au/preqstation-mcp/internal/observability"
)

const serverInstructions = `PREQSTATION task workflow:
1) preq_list_tasks to pick work when no ticket number is given (filter by status, label or projectKey).
2) preq_get_task for full details of a ticket such as TEST-4.
3) preq_plan_task to write an implementation plan and move the task to todo.
4) preq_start_task before working on a task (moves it to in_progress).
5) preq_complete_task to upload the result and move the task to review; the task must be in_progress.
6) preq_block_task with a reason when work cannot continue.`

// Server wraps the task service and exposes it as MCP tools.
type Server struct {
	server  *gomcp.Server
	tasks   core.TaskService
	journal observability.EventLog
	logger  zerolog.Logger
}

// NewServer creates an MCP server over tasks. journal may be nil.
func NewServer(tasks core.TaskService, journal observability.EventLog, logger zerolog.Logger, version string) *Server {
	if version == "" {
		version = "dev"
	}
	if journal == nil {
		journal = observability.NewNopEventLog()
	}

	s := &Server{
		tasks:   tasks,
		journal: journal,
		logger:  logger,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "preqstation-mcp", Title: "PREQSTATION MCP Server", Version: version},
		&gomcp.ServerOptions{
			Instructions:       serverInstructions,
			InitializedHandler: s.handleInitialized,
		},
	)

	s.registerTools()

	return s
}

// Run serves MCP over stdio, blocking until the client disconnects or ctx
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

func (s *Server) handleInitialized(_ context.Context, req *gomcp.InitializedRequest) {
	sess := sessionFor(req.Session)
	s.logger.Info().
		Str("client", sess.ClientName).
		Str("detected_engine", string(sess.Engine)).
		Msg("mcp session initialized")
}

// sessionFor derives the per-connection values from the client's
// initialize request. It never fails; an unknown client yields no engine.
func sessionFor(ss *gomcp.ServerSession) core.Session {
	if ss == nil {
		return core.Session{}
	}
	params := ss.InitializeParams()
	if params == nil || params.ClientInfo == nil {
		return core.Session{}
	}
	return core.NewSession(params.ClientInfo.Name)
}

// call runs one tool invocation with a request id, logs and journals the
// outcome, and converts it into a text result.
func (s *Server) call(ctx context.Context, req *gomcp.CallToolRequest, tool, taskID string, fn func(ctx context.Context, sess core.Session) (any, error)) *gomcp.CallToolResult {
	requestID := observability.NewRequestID()
	ctx = observability.WithRequestID(ctx, requestID)

	var ss *gomcp.ServerSession
	if req != nil {
		ss = req.Session
	}
	sess := sessionFor(ss)

	start := time.Now()
	value, err := fn(ctx, sess)
	elapsed := time.Since(start)

	engine := string(sess.Engine)
	if wr, ok := value.(*core.TaskWriteResult); ok && wr != nil {
		engine = string(wr.Engine)
	}

	ref := taskRef(taskID, value)
	data := map[string]any{
		"request_id":  requestID,
		"duration_ms": elapsed.Milliseconds(),
	}
	if ref != "" {
		data["task_id"] = ref
	}
	if engine != "" {
		data["engine"] = engine
	}

	event := observability.Event{
		Time:    start.UTC(),
		Level:   observability.LevelInfo,
		Type:    observability.ToolEventType(tool),
		Message: "ok",
		Data:    data,
	}

	logEvent := s.logger.Info()
	if err != nil {
		kind := errorKind(err)
		data["error_kind"] = kind
		event.Level = observability.LevelError
		event.Message = err.Error()
		logEvent = s.logger.Warn().Err(err).Str("error_kind", kind)
	}
	logEvent.
		Str("tool", tool).
		Str("request_id", requestID).
		Str("task_id", ref).
		Str("engine", engine).
		Dur("duration", elapsed).
		Msg("tool call")

	if jerr := s.journal.Write(event); jerr != nil {
		s.logger.Error().Err(jerr).Str("tool", tool).Msg("writing call journal")
	}

	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(value)
}

// taskRef is the id a call is journaled under: the ticket key from the
// API response when there is one, otherwise the caller's id. Both are
// normalized so calls by UUID, by key or in another case line up.
func taskRef(taskID string, value any) string {
	var raw json.RawMessage
	switch v := value.(type) {
	case *core.TaskWriteResult:
		if v != nil {
			raw = v.Task
		}
	case json.RawMessage:
		raw = v
	}
	if key := taskKeyOf(raw); key != "" {
		return observability.NormalizeTaskRef(key)
	}
	return observability.NormalizeTaskRef(taskID)
}

// taskKeyOf reads task_key from a task object or a {"task": {...}} envelope.
func taskKeyOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var body struct {
		TaskKey string `json:"task_key"`
		Task    *struct {
			TaskKey string `json:"task_key"`
		} `json:"task"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Task != nil && strings.TrimSpace(body.Task.TaskKey) != "" {
		return body.Task.TaskKey
	}
	return body.TaskKey
}

// errorKind classifies err for logs and the journal.
func errorKind(err error) string {
	var validationErr *core.ValidationError
	var transitionErr *core.TransitionError
	var apiErr *integration.APIError
	switch {
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &transitionErr):
		return "state"
	case errors.As(err, &apiErr):
		return "api"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "transport"
	}
}

// textResult formats v as indented JSON in a single text block. Raw
// payloads from the API are re-indented as they are.
func textResult(v any) *gomcp.CallToolResult {
	var text string
	switch val := v.(type) {
	case string:
		text = val
	case json.RawMessage:
		text = indentRaw(val)
	default:
		data, err := json.MarshalIndent(val, "", "  ")
		if err != nil {
			return errorResult(fmt.Sprintf("encoding result: %s", err))
		}
		text = string(data)
	}
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: text}},
	}
}

func indentRaw(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
