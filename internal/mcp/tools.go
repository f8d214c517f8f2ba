package mcp

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/preqstation-mcp/internal/core"
)

// --- Tool input types ---

type listTasksInput struct {
	Status     string `json:"status,omitempty" jsonschema:"filter by status (todo, in_progress, review, done, blocked)"`
	Label      string `json:"label,omitempty" jsonschema:"filter by label"`
	ProjectKey string `json:"projectKey,omitempty" jsonschema:"only tasks whose ticket key starts with this project key, e.g. TEST"`
	Engine     string `json:"engine,omitempty" jsonschema:"filter by assigned engine (claude, codex, gemini)"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of tasks to return (1-200)"`
}

type getTaskInput struct {
	TaskID string `json:"taskId" jsonschema:"ticket number like TEST-4 or task UUID"`
}

type planTaskInput struct {
	ProjectKey         string   `json:"projectKey" jsonschema:"project key the task must belong to, e.g. TEST"`
	TaskID             string   `json:"taskId" jsonschema:"ticket number like TEST-4 or task UUID"`
	PlanMarkdown       string   `json:"planMarkdown" jsonschema:"implementation plan in markdown; replaces the task description"`
	AcceptanceCriteria []string `json:"acceptanceCriteria,omitempty" jsonschema:"acceptance criteria, one entry per line item"`
	Priority           string   `json:"priority,omitempty" jsonschema:"priority (highest, high, medium, none, low, lowest)"`
	Labels             []string `json:"labels,omitempty" jsonschema:"labels to set on the task"`
	Engine             string   `json:"engine,omitempty" jsonschema:"engine planning the task (claude, codex, gemini)"`
}

type createTaskInput struct {
	Title              string   `json:"title" jsonschema:"task title"`
	Repo               string   `json:"repo" jsonschema:"repository the task applies to"`
	Description        string   `json:"description,omitempty" jsonschema:"task description in markdown"`
	Priority           string   `json:"priority,omitempty" jsonschema:"priority (highest, high, medium, none, low, lowest); defaults to none"`
	Labels             []string `json:"labels,omitempty" jsonschema:"labels to set on the task"`
	AcceptanceCriteria []string `json:"acceptanceCriteria,omitempty" jsonschema:"acceptance criteria, one entry per line item"`
	Branch             string   `json:"branch,omitempty" jsonschema:"working branch name"`
	Assignee           string   `json:"assignee,omitempty" jsonschema:"assignee handle"`
	Engine             string   `json:"engine,omitempty" jsonschema:"engine assigned to the task (claude, codex, gemini)"`
}

type startTaskInput struct {
	TaskID string `json:"taskId" jsonschema:"ticket number like TEST-4 or task UUID"`
	Engine string `json:"engine,omitempty" jsonschema:"engine starting the task (claude, codex, gemini)"`
}

type completeTaskInput struct {
	TaskID  string `json:"taskId" jsonschema:"ticket number like TEST-4 or task UUID"`
	Summary string `json:"summary" jsonschema:"summary of the work done"`
	Tests   string `json:"tests,omitempty" jsonschema:"tests run and their outcome"`
	PRURL   string `json:"prUrl,omitempty" jsonschema:"pull request URL"`
	Notes   string `json:"notes,omitempty" jsonschema:"additional notes for reviewers"`
	Engine  string `json:"engine,omitempty" jsonschema:"engine that did the work (claude, codex, gemini)"`
}

type blockTaskInput struct {
	TaskID string `json:"taskId" jsonschema:"ticket number like TEST-4 or task UUID"`
	Reason string `json:"reason" jsonschema:"why work cannot continue"`
	Engine string `json:"engine,omitempty" jsonschema:"engine reporting the block (claude, codex, gemini)"`
}

// --- Input schemas ---

// inputSchema infers the schema of T and lets constrain tighten its
// properties. Values are trimmed and case-folded by the task service, so
// the schema only carries bounds that hold for the raw input too: required
// strings are non-empty and lists and the limit are bounded.
func inputSchema[T any](constrain func(props map[string]*jsonschema.Schema)) *jsonschema.Schema {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic("inferring input schema: " + err.Error())
	}
	if constrain != nil {
		constrain(schema.Properties)
	}
	return schema
}

func required(props map[string]*jsonschema.Schema, names ...string) {
	for _, name := range names {
		if p, ok := props[name]; ok {
			p.MinLength = intPtr(1)
		}
	}
}

func maxItems(props map[string]*jsonschema.Schema, name string, n int) {
	if p, ok := props[name]; ok {
		p.MaxItems = intPtr(n)
	}
}

func intPtr(n int) *int { return &n }

func floatPtr(f float64) *float64 { return &f }

var (
	listTasksSchema = inputSchema[listTasksInput](func(props map[string]*jsonschema.Schema) {
		if p, ok := props["limit"]; ok {
			p.Minimum = floatPtr(core.MinListLimit)
			p.Maximum = floatPtr(core.MaxListLimit)
		}
	})

	getTaskSchema = inputSchema[getTaskInput](func(props map[string]*jsonschema.Schema) {
		required(props, "taskId")
	})

	planTaskSchema = inputSchema[planTaskInput](func(props map[string]*jsonschema.Schema) {
		required(props, "projectKey", "taskId", "planMarkdown")
		maxItems(props, "acceptanceCriteria", core.MaxCriteria)
		maxItems(props, "labels", core.MaxLabels)
	})

	createTaskSchema = inputSchema[createTaskInput](func(props map[string]*jsonschema.Schema) {
		required(props, "title", "repo")
		maxItems(props, "acceptanceCriteria", core.MaxCriteria)
		maxItems(props, "labels", core.MaxLabels)
	})

	startTaskSchema = inputSchema[startTaskInput](func(props map[string]*jsonschema.Schema) {
		required(props, "taskId")
	})

	completeTaskSchema = inputSchema[completeTaskInput](func(props map[string]*jsonschema.Schema) {
		required(props, "taskId", "summary")
	})

	blockTaskSchema = inputSchema[blockTaskInput](func(props map[string]*jsonschema.Schema) {
		required(props, "taskId", "reason")
	})
)

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "preq_list_tasks",
		Title:       "List PREQSTATION tasks",
		Description: "List PREQSTATION tasks by status, label, engine or project key. Use this when no ticket number is provided and you need to pick work.",
		InputSchema: listTasksSchema,
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "preq_get_task",
		Title:       "Get PREQSTATION task",
		Description: "Get the detailed task payload by ticket number like TEST-4 or UUID.",
		InputSchema: getTaskSchema,
	}, s.handleGetTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "preq_plan_task",
		Title:       "Plan PREQSTATION task",
		Description: "Write an implementation plan into a task of the given project and move it to todo. Fails if the task does not belong to the project.",
		InputSchema: planTaskSchema,
	}, s.handlePlanTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "preq_create_task",
		Title:       "Create PREQSTATION task",
		Description: "Create a new task in the default intake state. Priority defaults to none.",
		InputSchema: createTaskSchema,
	}, s.handleCreateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "preq_start_task",
		Title:       "Start PREQSTATION task",
		Description: "Move a task to in_progress by ticket number.",
		InputSchema: startTaskSchema,
	}, s.handleStartTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "preq_complete_task",
		Title:       "Submit PREQSTATION task for review",
		Description: "Upload the execution result to an in_progress task and mark it as review. The result is saved into PREQSTATION work logs for verification.",
		InputSchema: completeTaskSchema,
	}, s.handleCompleteTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "preq_block_task",
		Title:       "Block PREQSTATION task",
		Description: "Mark a task as blocked and upload the blocking reason.",
		InputSchema: blockTaskSchema,
	}, s.handleBlockTask)
}

// --- Tool handlers ---

func (s *Server) handleListTasks(ctx context.Context, req *gomcp.CallToolRequest, in listTasksInput) (*gomcp.CallToolResult, any, error) {
	return s.call(ctx, req, "preq_list_tasks", "", func(ctx context.Context, sess core.Session) (any, error) {
		return s.tasks.ListTasks(ctx, sess, core.ListTasksOpts{
			Status:     in.Status,
			Label:      in.Label,
			ProjectKey: in.ProjectKey,
			Engine:     in.Engine,
			Limit:      in.Limit,
		})
	}), nil, nil
}

func (s *Server) handleGetTask(ctx context.Context, req *gomcp.CallToolRequest, in getTaskInput) (*gomcp.CallToolResult, any, error) {
	return s.call(ctx, req, "preq_get_task", in.TaskID, func(ctx context.Context, sess core.Session) (any, error) {
		return s.tasks.GetTask(ctx, sess, in.TaskID)
	}), nil, nil
}

func (s *Server) handlePlanTask(ctx context.Context, req *gomcp.CallToolRequest, in planTaskInput) (*gomcp.CallToolResult, any, error) {
	return s.call(ctx, req, "preq_plan_task", in.TaskID, func(ctx context.Context, sess core.Session) (any, error) {
		return s.tasks.PlanTask(ctx, sess, core.PlanTaskOpts{
			ProjectKey:         in.ProjectKey,
			TaskID:             in.TaskID,
			PlanMarkdown:       in.PlanMarkdown,
			AcceptanceCriteria: in.AcceptanceCriteria,
			Priority:           in.Priority,
			Labels:             in.Labels,
			Engine:             in.Engine,
		})
	}), nil, nil
}

func (s *Server) handleCreateTask(ctx context.Context, req *gomcp.CallToolRequest, in createTaskInput) (*gomcp.CallToolResult, any, error) {
	return s.call(ctx, req, "preq_create_task", "", func(ctx context.Context, sess core.Session) (any, error) {
		return s.tasks.CreateTask(ctx, sess, core.CreateTaskOpts{
			Title:              in.Title,
			Repo:               in.Repo,
			Description:        in.Description,
			Priority:           in.Priority,
			Labels:             in.Labels,
			AcceptanceCriteria: in.AcceptanceCriteria,
			Branch:             in.Branch,
			Assignee:           in.Assignee,
			Engine:             in.Engine,
		})
	}), nil, nil
}

func (s *Server) handleStartTask(ctx context.Context, req *gomcp.CallToolRequest, in startTaskInput) (*gomcp.CallToolResult, any, error) {
	return s.call(ctx, req, "preq_start_task", in.TaskID, func(ctx context.Context, sess core.Session) (any, error) {
		return s.tasks.StartTask(ctx, sess, in.TaskID, in.Engine)
	}), nil, nil
}

func (s *Server) handleCompleteTask(ctx context.Context, req *gomcp.CallToolRequest, in completeTaskInput) (*gomcp.CallToolResult, any, error) {
	return s.call(ctx, req, "preq_complete_task", in.TaskID, func(ctx context.Context, sess core.Session) (any, error) {
		return s.tasks.CompleteTask(ctx, sess, core.CompleteTaskOpts{
			TaskID:  in.TaskID,
			Summary: in.Summary,
			Tests:   in.Tests,
			PRURL:   in.PRURL,
			Notes:   in.Notes,
			Engine:  in.Engine,
		})
	}), nil, nil
}

func (s *Server) handleBlockTask(ctx context.Context, req *gomcp.CallToolRequest, in blockTaskInput) (*gomcp.CallToolResult, any, error) {
	return s.call(ctx, req, "preq_block_task", in.TaskID, func(ctx context.Context, sess core.Session) (any, error) {
		return s.tasks.BlockTask(ctx, sess, core.BlockTaskOpts{
			TaskID: in.TaskID,
			Reason: in.Reason,
			Engine: in.Engine,
		})
	}), nil, nil
}
