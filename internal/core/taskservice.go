package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

// TaskAPI is the remote PREQSTATION task API. It is implemented by the HTTP
// client in the integration package.
type TaskAPI interface {
	ListTasks(ctx context.Context, query models.TaskQuery) ([]models.Task, error)
	GetTask(ctx context.Context, taskID string) (*models.TaskEnvelope, error)
	CreateTask(ctx context.Context, task models.NewTask) (*models.TaskEnvelope, error)
	UpdateTask(ctx context.Context, taskID string, patch models.TaskPatch) (*models.TaskEnvelope, error)
}

// Session holds values fixed when an MCP client connects. It is passed to
// every operation instead of being cached in shared state.
type Session struct {
	ClientName string
	// Engine is inferred from ClientName and may be empty.
	Engine models.Engine
}

// NewSession derives the session values from the client's reported name.
func NewSession(clientName string) Session {
	return Session{ClientName: clientName, Engine: DetectEngine(clientName)}
}

// ListTasksOpts holds the inputs of ListTasks. Limit 0 means no limit.
type ListTasksOpts struct {
	Status     string
	Label      string
	ProjectKey string
	Engine     string
	Limit      int
}

// ListTasksResult reports the tasks returned after filtering and truncation.
// Total counts what the API returned, Matched what survived the project
// filter and Count what is included in Tasks.
type ListTasksResult struct {
	Count      int                  `json:"count"`
	Matched    int                  `json:"matched"`
	Total      int                  `json:"total"`
	ProjectKey string               `json:"project_key,omitempty"`
	Tasks      []models.TaskSummary `json:"tasks"`
}

// CreateTaskOpts holds the inputs of CreateTask.
type CreateTaskOpts struct {
	Title              string
	Repo               string
	Description        string
	Priority           string
	Labels             []string
	AcceptanceCriteria []string
	Branch             string
	Assignee           string
	Engine             string
}

// PlanTaskOpts holds the inputs of PlanTask.
type PlanTaskOpts struct {
	ProjectKey         string
	TaskID             string
	PlanMarkdown       string
	AcceptanceCriteria []string
	Priority           string
	Labels             []string
	Engine             string
}

// CompleteTaskOpts holds the inputs of CompleteTask.
type CompleteTaskOpts struct {
	TaskID  string
	Summary string
	Tests   string
	PRURL   string
	Notes   string
	Engine  string
}

// BlockTaskOpts holds the inputs of BlockTask.
type BlockTaskOpts struct {
	TaskID string
	Reason string
	Engine string
}

// TaskWriteResult describes a status change written to the API.
type TaskWriteResult struct {
	Task           json.RawMessage   `json:"task"`
	Status         models.TaskStatus `json:"status"`
	Engine         models.Engine     `json:"engine"`
	ProjectKey     string            `json:"project_key,omitempty"`
	UploadedResult any               `json:"uploaded_result,omitempty"`
}

// TaskService implements the task operations exposed as MCP tools. All
// input validation happens before the first request is sent.
type TaskService interface {
	ListTasks(ctx context.Context, sess Session, opts ListTasksOpts) (*ListTasksResult, error)
	GetTask(ctx context.Context, sess Session, taskID string) (json.RawMessage, error)
	CreateTask(ctx context.Context, sess Session, opts CreateTaskOpts) (json.RawMessage, error)
	PlanTask(ctx context.Context, sess Session, opts PlanTaskOpts) (*TaskWriteResult, error)
	StartTask(ctx context.Context, sess Session, taskID, engine string) (json.RawMessage, error)
	CompleteTask(ctx context.Context, sess Session, opts CompleteTaskOpts) (*TaskWriteResult, error)
	BlockTask(ctx context.Context, sess Session, opts BlockTaskOpts) (*TaskWriteResult, error)
}

type taskService struct {
	api      TaskAPI
	resolver EngineResolver
	now      func() time.Time
}

// NewTaskService creates a TaskService backed by api.
func NewTaskService(api TaskAPI, resolver EngineResolver) TaskService {
	return &taskService{
		api:      api,
		resolver: resolver,
		now:      time.Now,
	}
}

func (s *taskService) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *taskService) ListTasks(ctx context.Context, _ Session, opts ListTasksOpts) (*ListTasksResult, error) {
	status, err := parseStatus(opts.Status)
	if err != nil {
		return nil, err
	}

	label := strings.TrimSpace(opts.Label)
	if len([]rune(label)) > MaxLabelLen {
		return nil, invalid("label", "must be at most %d characters", MaxLabelLen)
	}

	var projectKey string
	if strings.TrimSpace(opts.ProjectKey) != "" {
		projectKey, err = NormalizeProjectKey(opts.ProjectKey)
		if err != nil {
			return nil, err
		}
	}

	engine, err := parseExplicitEngine(opts.Engine)
	if err != nil {
		return nil, err
	}

	if opts.Limit != 0 && (opts.Limit < MinListLimit || opts.Limit > MaxListLimit) {
		return nil, invalid("limit", "must be between %d and %d", MinListLimit, MaxListLimit)
	}

	tasks, err := s.api.ListTasks(ctx, models.TaskQuery{
		Status: status,
		Label:  label,
		Engine: models.Engine(engine),
	})
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	filtered := tasks
	if projectKey != "" {
		filtered = make([]models.Task, 0, len(tasks))
		for i := range tasks {
			if BelongsToProjectKey(&tasks[i], projectKey) {
				filtered = append(filtered, tasks[i])
			}
		}
	}

	sliced := filtered
	if opts.Limit > 0 && len(sliced) > opts.Limit {
		sliced = sliced[:opts.Limit]
	}

	out := &ListTasksResult{
		Count:      len(sliced),
		Matched:    len(filtered),
		Total:      len(tasks),
		ProjectKey: projectKey,
		Tasks:      make([]models.TaskSummary, len(sliced)),
	}
	for i := range sliced {
		out.Tasks[i] = sliced[i].Summary()
	}
	return out, nil
}

func (s *taskService) GetTask(ctx context.Context, _ Session, taskID string) (json.RawMessage, error) {
	id, err := normalizeTaskID(taskID)
	if err != nil {
		return nil, err
	}

	env, err := s.api.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	return env.Raw, nil
}

func (s *taskService) CreateTask(ctx context.Context, sess Session, opts CreateTaskOpts) (json.RawMessage, error) {
	title, err := requiredText("title", opts.Title, MaxTitleLen)
	if err != nil {
		return nil, err
	}
	repo, err := requiredText("repo", opts.Repo, MaxRepoLen)
	if err != nil {
		return nil, err
	}
	description, err := optionalText("description", opts.Description, MaxDescriptionLen)
	if err != nil {
		return nil, err
	}
	priority, err := parsePriority(opts.Priority)
	if err != nil {
		return nil, err
	}
	labels, err := stringList("labels", opts.Labels, MaxLabels, MaxLabelLen)
	if err != nil {
		return nil, err
	}
	criteria, err := stringList("acceptanceCriteria", opts.AcceptanceCriteria, MaxCriteria, MaxCriterionLen)
	if err != nil {
		return nil, err
	}
	branch, err := optionalText("branch", opts.Branch, MaxBranchLen)
	if err != nil {
		return nil, err
	}
	assignee, err := optionalText("assignee", opts.Assignee, MaxAssigneeLen)
	if err != nil {
		return nil, err
	}
	explicit, err := parseExplicitEngine(opts.Engine)
	if err != nil {
		return nil, err
	}

	newTask := models.NewTask{
		Title:              title,
		Repo:               repo,
		Priority:           models.PriorityNone,
		Engine:             s.resolver.Resolve(explicit, "", sess.Engine),
		Description:        description,
		Labels:             labels,
		AcceptanceCriteria: criteria,
		Branch:             branch,
		Assignee:           assignee,
	}
	if priority.Set {
		newTask.Priority = priority.Value
	}

	env, err := s.api.CreateTask(ctx, newTask)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return env.Raw, nil
}

func (s *taskService) PlanTask(ctx context.Context, sess Session, opts PlanTaskOpts) (*TaskWriteResult, error) {
	projectKey, err := NormalizeProjectKey(opts.ProjectKey)
	if err != nil {
		return nil, err
	}
	id, err := normalizeTaskID(opts.TaskID)
	if err != nil {
		return nil, err
	}
	plan, err := requiredText("planMarkdown", opts.PlanMarkdown, MaxDescriptionLen)
	if err != nil {
		return nil, err
	}
	criteria, err := stringList("acceptanceCriteria", opts.AcceptanceCriteria, MaxCriteria, MaxCriterionLen)
	if err != nil {
		return nil, err
	}
	priority, err := parsePriority(opts.Priority)
	if err != nil {
		return nil, err
	}
	labels, err := stringList("labels", opts.Labels, MaxLabels, MaxLabelLen)
	if err != nil {
		return nil, err
	}
	explicit, err := parseExplicitEngine(opts.Engine)
	if err != nil {
		return nil, err
	}

	current, err := s.api.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching task %s: %w", id, err)
	}
	if current.Task == nil || !BelongsToProjectKey(current.Task, projectKey) {
		return nil, invalid("taskId", "task %s does not belong to project %s", id, projectKey)
	}

	engine := s.resolver.Resolve(explicit, string(current.Task.Engine), sess.Engine)
	patch := models.TaskPatch{
		Status:             models.Some(models.StatusTodo),
		Engine:             models.Some(engine),
		Description:        models.Some(plan),
		Priority:           priority,
		Labels:             labels,
		AcceptanceCriteria: criteria,
	}

	updated, err := s.api.UpdateTask(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("planning task %s: %w", id, err)
	}

	return &TaskWriteResult{
		Task:       updated.TaskRaw,
		Status:     models.StatusTodo,
		Engine:     engine,
		ProjectKey: projectKey,
	}, nil
}

func (s *taskService) StartTask(ctx context.Context, sess Session, taskID, engine string) (json.RawMessage, error) {
	id, err := normalizeTaskID(taskID)
	if err != nil {
		return nil, err
	}
	explicit, err := parseExplicitEngine(engine)
	if err != nil {
		return nil, err
	}

	patch := models.TaskPatch{
		Status: models.Some(models.StatusInProgress),
		Engine: models.Some(s.resolver.Resolve(explicit, "", sess.Engine)),
	}
	updated, err := s.api.UpdateTask(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("starting task %s: %w", id, err)
	}
	return updated.Raw, nil
}

func (s *taskService) CompleteTask(ctx context.Context, sess Session, opts CompleteTaskOpts) (*TaskWriteResult, error) {
	id, err := normalizeTaskID(opts.TaskID)
	if err != nil {
		return nil, err
	}
	summary, err := requiredText("summary", opts.Summary, MaxSummaryLen)
	if err != nil {
		return nil, err
	}
	tests, err := optionalText("tests", opts.Tests, MaxSummaryLen)
	if err != nil {
		return nil, err
	}
	prURL, err := parsePRURL(opts.PRURL)
	if err != nil {
		return nil, err
	}
	notes, err := optionalText("notes", opts.Notes, MaxNotesLen)
	if err != nil {
		return nil, err
	}
	explicit, err := parseExplicitEngine(opts.Engine)
	if err != nil {
		return nil, err
	}

	current, err := s.api.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching task %s: %w", id, err)
	}

	var status models.TaskStatus
	var taskEngine string
	if current.Task != nil {
		status = current.Task.Status
		taskEngine = string(current.Task.Engine)
	}
	if status != models.StatusInProgress {
		return nil, &TransitionError{
			TaskID:  id,
			Current: status,
			Target:  models.StatusReview,
			Require: models.StatusInProgress,
		}
	}

	engine := s.resolver.Resolve(explicit, taskEngine, sess.Engine)
	result := models.CompletionResult{
		Summary:     summary,
		Tests:       tests.Value,
		PRURL:       prURL,
		Notes:       notes.Value,
		Engine:      engine,
		CompletedAt: s.timestamp(),
	}
	patch := models.TaskPatch{
		Status: models.Some(models.StatusReview),
		Engine: models.Some(engine),
		Result: models.Some[any](result),
	}

	updated, err := s.api.UpdateTask(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("completing task %s: %w", id, err)
	}

	return &TaskWriteResult{
		Task:           updated.TaskRaw,
		Status:         models.StatusReview,
		Engine:         engine,
		UploadedResult: result,
	}, nil
}

func (s *taskService) BlockTask(ctx context.Context, sess Session, opts BlockTaskOpts) (*TaskWriteResult, error) {
	id, err := normalizeTaskID(opts.TaskID)
	if err != nil {
		return nil, err
	}
	reason, err := requiredText("reason", opts.Reason, MaxSummaryLen)
	if err != nil {
		return nil, err
	}
	explicit, err := parseExplicitEngine(opts.Engine)
	if err != nil {
		return nil, err
	}

	engine := s.resolver.Resolve(explicit, "", sess.Engine)
	result := models.BlockResult{
		Reason:    reason,
		Engine:    engine,
		BlockedAt: s.timestamp(),
	}
	patch := models.TaskPatch{
		Status: models.Some(models.StatusBlocked),
		Engine: models.Some(engine),
		Result: models.Some[any](result),
	}

	updated, err := s.api.UpdateTask(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("blocking task %s: %w", id, err)
	}

	return &TaskWriteResult{
		Task:           updated.TaskRaw,
		Status:         models.StatusBlocked,
		Engine:         engine,
		UploadedResult: result,
	}, nil
}
