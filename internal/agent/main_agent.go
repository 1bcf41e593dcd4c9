package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beaverai/beaver/internal/common/logger"
	"github.com/beaverai/beaver/internal/events"
	"github.com/beaverai/beaver/internal/events/bus"
	"github.com/beaverai/beaver/internal/sandbox"
)

// Phase is one stage in the fixed project lifecycle.
type Phase string

const (
	PhaseInitialization Phase = "initialization"
	PhasePlanning       Phase = "planning"
	PhaseSetup          Phase = "setup"
	PhaseDevelopment    Phase = "development"
	PhaseTesting        Phase = "testing"
	PhaseDeployment     Phase = "deployment"
)

// phaseOrder is the fixed advancement order swept by manage_workflow.
var phaseOrder = []Phase{PhasePlanning, PhaseSetup, PhaseDevelopment, PhaseTesting, PhaseDeployment}

func nextPhase(current Phase) (Phase, bool) {
	for i, p := range phaseOrder {
		if p == current && i < len(phaseOrder)-1 {
			return phaseOrder[i+1], true
		}
	}
	return current, false
}

// SandboxService is the slice of the sandbox manager the coordinator
// consumes.
type SandboxService interface {
	Create(ctx context.Context, projectID string) (*sandbox.Handle, error)
	CreateProjectStructure(ctx context.Context, projectID, projectName, description string) error
	InstallDependencies(ctx context.Context, projectID string) error
}

// SandboxRef is the sandbox handle recorded on a project context.
type SandboxRef struct {
	ID         string `json:"id"`
	ProviderID string `json:"providerId"`
	PreviewURL string `json:"previewUrl,omitempty"`
	Mock       bool   `json:"mock"`
}

// ProjectContext holds per-project coordination state. All access goes
// through the owning MainAgent, which serializes mutation with the
// context's own mutex so concurrent requests for one project cannot race.
type ProjectContext struct {
	mu sync.Mutex

	ProjectID    string
	UserID       string
	Blueprint    *Blueprint
	Requirements *Requirements
	CurrentPhase Phase
	Sandbox      *SandboxRef

	activeTasks    map[string]*Task
	completedTasks []*Task
}

func newProjectContext(projectID, userID string) *ProjectContext {
	return &ProjectContext{
		ProjectID:    projectID,
		UserID:       userID,
		CurrentPhase: PhaseInitialization,
		activeTasks:  make(map[string]*Task),
	}
}

// Snapshot returns the phase and task counts without exposing internal
// collections.
func (pc *ProjectContext) Snapshot() (Phase, int, int) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.CurrentPhase, len(pc.activeTasks), len(pc.completedTasks)
}

// MainAgent owns one ProjectContext per project and coordinates setup,
// delegation, and phase advancement. The specialist registry is fixed at
// construction and never mutated afterwards.
type MainAgent struct {
	BaseAgent
	classifier  Classifier
	sandboxes   SandboxService
	specialists map[Type]Agent
	eventBus    bus.EventBus
	taskTimeout time.Duration

	mu       sync.RWMutex
	projects map[string]*ProjectContext
}

// NewMainAgent builds the coordinator. The specialists map is copied; it
// cannot grow after construction. The event bus is optional.
func NewMainAgent(classifier Classifier, sandboxes SandboxService, specialists map[Type]Agent, eventBus bus.EventBus, taskTimeout time.Duration, log *logger.Logger) *MainAgent {
	registry := make(map[Type]Agent, len(specialists))
	for t, a := range specialists {
		registry[t] = a
	}
	if taskTimeout <= 0 {
		taskTimeout = 2 * time.Minute
	}

	return &MainAgent{
		BaseAgent: NewBaseAgent(TypeMain, []string{
			"orchestration",
			"task_management",
			"project_coordination",
			"agent_communication",
			"workflow_management",
		}, log),
		classifier:  classifier,
		sandboxes:   sandboxes,
		specialists: registry,
		eventBus:    eventBus,
		taskTimeout: taskTimeout,
		projects:    make(map[string]*ProjectContext),
	}
}

// HasBlueprint reports whether a blueprint has been recorded for the
// project. The orchestrator uses this to route messages.
func (m *MainAgent) HasBlueprint(projectID string) bool {
	m.mu.RLock()
	pc, ok := m.projects[projectID]
	m.mu.RUnlock()
	if !ok {
		return false
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.Blueprint != nil
}

// Project returns the context for a project id, or nil.
func (m *MainAgent) Project(projectID string) *ProjectContext {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.projects[projectID]
}

// ProcessMessage branches on message content and metadata into the three
// coordination flows.
func (m *MainAgent) ProcessMessage(ctx context.Context, msg *Message, mctx MessageContext) (*Response, error) {
	pc, err := m.projectContext(mctx)
	if err != nil {
		return m.ErrorResponse("I encountered an error while coordinating the project. Let me try a different approach.", err), nil
	}

	blueprint := blueprintFromMetadata(msg.Metadata)

	switch {
	case blueprint != nil || strings.Contains(msg.Content, "blueprint"):
		return m.initializeProject(ctx, msg, blueprint, pc, mctx), nil
	case strings.Contains(msg.Content, "task") || (msg.Metadata != nil && msg.Metadata["task"] != nil):
		return m.handleTaskRequest(ctx, msg, pc, mctx), nil
	default:
		return m.coordinateAgents(msg, pc), nil
	}
}

// ExecuteTask dispatches on the task type. Failures are always folded
// into a Failed result.
func (m *MainAgent) ExecuteTask(ctx context.Context, task *Task, mctx MessageContext) *Result {
	task.Start()

	pc, err := m.projectContext(mctx)
	if err != nil {
		return m.FailResult(task, err)
	}

	var result *Result
	switch task.Type {
	case "create_project_structure":
		result = m.createProjectStructure(ctx, task, pc)
	case "setup_sandbox":
		result = m.setupSandbox(ctx, task, pc)
	case "coordinate_development":
		result = m.coordinateDevelopment(ctx, task, pc, mctx)
	case "manage_workflow":
		result = m.manageWorkflow(task, pc)
	default:
		result = m.delegateTask(ctx, task, mctx)
	}

	m.publishTaskEvent(ctx, pc.ProjectID, task, result)
	return result
}

func (m *MainAgent) projectContext(mctx MessageContext) (*ProjectContext, error) {
	if mctx.ProjectID == "" || mctx.UserID == "" {
		return nil, &ValidationError{Field: "context", Reason: "project id and user id are required"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pc, ok := m.projects[mctx.ProjectID]
	if !ok {
		pc = newProjectContext(mctx.ProjectID, mctx.UserID)
		m.projects[mctx.ProjectID] = pc
	}
	return pc, nil
}

// initializeProject records the blueprint, provisions a sandbox
// synchronously, and leaves the project-structure task pending for a
// follow-up execution.
func (m *MainAgent) initializeProject(ctx context.Context, msg *Message, blueprint *Blueprint, pc *ProjectContext, mctx MessageContext) *Response {
	if blueprint == nil {
		return m.ErrorResponse(
			"I encountered an error while coordinating the project. Let me try a different approach.",
			&ValidationError{Field: "blueprint", Reason: "no blueprint provided for project initialization"},
		)
	}

	pc.mu.Lock()
	pc.Blueprint = blueprint
	pc.Requirements = blueprint.Requirements
	pc.CurrentPhase = PhaseSetup
	pc.mu.Unlock()

	sandboxTask := m.NewTask("setup_sandbox", "Create and configure development sandbox",
		map[string]interface{}{"projectId": pc.ProjectID}, 1)
	structureTask := m.NewTask("create_project_structure", "Create initial project structure based on blueprint",
		map[string]interface{}{"projectId": pc.ProjectID}, 2)

	pc.mu.Lock()
	pc.activeTasks[sandboxTask.ID] = sandboxTask
	pc.activeTasks[structureTask.ID] = structureTask
	pc.mu.Unlock()

	sandboxResult := m.ExecuteTask(ctx, sandboxTask, mctx)
	if sandboxResult.Status != TaskCompleted {
		return m.ErrorResponse(
			"I couldn't set up the development environment for your project. Please try again.",
			fmt.Errorf("sandbox setup failed: %s", sandboxResult.Error),
		)
	}

	pc.mu.Lock()
	sandboxID := ""
	previewURL := "Will be available shortly"
	if pc.Sandbox != nil {
		sandboxID = pc.Sandbox.ID
		if pc.Sandbox.PreviewURL != "" {
			previewURL = pc.Sandbox.PreviewURL
		}
	}
	pc.mu.Unlock()

	content := fmt.Sprintf(`**Project Initialization Started!**

I'm setting up your **%s** project with the following:

**Development Environment:**
- Secure sandbox created (ID: %s)
- Project structure generation in progress
- Installing dependencies: %s

**Next Steps:**
1. Configure development environment
2. Setup database schema
3. Initialize authentication system
4. Create basic UI components

**Live Preview:** %s

I'll coordinate with specialized agents to build each component. You can watch the progress in real-time!`,
		blueprint.Requirements.ProjectName,
		sandboxID,
		strings.Join(blueprint.Architecture.Frontend, ", "),
		previewURL,
	)

	return m.NewResponse(content, StatusWorking, []*Task{structureTask}, map[string]interface{}{
		"sandbox":   pc.Sandbox,
		"nextPhase": string(PhaseDevelopment),
	})
}

// handleTaskRequest classifies free text into a task and delegates it
// synchronously.
func (m *MainAgent) handleTaskRequest(ctx context.Context, msg *Message, pc *ProjectContext, mctx MessageContext) *Response {
	classification := m.classifier.Classify(msg.Content)

	task := m.NewTask(classification.TaskType, msg.Content,
		map[string]interface{}{"message": msg.Content}, classification.Priority)
	task.Start()

	result := m.delegateTask(ctx, task, mctx)
	m.publishTaskEvent(ctx, pc.ProjectID, task, result)

	status := StatusWorking
	if result.Status == TaskCompleted {
		status = StatusCompleted
	}

	detail := result.Error
	if detail == "" {
		detail = "Processing continues..."
	}

	return m.NewResponse(
		fmt.Sprintf("Task %q has been %s. %s", classification.TaskType, result.Status, detail),
		status, nil, nil,
	)
}

// coordinateAgents fans a request out into one pending task per required
// specialist. The tasks are not executed here; execution is a separate
// call.
func (m *MainAgent) coordinateAgents(msg *Message, pc *ProjectContext) *Response {
	pc.mu.Lock()
	phase := pc.CurrentPhase
	pc.mu.Unlock()

	required := requiredAgents(phase, msg.Content)

	tasks := make([]*Task, 0, len(required))
	for _, agentType := range required {
		task := m.NewTask(
			string(agentType)+"_work",
			fmt.Sprintf("Handle %s aspects of: %s", agentType, msg.Content),
			map[string]interface{}{"message": msg.Content, "phase": string(phase)},
			agentPriority(agentType),
		)
		tasks = append(tasks, task)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "I'm coordinating %d specialized agents to handle your request:\n\n", len(required))
	for _, agentType := range required {
		fmt.Fprintf(&sb, "**%s Agent**: Processing %s requirements\n", strings.ToUpper(string(agentType)), agentType)
	}
	sb.WriteString("\nThis involves multiple steps that will be executed in parallel where possible. I'll keep you updated on the progress!")

	return m.NewResponse(sb.String(), StatusWorking, tasks, map[string]interface{}{
		"coordinatedAgents": required,
		"phase":             string(phase),
	})
}

func (m *MainAgent) createProjectStructure(ctx context.Context, task *Task, pc *ProjectContext) *Result {
	pc.mu.Lock()
	blueprint := pc.Blueprint
	sandboxRef := pc.Sandbox
	previewURL := ""
	if sandboxRef != nil {
		previewURL = sandboxRef.PreviewURL
	}
	pc.mu.Unlock()

	if blueprint == nil {
		return m.FailResult(task, &ValidationError{Field: "blueprint", Reason: "required for project structure"})
	}

	if sandboxRef != nil {
		opCtx, cancel := context.WithTimeout(ctx, m.taskTimeout)
		defer cancel()

		req := blueprint.Requirements
		if err := m.sandboxes.CreateProjectStructure(opCtx, pc.ProjectID, req.ProjectName, req.Description); err != nil {
			return m.FailResult(task, err)
		}
		if err := m.sandboxes.InstallDependencies(opCtx, pc.ProjectID); err != nil {
			return m.FailResult(task, err)
		}
	}

	return m.CompleteResult(task, map[string]interface{}{
		"structure":    "Project structure created successfully",
		"dependencies": "All dependencies installed",
		"previewUrl":   previewURL,
	}, []string{"package.json", "tsconfig.json", "tailwind.config.js"})
}

func (m *MainAgent) setupSandbox(ctx context.Context, task *Task, pc *ProjectContext) *Result {
	opCtx, cancel := context.WithTimeout(ctx, m.taskTimeout)
	defer cancel()

	handle, err := m.sandboxes.Create(opCtx, pc.ProjectID)
	if err != nil {
		return m.FailResult(task, err)
	}

	ref := &SandboxRef{
		ID:         handle.ID,
		ProviderID: handle.ProviderID,
		PreviewURL: handle.PreviewURL,
		Mock:       handle.Mock,
	}

	pc.mu.Lock()
	pc.Sandbox = ref
	pc.mu.Unlock()

	return m.CompleteResult(task, ref, nil)
}

// coordinateDevelopment runs the fixed task list for the current phase
// against whichever specialists are registered, sequentially, and
// succeeds only when every sub-result completed.
func (m *MainAgent) coordinateDevelopment(ctx context.Context, task *Task, pc *ProjectContext, mctx MessageContext) *Result {
	pc.mu.Lock()
	phase := pc.CurrentPhase
	pc.mu.Unlock()

	var results []*Result
	allCompleted := true

	for _, work := range phaseTasks(phase) {
		specialist, ok := m.specialists[work.agentType]
		if !ok {
			continue
		}

		workTask := m.NewTask(work.taskType, work.description, nil, 1)
		opCtx, cancel := context.WithTimeout(ctx, m.taskTimeout)
		result := specialist.ExecuteTask(opCtx, workTask, mctx)
		cancel()

		results = append(results, result)
		if result.Status != TaskCompleted {
			allCompleted = false
		}
	}

	if !allCompleted {
		task.Resolve(TaskFailed)
		return &Result{
			TaskID:      task.ID,
			Status:      TaskFailed,
			Output:      results,
			Error:       "one or more development sub-tasks failed",
			CompletedAt: time.Now().UTC(),
		}
	}

	return m.CompleteResult(task, results, nil)
}

// manageWorkflow sweeps active tasks, promotes completed ones, and
// advances the phase exactly one step once every active task has
// resolved.
func (m *MainAgent) manageWorkflow(task *Task, pc *ProjectContext) *Result {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	var completed, failed, unresolved int
	for id, t := range pc.activeTasks {
		switch t.Status {
		case TaskCompleted:
			pc.completedTasks = append(pc.completedTasks, t)
			delete(pc.activeTasks, id)
			completed++
		case TaskFailed:
			failed++
		default:
			unresolved++
		}
	}

	if unresolved == 0 {
		if next, ok := nextPhase(pc.CurrentPhase); ok {
			previous := pc.CurrentPhase
			pc.CurrentPhase = next
			m.Logger().Info("Project phase advanced",
				zap.String("project_id", pc.ProjectID),
				zap.String("from", string(previous)),
				zap.String("to", string(next)),
			)
			m.publishPhaseChange(pc.ProjectID, previous, next)
		}
	}

	task.Resolve(TaskCompleted)
	return &Result{
		TaskID: task.ID,
		Status: TaskCompleted,
		Output: map[string]interface{}{
			"currentPhase":   string(pc.CurrentPhase),
			"completedTasks": completed,
			"activeTasks":    len(pc.activeTasks),
			"failedTasks":    failed,
		},
		CompletedAt: time.Now().UTC(),
	}
}

// delegateTask forwards execution to the specialist whose role matches
// the task type. A missing specialist is a routing failure, returned as a
// Failed result rather than an error.
func (m *MainAgent) delegateTask(ctx context.Context, task *Task, mctx MessageContext) *Result {
	agentType := agentForTask(task.Type)
	specialist, ok := m.specialists[agentType]
	if !ok {
		return m.FailResult(task, &RoutingError{TaskType: task.Type})
	}

	opCtx, cancel := context.WithTimeout(ctx, m.taskTimeout)
	defer cancel()
	return specialist.ExecuteTask(opCtx, task, mctx)
}

type phaseWork struct {
	agentType   Type
	taskType    string
	description string
}

func phaseTasks(phase Phase) []phaseWork {
	switch phase {
	case PhaseSetup:
		return []phaseWork{
			{TypeBackend, "setup_server", "Setup Express.js server"},
			{TypeDataLogic, "setup_database", "Setup database schema"},
		}
	case PhaseDevelopment:
		return []phaseWork{
			{TypeFrontend, "create_components", "Create UI components"},
			{TypeBackend, "create_apis", "Create API endpoints"},
		}
	default:
		return nil
	}
}

func requiredAgents(phase Phase, content string) []Type {
	var agents []Type
	phaseStr := string(phase)
	lower := strings.ToLower(content)

	if strings.Contains(phaseStr, "setup") || strings.Contains(phaseStr, "init") {
		agents = append(agents, TypeBackend)
	}
	if strings.Contains(lower, "ui") || strings.Contains(lower, "design") || strings.Contains(lower, "interface") {
		agents = append(agents, TypeUIUX, TypeFrontend)
	}
	if strings.Contains(lower, "api") || strings.Contains(lower, "backend") || strings.Contains(lower, "server") {
		agents = append(agents, TypeBackend)
	}
	if strings.Contains(lower, "data") || strings.Contains(lower, "database") {
		agents = append(agents, TypeDataLogic)
	}

	if len(agents) == 0 {
		agents = append(agents, TypeFrontend)
	}
	return agents
}

func agentPriority(agentType Type) int {
	switch agentType {
	case TypePlanner, TypeMain, TypeBackend, TypeDataLogic:
		return 1
	case TypeFrontend, TypeUIUX:
		return 2
	case TypeTesting:
		return 3
	case TypeOptimization:
		return 4
	case TypeDeployment:
		return 5
	default:
		return 3
	}
}

func agentForTask(taskType string) Type {
	lower := strings.ToLower(taskType)
	switch {
	case strings.Contains(lower, "ui") || strings.Contains(lower, "design"):
		return TypeUIUX
	case strings.Contains(lower, "frontend") || strings.Contains(lower, "component"):
		return TypeFrontend
	case strings.Contains(lower, "backend") || strings.Contains(lower, "api"):
		return TypeBackend
	case strings.Contains(lower, "data") || strings.Contains(lower, "database"):
		return TypeDataLogic
	case strings.Contains(lower, "test"):
		return TypeTesting
	case strings.Contains(lower, "deploy"):
		return TypeDeployment
	default:
		return TypeFrontend
	}
}

func blueprintFromMetadata(metadata map[string]interface{}) *Blueprint {
	if metadata == nil {
		return nil
	}
	if bp, ok := metadata["blueprint"].(*Blueprint); ok {
		return bp
	}
	return nil
}

func (m *MainAgent) publishTaskEvent(ctx context.Context, projectID string, task *Task, result *Result) {
	if m.eventBus == nil {
		return
	}

	eventType := events.TaskCompleted
	if result.Status == TaskFailed {
		eventType = events.TaskFailed
	}

	event := bus.NewEvent(eventType, "main-agent", map[string]interface{}{
		"projectId": projectID,
		"taskId":    task.ID,
		"taskType":  task.Type,
		"status":    string(result.Status),
		"error":     result.Error,
	})
	if err := m.eventBus.Publish(ctx, events.BuildProjectSubject(eventType, projectID), event); err != nil {
		m.Logger().Warn("Failed to publish task event", zap.Error(err))
	}
}

func (m *MainAgent) publishPhaseChange(projectID string, from, to Phase) {
	if m.eventBus == nil {
		return
	}

	event := bus.NewEvent(events.ProjectPhaseChanged, "main-agent", map[string]interface{}{
		"projectId": projectID,
		"from":      string(from),
		"to":        string(to),
	})
	subject := events.BuildProjectSubject(events.ProjectPhaseChanged, projectID)
	if err := m.eventBus.Publish(context.Background(), subject, event); err != nil {
		m.Logger().Warn("Failed to publish phase change", zap.Error(err))
	}
}
