package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/beaverai/beaver/internal/common/logger"
)

// Conversation stages, derived from accumulated requirements rather than
// stored explicitly.
const (
	stageInitial       = "initial"
	stageClarification = "clarification"
	stageRefinement    = "refinement"
	stageBlueprint     = "blueprint"
)

var projectNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:build|create|make|develop)\s+(?:a\s+)?(?:web\s+)?(?:app|application|site|platform|tool)\s+(?:for\s+|called\s+|named\s+)?([^.!?]+)`),
	regexp.MustCompile(`(?i)(?:i\s+want|i'd\s+like|i\s+need)\s+(?:to\s+)?(?:build|create|make|develop)\s+([^.!?]+)`),
}

// plannerSession is the per-conversation planning state.
type plannerSession struct {
	history      []*Message
	requirements *Requirements
}

// PlannerAgent is a conversational state machine that turns free-text
// project descriptions into requirements and then a blueprint. Sessions
// are keyed by conversation id so concurrent conversations do not bleed
// into each other.
type PlannerAgent struct {
	BaseAgent
	classifier Classifier

	mu       sync.Mutex
	sessions map[string]*plannerSession
}

// NewPlannerAgent builds a planner using the given classifier for feature
// extraction.
func NewPlannerAgent(classifier Classifier, log *logger.Logger) *PlannerAgent {
	return &PlannerAgent{
		BaseAgent: NewBaseAgent(TypePlanner, []string{
			"requirement_gathering",
			"project_planning",
			"user_interaction",
			"clarification",
			"blueprint_creation",
		}, log),
		classifier: classifier,
		sessions:   make(map[string]*plannerSession),
	}
}

// ProcessMessage advances the conversation one stage. The session is
// locked for the duration so concurrent turns on one conversation
// serialize.
func (p *PlannerAgent) ProcessMessage(_ context.Context, msg *Message, mctx MessageContext) (*Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	session := p.session(mctx)
	session.history = append(session.history, msg)

	stage := session.stage()
	p.Logger().Debug("Planner processing message",
		zap.String("conversation_id", mctx.ConversationID),
		zap.String("stage", stage),
	)

	switch stage {
	case stageInitial:
		return p.handleInitial(session, msg), nil
	case stageClarification:
		return p.handleClarification(session, msg), nil
	case stageRefinement:
		return p.handleRefinement(session), nil
	case stageBlueprint:
		return p.handleBlueprint(session), nil
	default:
		return p.NewResponse("I'm here to help you plan your project. What would you like to build?", StatusCompleted, nil, nil), nil
	}
}

// ExecuteTask runs a planner task type.
func (p *PlannerAgent) ExecuteTask(_ context.Context, task *Task, mctx MessageContext) *Result {
	task.Start()

	p.mu.Lock()
	defer p.mu.Unlock()

	session := p.session(mctx)

	switch task.Type {
	case "gather_requirements":
		return p.CompleteResult(task, session.requirements, nil)
	case "create_blueprint":
		blueprint, err := BuildBlueprint(session.requirements)
		if err != nil {
			return p.FailResult(task, err)
		}
		return p.CompleteResult(task, blueprint, []string{"project-blueprint.json"})
	case "validate_requirements":
		req := session.requirements
		if req == nil || req.ProjectName == "" || len(req.Features) == 0 {
			return p.FailResult(task, &ValidationError{Field: "requirements", Reason: "incomplete"})
		}
		return p.CompleteResult(task, map[string]interface{}{"valid": true, "requirements": req}, nil)
	default:
		return p.FailResult(task, &RoutingError{TaskType: task.Type})
	}
}

func (p *PlannerAgent) session(mctx MessageContext) *plannerSession {
	key := mctx.ConversationID
	if key == "" {
		key = mctx.ProjectID
	}
	session, ok := p.sessions[key]
	if !ok {
		session = &plannerSession{}
		p.sessions[key] = session
	}
	return session
}

// stage derives the conversation stage from what has been gathered so
// far. Once technical requirements exist the stage never regresses.
func (s *plannerSession) stage() string {
	if len(s.history) <= 1 {
		return stageInitial
	}
	if s.requirements == nil || s.requirements.ProjectName == "" {
		return stageInitial
	}
	if len(s.requirements.Features) == 0 {
		return stageClarification
	}
	if len(s.requirements.TechnicalRequirements) == 0 {
		return stageRefinement
	}
	return stageBlueprint
}

func (p *PlannerAgent) handleInitial(session *plannerSession, msg *Message) *Response {
	classification := p.classifier.Classify(msg.Content)

	session.requirements = &Requirements{
		ProjectName: extractProjectName(msg.Content),
		Description: msg.Content,
		Features:    classification.Features,
	}

	questions := []string{
		"Who is your target audience and what problem does this solve?",
		"What are the main features you want users to be able to do?",
		"Do you have any specific design preferences or examples you like?",
		"Are there any integrations with external services you need?",
		"What's your expected timeline and any budget constraints?",
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Great! I understand you want to build: **%s**\n\n", session.requirements.ProjectName)
	sb.WriteString("Let me ask a few questions to better understand your vision:\n\n")
	for i, q := range questions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
	}
	sb.WriteString("\nPlease answer these questions so I can create a comprehensive plan for your project.")

	return p.NewResponse(sb.String(), StatusThinking, nil, nil)
}

func (p *PlannerAgent) handleClarification(session *plannerSession, msg *Message) *Response {
	session.mergeAnswers(msg.Content, p.classifier)

	if session.needsMoreClarification() {
		var questions []string
		if session.requirements.TargetAudience == "" {
			questions = append(questions, "Who will be using this application primarily?")
		}
		if len(session.requirements.Features) < 2 {
			questions = append(questions, "What specific actions should users be able to perform?")
		}

		var sb strings.Builder
		sb.WriteString("Thank you for the information! I have a few more questions to ensure I understand everything correctly:\n\n")
		for i, q := range questions {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
		}

		return p.NewResponse(sb.String(), StatusThinking, nil, nil)
	}

	return p.handleRefinement(session)
}

func (p *PlannerAgent) handleRefinement(session *plannerSession) *Response {
	session.applyTechnicalRequirements()

	req := session.requirements
	content := fmt.Sprintf(`Perfect! I now have a clear understanding of your project. Here's what I've gathered:

**Project**: %s
**Description**: %s
**Key Features**: %s

Now I'll create a comprehensive blueprint for your project. This includes:
- Architecture recommendations
- Development phases
- Timeline estimates
- Potential risks and solutions

Would you like me to proceed with generating the blueprint?`,
		req.ProjectName, req.Description, strings.Join(req.Features, ", "))

	return p.NewResponse(content, StatusWorking, nil, nil)
}

func (p *PlannerAgent) handleBlueprint(session *plannerSession) *Response {
	blueprint, err := BuildBlueprint(session.requirements)
	if err != nil {
		return p.ErrorResponse("I encountered an error while processing your request. Could you please try again?", err)
	}

	structureTask := p.NewTask(
		"create_project_structure",
		"Create initial project structure and setup",
		map[string]interface{}{"blueprint": blueprint, "requirements": session.requirements},
		1,
	)

	return p.NewResponse(
		renderBlueprintSummary(blueprint),
		StatusCompleted,
		[]*Task{structureTask},
		map[string]interface{}{"blueprint": blueprint},
	)
}

func renderBlueprintSummary(bp *Blueprint) string {
	var sb strings.Builder
	sb.WriteString("**Project Blueprint Ready!**\n\n")
	fmt.Fprintf(&sb, "## %s\n\n", bp.Requirements.ProjectName)

	sb.WriteString("### Architecture Overview\n")
	fmt.Fprintf(&sb, "- **Frontend**: %s\n", strings.Join(bp.Architecture.Frontend, ", "))
	fmt.Fprintf(&sb, "- **Backend**: %s\n", strings.Join(bp.Architecture.Backend, ", "))
	fmt.Fprintf(&sb, "- **Database**: %s\n", strings.Join(bp.Architecture.Database, ", "))
	fmt.Fprintf(&sb, "- **Integrations**: %s\n\n", strings.Join(bp.Architecture.Integrations, ", "))

	sb.WriteString("### Development Phases\n")
	for i, phase := range bp.Phases {
		fmt.Fprintf(&sb, "\n**Phase %d: %s** (%s)\n", i+1, phase.Name, phase.EstimatedTime)
		for _, task := range phase.Tasks {
			fmt.Fprintf(&sb, "- %s\n", task)
		}
	}

	sb.WriteString("\n### Risk Assessment\n")
	for _, risk := range bp.Risks {
		fmt.Fprintf(&sb, "- %s\n", risk)
	}

	sb.WriteString("\n### Recommendations\n")
	for _, rec := range bp.Recommendations {
		fmt.Fprintf(&sb, "- %s\n", rec)
	}

	sb.WriteString("\nReady to start building? I'll hand this over to the Main Agent to begin development!")
	return sb.String()
}

func (s *plannerSession) mergeAnswers(answers string, classifier Classifier) {
	if s.requirements == nil {
		return
	}

	classification := classifier.Classify(answers)
	s.requirements.Features = mergeFeatures(s.requirements.Features, classification.Features)

	lower := strings.ToLower(answers)
	if strings.Contains(lower, "business") || strings.Contains(lower, "company") {
		s.requirements.TargetAudience = "business users"
	} else if strings.Contains(lower, "consumer") || strings.Contains(lower, "general") {
		s.requirements.TargetAudience = "general consumers"
	}
}

func (s *plannerSession) needsMoreClarification() bool {
	return s.requirements.TargetAudience == "" || len(s.requirements.Features) < 2
}

func (s *plannerSession) applyTechnicalRequirements() {
	req := s.requirements
	req.TechnicalRequirements = []string{
		"Next.js with TypeScript",
		"Express.js backend",
		"PostgreSQL database",
		"TailwindCSS styling",
		"shadcn/ui components",
		"Real-time WebSocket communication",
	}

	for _, feature := range req.Features {
		if feature == "authentication" {
			req.TechnicalRequirements = append(req.TechnicalRequirements, "Clerk authentication")
		}
		if strings.Contains(feature, "chat") || strings.Contains(feature, "messaging") {
			req.TechnicalRequirements = append(req.TechnicalRequirements, "Socket.io for real-time messaging")
		}
	}
}

// extractProjectName pattern-matches phrases like "build a ... app called
// X" or "I want to build X" and cleans the captured phrase. Defaults to a
// generic placeholder when nothing matches.
func extractProjectName(content string) string {
	for _, pattern := range projectNamePatterns {
		if match := pattern.FindStringSubmatch(content); match != nil {
			if name := cleanProjectName(match[1]); name != "" {
				return name
			}
		}
	}
	return "Web Application"
}

func cleanProjectName(raw string) string {
	name := strings.TrimSpace(raw)

	lower := strings.ToLower(name)
	for _, article := range []string{"a ", "an ", "the "} {
		if strings.HasPrefix(lower, article) {
			name = name[len(article):]
			break
		}
	}

	// Drop trailing qualifier clauses so "task management app with
	// authentication" becomes "task management app".
	for _, sep := range []string{" with ", " that ", " which ", " using ", " for "} {
		if idx := strings.Index(strings.ToLower(name), sep); idx > 0 {
			name = name[:idx]
		}
	}

	return strings.TrimSpace(name)
}

func mergeFeatures(existing, extra []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, f := range existing {
		seen[f] = struct{}{}
	}
	for _, f := range extra {
		if _, ok := seen[f]; !ok {
			existing = append(existing, f)
			seen[f] = struct{}{}
		}
	}
	return existing
}
