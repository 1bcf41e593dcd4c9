package agent

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/beaverai/beaver/internal/ai"
	"github.com/beaverai/beaver/internal/common/logger"
)

// Profile configures one specialist role: its system prompt and the
// capability tags it claims. Profiles can be overridden from a YAML file.
type Profile struct {
	Type         Type     `yaml:"type"`
	DisplayName  string   `yaml:"displayName"`
	SystemPrompt string   `yaml:"systemPrompt"`
	Capabilities []string `yaml:"capabilities"`
}

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// DefaultProfiles covers every specialist role with a built-in prompt.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Type:         TypeUIUX,
			DisplayName:  "UI/UX Designer",
			SystemPrompt: "You are a UI/UX design specialist. Produce clear, modern interface designs and explain layout, spacing, and interaction decisions.",
			Capabilities: []string{"ui", "design", "interface", "layout"},
		},
		{
			Type:         TypeFrontend,
			DisplayName:  "Frontend Developer",
			SystemPrompt: "You are a frontend development specialist working with Next.js, TypeScript and TailwindCSS. Build accessible, responsive components.",
			Capabilities: []string{"frontend", "component", "react", "nextjs"},
		},
		{
			Type:         TypeBackend,
			DisplayName:  "Backend Developer",
			SystemPrompt: "You are a backend development specialist working with Express.js and TypeScript. Design clean APIs and robust server logic.",
			Capabilities: []string{"backend", "api", "server"},
		},
		{
			Type:         TypeDataLogic,
			DisplayName:  "Data Engineer",
			SystemPrompt: "You are a data modeling specialist working with PostgreSQL and Prisma. Design normalized schemas and efficient queries.",
			Capabilities: []string{"data", "database", "schema", "migration"},
		},
		{
			Type:         TypeTesting,
			DisplayName:  "QA Engineer",
			SystemPrompt: "You are a testing specialist. Write thorough test plans and identify edge cases and regressions.",
			Capabilities: []string{"test", "qa", "quality"},
		},
		{
			Type:         TypeOptimization,
			DisplayName:  "Performance Engineer",
			SystemPrompt: "You are a performance specialist. Find and fix bottlenecks in web applications.",
			Capabilities: []string{"optimization", "performance", "profiling"},
		},
		{
			Type:         TypeDeployment,
			DisplayName:  "DevOps Engineer",
			SystemPrompt: "You are a deployment specialist. Configure builds, CI, and production infrastructure.",
			Capabilities: []string{"deploy", "deployment", "infrastructure", "ci"},
		},
	}
}

// LoadProfiles reads specialist profiles from a YAML file, falling back
// to the defaults when the path is empty or missing. File entries
// override defaults per role.
func LoadProfiles(path string) ([]Profile, error) {
	profiles := DefaultProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return profiles, nil
		}
		return nil, fmt.Errorf("failed to read agent profiles: %w", err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse agent profiles: %w", err)
	}

	byType := make(map[Type]int, len(profiles))
	for i, p := range profiles {
		byType[p.Type] = i
	}
	for _, override := range file.Profiles {
		if idx, ok := byType[override.Type]; ok {
			profiles[idx] = override
		} else {
			profiles = append(profiles, override)
		}
	}
	return profiles, nil
}

// SpecialistAgent is a generic role agent: it answers messages and
// executes tasks by prompting the text-generation port with its profile's
// system prompt.
type SpecialistAgent struct {
	BaseAgent
	profile Profile
	textGen ai.TextGenerator
}

// NewSpecialistAgent builds a role agent from a profile.
func NewSpecialistAgent(profile Profile, textGen ai.TextGenerator, log *logger.Logger) *SpecialistAgent {
	return &SpecialistAgent{
		BaseAgent: NewBaseAgent(profile.Type, profile.Capabilities, log),
		profile:   profile,
		textGen:   textGen,
	}
}

// ProcessMessage answers a conversational turn in the specialist's role.
func (s *SpecialistAgent) ProcessMessage(ctx context.Context, msg *Message, _ MessageContext) (*Response, error) {
	text, err := s.textGen.GenerateText(ctx, s.profile.SystemPrompt, nil, msg.Content)
	if err != nil {
		return s.ErrorResponse("I encountered an error while processing your request. Could you please try again?", err), nil
	}
	return s.NewResponse(text, StatusCompleted, nil, nil), nil
}

// ExecuteTask prompts the provider to carry out the task and reports the
// generated output. Provider failures, including timeouts, resolve the
// task as failed.
func (s *SpecialistAgent) ExecuteTask(ctx context.Context, task *Task, _ MessageContext) *Result {
	task.Start()

	prompt := fmt.Sprintf("Task type: %s\n\n%s", task.Type, task.Description)
	text, err := s.textGen.GenerateText(ctx, s.profile.SystemPrompt, nil, prompt)
	if err != nil {
		return s.FailResult(task, err)
	}

	return s.CompleteResult(task, map[string]interface{}{
		"role":   s.profile.DisplayName,
		"output": text,
	}, nil)
}

// BuildSpecialists constructs the full registry of role agents from the
// given profiles.
func BuildSpecialists(profiles []Profile, textGen ai.TextGenerator, log *logger.Logger) map[Type]Agent {
	specialists := make(map[Type]Agent, len(profiles))
	for _, profile := range profiles {
		specialists[profile.Type] = NewSpecialistAgent(profile, textGen, log)
	}
	return specialists
}
