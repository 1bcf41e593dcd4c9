package agent

// Requirements is the structured reading of what the user wants to build,
// accumulated across planner turns.
type Requirements struct {
	ProjectName           string   `json:"projectName"`
	Description           string   `json:"description"`
	TargetAudience        string   `json:"targetAudience,omitempty"`
	Features              []string `json:"features"`
	TechnicalRequirements []string `json:"technicalRequirements,omitempty"`
	Constraints           []string `json:"constraints,omitempty"`
	Timeline              string   `json:"timeline,omitempty"`
	Budget                string   `json:"budget,omitempty"`
}

// Architecture lists the chosen stack per layer.
type Architecture struct {
	Frontend     []string `json:"frontend"`
	Backend      []string `json:"backend"`
	Database     []string `json:"database"`
	Integrations []string `json:"integrations"`
}

// BlueprintPhase is one stage of the phased delivery plan.
type BlueprintPhase struct {
	Name          string   `json:"name"`
	Tasks         []string `json:"tasks"`
	EstimatedTime string   `json:"estimatedTime"`
	Dependencies  []string `json:"dependencies"`
}

// Blueprint is the structured output of planning. Immutable once
// generated; regenerating replaces it wholesale.
type Blueprint struct {
	Requirements    *Requirements    `json:"requirements"`
	Architecture    Architecture     `json:"architecture"`
	Phases          []BlueprintPhase `json:"phases"`
	Risks           []string         `json:"risks"`
	Recommendations []string         `json:"recommendations"`
}

// BuildBlueprint expands requirements into a blueprint using a fixed
// four-phase template. The expansion is deterministic templating, not
// generation: the same requirements always produce structurally identical
// phases.
func BuildBlueprint(req *Requirements) (*Blueprint, error) {
	if req == nil {
		return nil, &InvariantError{Detail: "blueprint requested before requirements were gathered"}
	}

	return &Blueprint{
		Requirements: req,
		Architecture: Architecture{
			Frontend:     []string{"Next.js 14", "TypeScript", "TailwindCSS", "shadcn/ui", "Framer Motion"},
			Backend:      []string{"Express.js", "TypeScript", "Socket.io", "Prisma ORM"},
			Database:     []string{"PostgreSQL"},
			Integrations: []string{"Clerk Auth", "E2B Sandbox"},
		},
		Phases: []BlueprintPhase{
			{
				Name: "Foundation Setup",
				Tasks: []string{
					"Initialize Next.js and Express.js applications",
					"Setup database schema and Prisma",
					"Configure authentication with Clerk",
					"Setup basic UI components with shadcn/ui",
				},
				EstimatedTime: "2-3 days",
				Dependencies:  []string{},
			},
			{
				Name: "Core Features",
				Tasks: []string{
					"Implement user authentication flow",
					"Build main dashboard and navigation",
					"Create core feature components",
					"Setup real-time communication",
				},
				EstimatedTime: "1-2 weeks",
				Dependencies:  []string{"Foundation Setup"},
			},
			{
				Name: "Advanced Features",
				Tasks: []string{
					"Add advanced functionality",
					"Implement integrations",
					"Add animations and interactions",
					"Optimize performance",
				},
				EstimatedTime: "1-2 weeks",
				Dependencies:  []string{"Core Features"},
			},
			{
				Name: "Polish & Deploy",
				Tasks: []string{
					"Testing and bug fixes",
					"UI/UX refinements",
					"Security hardening",
					"Production deployment",
				},
				EstimatedTime: "3-5 days",
				Dependencies:  []string{"Advanced Features"},
			},
		},
		Risks: []string{
			"Complex real-time features may require additional optimization",
			"Third-party integrations might have rate limits or API changes",
			"Database performance may need optimization for large datasets",
		},
		Recommendations: []string{
			"Start with core features and iterate based on user feedback",
			"Implement proper error handling and loading states",
			"Use TypeScript throughout for better code quality",
			"Plan for scalability from the beginning",
		},
	}, nil
}
