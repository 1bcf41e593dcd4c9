package agent

import "strings"

// Task type tags produced by classification.
const (
	TaskTypeUIDesign     = "ui_design"
	TaskTypeBackendDev   = "backend_development"
	TaskTypeFrontendDev  = "frontend_development"
	TaskTypeDataModeling = "data_modeling"
	TaskTypeTesting      = "testing"
	TaskTypeGeneralDev   = "general_development"
)

// Classification is the structured reading of a free-text request.
type Classification struct {
	TaskType string
	Priority int
	Features []string
}

// Classifier maps free text to a structured action. The keyword
// implementation can be swapped for a model-backed one without touching
// orchestration logic.
type Classifier interface {
	Classify(text string) Classification
}

// featureVocabulary is the fixed set of feature keywords recognized in
// project descriptions. Matched as case-insensitive substrings.
var featureVocabulary = []string{
	"authentication", "login", "register", "user management",
	"dashboard", "chat", "messaging", "real-time",
	"database", "storage", "file upload", "search",
	"payment", "billing", "subscription", "e-commerce",
	"admin", "analytics", "reporting", "notifications",
	"mobile", "responsive", "api", "integration",
}

// KeywordClassifier classifies by substring heuristics.
type KeywordClassifier struct{}

// NewKeywordClassifier returns the default heuristic classifier.
func NewKeywordClassifier() *KeywordClassifier { return &KeywordClassifier{} }

// Classify derives a task type, a priority, and the mentioned features
// from the text.
func (c *KeywordClassifier) Classify(text string) Classification {
	lower := strings.ToLower(text)

	return Classification{
		TaskType: classifyTaskType(lower),
		Priority: classifyPriority(lower),
		Features: extractFeatures(lower),
	}
}

func classifyTaskType(lower string) string {
	switch {
	case strings.Contains(lower, "ui") || strings.Contains(lower, "design"):
		return TaskTypeUIDesign
	case strings.Contains(lower, "backend") || strings.Contains(lower, "api"):
		return TaskTypeBackendDev
	case strings.Contains(lower, "frontend") || strings.Contains(lower, "component"):
		return TaskTypeFrontendDev
	case strings.Contains(lower, "database") || strings.Contains(lower, "data"):
		return TaskTypeDataModeling
	case strings.Contains(lower, "test"):
		return TaskTypeTesting
	default:
		return TaskTypeGeneralDev
	}
}

func classifyPriority(lower string) int {
	switch {
	case strings.Contains(lower, "urgent") || strings.Contains(lower, "critical"):
		return 1
	case strings.Contains(lower, "important") || strings.Contains(lower, "priority"):
		return 2
	default:
		return 3
	}
}

func extractFeatures(lower string) []string {
	var features []string
	for _, keyword := range featureVocabulary {
		if strings.Contains(lower, keyword) {
			features = append(features, keyword)
		}
	}
	return features
}
