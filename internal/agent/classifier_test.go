package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTaskType(t *testing.T) {
	classifier := NewKeywordClassifier()

	cases := []struct {
		text string
		want string
	}{
		{"redesign the settings screen", TaskTypeUIDesign},
		{"the backend keeps returning 500s", TaskTypeBackendDev},
		{"add a REST api for projects", TaskTypeBackendDev},
		{"build the frontend shell", TaskTypeFrontendDev},
		{"model the database tables", TaskTypeDataModeling},
		{"write tests for the planner", TaskTypeTesting},
		{"make it better somehow", TaskTypeGeneralDev},
	}

	for _, tc := range cases {
		got := classifier.Classify(tc.text)
		assert.Equal(t, tc.want, got.TaskType, "text: %q", tc.text)
	}
}

func TestClassifyPriority(t *testing.T) {
	classifier := NewKeywordClassifier()

	assert.Equal(t, 1, classifier.Classify("urgent: production is down").Priority)
	assert.Equal(t, 1, classifier.Classify("this is critical").Priority)
	assert.Equal(t, 2, classifier.Classify("important cleanup work").Priority)
	assert.Equal(t, 3, classifier.Classify("whenever you get to it").Priority)
}

func TestClassifyExtractsFeatures(t *testing.T) {
	classifier := NewKeywordClassifier()

	got := classifier.Classify("An app with Authentication, a dashboard, and real-time chat")
	assert.Contains(t, got.Features, "authentication")
	assert.Contains(t, got.Features, "dashboard")
	assert.Contains(t, got.Features, "real-time")
	assert.Contains(t, got.Features, "chat")

	got = classifier.Classify("nothing recognizable here")
	assert.Empty(t, got.Features)
}
