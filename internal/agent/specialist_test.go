package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaverai/beaver/internal/ai"
)

// scriptedGenerator returns a fixed reply or error and records prompts.
type scriptedGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (g *scriptedGenerator) GenerateText(_ context.Context, _ string, _ []ai.Turn, userMessage string) (string, error) {
	g.prompts = append(g.prompts, userMessage)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func TestLoadProfilesDefaults(t *testing.T) {
	profiles, err := LoadProfiles("")
	require.NoError(t, err)
	assert.Len(t, profiles, 7)

	profiles, err = LoadProfiles(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Len(t, profiles, 7)
}

func TestLoadProfilesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `profiles:
  - type: backend
    displayName: Go Backend Developer
    systemPrompt: You build Go services.
    capabilities: [backend, api, grpc]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	profiles, err := LoadProfiles(path)
	require.NoError(t, err)
	assert.Len(t, profiles, 7)

	var backend *Profile
	for i := range profiles {
		if profiles[i].Type == TypeBackend {
			backend = &profiles[i]
		}
	}
	require.NotNil(t, backend)
	assert.Equal(t, "Go Backend Developer", backend.DisplayName)
	assert.Contains(t, backend.Capabilities, "grpc")
}

func TestLoadProfilesRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: {not: [a, list"), 0o644))

	_, err := LoadProfiles(path)
	assert.Error(t, err)
}

func TestSpecialistExecuteTask(t *testing.T) {
	gen := &scriptedGenerator{reply: "CREATE TABLE projects (...)"}
	specialist := NewSpecialistAgent(Profile{
		Type:         TypeDataLogic,
		DisplayName:  "Data Engineer",
		SystemPrompt: "You design schemas.",
		Capabilities: []string{"data", "database"},
	}, gen, newTestLogger(t))

	task := NewTask("setup_database", "Create the initial schema", nil, 1, TypeDataLogic)
	result := specialist.ExecuteTask(context.Background(), task, testContext())

	require.Equal(t, TaskCompleted, result.Status)
	assert.Equal(t, TaskCompleted, task.Status)

	output, ok := result.Output.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Data Engineer", output["role"])
	assert.Equal(t, "CREATE TABLE projects (...)", output["output"])

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "setup_database")
	assert.Contains(t, gen.prompts[0], "Create the initial schema")
}

func TestSpecialistExecuteTaskProviderFailure(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("provider timeout")}
	specialist := NewSpecialistAgent(DefaultProfiles()[0], gen, newTestLogger(t))

	task := NewTask("ui_design", "Design the landing page", nil, 1, TypeUIUX)
	result := specialist.ExecuteTask(context.Background(), task, testContext())

	assert.Equal(t, TaskFailed, result.Status)
	assert.Equal(t, TaskFailed, task.Status)
	assert.Contains(t, result.Error, "provider timeout")
}

func TestSpecialistProcessMessage(t *testing.T) {
	gen := &scriptedGenerator{reply: "Use a two-column layout."}
	specialist := NewSpecialistAgent(DefaultProfiles()[0], gen, newTestLogger(t))

	resp, err := specialist.ProcessMessage(context.Background(),
		NewMessage("How should the dashboard look?", RoleUser, ""), testContext())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, resp.Status)
	assert.Equal(t, "Use a two-column layout.", resp.Message.Content)
}

func TestBuildSpecialistsCoversAllRoles(t *testing.T) {
	gen := &scriptedGenerator{reply: "ok"}
	specialists := BuildSpecialists(DefaultProfiles(), gen, newTestLogger(t))

	assert.Len(t, specialists, 7)
	for _, agentType := range []Type{TypeUIUX, TypeFrontend, TypeBackend, TypeDataLogic, TypeTesting, TypeOptimization, TypeDeployment} {
		require.Contains(t, specialists, agentType)
		assert.Equal(t, agentType, specialists[agentType].Type())
	}
}
