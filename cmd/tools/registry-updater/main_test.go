package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"credit-eligibility-workers/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestAddUpdateValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task-registry.json")

	out, err := run(t, "add", "--path", path,
		"--task-type", "route-loan-application",
		"--display-name", "Route Loan Application",
		"--category", registry.CategoryLoan,
		"--error-codes", "INVALID_INPUT")
	require.NoError(t, err)
	assert.Contains(t, out, "Added task route-loan-application")

	_, err = run(t, "update", "--path", path, "route-loan-application", "status", registry.StatusCompleted)
	require.NoError(t, err)

	out, err = run(t, "validate", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 tasks")

	reg, err := registry.Load(path)
	require.NoError(t, err)
	task, ok := reg.Find("route-loan-application")
	require.True(t, ok)
	assert.Equal(t, registry.StatusCompleted, task.Status)
	assert.Equal(t, []string{"INVALID_INPUT"}, task.ErrorCodes)
}

func TestUpdate_RejectsInvalidValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task-registry.json")
	reg := &registry.Registry{Tasks: []registry.Task{{
		TaskType: "quick-estimate", DisplayName: "Quick Estimate",
		Category: registry.CategoryBeneficiary, Status: registry.StatusCompleted,
	}}}
	require.NoError(t, reg.Save(path))

	_, err := run(t, "update", "--path", path, "quick-estimate", "retries", "many")
	assert.ErrorContains(t, err, "invalid retries")

	_, err = run(t, "update", "--path", path, "quick-estimate", "category", "crm")
	assert.ErrorContains(t, err, "category")

	_, err = run(t, "update", "--path", path, "unknown-task", "status", "verified")
	assert.ErrorContains(t, err, "not registered")
}

func TestShippedRegistryIsValid(t *testing.T) {
	reg, err := registry.Load(filepath.Join("..", "..", "..", "configs", "task-registry.json"))
	require.NoError(t, err)
	assert.NoError(t, reg.Validate())
	assert.Len(t, reg.Tasks, 11)
}
