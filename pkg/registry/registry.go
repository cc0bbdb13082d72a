// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Task categories match the worker package groups.
const (
	CategoryScoring     = "scoring"
	CategoryBeneficiary = "beneficiary"
	CategoryLoan        = "loan"
)

// Implementation statuses a task moves through.
const (
	StatusPlanned    = "planned"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusVerified   = "verified"
)

// Registry is the catalog of BPMN service tasks this deployment serves.
// Process designers read it to find task types and the error codes a task
// can throw into a boundary event.
type Registry struct {
	Version     string `json:"version"`
	LastUpdated string `json:"lastUpdated"`
	Tasks       []Task `json:"tasks"`
}

type Task struct {
	TaskType    string   `json:"taskType"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Version     string   `json:"version"`
	Status      string   `json:"status"`
	Inputs      []string `json:"inputs,omitempty"`
	Outputs     []string `json:"outputs,omitempty"`
	ErrorCodes  []string `json:"errorCodes,omitempty"`
	Timeout     string   `json:"timeout,omitempty"`
	Retries     int      `json:"retries"`
}

// Load reads a registry file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// Save writes the registry with tasks ordered by category then task type
// and stamps LastUpdated.
func (r *Registry) Save(path string) error {
	sort.SliceStable(r.Tasks, func(i, j int) bool {
		if r.Tasks[i].Category != r.Tasks[j].Category {
			return r.Tasks[i].Category < r.Tasks[j].Category
		}
		return r.Tasks[i].TaskType < r.Tasks[j].TaskType
	})
	r.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func (r *Registry) Find(taskType string) (*Task, bool) {
	for i := range r.Tasks {
		if r.Tasks[i].TaskType == taskType {
			return &r.Tasks[i], true
		}
	}
	return nil, false
}

// Add appends a task, rejecting a task type that is already listed.
func (r *Registry) Add(task Task) error {
	if _, ok := r.Find(task.TaskType); ok {
		return fmt.Errorf("task %s already registered", task.TaskType)
	}
	if err := task.validate(); err != nil {
		return err
	}
	r.Tasks = append(r.Tasks, task)
	return nil
}

// Missing returns the task types in running that the registry does not
// list, sorted.
func (r *Registry) Missing(running []string) []string {
	var out []string
	for _, taskType := range running {
		if _, ok := r.Find(taskType); !ok {
			out = append(out, taskType)
		}
	}
	sort.Strings(out)
	return out
}

// Validate checks every task and rejects duplicate task types.
func (r *Registry) Validate() error {
	if len(r.Tasks) == 0 {
		return fmt.Errorf("registry contains no tasks")
	}
	seen := make(map[string]bool, len(r.Tasks))
	for _, task := range r.Tasks {
		if seen[task.TaskType] {
			return fmt.Errorf("duplicate task type: %s", task.TaskType)
		}
		seen[task.TaskType] = true
		if err := task.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t Task) validate() error {
	if t.TaskType == "" {
		return fmt.Errorf("task missing taskType")
	}
	if t.DisplayName == "" {
		return fmt.Errorf("task %s missing displayName", t.TaskType)
	}
	switch t.Category {
	case CategoryScoring, CategoryBeneficiary, CategoryLoan:
	default:
		return fmt.Errorf("task %s has unknown category %q", t.TaskType, t.Category)
	}
	switch t.Status {
	case StatusPlanned, StatusInProgress, StatusCompleted, StatusVerified:
	default:
		return fmt.Errorf("task %s has unknown status %q", t.TaskType, t.Status)
	}
	if t.Timeout != "" {
		if _, err := time.ParseDuration(t.Timeout); err != nil {
			return fmt.Errorf("task %s timeout: %w", t.TaskType, err)
		}
	}
	if t.Retries < 0 {
		return fmt.Errorf("task %s retries must not be negative", t.TaskType)
	}
	return nil
}
