// cmd/tools/registry-updater/main.go
package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"credit-eligibility-workers/pkg/registry"

	"github.com/spf13/cobra"
)

var registryPath string

var rootCmd = &cobra.Command{
	Use:           "registry-updater",
	Short:         "Maintain the BPMN service task registry",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new task type",
	RunE:  runAdd,
}

var updateCmd = &cobra.Command{
	Use:   "update <taskType> <field> <value>",
	Short: "Change one field of a registered task",
	Args:  cobra.ExactArgs(3),
	RunE:  runUpdate,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the registry file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := registry.Load(registryPath)
		if err != nil {
			return err
		}
		if err := reg.Validate(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registry valid: %d tasks\n", len(reg.Tasks))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print registered tasks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := registry.Load(registryPath)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tTASK TYPE\tSTATUS\tTIMEOUT\tRETRIES")
		for _, t := range reg.Tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", t.Category, t.TaskType, t.Status, t.Timeout, t.Retries)
		}
		return w.Flush()
	},
}

var newTask registry.Task

func init() {
	rootCmd.PersistentFlags().StringVar(&registryPath, "path", "configs/task-registry.json", "registry file")

	f := addCmd.Flags()
	f.StringVar(&newTask.TaskType, "task-type", "", "Zeebe job type (e.g. route-loan-application)")
	f.StringVar(&newTask.DisplayName, "display-name", "", "name shown to process designers")
	f.StringVar(&newTask.Description, "description", "", "what the task does")
	f.StringVar(&newTask.Category, "category", "", "scoring, beneficiary or loan")
	f.StringVar(&newTask.Version, "version", "1.0.0", "task version")
	f.StringVar(&newTask.Status, "status", registry.StatusPlanned, "planned, in-progress, completed or verified")
	f.StringVar(&newTask.Timeout, "timeout", "10s", "handler timeout")
	f.IntVar(&newTask.Retries, "retries", 3, "job retries")
	f.StringSliceVar(&newTask.ErrorCodes, "error-codes", nil, "BPMN error codes the task can throw")
	_ = addCmd.MarkFlagRequired("task-type")
	_ = addCmd.MarkFlagRequired("display-name")
	_ = addCmd.MarkFlagRequired("category")

	rootCmd.AddCommand(addCmd, updateCmd, validateCmd, listCmd)
}

func runAdd(cmd *cobra.Command, _ []string) error {
	reg, err := registry.Load(registryPath)
	if os.IsNotExist(err) {
		reg, err = &registry.Registry{Version: "1.0.0"}, nil
	}
	if err != nil {
		return err
	}
	if err := reg.Add(newTask); err != nil {
		return err
	}
	if err := reg.Save(registryPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added task %s\n", newTask.TaskType)
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	taskType, field, value := args[0], args[1], args[2]

	reg, err := registry.Load(registryPath)
	if err != nil {
		return err
	}
	task, ok := reg.Find(taskType)
	if !ok {
		return fmt.Errorf("task %s not registered", taskType)
	}
	if err := setField(task, field, value); err != nil {
		return err
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	if err := reg.Save(registryPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s=%s\n", taskType, field, value)
	return nil
}

func setField(task *registry.Task, field, value string) error {
	switch field {
	case "status":
		task.Status = value
	case "version":
		task.Version = value
	case "displayName":
		task.DisplayName = value
	case "description":
		task.Description = value
	case "category":
		task.Category = value
	case "timeout":
		task.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		task.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
