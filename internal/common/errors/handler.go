package errors

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Logger is the subset of logger.Logger the handler needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler reports a failed job back to the broker: retryable errors
// fail the job with a retry budget, everything else is thrown as a BPMN
// error so the process can route it with a boundary event.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Action is what the handler does with a failed job.
type Action int

const (
	ActionThrow Action = iota
	ActionFail
)

// Resolve picks the action and the retry count to report. The retry count
// never exceeds what the broker still has for the job.
func Resolve(stdErr *StandardError, jobRetries int32) (Action, int) {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable || retries == 0 || jobRetries <= 0 {
		return ActionThrow, 0
	}
	// the broker counts down; report one fewer than what is left
	remaining := int(jobRetries) - 1
	if remaining < retries {
		retries = remaining
	}
	if retries <= 0 {
		return ActionThrow, 0
	}
	return ActionFail, retries
}

func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := AsStandardError(err)
	bpmnErr := ConvertToBPMNError(stdErr)
	action, retries := Resolve(stdErr, job.Retries)

	h.logError(job, stdErr, bpmnErr, action, retries)

	if action == ActionFail {
		h.failJob(ctx, client, job, bpmnErr, retries)
		return
	}
	h.throwBPMNError(ctx, client, job, bpmnErr)
}

func (h *ErrorHandler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError, retries int) {
	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(int32(retries)).
		ErrorMessage(bpmnErr.Error())

	if withVars, err := cmd.VariablesFromMap(bpmnErr.ToErrorVariables()); err == nil {
		if _, err := withVars.Send(ctx); err != nil {
			h.logger.Error("failed to send fail-job command", map[string]interface{}{"jobKey": job.Key, "error": err.Error()})
		}
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send fail-job command", map[string]interface{}{"jobKey": job.Key, "error": err.Error()})
	}
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	varsJSON, _ := json.Marshal(bpmnErr.ToErrorVariables())
	if withVars, err := cmd.VariablesFromString(string(varsJSON)); err == nil {
		if _, err := withVars.Send(ctx); err != nil {
			h.logger.Error("failed to send throw-error command", map[string]interface{}{"jobKey": job.Key, "error": err.Error()})
		}
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send throw-error command", map[string]interface{}{"jobKey": job.Key, "error": err.Error()})
	}
}

func (h *ErrorHandler) logError(job entities.Job, stdErr *StandardError, bpmnErr *BPMNError, action Action, retries int) {
	outcome := "throw"
	if action == ActionFail {
		outcome = "fail"
	}
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":             job.Key,
		"jobType":            job.Type,
		"errorCode":          string(stdErr.Code),
		"bpmnErrorCode":      bpmnErr.Code,
		"message":            bpmnErr.Message,
		"details":            stdErr.Details,
		"retryable":          stdErr.Retryable,
		"retries":            retries,
		"outcome":            outcome,
		"errorCategory":      GetErrorCategory(stdErr.Code),
		"processInstanceKey": job.ProcessInstanceKey,
	})
}
