package workflows

import (
	"context"
	"errors"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

// ErrAlreadyStarted means the key is being ingested or was already ingested.
var ErrAlreadyStarted = errors.New("ingest workflow already started")

type workflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

type Starter struct {
	client    workflowClient
	taskQueue string
}

func NewStarter(c workflowClient, taskQueue string) *Starter {
	return &Starter{client: c, taskQueue: taskQueue}
}

// StartIngest starts DocumentIngestWorkflow for an inbox key. A key may only be
// restarted after a failed run.
func (s *Starter) StartIngest(ctx context.Context, in DocumentIngestInput) (string, error) {
	id := WorkflowID(in.Key)
	_, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                                       id,
		TaskQueue:                                s.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, DocumentIngestWorkflow, in)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return id, fmt.Errorf("%w: %s", ErrAlreadyStarted, id)
		}
		return "", fmt.Errorf("start ingest workflow %s: %w", id, err)
	}
	return id, nil
}
