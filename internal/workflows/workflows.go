package workflows

import (
	"errors"
	"strings"
	"time"

	"studyrag/internal/activities"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetIngestProgress = "GetIngestProgress"

// DocumentIngestWorkflow ingests one inbox object. Chunks are stored one at a
// time in index order. A file that cannot be extracted completes with status
// "failed" instead of failing the workflow, so it is not picked up again.
func DocumentIngestWorkflow(ctx workflow.Context, input DocumentIngestInput) (string, error) {
	name := input.Name
	if name == "" {
		name = input.Key
	}
	progress := IngestProgress{Key: input.Key, CurrentStep: "init", Status: StatusProcessing}
	if err := workflow.SetQueryHandler(ctx, QueryGetIngestProgress, func() (IngestProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	progress.CurrentStep = "extract_text"
	var textOut activities.ExtractTextOutput
	if err := workflow.ExecuteActivity(ctx, activities.ExtractTextName, activities.ExtractTextInput{Key: input.Key, Name: name}).Get(ctx, &textOut); err != nil {
		if isExtractionError(err) {
			progress.Status = StatusFailed
			progress.FailReason = "no extractable text or unsupported format"
			logger.Warn("document not ingestible", "key", input.Key, "error", err)
			return progress.Status, nil
		}
		return "", err
	}

	progress.CurrentStep = "register_document"
	var docOut activities.RegisterDocumentOutput
	if err := workflow.ExecuteActivity(ctx, activities.RegisterDocumentName, activities.RegisterDocumentInput{
		Name:      input.Key,
		SizeBytes: textOut.SizeBytes,
		Meta:      input.Meta,
	}).Get(ctx, &docOut); err != nil {
		return "", err
	}
	progress.DocumentID = docOut.DocumentID

	progress.CurrentStep = "plan_chunks"
	var planOut activities.PlanChunksOutput
	if err := workflow.ExecuteActivity(ctx, activities.PlanChunksName, activities.PlanChunksInput{Text: textOut.Text}).Get(ctx, &planOut); err != nil {
		return "", err
	}
	progress.Total = len(planOut.Chunks)

	progress.CurrentStep = "store_chunks"
	for _, c := range planOut.Chunks {
		if err := workflow.ExecuteActivity(ctx, activities.StoreChunkName, activities.StoreChunkInput{
			DocumentID: docOut.DocumentID,
			Chunk:      c,
		}).Get(ctx, nil); err != nil {
			return "", err
		}
		progress.Stored++
	}

	progress.CurrentStep = "done"
	progress.Status = StatusIngested
	return progress.Status, nil
}

func isExtractionError(err error) bool {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Type() == activities.ErrTypeExtraction
	}
	return false
}

// WorkflowID derives a stable workflow id from an inbox key.
func WorkflowID(key string) string {
	s := strings.ToLower(key)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, " ", "-")
	return "ingest-" + s
}
