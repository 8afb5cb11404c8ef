package schedule

import (
	"context"
	"errors"
	"fmt"

	"studyrag/internal/extract"
	"studyrag/internal/source"
	"studyrag/internal/workflows"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type DocumentChecker interface {
	HasDocument(ctx context.Context, name string) (bool, error)
}

type IngestStarter interface {
	StartIngest(ctx context.Context, in workflows.DocumentIngestInput) (string, error)
}

// InboxScanJob starts an ingest workflow for every supported inbox file that
// has no document row yet.
type InboxScanJob struct {
	inbox   source.Inbox
	docs    DocumentChecker
	starter IngestStarter
}

func NewInboxScanJob(inbox source.Inbox, docs DocumentChecker, starter IngestStarter) *InboxScanJob {
	return &InboxScanJob{inbox: inbox, docs: docs, starter: starter}
}

func (j *InboxScanJob) Name() string {
	return "inbox_scan"
}

func (j *InboxScanJob) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	objs, err := j.inbox.List(ctx)
	if err != nil {
		return err
	}
	started := 0
	var errs []error
	for _, obj := range objs {
		if !extract.Supported(obj.Key) {
			continue
		}
		ok, err := j.docs.HasDocument(ctx, obj.Key)
		if err != nil {
			errs = append(errs, fmt.Errorf("check %s: %w", obj.Key, err))
			continue
		}
		if ok {
			continue
		}
		info, err := source.LoadMeta(ctx, j.inbox, obj.Key)
		if err != nil {
			logger.Warn("upload info unreadable, ingesting without it", zap.String("key", obj.Key), zap.Error(err))
		}
		id, err := j.starter.StartIngest(ctx, workflows.DocumentIngestInput{Key: obj.Key, Name: info.Name, Meta: info.Meta})
		if errors.Is(err, workflows.ErrAlreadyStarted) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		started++
		logger.Info("ingest workflow started", zap.String("key", obj.Key), zap.String("workflow_id", id))
	}
	if started > 0 {
		logger.Info("inbox scan done", zap.Int("objects", len(objs)), zap.Int("started", started))
	}
	return errors.Join(errs...)
}
