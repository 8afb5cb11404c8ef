package schedule

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"studyrag/internal/models"
	"studyrag/internal/source"
	"studyrag/internal/workflows"

	"github.com/stretchr/testify/require"
)

type fakeInbox struct {
	objs  []source.Object
	files map[string]string
	err   error
}

func (f fakeInbox) List(context.Context) ([]source.Object, error) { return f.objs, f.err }

func (f fakeInbox) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.files[key]
	if !ok {
		return nil, source.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func (f fakeInbox) Save(context.Context, string, io.Reader) (int64, error) {
	return 0, errors.New("not used")
}

type fakeDocs map[string]bool

func (f fakeDocs) HasDocument(_ context.Context, name string) (bool, error) {
	if name == "broken.txt" {
		return false, errors.New("db down")
	}
	return f[name], nil
}

type fakeStarter struct {
	started []string
	inputs  []workflows.DocumentIngestInput
	running map[string]bool
}

func (f *fakeStarter) StartIngest(_ context.Context, in workflows.DocumentIngestInput) (string, error) {
	if f.running[in.Key] {
		return "", workflows.ErrAlreadyStarted
	}
	f.started = append(f.started, in.Key)
	f.inputs = append(f.inputs, in)
	return workflows.WorkflowID(in.Key), nil
}

func TestInboxScanJobStartsNewDocuments(t *testing.T) {
	inbox := fakeInbox{objs: []source.Object{
		{Key: "a.pdf"}, {Key: "done.md"}, {Key: "photo.jpg"}, {Key: "busy.txt"}, {Key: "b.txt"},
	}}
	starter := &fakeStarter{running: map[string]bool{"busy.txt": true}}
	job := NewInboxScanJob(inbox, fakeDocs{"done.md": true}, starter)

	require.Equal(t, "inbox_scan", job.Name())
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, []string{"a.pdf", "b.txt"}, starter.started)
}

func TestInboxScanJobCarriesUploadInfo(t *testing.T) {
	inbox := fakeInbox{
		objs: []source.Object{{Key: "a1-cells.pdf"}, {Key: "b2-loose.txt"}, {Key: "c3-torn.md"}},
		files: map[string]string{
			source.MetaKey("a1-cells.pdf"): `{"name":"Cells.pdf","meta":{"class":"9","subject":"Biology","chapter":"1"}}`,
			source.MetaKey("c3-torn.md"):   `{"name":`,
		},
	}
	starter := &fakeStarter{}
	require.NoError(t, NewInboxScanJob(inbox, fakeDocs{}, starter).Run(context.Background()))

	require.Equal(t, []workflows.DocumentIngestInput{
		{Key: "a1-cells.pdf", Name: "Cells.pdf", Meta: models.ClassMeta{Class: "9", Subject: "Biology", Chapter: "1"}},
		{Key: "b2-loose.txt"},
		{Key: "c3-torn.md"},
	}, starter.inputs)
}

func TestInboxScanJobCollectsErrors(t *testing.T) {
	inbox := fakeInbox{objs: []source.Object{{Key: "broken.txt"}, {Key: "ok.txt"}}}
	starter := &fakeStarter{}
	err := NewInboxScanJob(inbox, fakeDocs{}, starter).Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken.txt")
	require.Equal(t, []string{"ok.txt"}, starter.started)

	err = NewInboxScanJob(fakeInbox{err: errors.New("list failed")}, fakeDocs{}, starter).Run(context.Background())
	require.Error(t, err)
}

type countingJob struct {
	name    string
	runs    atomic.Int32
	release chan struct{}
	sawDone atomic.Bool
}

func (j *countingJob) Name() string {
	if j.name == "" {
		return "counting"
	}
	return j.name
}

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.release != nil {
		select {
		case <-j.release:
		case <-ctx.Done():
			j.sawDone.Store(true)
		}
	}
	return nil
}

func TestCronSchedulerSpecs(t *testing.T) {
	s := NewCronScheduler()
	require.NoError(t, s.AddJob(&countingJob{name: "a"}, "@every 1m"))
	require.NoError(t, s.AddJob(&countingJob{name: "b"}, "*/5 * * * *"))
	require.Error(t, s.AddJob(&countingJob{name: "c"}, "every tuesday-ish"))
	require.Error(t, s.AddJob(&countingJob{name: "a"}, "@every 2m"))
	s.Start(context.Background())
	s.Stop()
}

func TestCronSchedulerSkipsOverlappingRuns(t *testing.T) {
	s := NewCronScheduler()
	job := &countingJob{release: make(chan struct{})}
	run := s.wrap(job, "@every 1m")

	done := make(chan struct{})
	go func() {
		run()
		close(done)
	}()
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	run()
	close(job.release)
	<-done
	require.Equal(t, int32(1), job.runs.Load())
}

func TestCronSchedulerTrigger(t *testing.T) {
	s := NewCronScheduler()
	job := &countingJob{}
	require.NoError(t, s.AddJob(job, "@every 1h"))
	s.Start(context.Background())

	require.False(t, s.Trigger("missing"))
	require.True(t, s.Trigger(job.Name()))
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestCronSchedulerRunTimeout(t *testing.T) {
	s := NewCronScheduler(WithRunTimeout(20 * time.Millisecond))
	job := &countingJob{release: make(chan struct{})}
	require.NoError(t, s.AddJob(job, "@every 1h"))
	require.True(t, s.Trigger(job.Name()))
	s.Stop()
	require.True(t, job.sawDone.Load())
}
