package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Option func(*CronScheduler)

// WithRunTimeout bounds every job run. Zero means no bound.
func WithRunTimeout(d time.Duration) Option {
	return func(c *CronScheduler) { c.timeout = d }
}

// CronScheduler runs jobs on cron specs. Five-field specs and descriptors such
// as "@every 1m" are accepted. A job never overlaps with itself, whether it
// was started by its spec or by Trigger.
type CronScheduler struct {
	cron    *cron.Cron
	timeout time.Duration

	mu   sync.Mutex
	jobs map[string]func()
	ctx  context.Context
	wg   sync.WaitGroup
}

func NewCronScheduler(opts ...Option) *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := &CronScheduler{
		cron: cron.New(cron.WithParser(parser)),
		jobs: make(map[string]func()),
		ctx:  context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", job.Name()), zap.String("spec", spec))
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.jobs[job.Name()]; dup {
		return fmt.Errorf("job %s already scheduled", job.Name())
	}
	run := c.wrap(job, spec)
	if _, err := c.cron.AddFunc(spec, run); err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return err
	}
	c.jobs[job.Name()] = run
	logger.Info("job scheduled")
	return nil
}

// Start begins ticking. Runs use ctx, so cancelling it stops in-flight jobs.
func (c *CronScheduler) Start(ctx context.Context) {
	if ctx != nil {
		c.mu.Lock()
		c.ctx = ctx
		c.mu.Unlock()
	}
	c.cron.Start()
}

// Trigger runs a scheduled job now in the background. It reports false for
// an unknown name.
func (c *CronScheduler) Trigger(name string) bool {
	c.mu.Lock()
	run, ok := c.jobs[name]
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		run()
	}()
	return true
}

// Stop waits for running jobs, scheduled or triggered, to return.
func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
	c.wg.Wait()
}

func (c *CronScheduler) runContext() (context.Context, context.CancelFunc) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func (c *CronScheduler) wrap(job Job, spec string) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			logutil.GetLogger(context.Background()).Info("job skipped: still running",
				zap.String("job", job.Name()), zap.String("spec", spec))
			return
		}
		defer running.Store(false)

		ctx, cancel := c.runContext()
		defer cancel()
		logger := logutil.GetLogger(ctx).With(zap.String("job", job.Name()))
		start := time.Now()
		err := job.Run(ctx)
		elapsed := time.Since(start)
		if err != nil {
			logger.Error("job failed", zap.Error(err), zap.Duration("duration", elapsed))
			return
		}
		logger.Debug("job finished", zap.Duration("duration", elapsed))
	}
}
