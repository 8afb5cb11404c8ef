package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"studyrag/internal/activities"
	"studyrag/internal/app"
	"studyrag/internal/config"
	"studyrag/internal/ingest"
	"studyrag/internal/models"
	"studyrag/internal/schedule"
	"studyrag/internal/workflows"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

const inboxScanTimeout = 5 * time.Minute

func main() {
	var envFile string
	var meta models.ClassMeta

	rootCmd := &cobra.Command{
		Use:   "studyrag-worker",
		Short: "studyrag ingestion worker",
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "optional dotenv file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the temporal worker and the inbox scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(app.LoadConfig(envFile))
		},
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "ingest local files directly, without temporal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ingestFiles(cmd.Context(), app.LoadConfig(envFile), meta, args)
		},
	}
	ingestCmd.Flags().StringVar(&meta.Class, "class", "", "class label")
	ingestCmd.Flags().StringVar(&meta.Subject, "subject", "", "subject label")
	ingestCmd.Flags().StringVar(&meta.Chapter, "chapter", "", "chapter label")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), app.LoadConfig(envFile))
			if err != nil {
				return err
			}
			logutil.GetLogger(cmd.Context()).Info("migrations applied")
			return a.Close()
		},
	}

	rootCmd.AddCommand(runCmd, ingestCmd, migrateCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("worker error", zap.Error(err))
	}
}

func runWorker(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := logutil.GetLogger(ctx)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.DialTemporal()
	if err != nil {
		return fmt.Errorf("dial temporal: %w", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, activities.New(a.Inbox, a.Ingestor()))

	sched := schedule.NewCronScheduler(schedule.WithRunTimeout(inboxScanTimeout))
	scan := schedule.NewInboxScanJob(a.Inbox, a.Store, workflows.NewStarter(c, cfg.TemporalTaskQueue))
	if err := sched.AddJob(scan, cfg.InboxScanSpec); err != nil {
		return fmt.Errorf("schedule inbox scan: %w", err)
	}
	sched.Start(ctx)
	defer sched.Stop()
	sched.Trigger(scan.Name())

	logger.Info("worker listening",
		zap.String("temporal", cfg.TemporalAddress),
		zap.String("queue", cfg.TemporalTaskQueue),
	)
	interrupt := make(chan interface{})
	go func() {
		<-ctx.Done()
		close(interrupt)
	}()
	return w.Run(interrupt)
}

func ingestFiles(ctx context.Context, cfg config.Config, meta models.ClassMeta, paths []string) error {
	logger := logutil.GetLogger(ctx)
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ing := a.Ingestor()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		res, err := ing.Ingest(ctx, ingest.Input{Name: filepath.Base(p), Data: data, Meta: meta})
		if err != nil {
			return fmt.Errorf("ingest %s: %w", p, err)
		}
		logger.Info("document ingested",
			zap.String("file", p),
			zap.Int64("document_id", res.DocumentID),
			zap.Int("chunks", len(res.ChunkIDs)),
		)
	}
	return nil
}
