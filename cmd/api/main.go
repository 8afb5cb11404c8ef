package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studyrag/internal/api"
	"studyrag/internal/app"
	"studyrag/internal/config"
	"studyrag/internal/workflows"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

func main() {
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "studyrag-api",
		Short: "studyrag question answering and upload api",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(app.LoadConfig(envFile))
		},
	}
	rootCmd.Flags().StringVar(&envFile, "env", ".env", "optional dotenv file")

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := logutil.GetLogger(ctx)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	orch, err := a.Orchestrator(ctx)
	if err != nil {
		return err
	}
	deps := api.Deps{
		Answerer:       orch,
		Inbox:          a.Inbox,
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	// Uploads still land in the inbox without temporal; the worker's scan
	// picks them up once it is reachable.
	if tc, err := a.DialTemporal(); err != nil {
		logger.Warn("temporal unavailable, uploads will wait for inbox scan", zap.Error(err))
	} else {
		defer tc.Close()
		deps.Starter = workflows.NewStarter(tc, cfg.TemporalTaskQueue)
	}

	srv := &http.Server{Addr: cfg.APIAddr, Handler: api.NewServer(deps).Routes()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()
	logger.Info("http server listening", zap.String("addr", cfg.APIAddr))

	<-ctx.Done()
	logger.Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
