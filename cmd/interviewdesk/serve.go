package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	_ "github.com/nadzzz/interviewdesk/docs"
	"github.com/nadzzz/interviewdesk/internal/audio"
	"github.com/nadzzz/interviewdesk/internal/config"
	"github.com/nadzzz/interviewdesk/internal/dispatch"
	"github.com/nadzzz/interviewdesk/internal/health"
	"github.com/nadzzz/interviewdesk/internal/janitor"
	"github.com/nadzzz/interviewdesk/internal/jobs"
	"github.com/nadzzz/interviewdesk/internal/message"
	"github.com/nadzzz/interviewdesk/internal/postprocess"
	"github.com/nadzzz/interviewdesk/internal/process"
	"github.com/nadzzz/interviewdesk/internal/transcriber"
	"github.com/nadzzz/interviewdesk/internal/transcriber/local"
	"github.com/nadzzz/interviewdesk/internal/transcriber/xfyun"
	"github.com/nadzzz/interviewdesk/internal/transport"
	grpctransport "github.com/nadzzz/interviewdesk/internal/transport/grpc"
	httptransport "github.com/nadzzz/interviewdesk/internal/transport/http"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, job workers and janitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			config.SetupLogging(cfg.Logging)

			// Create root context with signal handling for graceful shutdown.
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg)
		},
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("interviewdesk starting", "version", Version)

	if cfg.Janitor.Schedule != "" {
		if _, err := janitor.ParseSchedule(cfg.Janitor.Schedule); err != nil {
			return err
		}
	}

	runner := process.NewExecRunner()
	normalizer := audio.NewNormalizer(cfg.Whisper.FFmpegBin, runner, cfg.Whisper.Timeout)
	localT := local.New(cfg.Whisper, runner)
	remoteT := xfyun.New(cfg.Xfyun, normalizer)
	if err := localT.CheckModel(); err != nil {
		slog.Warn("local transcription unavailable until the model is installed", "error", err)
	}
	if _, err := remoteT.Scheme(); err != nil {
		slog.Warn("remote transcription unavailable", "error", err)
	}

	store := jobs.NewStore(cfg.Storage.WorkDir)
	dispatcher := dispatch.New(cfg.Storage.WorkDir, map[jobs.Mode]transcriber.Transcriber{
		jobs.ModeLocal: localT,
		jobs.ModeAPI:   remoteT,
	})
	manager := jobs.NewManager(dispatcher, jobs.Options{
		Workers:      cfg.Jobs.Workers,
		LogTailLines: cfg.Jobs.LogTailLines,
		Store:        store,
	})

	llmPipeline, err := newPipeline(cfg.LLM)
	if err != nil {
		return err
	}
	questions := loadDefaultQuestions(cfg.LLM.QuestionsFile)

	reporter := health.NewReporter(health.Inputs{
		Version:   Version,
		Whisper:   cfg.Whisper,
		Xfyun:     remoteT,
		APIKeySet: cfg.LLM.APIKey != "",
		Models:    llmPipeline.models.Strings(),
		Questions: countQuestions(questions),
		Jobs:      manager.Counts,
	})

	api := httptransport.New(cfg.Server, cfg.Storage.UploadDir, httptransport.Services{
		Jobs:      manager,
		Formatter: llmPipeline.formatter,
		Matcher:   llmPipeline.matcher,
		Questions: questions,
		Health:    func() message.HealthReport { return reporter.Report() },
	})
	transports := []transport.Transport{api}

	var grpcT *grpctransport.Transport
	if cfg.Server.GRPCPort > 0 {
		grpcT = grpctransport.New(cfg.Server.GRPCPort)
		transports = append(transports, grpcT)
	}

	healthServer := health.New(cfg.Server.HealthPort)
	jan := janitor.New(store, manager, cfg.Storage.RecordRetention)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return manager.Run(gctx) })
	g.Go(func() error { return healthServer.ListenAndServe(gctx) })
	g.Go(func() error { return jan.Run(gctx, cfg.Janitor.Schedule) })
	for _, t := range transports {
		g.Go(func() error {
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(gctx); err != nil {
				return fmt.Errorf("%s transport: %w", t.Name(), err)
			}
			return nil
		})
	}

	// Mark as ready once workers and transports are started.
	healthServer.SetReady(true)
	if grpcT != nil {
		grpcT.SetReady(true)
	}
	slog.Info("interviewdesk ready",
		"addr", cfg.Server.Addr,
		"health_port", cfg.Server.HealthPort,
		"workers", cfg.Jobs.Workers,
		"models", llmPipeline.models.Len())

	<-gctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)
	if grpcT != nil {
		grpcT.SetReady(false)
	}

	err = g.Wait()
	slog.Info("interviewdesk stopped")
	return err
}

func loadDefaultQuestions(path string) []postprocess.Category {
	if path == "" {
		return nil
	}
	cats, err := postprocess.LoadQuestions(path)
	if err != nil {
		slog.Warn("no default questions loaded", "path", path, "error", err)
		return nil
	}
	slog.Info("loaded default questions", "path", path, "questions", countQuestions(cats))
	return cats
}
