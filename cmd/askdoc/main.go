package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/renliu0x/askdoc/internal/ai"
	"github.com/renliu0x/askdoc/internal/config"
	"github.com/renliu0x/askdoc/internal/db"
	"github.com/renliu0x/askdoc/internal/embedder"
	"github.com/renliu0x/askdoc/internal/filestore"
	"github.com/renliu0x/askdoc/internal/handler"
	"github.com/renliu0x/askdoc/internal/job"
	"github.com/renliu0x/askdoc/internal/jobengine"
	"github.com/renliu0x/askdoc/internal/middleware"
	"github.com/renliu0x/askdoc/internal/model"
	"github.com/renliu0x/askdoc/internal/repo"
	"github.com/renliu0x/askdoc/internal/schedule"
	"github.com/renliu0x/askdoc/internal/service"
	"github.com/renliu0x/askdoc/internal/vector"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "askdoc",
		Short: "askdoc document QA server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run askdoc server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	docRepo := repo.NewDocumentRepo(conn)
	chunkRepo := repo.NewChunkRepo(conn)
	jobRepo := repo.NewJobRepo(conn)
	turnRepo := repo.NewConversationRepo(conn)

	files, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	aiProvider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	generators := make([]ai.IGenerator, 0, len(cfg.AI.GenerateModels))
	for _, name := range cfg.AI.GenerateModels {
		generators = append(generators, ai.NewGenerator(aiProvider, name))
	}
	generator := ai.NewGroupGenerator(generators, time.Duration(cfg.AI.GenerateTimeout)*time.Second)
	batchEmbedder := embedder.NewBatchEmbedder(ai.NewEmbedder(aiProvider, cfg.AI.EmbedModel))

	store, err := vector.NewStore(chunkRepo, cfg.RAG.VectorCacheSize)
	if err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}

	indexingService := service.NewIndexingService(docRepo, files, batchEmbedder, store)
	ragService := service.NewRAGService(store, batchEmbedder, generator, turnRepo, service.RAGConfig{
		TopK:            cfg.RAG.TopK,
		PageSize:        cfg.RAG.PageSize,
		HistoryTurns:    cfg.RAG.HistoryTurns,
		ScoreThreshold:  cfg.RAG.ScoreThreshold,
		AnswerCacheSize: cfg.RAG.AnswerCacheSize,
		AsyncChunkLimit: cfg.RAG.AsyncChunkLimit,
		AsyncTurnLimit:  cfg.RAG.AsyncTurnLimit,
	})

	engine := jobengine.New(jobRepo, jobengine.Config{
		MaxAttempts: cfg.Jobs.MaxAttempts,
		BackoffBase: time.Duration(cfg.Jobs.BackoffBaseSeconds) * time.Second,
	})
	engine.RegisterHandler(model.JobTypeIndexDocument, jobengine.IndexDocumentHandler(indexingService))
	engine.RegisterHandler(model.JobTypeAnswerQuery, jobengine.AnswerQueryHandler(ragService))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start job engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewRetentionJob(jobRepo, cfg.Jobs.RetentionDays), "17 3 * * *"); err != nil {
		return fmt.Errorf("schedule retention job: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Documents:  handler.NewDocumentHandler(docRepo, chunkRepo, files, engine),
		Query:      handler.NewQueryHandler(ragService, engine),
		Jobs:       handler.NewJobHandler(engine),
		WriteLimit: middleware.RateLimit(time.Duration(cfg.RateLimitMS) * time.Millisecond),
	}

	web, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := web.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
