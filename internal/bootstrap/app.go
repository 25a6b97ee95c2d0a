// Package bootstrap wires configuration into shared dependencies for the API
// server and the worker.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"tenantarmor-backend/internal/chat"
	"tenantarmor-backend/internal/jobs"
	"tenantarmor-backend/internal/knowledge"
	"tenantarmor-backend/internal/llm"
	openai "tenantarmor-backend/internal/llm/openai"
	"tenantarmor-backend/internal/queue"
	"tenantarmor-backend/internal/shared/config"
	"tenantarmor-backend/internal/shared/server"
	"tenantarmor-backend/internal/shared/storage/db"
	"tenantarmor-backend/internal/shared/storage/object"
	localstore "tenantarmor-backend/internal/shared/storage/object/local"
	s3store "tenantarmor-backend/internal/shared/storage/object/s3"
	"tenantarmor-backend/internal/uploads"
	"tenantarmor-backend/internal/vector"
	"tenantarmor-backend/internal/workerproc"
)

// App holds shared dependencies for the API and worker processes.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore

	Queue    queue.Client
	Consumer queue.Consumer

	LLM   llm.Client
	Index vector.Index

	JobsRepo    jobs.Repo
	JobsService *jobs.Service
	Processor   *jobs.Processor
	Assembler   *chat.Assembler
	Ingester    *knowledge.Ingester
	Worker      *workerproc.Runner

	closers []func() error
}

// Build prepares shared dependencies and wires the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	app := &App{Config: cfg}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.closers = append(app.closers, sqlDB.Close)
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			app.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	if err := buildQueue(ctx, cfg, app); err != nil {
		app.Close()
		return nil, err
	}

	app.LLM = buildLLM(cfg)
	app.Index = buildIndex(ctx, cfg, app)

	if sqlDB != nil {
		app.JobsRepo = &jobs.PGRepo{DB: sqlDB}
	} else {
		app.JobsRepo = jobs.NewMemoryRepo()
	}

	app.JobsService = &jobs.Service{Repo: app.JobsRepo, Queue: app.Queue}
	app.Processor = &jobs.Processor{Repo: app.JobsRepo, LLM: app.LLM}
	app.Assembler = &chat.Assembler{LLM: app.LLM, Index: app.Index}
	app.Ingester = knowledge.NewIngester(app.LLM, app.Index)
	app.Worker = &workerproc.Runner{
		Consumer:    app.Consumer,
		Processor:   app.Processor,
		Concurrency: cfg.WorkerConcurrency,
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         cfg,
		JobsHandler:    jobs.NewHandler(app.JobsService),
		UploadsHandler: uploads.NewHandler(app.Store, app.JobsService),
		ChatHandler:    chat.NewHandler(app.JobsService, app.Assembler, app.LLM),
	})

	return app, nil
}

// Close releases held connections in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("bootstrap close: %v", err)
		}
	}
	a.closers = nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	if db.IsLambdaRuntime() {
		opts = db.OptionsFromEnv(db.DefaultLambdaOptions())
		return db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_UPLOADS_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.S3KMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config, app *App) error {
	switch cfg.QueueBackend {
	case "sqs":
		if strings.TrimSpace(cfg.SQSQueueURL) == "" {
			return fmt.Errorf("QUEUE_BACKEND=sqs requires TA_SQS_QUEUE_URL")
		}
		q, err := queue.NewSQSQueue(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
		if err != nil {
			return fmt.Errorf("sqs queue: %w", err)
		}
		app.Queue, app.Consumer = q, q
	case "redis":
		q, err := queue.NewRedisQueue(cfg.RedisAddr, cfg.RedisQueue)
		if err != nil {
			return fmt.Errorf("redis queue: %w", err)
		}
		app.Queue, app.Consumer = q, q
		app.closers = append(app.closers, q.Close)
	default:
		q := queue.NewMemoryQueue()
		app.Queue, app.Consumer = q, q
	}
	return nil
}

func buildLLM(cfg config.Config) llm.Client {
	if cfg.LLMProvider == "openai" && strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.EmbeddingModel)
		if err == nil {
			return client
		}
		log.Printf("bootstrap: openai client init failed; using placeholder: %v", err)
	}
	return llm.PlaceholderClient{}
}

// buildIndex prefers Qdrant and falls back to the in-process index so chat
// retrieval still works in dev without external services.
func buildIndex(ctx context.Context, cfg config.Config, app *App) vector.Index {
	if strings.TrimSpace(cfg.QdrantHost) == "" {
		return vector.NewMemoryIndex()
	}

	idx, err := vector.NewQdrantIndex(vector.QdrantConfig{
		Host:       cfg.QdrantHost,
		Port:       cfg.QdrantPort,
		Collection: cfg.QdrantCollection,
		APIKey:     cfg.QdrantAPIKey,
		UseTLS:     cfg.QdrantUseTLS,
	})
	if err != nil {
		log.Printf("bootstrap: qdrant init failed; using in-memory index: %v", err)
		return vector.NewMemoryIndex()
	}
	if err := idx.EnsureCollection(ctx); err != nil {
		log.Printf("bootstrap: qdrant collection check failed; using in-memory index: %v", err)
		_ = idx.Close()
		return vector.NewMemoryIndex()
	}
	app.closers = append(app.closers, idx.Close)
	return idx
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
