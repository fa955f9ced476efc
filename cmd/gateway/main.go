package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pinco2025/prepAIred-backend/internal/analytics"
	api "github.com/pinco2025/prepAIred-backend/internal/api/http"
	"github.com/pinco2025/prepAIred-backend/internal/attempt"
	auth "github.com/pinco2025/prepAIred-backend/internal/auth/middleware"
	"github.com/pinco2025/prepAIred-backend/internal/config"
	"github.com/pinco2025/prepAIred-backend/internal/contentstore"
	"github.com/pinco2025/prepAIred-backend/internal/db"
	"github.com/pinco2025/prepAIred-backend/internal/logger"
	"github.com/pinco2025/prepAIred-backend/internal/payment"
	"github.com/pinco2025/prepAIred-backend/internal/scoring"
	"github.com/pinco2025/prepAIred-backend/internal/topics"
)

// resultSource adapts the score-document fetcher to the analytics service.
type resultSource struct{ src *scoring.Source }

func (r resultSource) Fetch(ctx context.Context, url string) (scoring.ScoreResult, error) {
	return r.src.FetchResult(ctx, url)
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(string(cfg.Mode))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		zl.Fatal("db open failed", "error", err)
	}
	store := attempt.NewSQLStore(dbh, cfg.DBDriver, analytics.GroupNames(cfg.SubjectGroups))

	// --- Content store (score results, history, chapter stats) ---
	var docs contentstore.Store
	switch cfg.DocDriver {
	case "github":
		if cfg.GitHubToken == "" || cfg.GitHubRepo == "" {
			zl.Fatal("doc driver github needs GITHUB_TOKEN and GITHUB_REPO")
		}
		docs = contentstore.NewGitHubStore(cfg.GitHubToken, cfg.GitHubRepo)
	default:
		fs, err := contentstore.NewFSStore(cfg.DocBasePath)
		if err != nil {
			zl.Fatal("doc store", "error", err)
		}
		docs = fs
	}

	topicMap, err := topics.Load(cfg.TopicMapPath)
	if err != nil {
		zl.Fatal("topic map", "error", err)
	}

	src := scoring.NewSource()
	analyticsSvc := &analytics.Service{
		Attempts: store,
		Results:  resultSource{src},
		History:  &analytics.Historian{Docs: docs, Log: zl},
		Chapters: &analytics.ChapterMerger{Docs: docs, Log: zl},
		Groups:   cfg.SubjectGroups,
		Log:      zl,
	}

	secret := cfg.AuthJWTSecret
	if secret == "" {
		if cfg.Mode == config.ModeOnline {
			zl.Fatal("AUTH_JWT_SECRET required in online mode")
		}
		secret = "supersecret-dev-key"
	}
	authSvc := auth.NewAuthService(secret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableDevLogin {
		r.Post("/auth/login", auth.LoginHandler(authSvc, cfg.AdminUser, cfg.AdminPassHash))
	}

	// Protected API
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.Post("/scores/{studentTestID}/calculate",
			api.CalculateScoreHandler(store, src, docs, topicMap, zl))
		pr.Post("/analytics/process-attempt",
			api.ProcessAttemptHandler(store, analyticsSvc))
	})

	if cfg.EnablePayments {
		paySvc := payment.NewService(cfg.RazorpayKeyID, cfg.RazorpayKeySecret,
			cfg.RazorpayWebhookSecret, store, zl)
		r.Group(func(pr chi.Router) {
			pr.Use(auth.JWTMiddleware(authSvc))
			pr.Post("/payments/create-order", api.CreateOrderHandler(paySvc))
		})
		// Signed by the gateway, not by a user token.
		r.Post("/payments/webhook", api.WebhookHandler(paySvc, zl))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	zl.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode,
		"db", cfg.DBDriver, "docs", cfg.DocDriver)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		zl.Fatal("server", "error", err)
	}
}
