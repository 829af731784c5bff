package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	analyticsapp "powerplant-cloud/internal/analytics/application"
	analyticsrepo "powerplant-cloud/internal/analytics/infrastructure/postgres"
	analyticshttp "powerplant-cloud/internal/analytics/interfaces/http"
	"powerplant-cloud/internal/audit"
	"powerplant-cloud/internal/auth"
	"powerplant-cloud/internal/observability/metrics"
	readingsapp "powerplant-cloud/internal/readings/application"
	readings "powerplant-cloud/internal/readings/domain"
	readingsrepo "powerplant-cloud/internal/readings/infrastructure/postgres"
	readingshttp "powerplant-cloud/internal/readings/interfaces/http"
	registryapp "powerplant-cloud/internal/registry/application"
	registryrepo "powerplant-cloud/internal/registry/infrastructure/postgres"
	registryhttp "powerplant-cloud/internal/registry/interfaces/http"
	reportsapp "powerplant-cloud/internal/reports/application"
	reports "powerplant-cloud/internal/reports/domain"
	reportsrepo "powerplant-cloud/internal/reports/infrastructure/postgres"
	reportstorage "powerplant-cloud/internal/reports/infrastructure/storage"
	reportshttp "powerplant-cloud/internal/reports/interfaces/http"
	summariesapp "powerplant-cloud/internal/summaries/application"
	summariesrepo "powerplant-cloud/internal/summaries/infrastructure/postgres"
	summarieshttp "powerplant-cloud/internal/summaries/interfaces/http"
	usersapp "powerplant-cloud/internal/users/application"
	usersrepo "powerplant-cloud/internal/users/infrastructure/postgres"
	usershttp "powerplant-cloud/internal/users/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	registryStore := registryrepo.NewRegistryRepository(db)
	readingStore := readingsrepo.NewReadingRepository(db)
	summaryStore := summariesrepo.NewSummaryRepository(db)

	registryService, err := registryapp.NewService(registryStore, readingStore, registryapp.SystemClock{})
	if err != nil {
		logger.Fatalf("registry service error: %v", err)
	}
	registryHandler, err := registryhttp.NewHandler(registryService, auditRepo)
	if err != nil {
		logger.Fatalf("registry handler error: %v", err)
	}

	aggregator, err := summariesapp.NewAggregator(readingStore, summaryStore, summariesapp.SystemClock{})
	if err != nil {
		logger.Fatalf("aggregator error: %v", err)
	}

	surplus, err := readings.NewSurplusCalculator(readingStore)
	if err != nil {
		logger.Fatalf("surplus calculator error: %v", err)
	}
	ingestService, err := readingsapp.NewIngestService(readingStore, registryService, surplus, aggregator, readingsapp.SystemClock{})
	if err != nil {
		logger.Fatalf("ingest service error: %v", err)
	}
	queryService, err := readingsapp.NewQueryService(readingStore, readingStore, registryService, readingsapp.SystemClock{})
	if err != nil {
		logger.Fatalf("query service error: %v", err)
	}
	readingHandler, err := readingshttp.NewHandler(ingestService, queryService)
	if err != nil {
		logger.Fatalf("readings handler error: %v", err)
	}

	analyticsReader, err := analyticsrepo.NewReader(db)
	if err != nil {
		logger.Fatalf("analytics reader error: %v", err)
	}
	analyticsService, err := analyticsapp.NewService(analyticsReader, analyticsReader, analyticsapp.SystemClock{})
	if err != nil {
		logger.Fatalf("analytics service error: %v", err)
	}
	analyticsHandler, err := analyticshttp.NewHandler(analyticsService)
	if err != nil {
		logger.Fatalf("analytics handler error: %v", err)
	}

	summaryHandler, err := summarieshttp.NewHandler(summaryStore, registryService, analyticsService)
	if err != nil {
		logger.Fatalf("summaries handler error: %v", err)
	}

	userService, err := usersapp.NewService(usersrepo.NewUserRepository(db), []byte(cfg.JWTSecret), usersapp.SystemClock{})
	if err != nil {
		logger.Fatalf("users service error: %v", err)
	}
	userHandler, err := usershttp.NewHandler(userService)
	if err != nil {
		logger.Fatalf("users handler error: %v", err)
	}

	storageCfg, err := reportsapp.LoadStorageConfig()
	if err != nil {
		logger.Fatalf("reports storage config error: %v", err)
	}
	mediaStorage, err := buildStorage(storageCfg)
	if err != nil {
		logger.Fatalf("reports storage error: %v", err)
	}
	reportService, err := reportsapp.NewService(
		reportsrepo.NewReportRepository(db),
		mediaStorage,
		pointAwarder{users: userService},
		storageCfg.MaxUploadMB,
		reportsapp.SystemClock{},
	)
	if err != nil {
		logger.Fatalf("reports service error: %v", err)
	}
	reportHandler, err := reportshttp.NewHandler(reportService)
	if err != nil {
		logger.Fatalf("reports handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy(
		[]string{"/healthz", "/metrics", "/api/v1/users/register", "/api/v1/users/login"},
		[]string{"/media/"},
	)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/plants", registryHandler)
	mux.Handle("/api/v1/plants/", registryHandler)
	mux.Handle("/api/v1/machines", registryHandler)
	mux.Handle("/api/v1/machines/", registryHandler)
	mux.Handle("/api/v1/readings", readingHandler)
	mux.Handle("/api/v1/readings/", readingHandler)
	mux.Handle("/api/v1/summaries/", summaryHandler)
	mux.Handle("/api/v1/analytics/", analyticsHandler)
	mux.Handle("/api/v1/users", userHandler)
	mux.Handle("/api/v1/users/", userHandler)
	mux.Handle("/api/v1/reports", reportHandler)
	mux.Handle("/api/v1/reports/", reportHandler)
	if storageCfg.Backend == "local" {
		mux.Handle("/media/", http.StripPrefix("/media/", http.FileServer(http.Dir(storageCfg.LocalRoot))))
	}
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL string
	HTTPAddr    string
	JWTSecret   string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func buildStorage(cfg reportsapp.StorageConfig) (reports.Storage, error) {
	if cfg.Backend == "s3" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return reportstorage.NewS3Storage(ctx, cfg.S3Region, cfg.S3Bucket)
	}
	return reportstorage.NewLocalStorage(cfg.LocalRoot, cfg.PublicBaseURL)
}

type pointAwarder struct {
	users *usersapp.Service
}

func (a pointAwarder) Award(ctx context.Context, userID string, points int) error {
	_, err := a.users.AwardPoints(ctx, userID, points)
	return err
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
