package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medimind-rest/analysis"
	"medimind-rest/ocr"
)

// Handlers holds dependencies shared by HTTP handlers.
type Handlers struct {
	Cfg      Config
	DB       *FirestoreDB
	Storage  *storage.Client
	OCR      *ocr.Client
	Analyzer *analysis.Client
	Limiter  *UploadLimiter
}

func main() {
	cfg := LoadConfig()

	ctx := context.Background()
	fsdb, err := NewFirestoreDB(ctx, cfg.ProjectID)
	if err != nil {
		log.Fatalf("failed to init Firestore: %v", err)
	}
	defer func() {
		if err := fsdb.Close(); err != nil {
			log.Printf("error closing Firestore client: %v", err)
		}
	}()

	st, err := storage.NewClient(ctx)
	if err != nil {
		log.Fatalf("failed to init GCS storage client: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("error closing storage client: %v", err)
		}
	}()

	// Cloud Vision client for report text extraction
	ocrClient, err := ocr.NewClient(ctx)
	if err != nil {
		log.Fatalf("failed to init Vision OCR client: %v", err)
	}

	// Vertex AI client for plain-language report analysis
	analyzer, err := analysis.NewClient(ctx, cfg.ProjectID, cfg.VertexRegion)
	if err != nil {
		log.Fatalf("failed to init Vertex AI client: %v", err)
	}
	defer func() {
		if err := analyzer.Close(); err != nil {
			log.Printf("error closing Vertex AI client: %v", err)
		}
	}()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("failed to create upload dir %s: %v", cfg.UploadDir, err)
	}

	limiter := NewUploadLimiter()
	defer limiter.Stop()

	h := &Handlers{
		Cfg:      cfg,
		DB:       fsdb,
		Storage:  st,
		OCR:      ocrClient,
		Analyzer: analyzer,
		Limiter:  limiter,
	}

	mux := http.NewServeMux()

	// Health / info
	mux.HandleFunc("/", h.IndexHandler)

	// Auth routes
	mux.HandleFunc("/api/login", h.LoginHandler)

	// Accounts routes
	mux.HandleFunc("/api/accounts", h.AccountsHandler)      // POST create
	mux.HandleFunc("/api/accounts/me", h.AccountsMeHandler) // PUT update current user
	mux.HandleFunc("/api/accounts/", h.AccountsByIDHandler) // DELETE by id

	// Report routes
	mux.HandleFunc("/upload", h.UploadHandler)
	mux.HandleFunc("/reports/", h.UserReportsHandler)
	mux.HandleFunc("/report/", h.ReportDetailHandler)

	// Doctor roster
	mux.HandleFunc("/patients", h.PatientsHandler)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.Port
	server := &http.Server{
		Addr:    addr,
		Handler: withCORS(mux, cfg.AllowedOrigins),
	}

	go func() {
		log.Printf("MediMind REST server listening on %s (project=%s)", addr, cfg.ProjectID)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server...")
	if err := server.Shutdown(context.Background()); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}
