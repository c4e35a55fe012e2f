// Command chat serves the question-answering API over a previously
// built index. The engine is constructed once at startup; if
// construction fails the server still comes up and reports the failure
// on every query, so a bad deployment is visible rather than crashing
// in a restart loop.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/finsightai/finsight/engine/domain"
	"github.com/finsightai/finsight/engine/history"
	"github.com/finsightai/finsight/engine/rag"
	"github.com/finsightai/finsight/engine/semantic"
	"github.com/finsightai/finsight/pkg/config"
	"github.com/finsightai/finsight/pkg/mid"
	"github.com/finsightai/finsight/pkg/ollama"
	"github.com/finsightai/finsight/pkg/openaiapi"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "configuration file")
		port       = flag.String("port", envOr("PORT", "8090"), "listen port")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, engineErr := buildEngine(ctx, cfg, logger)
	if engineErr != nil {
		logger.Error("engine construction failed, serving errors", "error", engineErr)
	} else {
		logger.Info("engine ready",
			"provider", cfg.Provider,
			"collection", cfg.Index.Collection,
			"top_k", cfg.Query.SimilarityTopK,
		)
	}

	log := newHistoryLog(ctx, cfg, logger)

	srv := newServer(engine, engineErr, log, logger)
	handler := mid.Chain(srv,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS("*"),
		mid.OTel("chat-api"),
	)
	httpSrv := &http.Server{Addr: ":" + *port, Handler: handler}

	go func() {
		logger.Info("chat API starting", "port", *port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutCtx)
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*rag.Engine, error) {
	var (
		embedder rag.Embedder
		synth    rag.Synthesizer
		err      error
	)
	switch cfg.Provider {
	case config.ProviderRemote:
		embedder, err = openaiapi.NewEmbedder(cfg.Remote.BaseURL, cfg.Remote.APIKey(),
			cfg.Remote.EmbedModel, cfg.Index.Dimensions, cfg.Query.RequestTimeout(), logger)
		if err != nil {
			return nil, err
		}
		synth, err = openaiapi.NewSynthesizer(cfg.Remote.BaseURL, cfg.Remote.APIKey(),
			cfg.Remote.ChatModel, cfg.Query.RequestTimeout(), logger)
		if err != nil {
			return nil, err
		}
	default:
		embedder = ollama.NewEmbedder(cfg.Ollama.BaseURL, cfg.Ollama.EmbedModel,
			cfg.Index.Dimensions, cfg.Query.RequestTimeout())
		synth = ollama.NewSynthesizer(cfg.Ollama.BaseURL, cfg.Ollama.ChatModel,
			cfg.Query.RequestTimeout())
	}

	index, err := semantic.NewQdrant(cfg.Index.QdrantAddr, cfg.Index.Collection)
	if err != nil {
		return nil, err
	}

	return rag.New(ctx, rag.Deps{
		Embedder:    embedder,
		Index:       index,
		Synthesizer: synth,
	}, rag.Options{
		TopK:           cfg.Query.SimilarityTopK,
		RequestTimeout: cfg.Query.RequestTimeout(),
	}, logger)
}

// newHistoryLog returns the postgres log when a DSN is configured,
// otherwise the no-op log. A failed connection degrades to no-op; the
// query path never depends on history being available.
func newHistoryLog(ctx context.Context, cfg *config.Config, logger *slog.Logger) history.Log {
	dsn := cfg.History.DatabaseURL()
	if dsn == "" {
		logger.Info("chat history disabled, no database configured")
		return history.NopLog{}
	}
	pg, err := history.OpenPostgres(ctx, dsn)
	if err != nil {
		logger.Warn("chat history unavailable, continuing without it", "error", err)
		return history.NopLog{}
	}
	logger.Info("chat history enabled")
	return pg
}

type server struct {
	engine    *rag.Engine
	engineErr error
	history   history.Log
	logger    *slog.Logger
	mux       *http.ServeMux
}

func newServer(engine *rag.Engine, engineErr error, log history.Log, logger *slog.Logger) *server {
	s := &server{
		engine:    engine,
		engineErr: engineErr,
		history:   log,
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /api/query", s.handleQuery)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	return s
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type queryRequest struct {
	Question string `json:"question"`
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.engineErr != nil {
		writeError(w, http.StatusServiceUnavailable, "engine unavailable: "+s.engineErr.Error())
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question required")
		return
	}

	ctx := r.Context()
	answer, err := s.engine.Query(ctx, req.Question)
	if err != nil {
		s.logger.Error("query failed", "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	// History is best-effort; a dead database must not fail the answer.
	if err := s.history.Append(ctx, "user", req.Question); err != nil {
		s.logger.Warn("history append failed", "error", err)
	}
	if err := s.history.Append(ctx, "assistant", answer.Text); err != nil {
		s.logger.Warn("history append failed", "error", err)
	}

	writeJSON(w, http.StatusOK, answer)
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.history.Read(r.Context(), 10)
	if err != nil {
		s.logger.Error("history read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if msgs == nil {
		msgs = []history.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	code := http.StatusOK
	if s.engineErr != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}

// statusFor maps pipeline error kinds onto HTTP status codes. Client
// mistakes are 4xx; upstream model or index failures are 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrQuestionTooShort):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEmbedding), errors.Is(err, domain.ErrSynthesis):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrCollectionNotFound):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
