package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/depthlab/noisecache/pkg/logging"
	"github.com/depthlab/noisecache/pkg/params"
	"github.com/depthlab/noisecache/pkg/statsapi"
	"github.com/depthlab/noisecache/pkg/store"
)

func main() {
	// Configuration from environment
	statsURL := getEnv("STATS_URL", "http://localhost:5000")
	port := getEnv("PORT", "8080")
	userAgent := getEnv("USER_AGENT", "noise-proxy/0.1.0")
	capacity := getEnvInt("CACHE_CAPACITY", store.DefaultCapacity)

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "") == "true",
	})

	cfg := statsapi.DefaultConfig(statsURL)
	cfg.UserAgent = userAgent
	client, err := statsapi.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create stats client")
	}

	results, err := store.New(store.Config{Capacity: capacity})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create result store")
	}

	srv := &server{client: client, store: results, logger: logging.NewLogger("noise-proxy")}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/api/gene-noise", srv.queryHandler(params.ModeGeneNoise))
	mux.HandleFunc("/api/enrichment", srv.queryHandler(params.ModeEnrichment))
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + port
	logger.Info().
		Str("addr", addr).
		Str("stats_url", statsURL).
		Int("cache_capacity", capacity).
		Msg("Starting noise proxy")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

type server struct {
	client *statsapi.Client
	store  *store.Store
	logger zerolog.Logger
}

// queryRequest is the JSON body accepted by the query endpoints.
type queryRequest struct {
	Sites     []string `json:"sites"`
	Genes     []string `json:"genes,omitempty"`
	Pathway   string   `json:"pathway,omitempty"`
	Method    string   `json:"method"`
	Transform string   `json:"transform,omitempty"`
}

func (req queryRequest) query(mode params.Mode) params.Query {
	return params.Query{
		Mode:      mode,
		Sites:     req.Sites,
		Genes:     req.Genes,
		Pathway:   req.Pathway,
		Method:    params.Method(req.Method),
		Transform: params.Transform(req.Transform),
	}
}

// queryHandler serves a cached result when one exists and otherwise fetches
// from the statistics service and stores the decoded payload.
func (s *server) queryHandler(mode params.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		q := req.query(mode)
		if err := q.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		key, err := params.Encode(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if entry, ok := s.store.Get(key); ok {
			writeJSON(w, entry.Payload)
			return
		}

		ctx := r.Context()
		var payload any
		switch mode {
		case params.ModeGeneNoise:
			payload, err = s.client.FetchGeneNoise(ctx, q)
		case params.ModeEnrichment:
			payload, err = s.client.FetchEnrichment(ctx, q)
		}
		if err != nil {
			s.writeQueryError(w, err)
			return
		}

		s.store.Set(key, payload)
		writeJSON(w, payload)
	}
}

// writeQueryError maps fetch error kinds onto HTTP statuses.
func (s *server) writeQueryError(w http.ResponseWriter, err error) {
	var qerr *statsapi.QueryError
	if !errors.As(err, &qerr) {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	status := http.StatusBadGateway
	switch qerr.Kind {
	case statsapi.ErrorKindValidation:
		status = http.StatusBadRequest
	case statsapi.ErrorKindCancelled:
		// Client went away; the status is never seen but 499 keeps logs honest.
		status = 499
	case statsapi.ErrorKindServer:
		if qerr.StatusCode >= 400 && qerr.StatusCode < 500 {
			status = qerr.StatusCode
		}
	}

	s.logger.Error().
		Str("kind", string(qerr.Kind)).
		Int("status", qerr.StatusCode).
		Msg("Fetch failed")
	http.Error(w, qerr.Error(), status)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are already out; nothing to do but note it.
		logger := logging.NewLogger("noise-proxy")
		logger.Error().Err(err).Msg("Failed to write response")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
