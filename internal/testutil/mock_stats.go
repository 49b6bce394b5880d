// Package testutil provides testing utilities for the noise-cache library.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior of a mock statistics endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// StatsRequest is the decoded body of a request the mock received.
type StatsRequest struct {
	Sites               []string `json:"sites"`
	Genes               []string `json:"genes"`
	NormalizationMethod string   `json:"normalizationMethod"`
	Pathway             string   `json:"pathway"`
	Mode                string   `json:"mode"`
}

// MockStats is a configurable mock statistics service for testing.
// Responses are configured per query mode ("gene-noise", "enrichment").
type MockStats struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	requestCount int
	modeCounts   map[string]int
	lastRequest  *StatsRequest
}

// NewMockStats creates a new mock statistics server.
func NewMockStats() *MockStats {
	mock := &MockStats{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		modeCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/stats" {
			http.NotFound(w, r)
			return
		}

		var req StatsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("bad request body: %v", err), http.StatusBadRequest)
			return
		}

		mock.mu.Lock()
		mock.requestCount++
		mock.modeCounts[req.Mode]++
		mock.lastRequest = &req
		handler := mock.handlers[req.Mode]
		mock.mu.Unlock()

		if handler != nil {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, req)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockStats) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockStats) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockStats) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.modeCounts = make(map[string]int)
	m.lastRequest = nil
}

// SetHandler sets a custom handler for a query mode.
func (m *MockStats) SetHandler(mode string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[mode] = handler
}

// SetResponse configures a canned response for a query mode.
func (m *MockStats) SetResponse(mode string, resp MockResponse) {
	m.SetHandler(mode, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the total number of requests received.
func (m *MockStats) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// RequestsFor returns the number of requests received for a query mode.
func (m *MockStats) RequestsFor(mode string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.modeCounts[mode]
}

// LastRequest returns the most recently received request, or nil.
func (m *MockStats) LastRequest() *StatsRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequest
}

// defaultHandler serves a minimal valid response for the requested mode.
func (m *MockStats) defaultHandler(w http.ResponseWriter, req StatsRequest) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	switch req.Mode {
	case "gene-noise":
		counts := make(map[string]int, len(req.Sites))
		for _, site := range req.Sites {
			counts[site] = 10
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(GeneNoiseBody(req.Sites, req.Genes, req.NormalizationMethod, counts)))
	case "enrichment":
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(EnrichmentBody(EnrichmentHit("Cell cycle", "KEGG", 0.01, req.Genes...))))
	default:
		http.Error(w, fmt.Sprintf("unknown mode %q", req.Mode), http.StatusBadRequest)
	}
}

// GeneNoiseBody builds a valid gene-noise response body covering the given
// sites and genes under the raw transform. normalCounts gives the normal
// sample count per site; a site with zero normal samples gets cv_normal
// and logfc of zero, mirroring the service's behavior.
func GeneNoiseBody(sites, genes []string, method string, normalCounts map[string]int) string {
	geneStats := make(map[string]map[string]map[string]float64, len(genes))
	sampleCounts := make(map[string]map[string]int, len(sites))
	availableSites := make([]string, 0, len(sites))

	for i, site := range sites {
		lower := strings.ToLower(site)
		availableSites = append(availableSites, lower)
		normal := normalCounts[site]
		sampleCounts[lower] = map[string]int{"tumor": 40 + i, "normal": normal}

		for j, gene := range genes {
			if geneStats[gene] == nil {
				geneStats[gene] = make(map[string]map[string]float64, len(sites))
			}
			stats := map[string]float64{
				"mean_tumor":  float64(10 + i + j),
				"mean_normal": float64(8 + i),
				"cv_tumor":    0.5,
				"cv_normal":   0.3,
				"logfc":       0.74,
			}
			if normal == 0 {
				stats["cv_normal"] = 0
				stats["logfc"] = 0
			}
			geneStats[gene][lower] = stats
		}
	}

	body := map[string]any{
		"raw": map[string]any{
			method: map[string]any{"gene_stats": geneStats},
		},
		"sample_counts":   sampleCounts,
		"available_sites": availableSites,
	}

	data, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal gene-noise body: %v", err))
	}
	return string(data)
}

// EnrichmentHit builds one enrichment term for EnrichmentBody.
func EnrichmentHit(term, database string, fdr float64, genes ...string) map[string]any {
	if genes == nil {
		genes = []string{}
	}
	return map[string]any{
		"Term":          term,
		"Database":      database,
		"FDR":           fdr,
		"MatchingGenes": genes,
	}
}

// EnrichmentBody builds a valid enrichment response body from terms
// created by EnrichmentHit.
func EnrichmentBody(terms ...map[string]any) string {
	if terms == nil {
		terms = []map[string]any{}
	}
	data, err := json.Marshal(map[string]any{"enrichment": terms})
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal enrichment body: %v", err))
	}
	return string(data)
}
