// Package httpapi is the thin HTTP surface that calls the orchestrator:
// request decoding, correlation IDs, and NDJSON streaming of results over
// gorilla/mux routes.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/listingfeed/internal/listing"
	"github.com/sawpanic/listingfeed/internal/orchestrator"
)

// Server exposes the orchestrator over HTTP.
type Server struct {
	orch *orchestrator.Orchestrator
}

// NewServer wraps an orchestrator with an HTTP surface.
func NewServer(orch *orchestrator.Orchestrator) *Server {
	return &Server{orch: orch}
}

// Router builds the gorilla/mux route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/listings:get", s.handleGet).Methods(http.MethodPost)
	r.HandleFunc("/v1/listings:scan", s.handleScan).Methods(http.MethodPost)
	r.HandleFunc("/v1/health", s.handleHealth).Methods(http.MethodGet)
	return r
}

type requestBody struct {
	Marketplace        listing.Marketplace `json:"marketplace"`
	Identifier         string              `json:"identifier"`
	PreferredTiers     []int               `json:"preferredTiers,omitempty"`
	RequiredConfidence float64             `json:"requiredConfidence,omitempty"`
	AllowFallback      *bool               `json:"allowFallback,omitempty"`
	TimeoutMillis      int64               `json:"timeoutMillis,omitempty"`
	IncludeChannels    []listing.Channel   `json:"includeChannels,omitempty"`
	ExcludeChannels    []listing.Channel   `json:"excludeChannels,omitempty"`
}

func (b requestBody) toOptions() orchestrator.Options {
	opts := orchestrator.DefaultOptions()
	if len(b.PreferredTiers) > 0 {
		opts.PreferredTiers = b.PreferredTiers
	}
	if b.RequiredConfidence > 0 {
		opts.RequiredConfidence = b.RequiredConfidence
	}
	if b.AllowFallback != nil {
		opts.AllowFallback = *b.AllowFallback
	}
	if b.TimeoutMillis > 0 {
		opts.Timeout = time.Duration(b.TimeoutMillis) * time.Millisecond
	}
	opts.IncludeChannels = b.IncludeChannels
	opts.ExcludeChannels = b.ExcludeChannels
	return opts
}

// handleGet writes the single-source-with-fallback audit trail as NDJSON
// once the orchestrator has finished its walk: one attempt record per
// line, followed by a final line carrying the result.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	var body requestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)

	result := s.orch.GetData(r.Context(), body.Marketplace, body.Identifier, body.toOptions())
	for _, attempt := range result.AttemptedSources {
		_ = enc.Encode(map[string]interface{}{"requestId": requestID, "attempt": attempt})
	}
	_ = enc.Encode(map[string]interface{}{
		"requestId":     requestID,
		"data":          result.Data,
		"fallbackUsed":  result.FallbackUsed,
		"totalDuration": result.TotalDuration.String(),
	})

	log.Info().Str("request_id", requestID).Str("marketplace", string(body.Marketplace)).
		Bool("fallback_used", result.FallbackUsed).Msg("getData request completed")
}

// handleScan streams the multi-source merge result as NDJSON: one line per
// contributing source's provenance, then the merged listing and conflict
// audit.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	var body requestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)

	result := s.orch.GetFromAllSources(r.Context(), body.Marketplace, body.Identifier, body.toOptions())
	for _, src := range result.Sources {
		_ = enc.Encode(map[string]interface{}{"requestId": requestID, "source": src})
	}
	_ = enc.Encode(map[string]interface{}{
		"requestId": requestID,
		"merged":    result.MergedData,
		"conflicts": result.Conflicts,
	})

	log.Info().Str("request_id", requestID).Str("marketplace", string(body.Marketplace)).
		Int("sources", len(result.Sources)).Int("conflicts", len(result.Conflicts)).Msg("getFromAllSources request completed")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.orch.GetHealthReport()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
