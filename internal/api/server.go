// Package api exposes the scrape chain as an HTTP tool endpoint.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/advisor-scrape/internal/cost"
	"github.com/sells-group/advisor-scrape/internal/model"
	"github.com/sells-group/advisor-scrape/internal/monitoring"
	"github.com/sells-group/advisor-scrape/internal/scrape"
	"github.com/sells-group/advisor-scrape/internal/store"
)

// Runner runs the provider chain for one URL.
type Runner interface {
	Run(ctx context.Context, targetURL string) scrape.Result
}

// Server serves scrape requests. The store is optional; without it pages
// are neither saved nor listed.
type Server struct {
	runner      Runner
	store       store.Store
	calc        *cost.Calculator
	corsOrigins []string
}

// NewServer creates a Server. An empty corsOrigins allows any origin.
func NewServer(runner Runner, st store.Store, corsOrigins []string) *Server {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	return &Server{
		runner:      runner,
		store:       st,
		corsOrigins: corsOrigins,
	}
}

// WithCalculator sets the rates used to estimate cost in /stats. Without
// it the default rates apply.
func (s *Server) WithCalculator(calc *cost.Calculator) *Server {
	s.calc = calc
	return s
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/scrape", s.scrapeQuery)
	r.Post("/scrape", s.scrapeBody)
	r.Get("/pages", s.listPages)
	r.Get("/stats", s.stats)

	return r
}

type scrapeRequest struct {
	URL  string `json:"url"`
	Save bool   `json:"save"`
}

type scrapeResponse struct {
	URL      string `json:"url"`
	OK       bool   `json:"ok"`
	Provider string `json:"provider"`
	Content  string `json:"content"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) scrapeQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	save, _ := strconv.ParseBool(q.Get("save"))
	s.scrape(w, r, scrapeRequest{URL: q.Get("url"), Save: save})
}

func (s *Server) scrapeBody(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	s.scrape(w, r, req)
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request, req scrapeRequest) {
	targetURL := strings.TrimSpace(req.URL)
	if targetURL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url is required"})
		return
	}

	result := s.runner.Run(r.Context(), targetURL)

	if req.Save && s.store != nil {
		page := result.Page()
		if err := s.store.SavePage(r.Context(), &page); err != nil {
			zap.L().Warn("api: save page failed",
				zap.String("url", targetURL),
				zap.Error(err),
			)
		}
	}

	writeJSON(w, http.StatusOK, scrapeResponse{
		URL:      targetURL,
		OK:       result.OK,
		Provider: result.Provider,
		Content:  result.Text(),
	})
}

func (s *Server) listPages(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store not configured"})
		return
	}

	q := r.URL.Query()
	filter := store.PageFilter{
		URL:      q.Get("url"),
		Provider: q.Get("provider"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("success_only"); raw != "" {
		filter.SuccessOnly, _ = strconv.ParseBool(raw)
	}

	pages, err := s.store.ListPages(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list pages failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "list pages failed"})
		return
	}
	if pages == nil {
		pages = []model.ScrapedPage{}
	}
	writeJSON(w, http.StatusOK, pages)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store not configured"})
		return
	}

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil || h <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "hours must be a positive integer"})
			return
		}
		hours = h
	}

	snap, err := monitoring.NewCollector(s.store, s.calc).Collect(r.Context(), hours)
	if err != nil {
		zap.L().Error("api: collect stats failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "collect stats failed"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}
