// Package api provides the HTTP ops surface: published deals, pipeline
// schedule, routing table and scrape run history.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bissquit/promo-garden/internal/deals"
	"github.com/bissquit/promo-garden/internal/domain"
	"github.com/bissquit/promo-garden/internal/ledger"
	"github.com/bissquit/promo-garden/internal/marketplace"
	"github.com/bissquit/promo-garden/internal/pipeline"
	"github.com/bissquit/promo-garden/internal/pkg/httputil"
	"github.com/bissquit/promo-garden/internal/routing"
)

// RunLister is the slice of the ledger repository the API touches:
// registering scrape targets and reading run history.
type RunLister interface {
	CreateLink(ctx context.Context, url, marketplace string) (*ledger.Link, error)
	Enqueue(ctx context.Context, affiliateLinkID string) error
	ListRuns(ctx context.Context, filter ledger.RunFilter) ([]domain.ScrapeRun, error)
}

// Handler handles HTTP requests for the ops module.
type Handler struct {
	deals     deals.Repository
	scheduler *pipeline.Scheduler
	router    *routing.Router
	runs      RunLister
	validator *validator.Validate
}

// NewHandler creates a new ops handler. runs may be nil when the ledger
// worker is disabled.
func NewHandler(dealsRepo deals.Repository, scheduler *pipeline.Scheduler, router *routing.Router, runs RunLister) *Handler {
	return &Handler{
		deals:     dealsRepo,
		scheduler: scheduler,
		router:    router,
		runs:      runs,
		validator: validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes for the ops module.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/deals", h.ListDeals)
	r.Get("/categories", h.ListCategories)
	r.Get("/stats", h.GetStats)
	r.Get("/runs", h.ListRuns)
	r.Post("/links", h.SubmitLink)

	r.Post("/run", h.ForceRun)
	r.Get("/schedule", h.GetSchedule)
	r.Put("/schedule", h.UpdateSchedule)

	r.Get("/routing", h.GetRouting)
	r.Put("/routing", h.UpdateRouting)
}

type dealResponse struct {
	ID           int64   `json:"id"`
	ExternalID   string  `json:"external_id"`
	Title        string  `json:"title"`
	Price        float64 `json:"price"`
	OriginalURL  string  `json:"original_url"`
	AffiliateURL string  `json:"affiliate_url"`
	ImageURL     string  `json:"image_url,omitempty"`
	Category     string  `json:"category"`
	Store        string  `json:"store"`
	SentAt       string  `json:"sent_at"`
}

// ListDeals returns published deals, newest first.
func (h *Handler) ListDeals(w http.ResponseWriter, r *http.Request) {
	filter := deals.Filter{
		Category: r.URL.Query().Get("category"),
		Store:    r.URL.Query().Get("store"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			httputil.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			httputil.Error(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	result, err := h.deals.List(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	out := make([]dealResponse, 0, len(result))
	for _, d := range result {
		out = append(out, dealResponse{
			ID:           d.ID,
			ExternalID:   d.ExternalID,
			Title:        d.Title,
			Price:        d.Price,
			OriginalURL:  d.OriginalURL,
			AffiliateURL: d.AffiliateURL,
			ImageURL:     d.ImageURL,
			Category:     d.Category,
			Store:        d.Store,
			SentAt:       d.SentAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	httputil.Success(w, http.StatusOK, out)
}

// ListCategories returns the distinct categories of published deals.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.deals.Categories(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	httputil.Success(w, http.StatusOK, categories)
}

// GetStats returns aggregate deal counters.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deals.Stats(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}
	httputil.Success(w, http.StatusOK, stats)
}

type runResponse struct {
	ID              string  `json:"id"`
	AffiliateLinkID string  `json:"affiliate_link_id"`
	Status          string  `json:"status"`
	StartedAt       string  `json:"started_at"`
	FinishedAt      *string `json:"finished_at,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// ListRuns returns recent scrape runs from the ledger.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		httputil.Error(w, http.StatusNotFound, "scrape ledger is disabled")
		return
	}

	filter := ledger.RunFilter{Status: domain.RunStatus(r.URL.Query().Get("status"))}
	runs, err := h.runs.ListRuns(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp := runResponse{
			ID:              run.ID,
			AffiliateLinkID: run.AffiliateLinkID,
			Status:          string(run.Status),
			StartedAt:       run.StartedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			Error:           run.Error,
		}
		if run.FinishedAt != nil {
			finished := run.FinishedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
			resp.FinishedAt = &finished
		}
		out = append(out, resp)
	}
	httputil.Success(w, http.StatusOK, out)
}

type submitLinkRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// SubmitLink registers a product URL and queues it for scraping.
func (h *Handler) SubmitLink(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		httputil.Error(w, http.StatusNotFound, "scrape ledger is disabled")
		return
	}

	var req submitLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	m, err := marketplace.Detect(req.URL)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "unsupported marketplace")
		return
	}

	link, err := h.runs.CreateLink(r.Context(), req.URL, string(m))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}
	if err := h.runs.Enqueue(r.Context(), link.ID); err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.Success(w, http.StatusAccepted, map[string]string{
		"link_id":     link.ID,
		"marketplace": link.Marketplace,
	})
}

// ForceRun requests an immediate pipeline run.
func (h *Handler) ForceRun(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.ForceRun(); err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}
	httputil.Success(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

// GetSchedule returns the current schedule state.
func (h *Handler) GetSchedule(w http.ResponseWriter, _ *http.Request) {
	httputil.Success(w, http.StatusOK, h.scheduler.State())
}

type updateScheduleRequest struct {
	IntervalMinutes int `json:"interval_minutes" validate:"required,min=1,max=1440"`
}

// UpdateSchedule changes the pipeline run interval.
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req updateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if err := h.scheduler.SetInterval(req.IntervalMinutes); err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}
	httputil.Success(w, http.StatusOK, h.scheduler.State())
}

// GetRouting returns the current routing table.
func (h *Handler) GetRouting(w http.ResponseWriter, _ *http.Request) {
	httputil.Success(w, http.StatusOK, h.router.Load())
}

// UpdateRouting replaces the routing table.
func (h *Handler) UpdateRouting(w http.ResponseWriter, r *http.Request) {
	var cfg routing.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.router.Save(&cfg); err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}
	httputil.Success(w, http.StatusOK, h.router.Load())
}
