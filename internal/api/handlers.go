package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkgraph-crawler/internal/crawler"
	"github.com/JakeFAU/linkgraph-crawler/internal/crawljob"
	queuememory "github.com/JakeFAU/linkgraph-crawler/internal/queue/memory"
)

// createdByAPI is the audit identity stamped on pages written by API crawls.
const createdByAPI = "api"

type crawlRequest struct {
	SeedURLs           []string `json:"seed_urls"`
	SeedURL            string   `json:"seed_url"`
	Depth              *int     `json:"depth"`
	ConcurrentRequests *int     `json:"concurrent_requests"`
	FollowExternal     *bool    `json:"follow_external"`
	Strategy           string   `json:"strategy"`
	CollectionID       string   `json:"collection_id"`
}

func (c crawlRequest) seeds() []string {
	raw := c.SeedURLs
	if len(raw) == 0 && c.SeedURL != "" {
		raw = []string{c.SeedURL}
	}
	out := make([]string, 0, len(raw))
	for _, seed := range raw {
		if seed = strings.TrimSpace(seed); seed != "" {
			out = append(out, seed)
		}
	}
	return out
}

type crawlAccepted struct {
	TaskID string            `json:"task_id"`
	Status crawler.TaskState `json:"status"`
}

type markdownRequest struct {
	URL                 string `json:"url"`
	SkipSSLVerification bool   `json:"skip_ssl_verification"`
}

type markdownResponse struct {
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var body crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	seeds := body.seeds()
	if len(seeds) == 0 {
		writeError(w, http.StatusBadRequest, crawljob.ErrNoSeeds.Error())
		return
	}

	req := crawljob.Request{
		SeedURLs:           seeds,
		Depth:              body.Depth,
		ConcurrentRequests: body.ConcurrentRequests,
		FollowExternal:     body.FollowExternal,
		Strategy:           body.Strategy,
		CollectionID:       body.CollectionID,
		CreatedBy:          createdByAPI,
		APIKeyName:         APIKeyNameFromContext(r.Context()),
	}
	if _, err := s.crawls.SettingsFor(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	taskID, err := s.idGen.NewID()
	if err != nil {
		s.logger.Error("generate task id", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to allocate task id")
		return
	}
	status := crawler.NewTaskStatus(taskID, seeds, s.clock.Now())
	req.Status = status
	if err := s.tasks.Create(r.Context(), taskID, status); err != nil {
		s.logger.Error("register task", zap.String("task_id", taskID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to register task")
		return
	}

	if err := s.submitter.Submit(crawljob.Task{ID: taskID, Request: req, Status: status}); err != nil {
		s.tasks.Delete(r.Context(), taskID)
		if errors.Is(err, queuememory.ErrFull) || errors.Is(err, queuememory.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "crawl queue unavailable, retry later")
			return
		}
		s.logger.Error("submit task", zap.String("task_id", taskID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to submit task")
		return
	}

	s.logger.Info("crawl accepted",
		zap.String("task_id", taskID),
		zap.Strings("seeds", seeds),
		zap.String("api_key_name", req.APIKeyName),
	)
	writeJSON(w, http.StatusAccepted, crawlAccepted{TaskID: taskID, Status: status.State()})
}

func (s *Server) getCrawl(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	status, err := s.tasks.Get(r.Context(), taskID)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, status.Snapshot())
}

func (s *Server) pageMarkdown(w http.ResponseWriter, r *http.Request) {
	var body markdownRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	out, err := s.crawls.PageAsMarkdown(r.Context(), body.URL, body.SkipSSLVerification)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, markdownResponse{URL: body.URL, Markdown: out})
	case errors.Is(err, crawljob.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, crawljob.ErrFetchFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("convert page", zap.String("url", body.URL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to convert page")
	}
}

func (s *Server) getPage(w http.ResponseWriter, r *http.Request) {
	rawURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "url query parameter required")
		return
	}
	if s.pages == nil {
		writeError(w, http.StatusServiceUnavailable, "link graph store not configured")
		return
	}
	page, err := s.pages.PageByURL(r.Context(), rawURL)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, page)
	case errors.Is(err, crawler.ErrPageNotFound):
		writeError(w, http.StatusNotFound, "page not found")
	default:
		s.logger.Error("lookup page", zap.String("url", rawURL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load page")
	}
}
