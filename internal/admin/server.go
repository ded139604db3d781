// Package admin is the small http api exposed by `serve` to inspect the
// relay and trigger runs by hand.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"horoscope-relay/internal/components/assert"
	"horoscope-relay/internal/components/chrono"
	"horoscope-relay/internal/components/telemetry"
	"horoscope-relay/internal/relay"
	"horoscope-relay/lib/serviceutil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	report_admin_scrape    = "admin.scrape"
	report_admin_republish = "admin.republish"
)

// Runner is the part of the orchestrator the api drives. Pass the NoWait
// view so a busy orchestrator answers with 409 instead of blocking.
//
// note: fault injection point
type Runner interface {
	Snapshot() relay.Snapshot
	ScrapeDay(ctx context.Context, day time.Time, policy relay.RetryPolicy) (relay.Outcome, error)
	Republish(ctx context.Context, name string, force bool) (relay.RepublishResult, error)
}

type Options struct {
	AccessToken string
	// Policy is used by POST /scrape when no retries are given.
	Policy relay.RetryPolicy
}

type Server struct {
	runner Runner
	clock  chrono.API
	opts   Options
	tel    telemetry.API
	router *chi.Mux
}

func NewServer(runner Runner, clock chrono.API, opts Options, tel telemetry.API) *Server {
	assert.NotNil(runner)
	assert.NotNil(clock)
	assert.NotNil(tel)
	if opts.Policy.Attempts <= 0 {
		opts.Policy.Attempts = 1
	}

	s := &Server{
		runner: runner,
		clock:  clock,
		opts:   opts,
		tel:    telemetry.NewScopedAPI("admin", tel),
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(serviceutil.VerifyAccessToken(s.opts.AccessToken))

	s.router.Get("/status", s.handleStatus)
	s.router.Post("/scrape", s.handleScrape)
	s.router.Post("/republish", s.handleRepublish)
}

func (s *Server) Router() http.Handler {
	return s.router
}

type channelSummary struct {
	Handle    string `json:"handle"`
	Resolved  bool   `json:"resolved"`
	Processed int    `json:"processed"`
	Records   int    `json:"records"`
	Published int    `json:"published"`
	Already   int    `json:"already"`
	Failed    int    `json:"failed"`
	Stop      string `json:"stop,omitempty"`
	Error     string `json:"error,omitempty"`
}

type outcomeSummary struct {
	RunID     string           `json:"run_id,omitempty"`
	State     relay.State      `json:"state"`
	Attempts  int              `json:"attempts"`
	Skipped   bool             `json:"skipped,omitempty"`
	Published int              `json:"published"`
	Already   int              `json:"already"`
	Failed    int              `json:"failed"`
	Backup    string           `json:"backup,omitempty"`
	Channels  []channelSummary `json:"channels,omitempty"`
	Started   time.Time        `json:"started"`
	Finished  time.Time        `json:"finished"`
}

func summarize(o relay.Outcome) outcomeSummary {
	out := outcomeSummary{
		RunID:     o.RunID,
		State:     o.State,
		Attempts:  o.Attempts,
		Skipped:   o.Skipped,
		Published: o.Tally.Published,
		Already:   o.Tally.Already,
		Failed:    o.Tally.Failed,
		Backup:    o.Backup,
		Started:   o.Started,
		Finished:  o.Finished,
	}
	for _, c := range o.Channels {
		summary := channelSummary{
			Handle:    c.Handle,
			Resolved:  c.Resolved,
			Processed: c.Processed,
			Records:   len(c.Records),
			Published: c.Tally.Published,
			Already:   c.Tally.Already,
			Failed:    c.Tally.Failed,
			Stop:      string(c.Stop),
		}
		if c.Err != nil {
			summary.Error = c.Err.Error()
		}
		out.Channels = append(out.Channels, summary)
	}
	return out
}

type statusResponse struct {
	State       relay.State     `json:"state"`
	LastSuccess string          `json:"last_success,omitempty"`
	LastOutcome *outcomeSummary `json:"last_outcome,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := s.runner.Snapshot()
	res := statusResponse{
		State:       snapshot.State,
		LastSuccess: snapshot.LastSuccess,
	}
	if snapshot.LastOutcome != nil {
		summary := summarize(*snapshot.LastOutcome)
		res.LastOutcome = &summary
	}
	respondJSON(w, http.StatusOK, res)
}

type scrapeResponse struct {
	Outcome outcomeSummary `json:"outcome"`
	Error   string         `json:"error,omitempty"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	day := s.clock.Now()
	if param := r.URL.Query().Get("date"); param != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, param, s.clock.Location())
		if err != nil {
			respondError(w, http.StatusBadRequest, "date must be formatted as YYYY-MM-DD")
			return
		}
		day = parsed
	}

	policy := s.opts.Policy
	if param := r.URL.Query().Get("retries"); param != "" {
		retries, err := strconv.Atoi(param)
		if err != nil || retries <= 0 {
			respondError(w, http.StatusBadRequest, "retries must be a positive integer")
			return
		}
		policy.Attempts = retries
	}

	// a disconnecting client must not abort a run halfway through publishing
	ctx := context.WithoutCancel(r.Context())
	outcome, err := s.runner.ScrapeDay(ctx, day, policy)
	if errors.Is(err, relay.ErrBusy) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	res := scrapeResponse{Outcome: summarize(outcome)}
	if err != nil {
		s.tel.ReportWarning(report_admin_scrape, err, "date", day.Format(time.DateOnly))
		res.Error = err.Error()
		respondJSON(w, http.StatusBadGateway, res)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type republishResponse struct {
	Backup    string `json:"backup,omitempty"`
	Records   int    `json:"records"`
	Published int    `json:"published"`
	Already   int    `json:"already"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleRepublish(w http.ResponseWriter, r *http.Request) {
	force := false
	if param := r.URL.Query().Get("force"); param != "" {
		parsed, err := strconv.ParseBool(param)
		if err != nil {
			respondError(w, http.StatusBadRequest, "force must be a boolean")
			return
		}
		force = parsed
	}

	ctx := context.WithoutCancel(r.Context())
	result, err := s.runner.Republish(ctx, r.URL.Query().Get("file"), force)
	if errors.Is(err, relay.ErrBusy) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	res := republishResponse{
		Backup:    result.Backup,
		Records:   len(result.Records),
		Published: result.Tally.Published,
		Already:   result.Tally.Already,
		Failed:    result.Tally.Failed,
	}
	if err != nil {
		s.tel.ReportWarning(report_admin_republish, err, "backup", result.Backup)
		res.Error = err.Error()
		respondJSON(w, http.StatusBadGateway, res)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
