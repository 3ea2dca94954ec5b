package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"tabcal/internal/config"
	"tabcal/internal/feed"
	appLog "tabcal/internal/log"
	"tabcal/internal/model"
	"tabcal/internal/store"
	"tabcal/internal/timeline"
)

// Server exposes the calendar API and the rendered week grid.
type Server struct {
	cfg    *config.Config
	events *store.Store
	calc   *timeline.Calculator
	mux    *http.ServeMux

	// now is injectable for tests.
	now func() time.Time

	// Single-entry cache for expanded feed events; fetching and
	// expanding every subscribed feed on each request would hammer the
	// calendar hosts.
	feedMu    sync.RWMutex
	feedCache *feedCache
}

type feedCache struct {
	key       string
	events    []model.Event
	updatedAt time.Time
}

const feedCacheTTL = 30 * time.Second

// NewServer constructs a Server backed by the given config and store.
func NewServer(cfg *config.Config, events *store.Store) *Server {
	s := &Server{
		cfg:    cfg,
		events: events,
		calc:   timeline.NewCalculator(cfg.Layout),
		mux:    http.NewServeMux(),
		now:    time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for this server, wrapped with basic
// auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// StartServer runs the HTTP server until it fails. Graceful shutdown is
// handled by the caller wrapping this in an http.Server if needed.
func StartServer(_ context.Context, cfg *config.Config, events *store.Store) error {
	s := NewServer(cfg, events)
	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
	return http.ListenAndServe(cfg.Listen, s.Handler())
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/events/local", s.handleLocalEvents)
	s.mux.HandleFunc("/api/layout", s.handleLayout)
	s.mux.HandleFunc("/calendar", s.handleCalendar)
	s.mux.HandleFunc("/preview.png", s.handlePreview)
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware protects every endpoint except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="tabcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last captured PNG preview from the data dir.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.cfg.DataDir, "preview.png"))
}

// window resolves the ?date= and ?days= query parameters into a
// half-open [start, end) range of whole days in the display timezone.
// An absent or unparseable date means "start of the current week".
func (s *Server) window(r *http.Request) (time.Time, int, *time.Location) {
	loc := resolveLocationOrLocal(s.cfg.Timezone)

	days := parseIntDefault(r.URL.Query().Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = s.cfg.HorizonDays
	}

	if raw := r.URL.Query().Get("date"); raw != "" {
		if d, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
			return d, days, loc
		}
		appLog.Warn("ignoring unparseable date parameter", "date", raw)
	}

	now := s.now().In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	return StartOfWeek(start, s.cfg.WeekStart), days, loc
}

// StartOfWeek walks back from day to the configured first weekday.
func StartOfWeek(day time.Time, weekStart string) time.Time {
	first := time.Monday
	if weekStart == "sunday" {
		first = time.Sunday
	}
	for day.Weekday() != first {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// ComputeWeek runs the full collect+layout pipeline outside the HTTP
// layer, for the CLI dump mode.
func ComputeWeek(ctx context.Context, cfg *config.Config, st *store.Store, start time.Time, days int) (timeline.WeekLayout, error) {
	s := NewServer(cfg, st)
	loc := resolveLocationOrLocal(cfg.Timezone)
	events, err := s.collectEvents(ctx, start, days, loc)
	if err != nil {
		return timeline.WeekLayout{}, err
	}
	columns, _ := splitByDay(events, start, days)
	return s.calc.Compute(columns), nil
}

// collectEvents gathers feed and local events intersecting the window.
// Feed failures degrade to whatever sources produced data; the local
// store is the only hard dependency.
func (s *Server) collectEvents(ctx context.Context, start time.Time, days int, loc *time.Location) ([]model.Event, error) {
	end := start.AddDate(0, 0, days)

	merged := make([]model.Event, 0)
	merged = append(merged, s.feedEvents(ctx, start, end, loc)...)

	local, err := s.events.List(ctx, start, end)
	if err != nil {
		return nil, err
	}
	merged = append(merged, local...)
	return merged, nil
}

// feedEvents returns expanded subscription events for the window, from
// the single-entry TTL cache when fresh.
func (s *Server) feedEvents(ctx context.Context, start, end time.Time, loc *time.Location) []model.Event {
	if len(s.cfg.Sources) == 0 {
		return nil
	}

	key := start.Format("2006-01-02") + "/" + end.Format("2006-01-02")
	now := time.Now()

	s.feedMu.RLock()
	fc := s.feedCache
	s.feedMu.RUnlock()
	if fc != nil && fc.key == key && now.Sub(fc.updatedAt) < feedCacheTTL {
		return fc.events
	}

	sources := make([]feed.Source, 0, len(s.cfg.Sources))
	for _, sc := range s.cfg.Sources {
		if sc.URL == "" {
			continue
		}
		id := sc.ID
		if id == "" {
			id = sc.Name
		}
		if id == "" {
			id = sc.URL
		}
		sources = append(sources, feed.Source{ID: id, URL: sc.URL})
	}

	fetcher := feed.NewFetcher(filepath.Join(s.cfg.DataDir, "feed-cache"))
	results, errs := fetcher.FetchAll(ctx, sources)
	if len(errs) > 0 {
		appLog.Error("one or more feed fetches failed", errorsAggregate(errs), "error_count", len(errs))
	}

	parsed := make([]feed.ParsedEvent, 0)
	for _, res := range results {
		events, err := feed.Parse(res.Source, res.Body)
		if err != nil {
			continue
		}
		parsed = append(parsed, events...)
	}

	expanded, err := feed.Expand(parsed, feed.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      start,
		RangeEnd:        end,
	})
	if err != nil {
		appLog.Error("feed expand failed", err)
		return nil
	}

	s.feedMu.Lock()
	s.feedCache = &feedCache{key: key, events: expanded, updatedAt: time.Now()}
	s.feedMu.Unlock()

	return expanded
}

// eventDTO is the JSON view of one event.
type eventDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

func toDTOs(events []model.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, eventDTO{
			ID:          ev.ID,
			Title:       ev.Title,
			Description: ev.Description,
			Location:    ev.Location,
			AllDay:      ev.AllDay,
			Start:       ev.Start,
			End:         ev.End,
		})
	}
	return out
}

// handleEvents returns the merged raw events for a window.
//
// GET /api/events?date=2026-03-02&days=7
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start, days, loc := s.window(r)
	events, err := s.collectEvents(r.Context(), start, days, loc)
	if err != nil {
		appLog.Error("event collection failed", err)
		writeError(w, http.StatusInternalServerError, "failed to collect events")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		RangeStart time.Time  `json:"range_start"`
		RangeEnd   time.Time  `json:"range_end"`
		Timezone   string     `json:"timezone"`
		Events     []eventDTO `json:"events"`
	}{
		RangeStart: start,
		RangeEnd:   start.AddDate(0, 0, days),
		Timezone:   loc.String(),
		Events:     toDTOs(events),
	})
}

// handleLocalEvents creates or deletes user events.
//
//	POST   /api/events/local   {"title": ..., "start": ..., "end": ...}
//	DELETE /api/events/local?id=local-abcdef
func (s *Server) handleLocalEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var in eventDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		ev, err := s.events.Put(model.Event{
			Title:       in.Title,
			Description: in.Description,
			Location:    in.Location,
			AllDay:      in.AllDay,
			Start:       in.Start,
			End:         in.End,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		appLog.Info("local event created", "id", ev.ID, "title", ev.Title)
		writeJSON(w, http.StatusCreated, toDTOs([]model.Event{ev})[0])

	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "id parameter required")
			return
		}
		if err := s.events.Delete(id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "no such event")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		appLog.Info("local event deleted", "id", id)
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// layoutResponse is the JSON shape of /api/layout: per-column geometry
// plus the shared hour tables and the current-time indicator offset.
type layoutResponse struct {
	RangeStart time.Time `json:"range_start"`
	RangeEnd   time.Time `json:"range_end"`
	Timezone   string    `json:"timezone"`

	Week      timeline.WeekLayout `json:"week"`
	AllDay    [][]eventDTO        `json:"all_day"`
	NowOffset float64             `json:"now_offset"`
	NowDay    int                 `json:"now_day"` // column index of today, -1 outside range
}

// handleLayout computes render-ready geometry for a window.
//
// GET /api/layout?date=2026-03-02&days=7
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start, days, loc := s.window(r)
	events, err := s.collectEvents(r.Context(), start, days, loc)
	if err != nil {
		appLog.Error("event collection failed", err)
		writeError(w, http.StatusInternalServerError, "failed to collect events")
		return
	}

	columns, allDay := splitByDay(events, start, days)
	week := s.calc.Compute(columns)

	now := s.now().In(loc)
	resp := layoutResponse{
		RangeStart: start,
		RangeEnd:   start.AddDate(0, 0, days),
		Timezone:   loc.String(),
		Week:       week,
		AllDay:     allDay,
		NowOffset:  s.calc.NowOffset(week, now),
		NowDay:     dayIndexOf(now, start, days),
	}
	writeJSON(w, http.StatusOK, resp)
}

// splitByDay buckets events into per-day columns of processed timeline
// blocks plus per-day all-day lists. Timed events are clipped to their
// day so a block never leaks past a column boundary.
func splitByDay(events []model.Event, start time.Time, days int) ([]timeline.DayColumn, [][]eventDTO) {
	columns := make([]timeline.DayColumn, days)
	allDay := make([][]eventDTO, days)

	for d := 0; d < days; d++ {
		dayStart := start.AddDate(0, 0, d)
		dayEnd := start.AddDate(0, 0, d+1)

		timed := make([]model.Event, 0)
		allDay[d] = make([]eventDTO, 0)

		for _, ev := range events {
			if !ev.Valid() {
				continue
			}
			if !ev.Start.Before(dayEnd) || !ev.End.After(dayStart) {
				// Zero-duration events have an empty span; admit them by
				// their start instant instead.
				if !(ev.Start.Equal(ev.End) && !ev.Start.Before(dayStart) && ev.Start.Before(dayEnd)) {
					continue
				}
			}
			if ev.AllDay {
				allDay[d] = append(allDay[d], toDTOs([]model.Event{ev})[0])
				continue
			}
			clipped := ev
			if clipped.Start.Before(dayStart) {
				clipped.Start = dayStart
			}
			if clipped.End.After(dayEnd) {
				clipped.End = dayEnd
			}
			timed = append(timed, clipped)
		}

		columns[d] = timeline.DayColumn{
			Date:  dayStart,
			Tasks: timeline.ProcessOverlaps(timed),
		}
	}

	return columns, allDay
}

func dayIndexOf(now, start time.Time, days int) int {
	for d := 0; d < days; d++ {
		dayStart := start.AddDate(0, 0, d)
		if !now.Before(dayStart) && now.Before(start.AddDate(0, 0, d+1)) {
			return d
		}
	}
	return -1
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" || name == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

func errorsAggregate(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Error())
	}
	return errors.New(b.String())
}
