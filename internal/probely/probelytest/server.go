// Package probelytest provides an in-memory Probely API for tests.
package probelytest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/crucial707/probely-scheduler/internal/models"
	"github.com/crucial707/probely-scheduler/internal/probely"
)

// Request is a call received by the server.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// Server holds targets and scheduled scans and serves the list, create and
// update endpoints. Only requests carrying "JWT <Token>" are accepted.
type Server struct {
	*httptest.Server
	Token string

	mu        sync.Mutex
	targets   []probely.TargetRecord
	schedules []probely.ScheduledScan
	nextID    int
	requests  []Request
	faults    map[string][]int
}

// NewServer starts a server. Close it when done.
func NewServer(token string) *Server {
	s := &Server{Token: token, faults: make(map[string][]int)}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer, s.record, s.authenticate, s.injectFaults)
	r.Get("/scheduledscans/", s.listSchedules)
	r.Get("/targets/", s.listTargets)
	r.Post("/targets/{targetID}/scheduledscans/", s.createSchedule)
	r.Put("/targets/{targetID}/scheduledscans/{scheduleID}/", s.updateSchedule)

	s.Server = httptest.NewServer(r)
	return s
}

// AddTarget registers a target.
func (s *Server) AddTarget(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = append(s.targets, probely.TargetRecord{ID: probely.ID(id), Site: probely.Site{Name: name}})
}

// AddSchedule attaches a scheduled scan to targetID. The site name is taken
// from the registered target when there is one.
func (s *Server) AddSchedule(targetID, scheduleID, dateTime, recurrence string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = append(s.schedules, probely.ScheduledScan{
		ID:         probely.ID(scheduleID),
		DateTime:   dateTime,
		Recurrence: recurrence,
		Timezone:   models.ScheduleTimezone,
		Target:     s.targetLocked(targetID),
	})
}

// FailNext makes the next len(statuses) calls to method+path answer with the
// given statuses, in order, before normal handling resumes.
func (s *Server) FailNext(method, path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.faults[key] = append(s.faults[key], statuses...)
}

// SchedulesFor returns the scheduled scans currently attached to targetID.
func (s *Server) SchedulesFor(targetID string) []probely.ScheduledScan {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []probely.ScheduledScan
	for _, sc := range s.schedules {
		if string(sc.Target.ID) == targetID {
			out = append(out, sc)
		}
	}
	return out
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Mutations returns the PUT and POST requests received so far.
func (s *Server) Mutations() []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method == http.MethodPut || r.Method == http.MethodPost {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) targetLocked(id string) probely.TargetRecord {
	for _, t := range s.targets {
		if string(t.ID) == id {
			return t
		}
	}
	return probely.TargetRecord{ID: probely.ID(id)}
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Header:   r.Header.Clone(),
			Body:     body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "JWT "+s.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		queue := s.faults[key]
		status := 0
		if len(queue) > 0 {
			status, s.faults[key] = queue[0], queue[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]string{"detail": "injected failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := append([]probely.ScheduledScan(nil), s.schedules...)
	s.mu.Unlock()
	writePage(w, r, items)
}

func (s *Server) listTargets(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := append([]probely.TargetRecord(nil), s.targets...)
	s.mu.Unlock()
	writePage(w, r, items)
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "targetID")
	p, ok := decodePayload(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasTargetLocked(targetID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}

	s.nextID++
	sc := probely.ScheduledScan{
		ID:         probely.ID(fmt.Sprintf("sched%d", s.nextID)),
		DateTime:   p.DateTime,
		Recurrence: string(p.Recurrence),
		Timezone:   p.Timezone,
		Target:     s.targetLocked(targetID),
	}
	s.schedules = append(s.schedules, sc)
	writeJSON(w, http.StatusCreated, sc)
}

func (s *Server) updateSchedule(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "targetID")
	scheduleID := chi.URLParam(r, "scheduleID")
	p, ok := decodePayload(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.schedules {
		sc := &s.schedules[i]
		if string(sc.ID) == scheduleID && string(sc.Target.ID) == targetID {
			sc.DateTime = p.DateTime
			sc.Recurrence = string(p.Recurrence)
			sc.Timezone = p.Timezone
			writeJSON(w, http.StatusOK, sc)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
}

func (s *Server) hasTargetLocked(id string) bool {
	for _, t := range s.targets {
		if string(t.ID) == id {
			return true
		}
	}
	return false
}

func decodePayload(w http.ResponseWriter, r *http.Request) (models.SchedulePayload, bool) {
	var p models.SchedulePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON"})
		return p, false
	}

	fields := make(map[string][]string)
	if _, err := time.Parse(models.DateTimeLayout, p.DateTime); err != nil {
		fields["date_time"] = []string{"Invalid datetime."}
	}
	if !p.Recurrence.Valid() {
		fields["recurrence"] = []string{"Invalid choice."}
	}
	if p.Timezone == "" {
		fields["timezone"] = []string{"This field is required."}
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, fields)
		return p, false
	}
	return p, true
}

func writePage[T any](w http.ResponseWriter, r *http.Request, items []T) {
	page := queryInt(r, "page", 1)
	length := queryInt(r, "length", 10)

	pageTotal := (len(items) + length - 1) / length
	if pageTotal == 0 {
		pageTotal = 1
	}

	results := []T{}
	start := (page - 1) * length
	if start < len(items) {
		end := min(start+length, len(items))
		results = items[start:end]
	}

	writeJSON(w, http.StatusOK, probely.Page[T]{
		Count:     len(items),
		Page:      page,
		Length:    length,
		PageTotal: pageTotal,
		Results:   results,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
