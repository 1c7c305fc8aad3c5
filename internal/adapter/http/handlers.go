package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/hydro-dashboard/internal/adapter/chart"
	"github.com/couchcryptid/hydro-dashboard/internal/domain"
	"github.com/couchcryptid/hydro-dashboard/internal/orchestrator"
	"github.com/couchcryptid/hydro-dashboard/internal/session"
)

// maxBodyBytes bounds mutation request bodies.
const maxBodyBytes = 4 << 10

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

type categoryInfo struct {
	ID       domain.Category `json:"id"`
	WireName string          `json:"wire_name"`
	Label    string          `json:"label"`
	Default  bool            `json:"default"`
}

type categoryRequest struct {
	Category string `json:"category"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type dateRequest struct {
	Date string `json:"date"`
}

func handleCategories(w http.ResponseWriter, _ *http.Request) {
	out := make([]categoryInfo, 0, len(domain.Categories()))
	for _, c := range domain.Categories() {
		out = append(out, categoryInfo{
			ID:       c,
			WireName: c.WireName(),
			Label:    c.Label(),
			Default:  c == domain.DefaultCategory,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, pending := s.registry.Create()
	s.respondView(w, r, http.StatusCreated, sess, pending)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).View())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Delete(sessionFrom(r).ID()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelectCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	c, err := domain.ParseCategory(req.Category)
	if err != nil {
		writeError(w, err)
		return
	}
	sess := sessionFrom(r)
	pending, err := sess.SelectCategory(c)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondView(w, r, http.StatusOK, sess, pending)
}

func (s *Server) handleSetSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess := sessionFrom(r)
	if err := sess.SetSearchText(req.Query); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleSetWindowStart(w http.ResponseWriter, r *http.Request) {
	s.handleWindowEdit(w, r, (*session.Session).SetStartDate)
}

func (s *Server) handleSetWindowEnd(w http.ResponseWriter, r *http.Request) {
	s.handleWindowEdit(w, r, (*session.Session).SetEndDate)
}

func (s *Server) handleWindowEdit(w http.ResponseWriter, r *http.Request, edit func(*session.Session, string) (orchestrator.Pending, error)) {
	var req dateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess := sessionFrom(r)
	pending, err := edit(sess, req.Date)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondView(w, r, http.StatusOK, sess, pending)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	// Streams outlive the server write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn("clear write deadline", "error", err)
	}
	sess := sessionFrom(r)
	s.hub.Stream(w, r, sess.ID(), sess.View(), s.keepalive)
}

func (s *Server) handleRainfallChart(w http.ResponseWriter, r *http.Request) {
	line := domain.ProjectRainfallLine(sessionFrom(r).RainfallSamples())
	s.writeChart(w, r, func(out io.Writer, size chart.Size) error {
		return chart.RenderRainfall(out, line, size)
	})
}

func (s *Server) handleRegionsChart(w http.ResponseWriter, r *http.Request) {
	bars := domain.ProjectRegionBars(sessionFrom(r).RegionAggregates())
	s.writeChart(w, r, func(out io.Writer, size chart.Size) error {
		return chart.RenderRegions(out, bars, size)
	})
}

func (s *Server) writeChart(w http.ResponseWriter, r *http.Request, render func(io.Writer, chart.Size) error) {
	size, err := chartSize(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := render(&buf, size); err != nil {
		if errors.Is(err, chart.ErrNoData) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.logger.Error("render chart", "error", err, "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "render failed"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// respondView writes the session view. With ?wait=true it first waits for
// the fetches the request started, bounded by the request context.
func (s *Server) respondView(w http.ResponseWriter, r *http.Request, status int, sess *session.Session, pending orchestrator.Pending) {
	if r.URL.Query().Get("wait") == "true" {
		if err := pending.Wait(r.Context()); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug("wait for fetches", "error", err, "session_id", sess.ID())
		}
	}
	writeJSON(w, status, sess.View())
}

func chartSize(r *http.Request) (chart.Size, error) {
	var size chart.Size
	for name, dst := range map[string]*int{"width": &size.Width, "height": &size.Height} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 100 || v > 4000 {
			return chart.Size{}, fmt.Errorf("%w: %s must be an integer between 100 and 4000", errBadRequest, name)
		}
		*dst = v
	}
	return size, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidRange):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
