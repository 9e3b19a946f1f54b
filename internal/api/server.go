// Package api exposes the session over HTTP for the surrounding application.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/curbz/skylink/internal/model"
	"github.com/curbz/skylink/internal/session"
)

type Server struct {
	svc *session.Service
}

// New constructs the HTTP router wired to the session service.
func New(svc *session.Service) http.Handler {
	s := &Server{svc: svc}
	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/state", s.handleState)
	r.Get("/roster", s.handleRoster)
	r.Get("/fleet", s.handleFleet)
	r.Get("/pilot", s.handlePilot)
	r.Get("/company", s.handleCompany)
	r.Get("/ledger", s.handleLedger)
	r.Get("/notifications", s.handleNotifications)

	r.Post("/telemetry", s.handleTelemetry)
	r.Post("/roster/generate", s.handleGenerateRoster)
	r.Post("/roster/cancel", s.handleCancelLeg)
	r.Post("/fleet/purchase", s.handlePurchase)
	r.Post("/licenses/checkride", s.handleCheckride)
	r.Post("/flightplan/import", s.handleImportPlan)
	r.Post("/duty/end", s.handleEndDuty)

	return r
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.svc.State())
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.svc.Roster())
}

func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.svc.Fleet())
}

func (s *Server) handlePilot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.svc.Pilot())
}

func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.svc.Company())
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.svc.Ledger())
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	n := s.svc.Notifications()
	if n == nil {
		n = []model.Notification{}
	}
	writeJSON(w, n)
}

// handleTelemetry always answers 202: transient precondition misses inside
// the session are invisible to the telemetry producer.
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	var sample model.TelemetrySample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	s.svc.SubmitTelemetry(sample)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleGenerateRoster(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AircraftID string `json:"aircraftId"`
		Legs       int    `json:"legs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	if req.Legs <= 0 {
		req.Legs = 5
	}
	legs, err := s.svc.GenerateRoster(req.AircraftID, req.Legs)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, legs)
}

func (s *Server) handleCancelLeg(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.CancelCurrentLeg(); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Aircraft model.Aircraft `json:"aircraft"`
		Price    float64        `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	ac, err := s.svc.BuyAircraft(req.Aircraft, req.Price)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, ac)
}

func (s *Server) handleCheckride(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category   model.LicenseCategory `json:"category"`
		AircraftID string                `json:"aircraftId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	leg, err := s.svc.BookCheckride(req.Category, req.AircraftID)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, leg)
}

func (s *Server) handleImportPlan(w http.ResponseWriter, r *http.Request) {
	var fp model.FlightPlan
	if err := json.NewDecoder(r.Body).Decode(&fp); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	leg, err := s.svc.ImportFlightPlan(fp)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, leg)
}

func (s *Server) handleEndDuty(w http.ResponseWriter, r *http.Request) {
	s.svc.EndDuty()
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps session rejections onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, session.ErrLegInProgress),
		errors.Is(err, session.ErrFlightInProgress),
		errors.Is(err, session.ErrLicenseHeld):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoCurrentLeg),
		errors.Is(err, session.ErrUnknownAircraft):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidPlan):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
