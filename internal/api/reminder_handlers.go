package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/jogardn/roastery-orders/internal/reminders"
	"github.com/jogardn/roastery-orders/pkg/models"
)

type reminderRequest struct {
	CustomerID *string `json:"customer_id"`
	Title      string  `json:"title"`
	Message    string  `json:"message"`
	Weekday    int     `json:"weekday"`
	Hour       int     `json:"hour"`
	IsActive   *bool   `json:"is_active"`
}

func (req reminderRequest) apply(rem *models.Reminder) error {
	rem.CustomerID = req.CustomerID
	if rem.CustomerID != nil && *rem.CustomerID == "" {
		rem.CustomerID = nil
	}
	rem.Title = strings.TrimSpace(req.Title)
	rem.Message = req.Message
	rem.Weekday = req.Weekday
	rem.Hour = req.Hour
	rem.IsActive = req.IsActive == nil || *req.IsActive
	return reminders.Validate(rem)
}

func (s *Server) ListReminders(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	list, err := s.store.ListReminders(r.Context(), activeOnly)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"reminders": list,
		"count":     len(list),
	})
}

func (s *Server) CreateReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	var rem models.Reminder
	if err := req.apply(&rem); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	if err := s.store.CreateReminder(r.Context(), &rem); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, &rem)
}

func (s *Server) UpdateReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	rem := models.Reminder{ID: mux.Vars(r)["id"]}
	if err := req.apply(&rem); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	if err := s.store.UpdateReminder(r.Context(), &rem); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, &rem)
}

func (s *Server) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteReminder(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
