package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jogardn/roastery-orders/internal/auth"
	"github.com/jogardn/roastery-orders/pkg/models"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	session, user, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
		"user":       user,
	})
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), auth.BearerToken(r)); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, currentUser(r))
}

func (s *Server) GetBranding(w http.ResponseWriter, r *http.Request) {
	branding, err := s.store.GetBranding(r.Context())
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, branding)
}

func (s *Server) UpdateBranding(w http.ResponseWriter, r *http.Request) {
	var branding models.Branding
	if err := decodeJSON(r, &branding); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	if strings.TrimSpace(branding.CompanyName) == "" {
		respondWithError(w, http.StatusBadRequest, "Company name is required")
		return
	}
	if err := s.store.UpdateBranding(r.Context(), &branding); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	s.logger.WithField("company_name", branding.CompanyName).Info("Branding updated")
	respondWithJSON(w, http.StatusOK, &branding)
}
