package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/julianstephens/habitd/internal/auth"
	"github.com/julianstephens/habitd/internal/constants"
	apperrors "github.com/julianstephens/habitd/internal/errors"
)

type createHabitRequest struct {
	Title string `json:"title"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type repairResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	FreezesRemaining int    `json:"freezesRemaining"`
}

type statsResponse struct {
	Freezes int `json:"freezes"`
}

type watchAdResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Freezes int    `json:"freezes"`
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleListHabits(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	views, err := s.habits.ListHabits(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req createHabitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, apperrors.Wrap(apperrors.ErrInvalidInput, constants.MsgInvalidRequestBody, err))
		return
	}

	view, err := s.habits.CreateHabit(r.Context(), id.UserID, req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	if err := s.habits.CheckIn(r.Context(), id.UserID, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	result, err := s.habits.RepairYesterday(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, repairResponse{
		Success:          true,
		Message:          result.Message,
		FreezesRemaining: result.FreezesRemaining,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	balance, err := s.habits.FreezeBalance(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Freezes: balance})
}

func (s *Server) handleWatchAd(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	balance, err := s.habits.EarnFreeze(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, watchAdResponse{
		Success: true,
		Message: constants.MsgAdWatched,
		Freezes: balance,
	})
}
