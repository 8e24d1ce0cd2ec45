package http

import (
	"net/http"
	"strconv"

	"habitual/internal/auth"
	"habitual/internal/core"
	"habitual/internal/services"
)

func (s *Server) handleMonthlyProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError(http.MethodGet).Write(w)
		return
	}
	user, _ := auth.UserFrom(r.Context())
	params := ParseMonthParams(r.URL.Query(), s.habits.Today())

	progress, err := s.habits.MonthlyProgress(r.Context(), user.ID, params.Year, params.Month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponse().JSON(progress).Write(w)
}

func (s *Server) handleYearlyProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError(http.MethodGet).Write(w)
		return
	}
	user, _ := auth.UserFrom(r.Context())
	year := ParseYearParam(r.URL.Query(), s.habits.Today())

	progress, err := s.habits.YearlyProgress(r.Context(), user.ID, year)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponse().JSON(progress).Write(w)
}

func (s *Server) handleHabitsForMonth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError(http.MethodGet).Write(w)
		return
	}
	user, _ := auth.UserFrom(r.Context())
	params := ParseMonthParams(r.URL.Query(), s.habits.Today())

	payload, err := s.habits.HabitsForMonth(r.Context(), user.ID, params.Year, params.Month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponse().JSON(payload).Write(w)
}

// handleToggleEntry sets the completion of one habit on one day.
func (s *Server) handleToggleEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError(http.MethodPost).Write(w)
		return
	}
	user, _ := auth.UserFrom(r.Context())

	req, err := parseToggleRequest(w, r, user.ID)
	if err != nil {
		s.metrics.Toggle(toggleOutcome(err))
		writeServiceError(w, r, err)
		return
	}

	result, err := s.habits.ToggleEntry(r.Context(), req)
	s.metrics.Toggle(toggleOutcome(err))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponse().JSON(result).Write(w)
}

func parseToggleRequest(w http.ResponseWriter, r *http.Request, userID int64) (services.ToggleRequest, error) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		return services.ToggleRequest{}, core.InvalidInput("invalid request body")
	}

	rawID := p.Get("habit_id")
	if rawID == "" {
		rawID = p.Get("id")
	}
	if rawID == "" {
		return services.ToggleRequest{}, core.InvalidInput("habit_id is required")
	}
	habitID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || habitID <= 0 {
		return services.ToggleRequest{}, core.InvalidInput("invalid habit_id")
	}

	if !p.Has("completed") {
		return services.ToggleRequest{}, core.InvalidInput("completed is required")
	}
	completed := p.Bool("completed")

	date, err := ParseOptionalDate(p.Get("date"))
	if err != nil {
		return services.ToggleRequest{}, err
	}

	return services.ToggleRequest{
		UserID:    userID,
		HabitID:   habitID,
		Date:      date,
		Completed: &completed,
	}, nil
}

// handleJournal reads the entry on GET and upserts it on POST.
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	switch r.Method {
	case http.MethodGet:
		date, err := ParseOptionalDate(r.URL.Query().Get("date"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		payload, err := s.habits.GetJournal(r.Context(), user.ID, date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		NewResponse().JSON(payload).Write(w)

	case http.MethodPost:
		p := NewRequestBodyParser(w, r)
		if err := p.Parse(); err != nil {
			ErrorResponse(http.StatusBadRequest, "invalid request body").Write(w)
			return
		}
		date, err := ParseOptionalDate(p.Get("date"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		payload, err := s.habits.UpsertJournal(r.Context(), user.ID, date, p.Text("text"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		NewResponse().JSON(payload).Write(w)

	default:
		MethodNotAllowedError(http.MethodGet, http.MethodPost).Write(w)
	}
}
