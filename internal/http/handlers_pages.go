package http

import (
	"net/http"
	"strconv"

	"habitual/internal/auth"
	"habitual/internal/core"
	applog "habitual/internal/log"
	"habitual/internal/metrics"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	habits, err := s.habits.ListHabits(r.Context(), user.ID)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List habits failed", applog.FieldError, err)
		http.Error(w, "could not load habits", http.StatusInternalServerError)
		return
	}

	today := s.habits.Today()
	s.render(w, r, http.StatusOK, "home.html", pageData{
		Title:  "Habits",
		User:   &user,
		Habits: habits,
		Today:  today.String(),
		Year:   today.Year(),
		Month:  today.Month(),
	})
}

// handleAddHabit renders the form on GET and creates a habit on POST. JSON
// clients get 201 with the habit, form posts are redirected home.
func (s *Server) handleAddHabit(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	switch r.Method {
	case http.MethodGet:
		s.render(w, r, http.StatusOK, "add_habit.html", pageData{Title: "New habit", User: &user})
		return
	case http.MethodPost:
	default:
		if wantsJSON(r) {
			MethodNotAllowedError(http.MethodGet, http.MethodPost).Write(w)
			return
		}
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		if wantsJSON(r) {
			ErrorResponse(http.StatusBadRequest, "invalid request body").Write(w)
			return
		}
		s.render(w, r, http.StatusBadRequest, "add_habit.html", pageData{Title: "New habit", User: &user, Message: "Invalid request."})
		return
	}

	title := p.Get("title")
	habit, err := s.habits.CreateHabit(r.Context(), user.ID, title)
	if err != nil {
		if p.IsJSON() || wantsJSON(r) {
			writeServiceError(w, r, err)
			return
		}
		msg, _ := core.MessageOf(err)
		s.render(w, r, StatusFor(err), "add_habit.html", pageData{Title: "New habit", User: &user, Message: msg, Value: title})
		return
	}

	if p.IsJSON() || wantsJSON(r) {
		NewResponse().Status(http.StatusCreated).JSON(map[string]any{
			"id":    habit.ID,
			"title": habit.Title,
		}).Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleToggleToday is the form endpoint flipping today's entry.
func (s *Server) handleToggleToday(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	habitID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	_, err = s.habits.ToggleHabitForToday(r.Context(), user.ID, habitID)
	s.metrics.Toggle(toggleOutcome(err))
	if err != nil {
		msg, _ := core.MessageOf(err)
		status := StatusFor(err)
		if status == http.StatusInternalServerError {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentHabits).ErrorContext(r.Context(), "Toggle failed",
				applog.FieldHabitID, habitID,
				applog.FieldOperation, applog.OpToggle,
				applog.FieldError, err)
			msg = "could not update habit"
		}
		http.Error(w, msg, status)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func toggleOutcome(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	switch StatusFor(err) {
	case http.StatusBadRequest:
		return metrics.OutcomeInvalid
	case http.StatusForbidden:
		return metrics.OutcomeForbidden
	case http.StatusNotFound:
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}
