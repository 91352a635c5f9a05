package http

import (
	"fmt"
	"net/http"

	"vizintel/api/internal/model"
	"vizintel/api/internal/services"
)

type userSummary struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type manageUserRequest struct {
	NewPassword   string `json:"newPassword"`
	NewName       string `json:"newname"`
	NewSchoolName string `json:"newschoolName"`
	Suspend       *bool  `json:"suspend"`
}

type manageUserResponse struct {
	Message string        `json:"message"`
	User    model.Account `json:"user"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.accounts.ListUsers(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "No users found")
		return
	}
	out := make([]userSummary, 0, len(users))
	for _, u := range users {
		out = append(out, userSummary{ID: u.ID, Name: u.Name, Email: u.Email})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCountUsers(w http.ResponseWriter, r *http.Request) {
	n, err := s.accounts.CountUsers(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"totalUsers": n})
}

func (s *Server) handleCountRecords(w http.ResponseWriter, r *http.Request) {
	n, err := s.accounts.CountRecords(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"totaldata": n})
}

func (s *Server) handleSearchProfiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	users, err := s.accounts.SearchProfiles(r.Context(), q.Get("email"), q.Get("name"))
	if err != nil {
		s.writeServiceError(w, r, err, "No users found")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleManageUser(w http.ResponseWriter, r *http.Request) {
	var req manageUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := s.accounts.ManageUser(r.Context(), r.URL.Query().Get("email"), services.ManageInput{
		NewPassword:   req.NewPassword,
		NewName:       req.NewName,
		NewSchoolName: req.NewSchoolName,
		Suspend:       req.Suspend,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "No users found")
		return
	}
	writeJSON(w, http.StatusOK, manageUserResponse{
		Message: fmt.Sprintf("User %s updated successfully", user.Email),
		User:    user,
	})
}

func (s *Server) handleTrafficWeek(w http.ResponseWriter, r *http.Request) {
	counts, err := s.traffic.Week(r.Context(), s.now())
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int64{"trafficCounts": counts})
}
