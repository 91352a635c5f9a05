package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"vizintel/api/internal/model"
)

type createTicketRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	ticket, err := s.tickets.Create(r.Context(), req.UserID, req.Message)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Support ticket created successfully",
		"ticket":  ticket,
	})
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.tickets.ListAll(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (s *Server) handleListSubmitterTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.tickets.ListBySubmitter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (s *Server) handleSetTicketStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}
	ticket, err := s.tickets.SetStatus(r.Context(), chi.URLParam(r, "id"), model.TicketStatus(req.Status))
	if err != nil {
		s.writeServiceError(w, r, err, "Ticket not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Ticket updated successfully",
		"updatedTicket": ticket,
	})
}

func (s *Server) handleDeleteTicket(w http.ResponseWriter, r *http.Request) {
	if err := s.tickets.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err, "Ticket not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Ticket deleted successfully"})
}
