package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vizintel/api/internal/model"
)

const uploadField = "excel"

type entriesRequest struct {
	Data []model.Entry `json:"data"`
}

type recordWriteResponse struct {
	Message  string        `json:"message"`
	Data     []model.Entry `json:"data"`
	FileName string        `json:"fileName"`
	ID       string        `json:"_id,omitempty"`
}

func (s *Server) handleListMyRecords(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	records, err := s.records.ListMine(r.Context(), claims.UserID)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleListAllRecords(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.records.ListAll(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "No data found")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleListOwnerRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.records.ListForOwner(r.Context(), claimsFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err, "No data found for this user")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.UploadMaxBytes)

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	record, err := s.records.Import(r.Context(), claims.UserID, header.Filename, header.Header.Get("Content-Type"), body)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, recordWriteResponse{
		Message:  "Excel data uploaded successfully",
		Data:     record.Entries,
		FileName: record.FileName,
		ID:       record.ID,
	})
}

func (s *Server) handleManualEntry(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	req, ok := s.decodeEntries(w, r)
	if !ok {
		return
	}
	record, err := s.records.CreateManual(r.Context(), claims.UserID, req.Data)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, recordWriteResponse{
		Message:  "Manual data added successfully",
		Data:     record.Entries,
		FileName: record.FileName,
		ID:       record.ID,
	})
}

func (s *Server) handleReplaceRecord(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	req, ok := s.decodeEntries(w, r)
	if !ok {
		return
	}
	record, err := s.records.Replace(r.Context(), chi.URLParam(r, "id"), claims.UserID, req.Data)
	if err != nil {
		s.writeServiceError(w, r, err, "Data not found")
		return
	}
	writeJSON(w, http.StatusOK, recordWriteResponse{
		Message:  "Data updated successfully",
		Data:     record.Entries,
		FileName: record.FileName,
	})
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if err := s.records.Delete(r.Context(), chi.URLParam(r, "id"), claims.UserID); err != nil {
		s.writeServiceError(w, r, err, "Data not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Data deleted successfully"})
}

func (s *Server) decodeEntries(w http.ResponseWriter, r *http.Request) (entriesRequest, bool) {
	var req entriesRequest
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.UploadMaxBytes)
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid data format")
		return req, false
	}
	return req, true
}
