package http

import (
	"errors"
	"net/http"

	"vizintel/api/internal/auth"
	"vizintel/api/internal/common"
	"vizintel/api/internal/model"
	"vizintel/api/internal/services"
)

type registerRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	SchoolName string `json:"schoolName"`
}

func (req registerRequest) input() services.RegisterInput {
	return services.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password, SchoolName: req.SchoolName}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type externalLoginRequest struct {
	Token string `json:"token"`
}

type passwordResetRequest struct {
	Email       string `json:"email"`
	SchoolName  string `json:"schoolName"`
	NewPassword string `json:"newPassword"`
}

type loginResponse struct {
	Message   string `json:"message"`
	AuthToken string `json:"authToken"`
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Identity  int    `json:"identity"`
}

type profileResponse struct {
	ID         string       `json:"id"`
	Email      string       `json:"email"`
	Name       string       `json:"name"`
	SchoolName string       `json:"schoolName"`
	AuthType   model.Origin `json:"authType"`
	Identity   int          `json:"identity"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := s.sessions.Register(r.Context(), model.RoleUser, req.input()); err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (s *Server) handleRegisterAdmin(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	// An admin session is optional here; the first admin bootstraps without one.
	caller, _ := s.sessionClaims(r)
	_, err := s.sessions.RegisterAdmin(r.Context(), req.input(), caller)
	switch {
	case errors.Is(err, common.ErrForbidden):
		writeError(w, http.StatusForbidden, "Admin access required")
		return
	case errors.Is(err, common.ErrAlreadyExists):
		writeError(w, http.StatusBadRequest, "Admin already exists")
		return
	case err != nil:
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "SuperAdmin registered successfully"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.passwordLogin(w, r, model.RoleUser, "Login successful")
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	s.passwordLogin(w, r, model.RoleSuperAdmin, "SuperAdmin login successful")
}

func (s *Server) passwordLogin(w http.ResponseWriter, r *http.Request, role model.Role, message string) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	session, err := s.sessions.Login(r.Context(), role, req.Email, req.Password)
	if err != nil {
		s.countLoginFailure(err)
		s.writeServiceError(w, r, err, "")
		return
	}
	s.startSession(w, session, message)
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	s.externalLogin(w, r, model.RoleUser, "User login successful")
}

func (s *Server) handleGoogleAdminLogin(w http.ResponseWriter, r *http.Request) {
	s.externalLogin(w, r, model.RoleSuperAdmin, "SuperAdmin login successful")
}

func (s *Server) externalLogin(w http.ResponseWriter, r *http.Request, role model.Role, message string) {
	var req externalLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid token")
		return
	}
	session, err := s.sessions.LoginExternal(r.Context(), role, req.Token)
	if err != nil {
		s.countLoginFailure(err)
		s.writeServiceError(w, r, err, "")
		return
	}
	s.startSession(w, session, message)
}

func (s *Server) countLoginFailure(err error) {
	reason := "error"
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		reason = "invalid_credentials"
	case errors.Is(err, common.ErrAccountSuspended):
		reason = "suspended"
	case errors.Is(err, common.ErrInvalidExternalToken):
		reason = "invalid_token"
	}
	s.metrics.LoginFailures.WithLabelValues(reason).Inc()
}

func (s *Server) startSession(w http.ResponseWriter, session services.Session, message string) {
	s.setSessionCookie(w, session.Token, int(auth.SessionTTL.Seconds()))
	writeJSON(w, http.StatusOK, loginResponse{
		Message:   message,
		AuthToken: session.Token,
		ID:        session.Account.ID,
		Email:     session.Account.Email,
		Name:      session.Account.Name,
		Identity:  session.Account.Identity(),
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	sameSite := http.SameSiteLaxMode
	if s.cfg.Production {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: sameSite,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.setSessionCookie(w, "", -1)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	account, err := s.sessions.Account(r.Context(), claimsFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err, "Account not found")
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		ID:         account.ID,
		Email:      account.Email,
		Name:       account.Name,
		SchoolName: account.SchoolName,
		AuthType:   account.Origin,
		Identity:   account.Identity(),
	})
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.sessions.ResetPassword(r.Context(), req.Email, req.SchoolName, req.NewPassword); err != nil {
		s.writeServiceError(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}
