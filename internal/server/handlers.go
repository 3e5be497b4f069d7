package server

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
)

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}
	res, err := s.engine.Register(r.Context(), authcore.RegisterRequest{
		Email:    body.Email,
		Username: body.Username,
		Password: body.Password,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"account_id": res.AccountID})
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := s.engine.VerifyEmail(r.Context(), body.Email, body.Code); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resendVerification(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := s.engine.ResendVerification(r.Context(), body.Email); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
		Code       string `json:"code"`
	}
	if !decode(w, r, &body) {
		return
	}
	res, err := s.engine.Login(r.Context(), authcore.LoginRequest{
		Identifier: body.Identifier,
		Password:   body.Password,
		Code:       body.Code,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens(res.Tokens))
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decode(w, r, &body) {
		return
	}
	pair, err := s.engine.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens(pair))
}

// logout takes the access token from the Authorization header and an
// optional refresh token from the body.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if r.ContentLength != 0 && !decode(w, r, &body) {
		return
	}
	access, _ := middleware.BearerToken(r.Header.Get("Authorization"))
	if err := s.engine.Logout(r.Context(), access, body.RefreshToken); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := s.engine.ForgotPassword(r.Context(), body.Email); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := s.engine.ResetPassword(r.Context(), body.Token, body.Password); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decode(w, r, &body) {
		return
	}
	pair, err := s.engine.ChangePassword(r.Context(), accountID(r), body.CurrentPassword, body.NewPassword)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens(pair))
}

func (s *Server) startTwoFactor(w http.ResponseWriter, r *http.Request) {
	setup, err := s.engine.StartTwoFactorSetup(r.Context(), accountID(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"secret":           setup.Secret,
		"provisioning_uri": setup.ProvisioningURI,
		"backup_codes":     setup.BackupCodes,
	})
}

type codeBody struct {
	Code string `json:"code"`
}

func (s *Server) activateTwoFactor(w http.ResponseWriter, r *http.Request) {
	var body codeBody
	if !decode(w, r, &body) {
		return
	}
	if err := s.engine.ActivateTwoFactor(r.Context(), accountID(r), body.Code); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) disableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var body codeBody
	if !decode(w, r, &body) {
		return
	}
	if err := s.engine.DisableTwoFactor(r.Context(), accountID(r), body.Code); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) regenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	var body codeBody
	if !decode(w, r, &body) {
		return
	}
	codes, err := s.engine.RegenerateBackupCodes(r.Context(), accountID(r), body.Code)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"backup_codes": codes})
}

func (s *Server) beginOAuth(w http.ResponseWriter, r *http.Request) {
	redirect, err := s.engine.BeginOAuth(r.Context(), r.PathValue("provider"))
	if err != nil {
		s.fail(w, err)
		return
	}
	http.Redirect(w, r, redirect.URL, http.StatusFound)
}

func (s *Server) completeOAuth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("error") != "" {
		s.fail(w, authcore.ErrInvalidCredentials)
		return
	}
	res, err := s.engine.CompleteOAuth(r.Context(), r.PathValue("provider"), q.Get("state"), q.Get("code"))
	if err != nil {
		s.fail(w, err)
		return
	}
	if res.Tokens == nil {
		s.fail(w, errors.New("oauth login returned no tokens"))
		return
	}
	writeJSON(w, http.StatusOK, tokens(res.Tokens))
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	c, _ := authcore.ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": c.AccountID,
		"jti":        c.JTI,
		"expires_at": c.ExpiresAt,
	})
}
