package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devaulthq/devault/audit"
	"github.com/devaulthq/devault/credentials"
	"github.com/devaulthq/devault/vault"
)

const minPasswordLength = 8

// invalidCredentials is the single body returned for every login failure.
// Unknown email and wrong password are indistinguishable to the caller.
const invalidCredentials = "invalid credentials"

// Register handles POST /auth/register.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[RegisterRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	hash, err := credentials.HashPassword(req.Password)
	if err != nil {
		a.mapError(w, r, err)
		return
	}

	now := time.Now().UTC()
	user := &vault.User{
		ID:           uuid.New(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Plan:         vault.PlanFree,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateUser(r.Context(), user); err != nil {
		// Registering an email is the one place existence may be disclosed:
		// the caller is claiming it as their own.
		if errors.Is(err, vault.ErrConflict) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		a.mapError(w, r, err)
		return
	}

	access, refresh, err := a.issueSession(w, r, user)
	if err != nil {
		return
	}

	a.trail.Record(r.Context(), audit.Entry{
		ActorID:      &user.ID,
		Action:       audit.ActionAuthRegister,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
	})
	writeJSON(w, http.StatusCreated, AuthResponse{User: toUserResponse(user), AccessToken: access, RefreshToken: refresh})
}

// Login handles POST /auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	ctx := r.Context()

	user, err := a.store.UserByEmail(ctx, req.Email)
	if err != nil {
		a.trail.Record(ctx, audit.Entry{
			Action:   audit.ActionAuthLoginFailed,
			Metadata: map[string]any{"reason": "unknown_email"},
		})
		writeError(w, http.StatusUnauthorized, invalidCredentials)
		return
	}
	if !credentials.VerifyPassword(req.Password, user.PasswordHash) {
		a.trail.Record(ctx, audit.Entry{
			ActorID:  &user.ID,
			Action:   audit.ActionAuthLoginFailed,
			Metadata: map[string]any{"reason": "bad_password"},
		})
		writeError(w, http.StatusUnauthorized, invalidCredentials)
		return
	}

	if user.TwoFactorEnabled {
		pending, err := a.tokens.IssuePending(user.ID)
		if err != nil {
			a.mapError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, TwoFactorChallengeResponse{RequiresTwoFactor: true, TempToken: pending})
		return
	}

	access, refresh, err := a.issueSession(w, r, user)
	if err != nil {
		return
	}
	a.trail.Record(ctx, audit.Entry{
		ActorID:      &user.ID,
		Action:       audit.ActionAuthLogin,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
	})
	writeJSON(w, http.StatusOK, AuthResponse{User: toUserResponse(user), AccessToken: access, RefreshToken: refresh})
}

// LoginTwoFactor handles POST /auth/login/2fa. It is the only endpoint that
// accepts the pending step-up token.
func (a *API) LoginTwoFactor(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	bearer, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || bearer == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	userID, err := a.tokens.ParsePending(bearer)
	if err != nil {
		a.logger.Info("pending token rejected", "error", err)
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	req, ok := decodeJSON[TwoFactorLoginRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}

	ctx := r.Context()
	user, err := a.store.UserByID(ctx, userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !user.TwoFactorEnabled || !credentials.VerifyTOTP(user.TwoFactorSecret, req.Code, time.Now()) {
		a.trail.Record(ctx, audit.Entry{
			ActorID:  &user.ID,
			Action:   audit.ActionAuthLoginFailed,
			Metadata: map[string]any{"reason": "bad_totp"},
		})
		writeError(w, http.StatusUnauthorized, invalidCredentials)
		return
	}

	access, refresh, err := a.issueSession(w, r, user)
	if err != nil {
		return
	}
	a.trail.Record(ctx, audit.Entry{
		ActorID:      &user.ID,
		Action:       audit.ActionAuthLogin,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
		Metadata:     map[string]any{"twoFactor": true},
	})
	writeJSON(w, http.StatusOK, AuthResponse{User: toUserResponse(user), AccessToken: access, RefreshToken: refresh})
}

// issueSession mints an access+refresh pair and stores the refresh token,
// replacing whatever session chain existed before. On failure it has already
// written the error response.
func (a *API) issueSession(w http.ResponseWriter, r *http.Request, user *vault.User) (access, refresh string, err error) {
	access, refresh, err = a.tokens.IssuePair(user.ID)
	if err != nil {
		a.mapError(w, r, err)
		return "", "", err
	}
	if err = a.store.RotateRefreshToken(r.Context(), user.ID, "", refresh); err != nil {
		a.mapError(w, r, err)
		return "", "", err
	}
	return access, refresh, nil
}

// Refresh handles POST /auth/refresh. The presented refresh token must both
// verify and match the stored one; rotation is atomic, so a replayed token
// loses the race and the whole chain dies with a 401.
func (a *API) Refresh(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[RefreshRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	ctx := r.Context()

	userID, err := a.tokens.ParseRefresh(req.RefreshToken)
	if err != nil {
		a.logger.Info("refresh token rejected", "error", err)
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	access, refresh, err := a.tokens.IssuePair(userID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if err := a.store.RotateRefreshToken(ctx, userID, req.RefreshToken, refresh); err != nil {
		a.logger.Info("refresh token rotation refused", "error", err)
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := a.store.UserByID(ctx, userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{User: toUserResponse(user), AccessToken: access, RefreshToken: refresh})
}

// Me handles GET /auth/me.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUserResponse(currentUser(r.Context())))
}

// SetupTwoFactor handles POST /auth/2fa/setup. The secret is stored but the
// factor stays disabled until a code is verified.
func (a *API) SetupTwoFactor(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if user.TwoFactorEnabled {
		writeError(w, http.StatusBadRequest, "two-factor authentication is already enabled")
		return
	}

	secret, err := credentials.GenerateTOTPSecret()
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	user.TwoFactorSecret = secret
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateUser(r.Context(), user); err != nil {
		a.mapError(w, r, err)
		return
	}

	otpauthURL := credentials.OTPAuthURL(secret, user.Email, a.appName)
	qr, err := credentials.TOTPQRCode(otpauthURL)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TwoFactorSetupResponse{Secret: secret, OTPAuthURL: otpauthURL, QRCode: qr})
}

// VerifyTwoFactor handles POST /auth/2fa/verify: a correct code flips the
// factor on.
func (a *API) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[TwoFactorCodeRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	ctx := r.Context()
	user := currentUser(ctx)
	if user.TwoFactorSecret == "" {
		writeError(w, http.StatusBadRequest, "two-factor setup has not been started")
		return
	}
	if !credentials.VerifyTOTP(user.TwoFactorSecret, req.Code, time.Now()) {
		writeError(w, http.StatusBadRequest, "invalid two-factor code")
		return
	}

	user.TwoFactorEnabled = true
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateUser(ctx, user); err != nil {
		a.mapError(w, r, err)
		return
	}
	a.trail.Record(ctx, audit.Entry{
		ActorID:      &user.ID,
		Action:       audit.ActionAuthTwoFAEnable,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
	})
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// DisableTwoFactor handles POST /auth/2fa/disable; it requires a valid
// current code.
func (a *API) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[TwoFactorCodeRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	ctx := r.Context()
	user := currentUser(ctx)
	if !user.TwoFactorEnabled {
		writeError(w, http.StatusBadRequest, "two-factor authentication is not enabled")
		return
	}
	if !credentials.VerifyTOTP(user.TwoFactorSecret, req.Code, time.Now()) {
		writeError(w, http.StatusBadRequest, "invalid two-factor code")
		return
	}

	user.TwoFactorEnabled = false
	user.TwoFactorSecret = ""
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateUser(ctx, user); err != nil {
		a.mapError(w, r, err)
		return
	}
	a.trail.Record(ctx, audit.Entry{
		ActorID:      &user.ID,
		Action:       audit.ActionAuthTwoFADisable,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
	})
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
