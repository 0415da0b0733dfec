// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/fixoo/internal/platform/constants"
	"github.com/taibuivan/fixoo/internal/platform/middleware"
	requestutil "github.com/taibuivan/fixoo/internal/platform/request"
	"github.com/taibuivan/fixoo/internal/platform/respond"
	"github.com/taibuivan/fixoo/internal/platform/sec"
	"github.com/taibuivan/fixoo/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// This handler is a thin transport layer: it decodes and validates input,
// calls [Service], and shapes the token response and refresh cookie.
type Handler struct {
	authService *Service
	secure      bool
}

// NewHandler constructs a new [Handler]. secureCookies should be false only for
// plain-HTTP development servers.
func NewHandler(service *Service, secureCookies bool) *Handler {
	return &Handler{authService: service, secure: secureCookies}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /register/otp        : Sends a registration code.
//   - POST /register            : Creates an account and opens a session.
//   - POST /login               : Opens a session.
//   - POST /refresh-token       : Rotates the refresh token.
//   - POST /reset-password/otp  : Sends a recovery code.
//   - POST /reset-password      : Replaces the password.
//   - POST /logout              : Revokes every session of the caller.
//   - GET  /me                  : Returns the caller's account.
//   - POST /change-password     : Replaces the caller's password.
//   - POST /users/{userID}/revoke-sessions : Admin revocation.
//   - POST /users/{userID}/role            : Admin role change.
//
// sendGuards wrap only the two endpoints that trigger an SMS.
func (handler *Handler) Routes(sendGuards ...func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()

	// SMS-triggering endpoints
	router.Group(func(r chi.Router) {
		r.Use(sendGuards...)
		r.Post("/register/otp", handler.sendRegisterOTP)
		r.Post("/reset-password/otp", handler.sendResetOTP)
	})

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh-token", handler.refresh)
	router.Post("/reset-password", handler.resetPassword)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/logout", handler.logout)
		r.Get("/me", handler.me)
		r.Post("/change-password", handler.changePassword)
	})

	// Administrative endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(sec.RoleAdmin))
		r.Post("/users/{userID}/revoke-sessions", handler.revokeSessions)
		r.Post("/users/{userID}/role", handler.changeRole)
	})

	return router
}

// # Request Payloads

type phoneRequest struct {
	Phone string `json:"phone"`
}

type registerRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Code     string `json:"code"`
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type resetPasswordRequest struct {
	Phone       string `json:"phone"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// # OTP Delivery

/*
SendRegisterOTP sends a registration code to an unregistered phone.

POST /api/v1/auth/register/otp

Response:
  - 200: Message: Code sent
  - 409: ALREADY_EXISTS: Phone is registered
  - 429: RATE_LIMITED: Resend interval not elapsed (Retry-After set)
  - 500: DELIVERY_FAILED: SMS gateway failure
*/
func (handler *Handler) sendRegisterOTP(writer http.ResponseWriter, request *http.Request) {
	input, ok := decodePhone(writer, request)
	if !ok {
		return
	}

	if err := handler.authService.SendRegisterOTP(request.Context(), input.Phone); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{FieldMessage: "Verification code sent"})
}

/*
SendResetOTP sends a recovery code to a registered phone.

POST /api/v1/auth/reset-password/otp

Response:
  - 200: Message: Code sent
  - 404: NOT_FOUND: Phone is not registered
  - 429: RATE_LIMITED: Resend interval not elapsed (Retry-After set)
*/
func (handler *Handler) sendResetOTP(writer http.ResponseWriter, request *http.Request) {
	input, ok := decodePhone(writer, request)
	if !ok {
		return
	}

	if err := handler.authService.SendResetOTP(request.Context(), input.Phone); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{FieldMessage: "Verification code sent"})
}

// # Session Entry Points

/*
Register creates a new account from a verified code.

POST /api/v1/auth/register

Request:
  - Body: registerRequest (Phone, Password, FullName, Code)

Response:
  - 201: Token response with the created user
  - 400: INVALID_OTP or VALIDATION_ERROR
  - 409: ALREADY_EXISTS
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldPhone, input.Phone).
		Phone(FieldPhone, input.Phone).
		Password(FieldPassword, input.Password, PasswordMinLength).
		Required(FieldFullName, input.FullName).
		MaxLen(FieldFullName, input.FullName, FullNameMaxLength).
		Digits(FieldCode, input.Code, OTPLength)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Register(request.Context(), RegisterInput{
		Phone:    input.Phone,
		Password: input.Password,
		FullName: input.FullName,
		Code:     input.Code,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, http.StatusCreated, session)
}

/*
Login authenticates a phone and password pair.

POST /api/v1/auth/login

Response:
  - 200: Token response
  - 401: INVALID_CREDENTIALS: Unknown phone or wrong password
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldPhone, input.Phone).
		Phone(FieldPhone, input.Phone).
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Login(request.Context(), LoginInput{
		Phone:    input.Phone,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, http.StatusOK, session)
}

/*
Refresh rotates a refresh token.

POST /api/v1/auth/refresh-token

Description: The token is read from the JSON body, then the refresh cookie,
then an 'Authorization: Bearer' header. An empty body is accepted for
cookie-only clients. A bearer that is not a refresh token is rejected like
any other invalid token.

Response:
  - 200: Token response with the rotated pair
  - 403: ACCESS_DENIED: Any invalid, expired or replayed token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest

	if request.ContentLength != 0 {
		if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	if input.RefreshToken == "" {
		if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
			input.RefreshToken = cookie.Value
		}
	}

	if input.RefreshToken == "" {
		input.RefreshToken, _ = middleware.BearerToken(request)
	}

	if input.RefreshToken == "" {
		respond.Error(writer, request, validate.RequiredError(FieldRefreshToken, "is required"))
		return
	}

	session, err := handler.authService.Refresh(request.Context(), input.RefreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, http.StatusOK, session)
}

/*
Logout revokes every refresh record of the caller and clears the cookie.

POST /api/v1/auth/logout

Response:
  - 204: No Content
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Logout(request.Context(), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.SetCookie(writer, handler.refreshCookie("", time.Time{}, -1))
	respond.NoContent(writer)
}

// # Password Recovery

/*
ResetPassword replaces the password using a recovery code.

POST /api/v1/auth/reset-password

Response:
  - 200: Message: Password updated
  - 400: INVALID_OTP or VALIDATION_ERROR
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldPhone, input.Phone).
		Phone(FieldPhone, input.Phone).
		Digits(FieldCode, input.Code, OTPLength).
		Password(FieldNewPassword, input.NewPassword, PasswordMinLength)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err := handler.authService.ResetPassword(request.Context(), ResetPasswordInput{
		Phone:       input.Phone,
		Code:        input.Code,
		NewPassword: input.NewPassword,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{FieldMessage: "Password updated successfully"})
}

// # Account

// me returns the caller's account. GET /api/v1/auth/me
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Profile(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
ChangePassword updates the authenticated user's password.

POST /api/v1/auth/change-password

Response:
  - 200: Message: Password changed
  - 401: INVALID_CREDENTIALS: Wrong current password
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword).
		Password(FieldNewPassword, input.NewPassword, PasswordMinLength)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.authService.ChangePassword(request.Context(), userID, input.CurrentPassword, input.NewPassword)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{FieldMessage: "Password changed successfully"})
}

/*
RevokeSessions logs a user out of every device.

POST /api/v1/auth/users/{userID}/revoke-sessions

Response:
  - 200: Number of revoked records
  - 403: FORBIDDEN: Caller is below ADMIN or may not manage the target
  - 404: NOT_FOUND: Unknown user
*/
func (handler *Handler) revokeSessions(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	userID, err := requestutil.Int64Param(request, "userID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	count, err := handler.authService.RevokeSessions(request.Context(), actorID, userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]int64{FieldRevoked: count})
}

/*
ChangeRole assigns a new role to a user.

POST /api/v1/auth/users/{userID}/role

Request:
  - Body: changeRoleRequest (Role)

Response:
  - 200: The updated user
  - 400: VALIDATION_ERROR: Unknown role
  - 403: FORBIDDEN: Role or target outside the caller's hierarchy
  - 404: NOT_FOUND: Unknown user
*/
func (handler *Handler) changeRole(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	userID, err := requestutil.Int64Param(request, "userID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changeRoleRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	role := sec.UserRole(strings.ToUpper(strings.TrimSpace(input.Role)))
	if !role.IsValid() {
		respond.Error(writer, request, validate.RequiredError(FieldRole, "Unknown role"))
		return
	}

	user, err := handler.authService.ChangeRole(request.Context(), actorID, userID, role)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// # Helpers

// decodePhone reads and validates a {"phone"} body. It writes the error itself.
func decodePhone(writer http.ResponseWriter, request *http.Request) (phoneRequest, bool) {
	var input phoneRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return input, false
	}

	validator := &validate.Validator{}
	validator.Required(FieldPhone, input.Phone).Phone(FieldPhone, input.Phone)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return input, false
	}

	return input, true
}

// writeSession renders the token response and sets the refresh cookie.
func (handler *Handler) writeSession(writer http.ResponseWriter, status int, session *Session) {
	tokens := session.Tokens
	http.SetCookie(writer, handler.refreshCookie(tokens.RefreshToken, tokens.RefreshExpiresAt, 0))
	respond.NoStore(writer)

	respond.JSON(writer, status, respond.SuccessEnvelope{Data: map[string]any{
		FieldAccessToken:  tokens.AccessToken,
		FieldRefreshToken: tokens.RefreshToken,
		FieldTokenType:    "Bearer",
		FieldExpiresIn:    int64(session.ExpiresIn / time.Second),
		FieldUser:         session.User,
	}})
}

// refreshCookie builds the HttpOnly refresh cookie. maxAge -1 deletes it.
func (handler *Handler) refreshCookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    value,
		Path:     constants.RefreshTokenCookiePath,
		Expires:  expires,
		MaxAge:   maxAge,
		Secure:   handler.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
