// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/taibuivan/fixoo/internal/platform/apperr"
	"github.com/taibuivan/fixoo/internal/platform/ctxutil"
	"github.com/taibuivan/fixoo/internal/platform/sec"
	"github.com/taibuivan/fixoo/pkg/phone"
)

// tracer emits one span per Session Manager flow. It is a no-op until
// tracing.Setup registers a provider.
var tracer = otel.Tracer("github.com/taibuivan/fixoo/internal/users/auth")

// # Contracts & Types

// TokenIssuer defines the contract for minting and checking JWT pairs.
// [*sec.TokenIssuer] is the production implementation.
type TokenIssuer interface {
	Mint(context stdctx.Context, subject sec.Subject) (*sec.TokenPair, error)
	VerifyRefreshToken(tokenString string) (*sec.AuthClaims, error)
	AccessTTL() time.Duration
}

// ServiceDependencies groups every collaborator of [Service].
type ServiceDependencies struct {
	Users       UserRepository
	OTP         *OTPEngine
	Credentials *CredentialStore
	Tokens      TokenIssuer
	Ledger      *RefreshLedger
	Logger      *slog.Logger

	// RevokeSessionsOnReset makes ResetPassword also revoke every refresh record.
	RevokeSessionsOnReset bool
}

// Service is the Session Manager. It orchestrates registration, login,
// rotation, logout and password recovery on top of the OTP engine, the
// credential store, the token issuer and the refresh ledger.
//
// # Review Process
//
// This service is critical for security. Any change to error mapping here can
// open an enumeration or replay side channel.
type Service struct {
	users                 UserRepository
	otp                   *OTPEngine
	credentials           *CredentialStore
	tokens                TokenIssuer
	ledger                *RefreshLedger
	logger                *slog.Logger
	revokeSessionsOnReset bool
}

// NewService constructs a new [Service].
func NewService(deps ServiceDependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		users:                 deps.Users,
		otp:                   deps.OTP,
		credentials:           deps.Credentials,
		tokens:                deps.Tokens,
		ledger:                deps.Ledger,
		logger:                logger,
		revokeSessionsOnReset: deps.RevokeSessionsOnReset,
	}
}

// Session is the result of a successful authentication. Never persisted.
type Session struct {
	Tokens *sec.TokenPair
	User   *User

	// ExpiresIn is the access token lifetime reported to clients.
	ExpiresIn time.Duration
}

// # Registration Flow

/*
SendRegisterOTP issues a registration code for an unregistered phone.

Parameters:
  - context: context.Context
  - rawPhone: string

Returns:
  - error: apperr.AlreadyExists, apperr.RateLimited or apperr.DeliveryFailed
*/
func (service *Service) SendRegisterOTP(context stdctx.Context, rawPhone string) (err error) {
	canonical := phone.Normalize(rawPhone)
	context, span := startSpan(context, "auth.SendRegisterOTP")
	defer func() { endSpan(span, err) }()

	if _, err := service.users.FindByPhone(context, canonical); err == nil {
		return apperr.AlreadyExists("Phone number is already registered")
	} else if !apperr.HasCode(err, apperr.CodeNotFound) {
		return err
	}

	return service.otp.Issue(context, canonical)
}

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Phone    string
	Password string
	FullName string
	Code     string
}

/*
Register verifies the code and creates a STUDENT account.

Description: The existence check runs before the code is verified, so a second
registration of the same phone always reports AlreadyExists. The code is
cleared only after the account row exists; any earlier failure leaves it valid
for a retry. A concurrent registration that slips past the check is stopped by
the unique phone constraint.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *Session: New account and its first token pair
  - error: apperr.AlreadyExists, apperr.InvalidOTP or internal failures
*/
func (service *Service) Register(context stdctx.Context, input RegisterInput) (session *Session, err error) {
	canonical := phone.Normalize(input.Phone)
	context, span := startSpan(context, "auth.Register")
	defer func() { endSpan(span, err) }()

	// 1. Identity must not exist
	if _, err := service.users.FindByPhone(context, canonical); err == nil {
		return nil, apperr.AlreadyExists("Phone number is already registered")
	} else if !apperr.HasCode(err, apperr.CodeNotFound) {
		return nil, err
	}

	// 2. Code must match (not consumed yet)
	if err := service.otp.Verify(context, canonical, input.Code); err != nil {
		return nil, err
	}

	// 3. Persist the account with the default role
	digest, err := service.credentials.Hash(input.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := &User{
		Phone:        canonical,
		PasswordHash: digest,
		FullName:     input.FullName,
		Role:         sec.DefaultRole,
	}
	if err := service.users.Create(context, user); err != nil {
		return nil, err
	}

	// 4. Consume the code
	service.clearOTP(context, canonical)

	// 5. First session
	session, err = service.issueSession(context, user)
	if err != nil {
		return nil, err
	}

	ctxutil.GetLogger(context).InfoContext(context, "user_registered",
		slog.Int64("user_id", user.ID),
		slog.String("phone", phone.Mask(canonical)),
	)
	return session, nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Phone    string
	Password string
}

/*
Login verifies a password and opens a new session.

Description: Unknown phones and wrong passwords return the same error, and an
unknown phone still pays one hash verification so response time does not
reveal which case occurred.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *Session: Token pair carrying the stored role
  - error: apperr.InvalidCredentials or internal failures
*/
func (service *Service) Login(context stdctx.Context, input LoginInput) (session *Session, err error) {
	canonical := phone.Normalize(input.Phone)
	context, span := startSpan(context, "auth.Login")
	defer func() { endSpan(span, err) }()

	user, err := service.users.FindByPhone(context, canonical)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			service.credentials.VerifyDummy(input.Password)
			return nil, apperr.InvalidCredentials().WithCause(err)
		}
		return nil, err
	}

	if !service.credentials.Verify(user.PasswordHash, input.Password) {
		return nil, apperr.InvalidCredentials().WithCause(errCredentialMismatch)
	}

	return service.issueSession(context, user)
}

// # Session Management

/*
Refresh rotates a refresh token into a new pair.

Description: Signature and expiry are checked first, then the ledger record is
redeemed (deleted), then the account is reloaded so role changes take effect.
Every failure on this path becomes the same AccessDenied; the real reason is
logged as refresh_denied.

Parameters:
  - context: context.Context
  - rawRefreshToken: string

Returns:
  - *Session: Rotated pair
  - error: apperr.AccessDenied
*/
func (service *Service) Refresh(context stdctx.Context, rawRefreshToken string) (session *Session, err error) {
	context, span := startSpan(context, "auth.Refresh")
	defer func() { endSpan(span, err) }()

	session, cause := service.rotate(context, rawRefreshToken)
	if cause != nil {
		ctxutil.GetLogger(context).WarnContext(context, "refresh_denied", slog.Any("reason", cause))
		return nil, apperr.AccessDenied().WithCause(cause)
	}

	return session, nil
}

// rotate performs the refresh chain and returns the first failure unmasked.
func (service *Service) rotate(context stdctx.Context, rawRefreshToken string) (*Session, error) {
	claims, err := service.tokens.VerifyRefreshToken(rawRefreshToken)
	if err != nil {
		return nil, err
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	if _, err := service.ledger.Redeem(context, userID, rawRefreshToken); err != nil {
		return nil, err
	}

	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	return service.issueSession(context, user)
}

/*
Logout revokes every refresh record of userID.

Description: Idempotent; a user with no records still succeeds. Access tokens
already issued stay valid until they expire.

Parameters:
  - context: context.Context
  - userID: int64

Returns:
  - error: Storage failures only
*/
func (service *Service) Logout(context stdctx.Context, userID int64) (err error) {
	context, span := startSpan(context, "auth.Logout", attribute.Int64("user_id", userID))
	defer func() { endSpan(span, err) }()

	if _, err := service.ledger.RevokeAll(context, userID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

/*
RevokeSessions is the administrative form of Logout for any account the actor
may manage.

Parameters:
  - context: context.Context
  - actorID: int64 (the administrator)
  - targetID: int64

Returns:
  - int64: Number of revoked records
  - error: apperr.NotFound for unknown accounts, apperr.Forbidden outside the hierarchy, or storage failures
*/
func (service *Service) RevokeSessions(context stdctx.Context, actorID, targetID int64) (count int64, err error) {
	context, span := startSpan(context, "auth.RevokeSessions",
		attribute.Int64("actor_id", actorID),
		attribute.Int64("user_id", targetID),
	)
	defer func() { endSpan(span, err) }()

	actor, err := service.actor(context, actorID)
	if err != nil {
		return 0, err
	}
	if _, err := service.managedTarget(context, actor, targetID); err != nil {
		return 0, err
	}

	count, err = service.ledger.RevokeAll(context, targetID)
	if err != nil {
		return 0, apperr.Internal(err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "sessions_revoked",
		slog.Int64("actor_id", actorID),
		slog.Int64("user_id", targetID),
		slog.Int64("count", count),
	)
	return count, nil
}

/*
ChangeRole assigns role to the target account.

Description: The actor is reloaded so a demotion applies before its access
token expires. SUPERADMIN cannot be granted, ADMIN is granted only by a
SUPERADMIN, and an ADMIN manages accounts below ADMIN only. Issued tokens keep
the old role until the next refresh.

Parameters:
  - context: context.Context
  - actorID: int64 (the administrator)
  - targetID: int64
  - role: sec.UserRole

Returns:
  - *User: The updated account
  - error: apperr.Forbidden, apperr.NotFound or storage failures
*/
func (service *Service) ChangeRole(context stdctx.Context, actorID, targetID int64, role sec.UserRole) (user *User, err error) {
	context, span := startSpan(context, "auth.ChangeRole",
		attribute.Int64("actor_id", actorID),
		attribute.Int64("user_id", targetID),
		attribute.String("role", string(role)),
	)
	defer func() { endSpan(span, err) }()

	// 1. Actor must be allowed to grant the role at all
	actor, err := service.actor(context, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanAssign(role) {
		return nil, apperr.Forbidden(fmt.Sprintf("Role %s cannot be assigned by %s", role, actor.Role))
	}

	// 2. Target must exist and sit below the actor
	target, err := service.managedTarget(context, actor, targetID)
	if err != nil {
		return nil, err
	}

	// 3. Persist and return the fresh row
	if err := service.users.UpdateRole(context, target.ID, role); err != nil {
		return nil, err
	}
	user, err = service.users.FindByID(context, target.ID)
	if err != nil {
		return nil, err
	}

	ctxutil.GetLogger(context).InfoContext(context, "role_changed",
		slog.Int64("actor_id", actorID),
		slog.Int64("user_id", target.ID),
		slog.String("from", string(target.Role)),
		slog.String("to", string(role)),
	)
	return user, nil
}

// actor loads the acting administrator. A deleted actor is forbidden rather
// than not found so the target lookup is never confused with it.
func (service *Service) actor(context stdctx.Context, actorID int64) (*User, error) {
	actor, err := service.users.FindByID(context, actorID)
	if apperr.HasCode(err, apperr.CodeNotFound) {
		return nil, apperr.Forbidden("Acting account no longer exists").WithCause(err)
	}
	return actor, err
}

// managedTarget loads targetID and checks that actor may manage it.
func (service *Service) managedTarget(context stdctx.Context, actor *User, targetID int64) (*User, error) {
	target, err := service.users.FindByID(context, targetID)
	if err != nil {
		return nil, err
	}

	if !actor.Role.CanManage(target.Role) {
		return nil, apperr.Forbidden(fmt.Sprintf("%s cannot manage a %s account", actor.Role, target.Role))
	}
	return target, nil
}

// # Password Recovery

/*
SendResetOTP issues a recovery code for a registered phone.

Parameters:
  - context: context.Context
  - rawPhone: string

Returns:
  - error: apperr.NotFound, apperr.RateLimited or apperr.DeliveryFailed
*/
func (service *Service) SendResetOTP(context stdctx.Context, rawPhone string) (err error) {
	canonical := phone.Normalize(rawPhone)
	context, span := startSpan(context, "auth.SendResetOTP")
	defer func() { endSpan(span, err) }()

	if _, err := service.users.FindByPhone(context, canonical); err != nil {
		return err
	}

	return service.otp.Issue(context, canonical)
}

// ResetPasswordInput carries a recovery attempt.
type ResetPasswordInput struct {
	Phone       string
	Code        string
	NewPassword string
}

/*
ResetPassword verifies the code and replaces the password.

Description: The code is cleared only after the new hash is persisted. When
RevokeSessionsOnReset is set, every refresh record is revoked as well so a
stolen refresh token does not survive the reset; a revocation failure leaves
the code in place so the same request can be retried.

Parameters:
  - context: context.Context
  - input: ResetPasswordInput

Returns:
  - error: apperr.InvalidOTP, apperr.NotFound or internal failures
*/
func (service *Service) ResetPassword(context stdctx.Context, input ResetPasswordInput) (err error) {
	canonical := phone.Normalize(input.Phone)
	context, span := startSpan(context, "auth.ResetPassword")
	defer func() { endSpan(span, err) }()

	// 1. Code must match
	if err := service.otp.Verify(context, canonical, input.Code); err != nil {
		return err
	}

	// 2. Identity must still exist
	user, err := service.users.FindByPhone(context, canonical)
	if err != nil {
		return err
	}

	// 3. Persist the new hash
	digest, err := service.credentials.Hash(input.NewPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := service.users.UpdatePassword(context, user.ID, digest); err != nil {
		return err
	}

	// 4. Optional session revocation, before the code is spent so a retry works
	if service.revokeSessionsOnReset {
		if _, err := service.ledger.RevokeAll(context, user.ID); err != nil {
			return apperr.Internal(err)
		}
	}

	// 5. Consume the code
	service.clearOTP(context, canonical)

	ctxutil.GetLogger(context).InfoContext(context, "password_reset",
		slog.Int64("user_id", user.ID),
		slog.Bool("sessions_revoked", service.revokeSessionsOnReset),
	)
	return nil
}

// # Account

/*
ChangePassword updates the password of an authenticated account.

Parameters:
  - context: context.Context
  - userID: int64
  - currentPassword: string
  - newPassword: string

Returns:
  - error: apperr.InvalidCredentials on a wrong current password, or storage failures
*/
func (service *Service) ChangePassword(context stdctx.Context, userID int64, currentPassword, newPassword string) (err error) {
	context, span := startSpan(context, "auth.ChangePassword", attribute.Int64("user_id", userID))
	defer func() { endSpan(span, err) }()

	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return err
	}

	if !service.credentials.Verify(user.PasswordHash, currentPassword) {
		return apperr.InvalidCredentials().WithCause(errCredentialMismatch)
	}

	digest, err := service.credentials.Hash(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}

	return service.users.UpdatePassword(context, userID, digest)
}

// Profile returns the account behind an access token.
func (service *Service) Profile(context stdctx.Context, userID int64) (*User, error) {
	return service.users.FindByID(context, userID)
}

// # Helpers

// issueSession mints a pair for user and records its refresh token.
func (service *Service) issueSession(context stdctx.Context, user *User) (*Session, error) {
	pair, err := service.tokens.Mint(context, sec.Subject{
		UserID: user.ID,
		Phone:  user.Phone,
		Role:   user.Role,
	})
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_mint_failed: %w", err))
	}

	if _, err := service.ledger.Store(context, user.ID, pair.RefreshToken); err != nil {
		return nil, apperr.Internal(err)
	}

	return &Session{Tokens: pair, User: user, ExpiresIn: service.tokens.AccessTTL()}, nil
}

// clearOTP consumes a code after its downstream effect succeeded. A failure is
// logged only: the effect already happened and the code expires on its own.
func (service *Service) clearOTP(context stdctx.Context, canonical string) {
	if err := service.otp.Clear(context, canonical); err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "otp_clear_failed",
			slog.String("phone", phone.Mask(canonical)),
			slog.Any("error", err),
		)
	}
}

// startSpan opens a flow span.
func startSpan(context stdctx.Context, name string, attributes ...attribute.KeyValue) (stdctx.Context, trace.Span) {
	return tracer.Start(context, name, trace.WithAttributes(attributes...))
}

// endSpan records err on span and closes it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorCode(err))
	}
	span.End()
}

// errorCode returns the AppError code of err, or a generic label.
func errorCode(err error) string {
	if appError := apperr.As(err); appError != nil {
		return appError.Code
	}
	return apperr.CodeInternal
}
