// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/fixoo/internal/platform/migration"
	"github.com/taibuivan/fixoo/internal/platform/sec"
	"github.com/taibuivan/fixoo/internal/platform/sqlite"
)

// testCode is the code every fixture engine generates.
const testCode = "482913"

// cheapParams keeps argon2 fast in tests while exercising the same code path.
var cheapParams = sec.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// # Clock

// testClock is a settable time source shared by every fixture component.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (clock *testClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

func (clock *testClock) Advance(step time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = clock.now.Add(step)
}

// # SMS

type sentMessage struct {
	Phone   string
	Message string
}

// recordingSender captures outgoing SMS and can be told to fail.
type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (sender *recordingSender) Send(_ context.Context, phone, message string) error {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	if sender.err != nil {
		return sender.err
	}
	sender.sent = append(sender.sent, sentMessage{Phone: phone, Message: message})
	return nil
}

func (sender *recordingSender) Count() int {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	return len(sender.sent)
}

func (sender *recordingSender) Last() sentMessage {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.sent) == 0 {
		return sentMessage{}
	}
	return sender.sent[len(sender.sent)-1]
}

var errGatewayDown = errors.New("gateway down")

// # Database

// openTestDB migrates a fresh sqlite file and opens it.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixoo.db")
	require.NoError(t, migration.RunUp(migration.Options{Driver: "sqlite", Target: path}, discardLogger))

	db, err := sqlite.Open(context.Background(), path, discardLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// # Fixture

// fixture wires a complete Session Manager over sqlite and the memory store.
type fixture struct {
	clock      *testClock
	db         *sql.DB
	users      *SQLiteUserRepository
	tokens     *SQLiteRefreshTokenRepository
	challenges *MemoryChallengeStore
	sender     *recordingSender
	otp        *OTPEngine
	ledger     *RefreshLedger
	issuer     *sec.TokenIssuer
	service    *Service
}

// fixtureSettings collects what a fixtureOption may change before wiring.
type fixtureSettings struct {
	deps   *ServiceDependencies
	ledger *LedgerConfig
	tokens func(RefreshTokenRepository) RefreshTokenRepository
}

type fixtureOption func(*fixtureSettings)

func withoutRevokeOnReset() fixtureOption {
	return func(settings *fixtureSettings) { settings.deps.RevokeSessionsOnReset = false }
}

func withMaxSessions(limit int) fixtureOption {
	return func(settings *fixtureSettings) { settings.ledger.MaxSessions = limit }
}

// withTokenRepository wraps the ledger's repository, e.g. to inject failures.
func withTokenRepository(wrap func(RefreshTokenRepository) RefreshTokenRepository) fixtureOption {
	return func(settings *fixtureSettings) { settings.tokens = wrap }
}

// failingRevoker fails DeleteAllForUser while fail is set.
type failingRevoker struct {
	RefreshTokenRepository
	fail bool
}

func (repository *failingRevoker) DeleteAllForUser(context context.Context, userID int64) (int64, error) {
	if repository.fail {
		return 0, errors.New("connection reset")
	}
	return repository.RefreshTokenRepository.DeleteAllForUser(context, userID)
}

func newFixture(t *testing.T, options ...fixtureOption) *fixture {
	t.Helper()

	clock := newTestClock()
	db := openTestDB(t)

	f := &fixture{
		clock:      clock,
		db:         db,
		users:      NewSQLiteUserRepository(db),
		tokens:     NewSQLiteRefreshTokenRepository(db),
		challenges: NewMemoryChallengeStore(clock.Now),
		sender:     &recordingSender{},
	}

	f.otp = NewOTPEngine(f.challenges, f.sender, OTPConfig{
		Generate: func() (string, error) { return testCode, nil },
	}, discardLogger)

	issuer, err := sec.NewTokenIssuer(sec.TokenIssuerConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     AccessTokenTTL,
		RefreshTTL:    RefreshTokenTTL,
		Issuer:        "fixoo.uz",
		Logger:        discardLogger,
		Clock:         clock.Now,
	})
	require.NoError(t, err)
	f.issuer = issuer

	deps := ServiceDependencies{
		Users:                 f.users,
		OTP:                   f.otp,
		Credentials:           NewCredentialStore(sec.NewHasher(cheapParams)),
		Tokens:                issuer,
		Logger:                discardLogger,
		RevokeSessionsOnReset: true,
	}
	ledgerConfig := LedgerConfig{TTL: RefreshTokenTTL, Clock: clock.Now}

	settings := fixtureSettings{deps: &deps, ledger: &ledgerConfig}
	for _, option := range options {
		option(&settings)
	}

	var tokens RefreshTokenRepository = f.tokens
	if settings.tokens != nil {
		tokens = settings.tokens(tokens)
	}

	f.ledger = NewRefreshLedger(tokens, sec.NewHasher(cheapParams), ledgerConfig, discardLogger)
	deps.Ledger = f.ledger
	f.service = NewService(deps)

	return f
}

// register runs the full send-then-register flow and returns the session.
func (f *fixture) register(t *testing.T, phone, password string) *Session {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, f.service.SendRegisterOTP(ctx, phone))

	session, err := f.service.Register(ctx, RegisterInput{
		Phone:    phone,
		Password: password,
		FullName: "Test User",
		Code:     testCode,
	})
	require.NoError(t, err)
	return session
}

// countRecords returns the ledger size of userID.
func (f *fixture) countRecords(t *testing.T, userID int64) int {
	t.Helper()

	var count int
	err := f.db.QueryRow(`SELECT COUNT(*) FROM users_refresh_token WHERE userid = ?1`, userID).Scan(&count)
	require.NoError(t, err)
	return count
}

// setRole writes role straight to the table, bypassing the hierarchy. Used to
// bootstrap the first SUPERADMIN.
func (f *fixture) setRole(t *testing.T, userID int64, role sec.UserRole) {
	t.Helper()

	_, err := f.db.Exec(`UPDATE users_account SET role = ?1 WHERE id = ?2`, string(role), userID)
	require.NoError(t, err)
}
