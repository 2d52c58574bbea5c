// AngelaMos | 2026
// fakes_test.go

package auth

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/go-auth/internal/config"
	"github.com/carterperez-dev/templates/go-auth/internal/core"
)

var testSecrets = config.SecretsConfig{
	AccessTokenKey: "k3y-for-signing-access-tokens-in-tests-0123456789",
	SessionKey:     "s3ssion-key-used-only-in-tests-abcdefghijklmnop",
	TokenHashKey:   "h4sh-key-for-refresh-token-digests-qrstuvwxyz",
}

var testJWTConfig = config.JWTConfig{
	AccessTokenExpire:  15 * time.Minute,
	RefreshTokenExpire: 24 * time.Hour,
	Issuer:             "go-auth-test",
	Audience:           "go-auth-test-api",
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCodec(t *testing.T, clock *testClock) *TokenCodec {
	t.Helper()

	codec, err := NewTokenCodec(testSecrets, testJWTConfig, WithClock(clock.Now))
	require.NoError(t, err)
	return codec
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memRepository keeps refresh records in memory. InTx holds one lock for
// the whole callback so concurrent rotations serialize the way row locks
// do in Postgres.
type memRepository struct {
	txMu    sync.Mutex
	mu      sync.Mutex
	records map[string]*RefreshToken
	now     func() time.Time
}

func newMemRepository(now func() time.Time) *memRepository {
	return &memRepository{
		records: make(map[string]*RefreshToken),
		now:     now,
	}
}

func (m *memRepository) InTx(_ context.Context, fn func(Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(m)
}

func (m *memRepository) Create(_ context.Context, token *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token.IssuedAt = m.now()
	stored := *token
	m.records[token.ID] = &stored
	return nil
}

func (m *memRepository) FindByHash(_ context.Context, hash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.TokenHash == hash {
			out := *r
			return &out, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memRepository) FindByID(_ context.Context, id string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := *r
	return &out, nil
}

func (m *memRepository) Revoke(_ context.Context, id string, replacedByID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok || r.IsRevoked() {
		return core.ErrNotFound
	}
	m.revoke(r, replacedByID)
	return nil
}

func (m *memRepository) revoke(r *RefreshToken, replacedByID *string) {
	at := m.now()
	r.RevokedAt = &at
	r.ReplacedByID = replacedByID
}

func (m *memRepository) RevokeFamily(_ context.Context, familyID string) (int64, error) {
	return m.revokeWhere(func(r *RefreshToken) bool { return r.FamilyID == familyID }), nil
}

func (m *memRepository) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	return m.revokeWhere(func(r *RefreshToken) bool { return r.UserID == userID }), nil
}

func (m *memRepository) revokeWhere(match func(*RefreshToken) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, r := range m.records {
		if match(r) && !r.IsRevoked() {
			m.revoke(r, nil)
			n++
		}
	}
	return n
}

func (m *memRepository) ListActiveForUser(_ context.Context, userID string) ([]RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []RefreshToken{}
	for _, r := range m.records {
		if r.UserID == userID && r.IsActiveAt(m.now()) {
			out = append(out, *r)
		}
	}
	return out, nil
}

// get returns a copy of the stored record.
func (m *memRepository) get(id string) *RefreshToken {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := *m.records[id]
	return &out
}

func (m *memRepository) activeInFamily(familyID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, r := range m.records {
		if r.FamilyID == familyID && !r.IsRevoked() {
			n++
		}
	}
	return n
}

// fakeUsers stores users in memory. A user created with a company name
// is only kept when companies accepts the company.
type fakeUsers struct {
	mu        sync.Mutex
	users     map[string]*UserInfo
	companies *fakeCompanies

	verificationHash map[string]string
	resetHash        map[string]string
}

func newFakeUsers(companies *fakeCompanies) *fakeUsers {
	return &fakeUsers{
		users:            make(map[string]*UserInfo),
		companies:        companies,
		verificationHash: make(map[string]string),
		resetHash:        make(map[string]string),
	}
}

func (f *fakeUsers) add(t *testing.T, email, password string) *UserInfo {
	t.Helper()

	hash, err := core.HashPassword(password)
	require.NoError(t, err)

	u := &UserInfo{
		ID:           uuid.New().String(),
		Email:        email,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		PasswordHash: hash,
		Role:         "user",
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}

	f.mu.Lock()
	f.users[u.ID] = u
	f.mu.Unlock()
	return u
}

func (f *fakeUsers) setActive(id string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id].IsActive = active
}

func (f *fakeUsers) snapshot(id string) UserInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.users[id]
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (f *fakeUsers) Create(_ context.Context, in NewUser) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == in.Email {
			return nil, core.ErrDuplicateKey
		}
	}

	u := &UserInfo{
		ID:           uuid.New().String(),
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}

	if in.CompanyName != "" {
		if err := f.companies.createOwned(u.ID, in.CompanyName); err != nil {
			return nil, err
		}
	}
	f.users[u.ID] = u

	out := *u
	return &out, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, userID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[userID]
	if !ok {
		return core.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) SetVerificationToken(_ context.Context, userID, hash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.verificationHash[hash] = userID
	f.users[userID].VerificationExpiresAt = &exp
	return nil
}

func (f *fakeUsers) SetResetToken(_ context.Context, userID, hash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for h, id := range f.resetHash {
		if id == userID {
			delete(f.resetHash, h)
		}
	}
	f.resetHash[hash] = userID
	f.users[userID].ResetExpiresAt = &exp
	return nil
}

func (f *fakeUsers) GetByVerificationToken(_ context.Context, hash string) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.verificationHash[hash]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := *f.users[id]
	return &out, nil
}

func (f *fakeUsers) GetByResetToken(_ context.Context, hash string) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.resetHash[hash]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := *f.users[id]
	return &out, nil
}

func (f *fakeUsers) MarkEmailVerified(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for h, id := range f.verificationHash {
		if id == userID {
			delete(f.verificationHash, h)
		}
	}
	f.users[userID].EmailVerified = true
	f.users[userID].VerificationExpiresAt = nil
	return nil
}

func (f *fakeUsers) ResetPassword(_ context.Context, userID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for h, id := range f.resetHash {
		if id == userID {
			delete(f.resetHash, h)
		}
	}
	f.users[userID].PasswordHash = hash
	f.users[userID].ResetExpiresAt = nil
	return nil
}

type fakeCompanies struct {
	mu          sync.Mutex
	memberships map[string][]Membership
	createErr   error
}

func newFakeCompanies() *fakeCompanies {
	return &fakeCompanies{memberships: make(map[string][]Membership)}
}

func (f *fakeCompanies) join(userID string, m Membership) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberships[userID] = append(f.memberships[userID], m)
}

func (f *fakeCompanies) failCreates(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

func (f *fakeCompanies) createOwned(ownerID, name string) error {
	f.mu.Lock()
	err := f.createErr
	f.mu.Unlock()
	if err != nil {
		return err
	}

	f.join(ownerID, Membership{
		CompanyID:   uuid.New().String(),
		CompanyName: name,
		Role:        "owner",
		Permissions: []string{"company:manage", "members:invite"},
	})
	return nil
}

func (f *fakeCompanies) ListMemberships(_ context.Context, userID string) ([]Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Membership(nil), f.memberships[userID]...), nil
}

func (f *fakeCompanies) GetMembership(_ context.Context, companyID, userID string) (*Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, m := range f.memberships[userID] {
		if m.CompanyID == companyID {
			out := m
			return &out, nil
		}
	}
	return nil, core.ErrNotFound
}

type sentMail struct {
	kind  string
	to    string
	token string
}

// fakeMailer records every message. When err is set each send is still
// recorded as attempted and then fails with err.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) SendVerification(_ context.Context, to, _, token string) error {
	return f.record("verification", to, token)
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, to, _, token string) error {
	return f.record("reset", to, token)
}

func (f *fakeMailer) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeMailer) record(kind, to, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{kind: kind, to: to, token: token})
	return f.err
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeMailer) last() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

type outcome struct {
	operation string
	success   bool
	reason    string
}

type fakeMetrics struct {
	mu       sync.Mutex
	outcomes []outcome
}

func (f *fakeMetrics) AuthSucceeded(operation string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome{operation: operation, success: true})
}

func (f *fakeMetrics) AuthFailed(operation, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome{operation: operation, reason: reason})
}

func (f *fakeMetrics) lastOutcome() outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcomes[len(f.outcomes)-1]
}

// testEnv wires a Service over in-memory fakes.
type testEnv struct {
	clock     *testClock
	codec     *TokenCodec
	repo      *memRepository
	ledger    *Ledger
	users     *fakeUsers
	companies *fakeCompanies
	mailer    *fakeMailer
	metrics   *fakeMetrics
	service   *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := newTestClock()
	codec := newTestCodec(t, clock)
	repo := newMemRepository(clock.Now)
	ledger := NewLedger(repo, codec, discardLogger())
	companies := newFakeCompanies()

	env := &testEnv{
		clock:     clock,
		codec:     codec,
		repo:      repo,
		ledger:    ledger,
		users:     newFakeUsers(companies),
		companies: companies,
		mailer:    &fakeMailer{},
		metrics:   &fakeMetrics{},
	}

	env.service = NewService(ServiceConfig{
		Ledger:          ledger,
		Codec:           codec,
		Users:           env.users,
		Companies:       env.companies,
		Mailer:          env.mailer,
		Metrics:         env.metrics,
		Logger:          discardLogger(),
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        time.Hour,
	})

	return env
}
