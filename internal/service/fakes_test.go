package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/auth"
	"github.com/jborcher/vegfuel/internal/config"
	"github.com/jborcher/vegfuel/internal/mail"
	"github.com/jborcher/vegfuel/internal/model"
)

// =========================================================================
// FAKE USER REPOSITORY
// =========================================================================
//
// fakeUserRepo keeps users in memory and enforces the same uniqueness rules
// as the SQLite schema: email, and (provider, provider_id).

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int

	// beforeCreate runs before each Create; tests use it to simulate a
	// concurrent writer.
	beforeCreate func(user *model.User)
	createCalls  int
	getEmailErr  error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	f.createCalls++
	hook := f.beforeCreate
	f.mu.Unlock()
	if hook != nil {
		hook(user)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertLocked(user)
}

// seed inserts user without running hooks.
func (f *fakeUserRepo) seed(user *model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.insertLocked(user); err != nil {
		panic(err)
	}
}

func (f *fakeUserRepo) insertLocked(user *model.User) error {
	for _, u := range f.users {
		if user.Email != "" && u.Email == user.Email {
			return apperror.AccountConflict("email taken")
		}
		if user.ProviderID != "" && u.Provider == user.Provider && u.ProviderID == user.ProviderID {
			return apperror.AccountConflict("identity taken")
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	if user.Provider == "" {
		user.Provider = model.ProviderEmail
	}
	if user.WeightUnit == "" {
		user.WeightUnit = model.WeightUnitKg
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *u
	return &result, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getEmailErr != nil {
		return nil, f.getEmailErr
	}
	for _, u := range f.users {
		if email != "" && u.Email == email {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", "email")
}

func (f *fakeUserRepo) GetByProviderID(_ context.Context, provider model.Provider, providerID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Provider == provider && u.ProviderID == providerID {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", string(provider)+":"+providerID)
}

func (f *fakeUserRepo) LinkProvider(_ context.Context, userID string, provider model.Provider, providerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.Provider = provider
	u.ProviderID = providerID
	return nil
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

// =========================================================================
// FAKE RESET TOKEN REPOSITORY
// =========================================================================

type fakeResetRepo struct {
	users      *fakeUserRepo
	tokens     map[string]*model.PasswordResetToken
	replaceErr error
}

func newFakeResetRepo(users *fakeUserRepo) *fakeResetRepo {
	return &fakeResetRepo{users: users, tokens: make(map[string]*model.PasswordResetToken)}
}

func (f *fakeResetRepo) Replace(_ context.Context, token *model.PasswordResetToken) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	for k, t := range f.tokens {
		if t.Email == token.Email {
			delete(f.tokens, k)
		}
	}
	stored := *token
	f.tokens[token.Token] = &stored
	return nil
}

func (f *fakeResetRepo) Get(_ context.Context, token string) (*model.PasswordResetToken, error) {
	t, ok := f.tokens[token]
	if !ok {
		return nil, apperror.NotFound("reset token", "redacted")
	}
	result := *t
	return &result, nil
}

func (f *fakeResetRepo) Consume(_ context.Context, token string, passwordHash string, now time.Time) error {
	t, ok := f.tokens[token]
	if !ok || !t.Usable(now) {
		return apperror.InvalidResetToken()
	}

	f.users.mu.Lock()
	defer f.users.mu.Unlock()
	for _, u := range f.users.users {
		if u.Email == t.Email && u.PasswordHash != "" {
			u.PasswordHash = passwordHash
			t.Used = true
			return nil
		}
	}
	return apperror.InvalidResetToken()
}

// =========================================================================
// FAKE NUTRITION REPOSITORIES
// =========================================================================

type fakeFoodLogRepo struct {
	days       map[string][]model.FoodLogEntry // key: userID|date
	replaceErr error
	nextID     int
}

func newFakeFoodLogRepo() *fakeFoodLogRepo {
	return &fakeFoodLogRepo{days: make(map[string][]model.FoodLogEntry)}
}

func dayKey(userID, logDate string) string { return userID + "|" + logDate }

func (f *fakeFoodLogRepo) ListDay(_ context.Context, userID, logDate string) ([]model.FoodLogEntry, error) {
	entries := append([]model.FoodLogEntry(nil), f.days[dayKey(userID, logDate)]...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Position < entries[j].Position })
	return entries, nil
}

func (f *fakeFoodLogRepo) ReplaceDay(_ context.Context, userID, logDate string, entries []model.FoodLogEntry) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	stored := make([]model.FoodLogEntry, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			f.nextID++
			e.ID = fmt.Sprintf("entry-%d", f.nextID)
		}
		e.UserID = userID
		e.LogDate = logDate
		stored[i] = e
	}
	f.days[dayKey(userID, logDate)] = stored
	return nil
}

func (f *fakeFoodLogRepo) DeleteEntry(_ context.Context, userID, logDate, entryID string) error {
	key := dayKey(userID, logDate)
	for i, e := range f.days[key] {
		if e.ID == entryID {
			f.days[key] = append(f.days[key][:i], f.days[key][i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("log entry", entryID)
}

func (f *fakeFoodLogRepo) ClearDay(_ context.Context, userID, logDate string) error {
	delete(f.days, dayKey(userID, logDate))
	return nil
}

type fakeMixtureRepo struct {
	items  []*model.Mixture
	nextID int
}

func (f *fakeMixtureRepo) List(_ context.Context, userID string) ([]model.Mixture, error) {
	var out []model.Mixture
	for _, m := range f.items {
		if m.UserID == userID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMixtureRepo) find(userID string, match func(*model.Mixture) bool) *model.Mixture {
	for _, m := range f.items {
		if m.UserID == userID && match(m) {
			return m
		}
	}
	return nil
}

func (f *fakeMixtureRepo) GetByID(_ context.Context, userID, id string) (*model.Mixture, error) {
	m := f.find(userID, func(m *model.Mixture) bool { return m.ID == id })
	if m == nil {
		return nil, apperror.NotFound("mixture", id)
	}
	result := *m
	return &result, nil
}

func (f *fakeMixtureRepo) GetByName(_ context.Context, userID, name string) (*model.Mixture, error) {
	m := f.find(userID, func(m *model.Mixture) bool { return m.Name == name })
	if m == nil {
		return nil, apperror.NotFound("mixture", name)
	}
	result := *m
	return &result, nil
}

func (f *fakeMixtureRepo) Create(_ context.Context, m *model.Mixture) error {
	if f.find(m.UserID, func(x *model.Mixture) bool { return x.Name == m.Name }) != nil {
		return apperror.Conflict("mixture", m.Name)
	}
	f.nextID++
	m.ID = fmt.Sprintf("mix-%d", f.nextID)
	stored := *m
	f.items = append(f.items, &stored)
	return nil
}

func (f *fakeMixtureRepo) Update(_ context.Context, m *model.Mixture) error {
	if other := f.find(m.UserID, func(x *model.Mixture) bool { return x.Name == m.Name && x.ID != m.ID }); other != nil {
		return apperror.Conflict("mixture", m.Name)
	}
	existing := f.find(m.UserID, func(x *model.Mixture) bool { return x.ID == m.ID })
	if existing == nil {
		return apperror.NotFound("mixture", m.ID)
	}
	*existing = *m
	return nil
}

func (f *fakeMixtureRepo) Delete(_ context.Context, userID, id string) error {
	for i, m := range f.items {
		if m.UserID == userID && m.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("mixture", id)
}

type fakeIngredientRepo struct {
	items  map[string]*model.CustomIngredient
	nextID int
}

func newFakeIngredientRepo() *fakeIngredientRepo {
	return &fakeIngredientRepo{items: make(map[string]*model.CustomIngredient)}
}

func (f *fakeIngredientRepo) List(_ context.Context, userID string) ([]model.CustomIngredient, error) {
	var out []model.CustomIngredient
	for _, it := range f.items {
		if it.UserID == userID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeIngredientRepo) GetByName(_ context.Context, userID, name string) (*model.CustomIngredient, error) {
	for _, it := range f.items {
		if it.UserID == userID && it.Name == name {
			result := *it
			return &result, nil
		}
	}
	return nil, apperror.NotFound("ingredient", name)
}

func (f *fakeIngredientRepo) Create(_ context.Context, it *model.CustomIngredient) error {
	f.nextID++
	it.ID = fmt.Sprintf("ing-%d", f.nextID)
	stored := *it
	f.items[it.ID] = &stored
	return nil
}

func (f *fakeIngredientRepo) Update(_ context.Context, it *model.CustomIngredient) error {
	if _, ok := f.items[it.ID]; !ok {
		return apperror.NotFound("ingredient", it.ID)
	}
	stored := *it
	f.items[it.ID] = &stored
	return nil
}

func (f *fakeIngredientRepo) Delete(_ context.Context, userID, id string) error {
	it, ok := f.items[id]
	if !ok || it.UserID != userID {
		return apperror.NotFound("ingredient", id)
	}
	delete(f.items, id)
	return nil
}

// =========================================================================
// STUB COLLABORATORS
// =========================================================================

// stubIdentities returns a fixed assertion (or error) for every token.
type stubIdentities struct {
	assertion *auth.Assertion
	err       error
}

func (s *stubIdentities) Verify(_ context.Context, provider model.Provider, _ string) (*auth.Assertion, error) {
	if s.err != nil {
		return nil, s.err
	}
	a := *s.assertion
	a.Provider = provider
	return &a, nil
}

// recordingMailer runs each compose inline and records what it would send.
// With hold set, composes queue until flush.
type recordingMailer struct {
	sent    []mail.Message
	hold    bool
	pending []mail.Compose
}

func (m *recordingMailer) DispatchFunc(compose mail.Compose) {
	if m.hold {
		m.pending = append(m.pending, compose)
		return
	}
	m.run(compose)
}

func (m *recordingMailer) run(compose mail.Compose) {
	if msg, ok := compose(context.Background()); ok {
		m.sent = append(m.sent, msg)
	}
}

func (m *recordingMailer) flush() {
	pending := m.pending
	m.pending = nil
	for _, compose := range pending {
		m.run(compose)
	}
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *outcomeRecorder) AuthOutcome(method, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, method+":"+outcome)
}

func (r *outcomeRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.outcomes) == 0 {
		return ""
	}
	return r.outcomes[len(r.outcomes)-1]
}

// =========================================================================
// HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	tokens, err := auth.NewTokenService(config.TokenConfig{
		Secret:    "test-secret-that-is-at-least-32-chars!!",
		Algorithm: "HS256",
		TTL:       time.Hour,
		Issuer:    "vegfuel-test",
	})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return tokens
}

type authFixture struct {
	svc        *AuthService
	users      *fakeUserRepo
	tokens     *auth.TokenService
	passwords  *auth.PasswordService
	identities *stubIdentities
	recorder   *outcomeRecorder
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		users:      newFakeUserRepo(),
		tokens:     newTestTokens(t),
		passwords:  auth.NewPasswordServiceForTest(),
		identities: &stubIdentities{},
		recorder:   &outcomeRecorder{},
	}
	f.svc = NewAuthService(f.users, f.tokens, f.passwords, f.identities, f.recorder, discardLogger())
	return f
}
