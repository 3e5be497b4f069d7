// Package memory is an in-process store.Store used by tests and by the demo
// server when no database is configured.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/store"
)

// Store guards a state snapshot with a mutex. WithTx runs against a deep copy
// that replaces the live state only when fn succeeds.
type Store struct {
	mu sync.Mutex
	st *state
}

// New returns an empty Store.
func New() *Store {
	return &Store{st: newState()}
}

var _ store.Store = (*Store)(nil)

// WithTx holds the store lock for the whole callback. fn must use q, never the
// outer Store, or it deadlocks.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, q store.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, work); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, a *store.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateAccount(ctx, a)
}

func (s *Store) GetAccountByID(ctx context.Context, id int64) (*store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetAccountByID(ctx, id)
}

func (s *Store) GetAccountByUsername(ctx context.Context, username string) (*store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetAccountByUsername(ctx, username)
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetAccountByEmail(ctx, email)
}

func (s *Store) UpdatePassword(ctx context.Context, accountID int64, hash string, changedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpdatePassword(ctx, accountID, hash, changedAt)
}

func (s *Store) MarkEmailVerified(ctx context.Context, accountID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.MarkEmailVerified(ctx, accountID)
}

func (s *Store) SaveRefreshToken(ctx context.Context, t *store.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SaveRefreshToken(ctx, t)
}

func (s *Store) GetRefreshToken(ctx context.Context, token string) (*store.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetRefreshToken(ctx, token)
}

func (s *Store) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteRefreshToken(ctx, token)
}

func (s *Store) ListRefreshTokens(ctx context.Context, accountID int64) ([]store.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListRefreshTokens(ctx, accountID)
}

func (s *Store) DeleteRefreshTokensForAccount(ctx context.Context, accountID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteRefreshTokensForAccount(ctx, accountID)
}

func (s *Store) InsertRevokedTokens(ctx context.Context, tokens []store.RevokedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.InsertRevokedTokens(ctx, tokens)
}

func (s *Store) IsTokenRevoked(ctx context.Context, tokenID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.IsTokenRevoked(ctx, tokenID, now)
}

func (s *Store) GetTwoFactor(ctx context.Context, accountID int64) (*store.TwoFactorSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetTwoFactor(ctx, accountID)
}

func (s *Store) UpsertTwoFactor(ctx context.Context, sec *store.TwoFactorSecret) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpsertTwoFactor(ctx, sec)
}

func (s *Store) EnableTwoFactor(ctx context.Context, accountID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.EnableTwoFactor(ctx, accountID, at)
}

func (s *Store) DisableTwoFactor(ctx context.Context, accountID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DisableTwoFactor(ctx, accountID)
}

func (s *Store) ReplaceBackupCodes(ctx context.Context, accountID int64, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ReplaceBackupCodes(ctx, accountID, hashes)
}

func (s *Store) ConsumeBackupCode(ctx context.Context, accountID int64, hash string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ConsumeBackupCode(ctx, accountID, hash, at)
}

func (s *Store) CreateVerification(ctx context.Context, v *store.EmailVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateVerification(ctx, v)
}

func (s *Store) GetActiveVerification(ctx context.Context, accountID int64, code string, now time.Time) (*store.EmailVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetActiveVerification(ctx, accountID, code, now)
}

func (s *Store) MarkVerificationUsed(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.MarkVerificationUsed(ctx, id)
}

func (s *Store) CreatePasswordReset(ctx context.Context, r *store.PasswordReset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreatePasswordReset(ctx, r)
}

func (s *Store) GetPasswordResetByHash(ctx context.Context, tokenHash string, now time.Time) (*store.PasswordReset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetPasswordResetByHash(ctx, tokenHash, now)
}

func (s *Store) MarkPasswordResetUsed(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.MarkPasswordResetUsed(ctx, id)
}

func (s *Store) GetIdentity(ctx context.Context, provider, subject string) (*store.ExternalIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetIdentity(ctx, provider, subject)
}

func (s *Store) LinkIdentity(ctx context.Context, id *store.ExternalIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.LinkIdentity(ctx, id)
}

type revokedKey struct {
	accountID int64
	tokenID   string
	tokenType store.TokenType
}

type identityKey struct {
	provider string
	subject  string
}

// state is the unsynchronized data set; it implements store.Queries.
type state struct {
	nextAccountID int64
	nextVerifyID  int64
	nextResetID   int64

	accounts      map[int64]store.Account
	refresh       map[string]store.RefreshToken
	revoked       map[revokedKey]store.RevokedToken
	twoFactor     map[int64]store.TwoFactorSecret
	backupCodes   map[int64][]store.BackupCode
	verifications map[int64]store.EmailVerification
	resets        map[int64]store.PasswordReset
	identities    map[identityKey]store.ExternalIdentity
}

func newState() *state {
	return &state{
		accounts:      map[int64]store.Account{},
		refresh:       map[string]store.RefreshToken{},
		revoked:       map[revokedKey]store.RevokedToken{},
		twoFactor:     map[int64]store.TwoFactorSecret{},
		backupCodes:   map[int64][]store.BackupCode{},
		verifications: map[int64]store.EmailVerification{},
		resets:        map[int64]store.PasswordReset{},
		identities:    map[identityKey]store.ExternalIdentity{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.nextAccountID = s.nextAccountID
	c.nextVerifyID = s.nextVerifyID
	c.nextResetID = s.nextResetID
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.refresh {
		c.refresh[k] = v
	}
	for k, v := range s.revoked {
		c.revoked[k] = v
	}
	for k, v := range s.twoFactor {
		c.twoFactor[k] = v
	}
	for k, v := range s.backupCodes {
		c.backupCodes[k] = append([]store.BackupCode(nil), v...)
	}
	for k, v := range s.verifications {
		c.verifications[k] = v
	}
	for k, v := range s.resets {
		c.resets[k] = v
	}
	for k, v := range s.identities {
		c.identities[k] = v
	}
	return c
}

func (s *state) CreateAccount(_ context.Context, a *store.Account) error {
	for _, existing := range s.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return store.ErrConflict
		}
		if a.Username != "" && existing.Username == a.Username {
			return store.ErrConflict
		}
	}
	s.nextAccountID++
	a.ID = s.nextAccountID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.accounts[a.ID] = *a
	return nil
}

func (s *state) GetAccountByID(_ context.Context, id int64) (*store.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *state) GetAccountByUsername(_ context.Context, username string) (*store.Account, error) {
	for _, a := range s.accounts {
		if a.Username != "" && a.Username == username {
			return &a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *state) GetAccountByEmail(_ context.Context, email string) (*store.Account, error) {
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *state) UpdatePassword(_ context.Context, accountID int64, hash string, changedAt time.Time) error {
	a, ok := s.accounts[accountID]
	if !ok {
		return store.ErrNotFound
	}
	a.PasswordHash = hash
	a.PasswordChangedAt = changedAt
	s.accounts[accountID] = a
	return nil
}

func (s *state) MarkEmailVerified(_ context.Context, accountID int64) error {
	a, ok := s.accounts[accountID]
	if !ok {
		return store.ErrNotFound
	}
	a.EmailVerified = true
	s.accounts[accountID] = a
	return nil
}

func (s *state) SaveRefreshToken(_ context.Context, t *store.RefreshToken) error {
	if _, ok := s.refresh[t.Token]; ok {
		return store.ErrConflict
	}
	s.refresh[t.Token] = *t
	return nil
}

func (s *state) GetRefreshToken(_ context.Context, token string) (*store.RefreshToken, error) {
	t, ok := s.refresh[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *state) DeleteRefreshToken(_ context.Context, token string) (bool, error) {
	if _, ok := s.refresh[token]; !ok {
		return false, nil
	}
	delete(s.refresh, token)
	return true, nil
}

func (s *state) ListRefreshTokens(_ context.Context, accountID int64) ([]store.RefreshToken, error) {
	var out []store.RefreshToken
	for _, t := range s.refresh {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *state) DeleteRefreshTokensForAccount(_ context.Context, accountID int64) error {
	for k, t := range s.refresh {
		if t.AccountID == accountID {
			delete(s.refresh, k)
		}
	}
	return nil
}

func (s *state) InsertRevokedTokens(_ context.Context, tokens []store.RevokedToken) error {
	for _, t := range tokens {
		k := revokedKey{accountID: t.AccountID, tokenID: t.TokenID, tokenType: t.TokenType}
		if _, ok := s.revoked[k]; ok {
			continue
		}
		s.revoked[k] = t
	}
	return nil
}

func (s *state) IsTokenRevoked(_ context.Context, tokenID string, now time.Time) (bool, error) {
	for k, t := range s.revoked {
		if k.tokenID == tokenID && t.ExpiresAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (s *state) GetTwoFactor(_ context.Context, accountID int64) (*store.TwoFactorSecret, error) {
	sec, ok := s.twoFactor[accountID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sec, nil
}

func (s *state) UpsertTwoFactor(_ context.Context, sec *store.TwoFactorSecret) error {
	if sec.CreatedAt.IsZero() {
		sec.CreatedAt = time.Now()
	}
	s.twoFactor[sec.AccountID] = *sec
	return nil
}

func (s *state) EnableTwoFactor(_ context.Context, accountID int64, at time.Time) error {
	sec, ok := s.twoFactor[accountID]
	if !ok {
		return store.ErrNotFound
	}
	sec.Enabled = true
	sec.EnabledAt = at
	s.twoFactor[accountID] = sec
	return nil
}

func (s *state) DisableTwoFactor(_ context.Context, accountID int64) error {
	if _, ok := s.twoFactor[accountID]; !ok {
		return store.ErrNotFound
	}
	delete(s.twoFactor, accountID)
	delete(s.backupCodes, accountID)
	return nil
}

func (s *state) ReplaceBackupCodes(_ context.Context, accountID int64, hashes []string) error {
	codes := make([]store.BackupCode, 0, len(hashes))
	for _, h := range hashes {
		codes = append(codes, store.BackupCode{AccountID: accountID, CodeHash: h})
	}
	s.backupCodes[accountID] = codes
	return nil
}

func (s *state) ConsumeBackupCode(_ context.Context, accountID int64, hash string, at time.Time) (bool, error) {
	codes := s.backupCodes[accountID]
	for i := range codes {
		if codes[i].CodeHash == hash && !codes[i].Used {
			codes[i].Used = true
			codes[i].UsedAt = at
			return true, nil
		}
	}
	return false, nil
}

func (s *state) CreateVerification(_ context.Context, v *store.EmailVerification) error {
	s.nextVerifyID++
	v.ID = s.nextVerifyID
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	s.verifications[v.ID] = *v
	return nil
}

func (s *state) GetActiveVerification(_ context.Context, accountID int64, code string, now time.Time) (*store.EmailVerification, error) {
	for _, v := range s.verifications {
		if v.AccountID == accountID && v.Code == code && !v.Used && v.ExpiresAt.After(now) {
			return &v, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *state) MarkVerificationUsed(_ context.Context, id int64) error {
	v, ok := s.verifications[id]
	if !ok || v.Used {
		return store.ErrNotFound
	}
	v.Used = true
	s.verifications[id] = v
	return nil
}

func (s *state) CreatePasswordReset(_ context.Context, r *store.PasswordReset) error {
	s.nextResetID++
	r.ID = s.nextResetID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	s.resets[r.ID] = *r
	return nil
}

func (s *state) GetPasswordResetByHash(_ context.Context, tokenHash string, now time.Time) (*store.PasswordReset, error) {
	for _, r := range s.resets {
		if r.TokenHash == tokenHash && !r.Used && r.ExpiresAt.After(now) {
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *state) MarkPasswordResetUsed(_ context.Context, id int64) error {
	r, ok := s.resets[id]
	if !ok || r.Used {
		return store.ErrNotFound
	}
	r.Used = true
	s.resets[id] = r
	return nil
}

func (s *state) GetIdentity(_ context.Context, provider, subject string) (*store.ExternalIdentity, error) {
	id, ok := s.identities[identityKey{provider: provider, subject: subject}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &id, nil
}

func (s *state) LinkIdentity(_ context.Context, id *store.ExternalIdentity) error {
	k := identityKey{provider: id.Provider, subject: id.Subject}
	if _, ok := s.identities[k]; ok {
		return store.ErrConflict
	}
	if id.CreatedAt.IsZero() {
		id.CreatedAt = time.Now()
	}
	s.identities[k] = *id
	return nil
}
