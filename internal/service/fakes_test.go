package service

import (
	"errors"
	"sync"
	"time"

	"github.com/serrf0f/gatehouse/internal/model"
	"github.com/serrf0f/gatehouse/internal/repository"
)

// memStore is a shared in-memory backing for the fake repositories, so the
// cross-repository transactions (atomic ops) behave like the real thing.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	sessions map[string]*model.Session
	codes    map[string]*model.VerificationCode // keyed by user id
	tokens   map[string]*model.ResetToken       // keyed by token id
	oauth    map[string]*model.OAuthAccount     // keyed by provider|provider_user_id
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*model.User{},
		sessions: map[string]*model.Session{},
		codes:    map[string]*model.VerificationCode{},
		tokens:   map[string]*model.ResetToken{},
		oauth:    map[string]*model.OAuthAccount{},
	}
}

type fakeUserRepo struct{ s *memStore }

func (r *fakeUserRepo) Create(user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	clone := *user
	r.s.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) ByID(id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) ByEmail(email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) Delete(id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	delete(r.s.users, id)
	return nil
}

type fakeSessionRepo struct{ s *memStore }

func (r *fakeSessionRepo) Create(session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clone := *session
	clone.Fresh = false
	r.s.sessions[session.ID] = &clone
	return nil
}

func (r *fakeSessionRepo) ByID(id string) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	clone := *sess
	return &clone, nil
}

func (r *fakeSessionRepo) Rotate(oldID string, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, oldID)
	clone := *session
	clone.Fresh = false
	r.s.sessions[session.ID] = &clone
	return nil
}

func (r *fakeSessionRepo) Delete(id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}

func (r *fakeSessionRepo) DeleteByUser(userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sess := range r.s.sessions {
		if sess.UserID == userID {
			delete(r.s.sessions, id)
		}
	}
	return nil
}

func (r *fakeSessionRepo) DeleteExpired() (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, sess := range r.s.sessions {
		if time.Now().After(sess.ExpiresAt) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

type fakeCodeRepo struct{ s *memStore }

func (r *fakeCodeRepo) Replace(code *model.VerificationCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clone := *code
	r.s.codes[code.UserID] = &clone
	return nil
}

func (r *fakeCodeRepo) ByUserAndEmail(userID, email string) (*model.VerificationCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	code, ok := r.s.codes[userID]
	if !ok || code.Email != email {
		return nil, repository.ErrCodeNotFound
	}
	clone := *code
	return &clone, nil
}

func (r *fakeCodeRepo) IncrementRetry(userID, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	code, ok := r.s.codes[userID]
	if ok && code.Email == email {
		code.Retry++
	}
	return nil
}

func (r *fakeCodeRepo) Delete(userID, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	code, ok := r.s.codes[userID]
	if ok && code.Email == email {
		delete(r.s.codes, userID)
	}
	return nil
}

func (r *fakeCodeRepo) DeleteByUser(userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.codes, userID)
	return nil
}

type fakeTokenRepo struct{ s *memStore }

func (r *fakeTokenRepo) Replace(token *model.ResetToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, t := range r.s.tokens {
		if t.UserID == token.UserID {
			delete(r.s.tokens, id)
		}
	}
	clone := *token
	r.s.tokens[token.ID] = &clone
	return nil
}

func (r *fakeTokenRepo) ByID(id string) (*model.ResetToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	token, ok := r.s.tokens[id]
	if !ok {
		return nil, repository.ErrResetTokenNotFound
	}
	clone := *token
	return &clone, nil
}

func (r *fakeTokenRepo) Delete(id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.tokens, id)
	return nil
}

type fakeOAuthRepo struct{ s *memStore }

func (r *fakeOAuthRepo) Create(account *model.OAuthAccount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clone := *account
	r.s.oauth[account.ProviderID+"|"+account.ProviderUserID] = &clone
	return nil
}

func (r *fakeOAuthRepo) ByProvider(providerID, providerUserID string) (*model.OAuthAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	account, ok := r.s.oauth[providerID+"|"+providerUserID]
	if !ok {
		return nil, repository.ErrOAuthAccountNotFound
	}
	clone := *account
	return &clone, nil
}

type fakeAtomicRepo struct{ s *memStore }

func (r *fakeAtomicRepo) MarkEmailVerified(userID, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.EmailVerified = true
	delete(r.s.codes, userID)
	return nil
}

func (r *fakeAtomicRepo) ReplacePassword(userID, passwordHash, tokenID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = &passwordHash
	delete(r.s.tokens, tokenID)
	return nil
}

func (r *fakeAtomicRepo) RollbackSignup(userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.codes, userID)
	for id, sess := range r.s.sessions {
		if sess.UserID == userID {
			delete(r.s.sessions, id)
		}
	}
	delete(r.s.users, userID)
	return nil
}

// fakeNotifier records deliveries and can be made to fail.
type fakeNotifier struct {
	mu         sync.Mutex
	codes      []string
	resetLinks []string
	failNext   bool
}

var errDeliveryDown = errors.New("smtp down")

func (n *fakeNotifier) SendVerificationCode(email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failNext {
		n.failNext = false
		return errDeliveryDown
	}
	n.codes = append(n.codes, code)
	return nil
}

func (n *fakeNotifier) SendResetPasswordLink(email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failNext {
		n.failNext = false
		return errDeliveryDown
	}
	n.resetLinks = append(n.resetLinks, token)
	return nil
}

func (n *fakeNotifier) lastCode() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.codes) == 0 {
		return ""
	}
	return n.codes[len(n.codes)-1]
}

func (n *fakeNotifier) lastResetToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.resetLinks) == 0 {
		return ""
	}
	return n.resetLinks[len(n.resetLinks)-1]
}

// fakeChallenge approves or rejects every token.
type fakeChallenge struct {
	approve bool
}

func (c *fakeChallenge) Verify(token, clientIP string) (bool, error) {
	return c.approve, nil
}

// authFixture wires an AuthService over the in-memory store.
type authFixture struct {
	store    *memStore
	notifier *fakeNotifier
	sessions *SessionService
	auth     *AuthService
}

func newAuthFixture() *authFixture {
	store := newMemStore()
	notifier := &fakeNotifier{}
	sessions := NewSessionService(
		&fakeSessionRepo{s: store},
		&fakeUserRepo{s: store},
		720*time.Hour,
		360*time.Hour,
		false,
	)
	auth := NewAuthService(
		&fakeUserRepo{s: store},
		&fakeCodeRepo{s: store},
		&fakeTokenRepo{s: store},
		&fakeOAuthRepo{s: store},
		&fakeAtomicRepo{s: store},
		sessions,
		notifier,
		&fakeChallenge{approve: true},
		NewScryptHasher(),
		5*time.Minute,
		time.Hour,
	)
	return &authFixture{
		store:    store,
		notifier: notifier,
		sessions: sessions,
		auth:     auth,
	}
}
