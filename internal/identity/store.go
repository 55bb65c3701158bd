// Package identity owns the signed-in identity of the gateway.  It is the
// only writer; every other component receives a copy per operation.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/classsync/internal/model"
	"github.com/iliyamo/classsync/internal/portal"
	"github.com/iliyamo/classsync/internal/repository"
	"github.com/iliyamo/classsync/internal/toast"
	"github.com/iliyamo/classsync/internal/utils"
)

// ErrNoIdentity is returned when nobody is signed in.
var ErrNoIdentity = errors.New("not signed in")

// Authenticator is the backend's login call.
type Authenticator interface {
	Login(ctx context.Context, role, login, password string) (model.LoginResponse, error)
}

// Store holds the identity for the process lifetime and persists it
// through an IdentityRepo.
type Store struct {
	Auth   Authenticator
	Repo   *repository.IdentityRepo
	Toasts toast.Pusher

	// OnLogout runs after the identity was cleared (closing scan
	// surfaces, resetting dashboards).
	OnLogout func()

	now func() time.Time

	mu      sync.RWMutex
	current *model.Identity
}

func NewStore(auth Authenticator, repo *repository.IdentityRepo, toasts toast.Pusher) *Store {
	return &Store{Auth: auth, Repo: repo, Toasts: toasts, now: time.Now}
}

// Current returns a copy of the identity.
func (s *Store) Current() (model.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return model.Identity{}, false
	}
	return *s.current, true
}

// Login signs in against the backend and persists the result.  Empty
// fields are rejected before any network call.
func (s *Store) Login(ctx context.Context, form model.LoginForm) (model.Identity, error) {
	form.Login = strings.TrimSpace(form.Login)
	if form.Login == "" || form.Password == "" || !model.ValidRole(form.Role) {
		err := utils.Validate(form, "Please fill all fields")
		if err == nil {
			err = utils.NewValidationError("Please fill all fields")
		}
		s.Toasts.Push(model.ToastError, "Missing fields", "Please fill all fields")
		return model.Identity{}, err
	}

	res, err := s.Auth.Login(ctx, form.Role, form.Login, form.Password)
	if err != nil {
		log.Warnf("identity: login %s %s: %v", form.Role, form.Login, err)
		s.Toasts.Push(model.ToastError, "Login failed", portal.Message(err, "Login failed. Check credentials."))
		return model.Identity{}, err
	}

	id := model.Identity{Role: form.Role, Token: res.Token, User: res.User}
	if !id.Valid() {
		log.Errorf("identity: backend answered login without token or user id")
		s.Toasts.Push(model.ToastError, "Login failed", "Login failed. Check credentials.")
		return model.Identity{}, ErrNoIdentity
	}
	if err := s.Repo.Save(ctx, id); err != nil {
		// the session still works for this process
		log.Errorf("identity: persist: %v", err)
	}
	if _, had := s.Current(); had && s.OnLogout != nil {
		// signing in over another identity drops its state
		s.OnLogout()
	}
	s.set(&id)
	log.Infof("identity: %s %s signed in", id.Role, id.User.ID)
	s.Toasts.Push(model.ToastSuccess, "Welcome", "Signed in successfully")
	return id, nil
}

// Restore loads the persisted identity at startup.  An identity whose
// token expired, or that cannot be decoded, is discarded.
func (s *Store) Restore(ctx context.Context) (model.Identity, error) {
	id, err := s.Repo.Load(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.Identity{}, ErrNoIdentity
	case errors.Is(err, repository.ErrCorrupt):
		log.Warnf("identity: discarding unreadable stored identity: %v", err)
		return model.Identity{}, ErrNoIdentity
	case err != nil:
		return model.Identity{}, err
	}
	if !id.Valid() {
		s.discard(ctx, "incomplete")
		return model.Identity{}, ErrNoIdentity
	}
	if info, err := utils.InspectToken(id.Token); err == nil && info.Expired(s.now()) {
		s.discard(ctx, "token expired at "+info.Exp.Format(time.RFC3339))
		return model.Identity{}, ErrNoIdentity
	}
	s.set(&id)
	log.Infof("identity: restored %s %s", id.Role, id.User.ID)
	return id, nil
}

func (s *Store) discard(ctx context.Context, why string) {
	log.Infof("identity: discarding stored identity (%s)", why)
	if err := s.Repo.Clear(ctx); err != nil {
		log.Warnf("identity: clear: %v", err)
	}
}

// Logout forgets the identity.  Calls already running keep the copy they
// started with.
func (s *Store) Logout(ctx context.Context) error {
	s.set(nil)
	if s.OnLogout != nil {
		s.OnLogout()
	}
	if err := s.Repo.Clear(ctx); err != nil {
		log.Errorf("identity: clear: %v", err)
		return err
	}
	return nil
}

func (s *Store) set(id *model.Identity) {
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
}
