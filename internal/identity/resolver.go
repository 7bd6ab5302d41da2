package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"scanstream/internal/recognition"
)

// Creator registers a new anonymous user with the service.
type Creator interface {
	CreateAnonymousUser(ctx context.Context) (recognition.User, error)
}

// Resolver returns the application's anonymous user, creating and storing
// one the first time.
type Resolver struct {
	Store   *Store
	Creator Creator
	AppID   string
	Logger  *log.Logger

	mu sync.Mutex
}

// Resolve restores the stored user or creates one.
func (r *Resolver) Resolve(ctx context.Context) (recognition.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger := r.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	user, err := r.Store.Load(ctx, r.AppID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return recognition.User{}, err
	}

	if r.Creator == nil {
		return recognition.User{}, fmt.Errorf("identity: no user stored for %s and no creator configured", r.AppID)
	}
	user, err = r.Creator.CreateAnonymousUser(ctx)
	if err != nil {
		return recognition.User{}, fmt.Errorf("create anonymous user: %w", err)
	}
	if err := r.Store.Save(ctx, r.AppID, user); err != nil {
		return recognition.User{}, err
	}
	logger.Printf("identity: created anonymous user %s for %s", user.ID, StorageKey(r.AppID))
	return user, nil
}
