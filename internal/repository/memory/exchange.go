// Package memory is an in-process exchange store used when no database is
// configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"threadline/internal/domain/models/chat"
	chatRepo "threadline/internal/domain/repositories/chat"
)

// ExchangeRepository keeps exchanges in insertion order.
type ExchangeRepository struct {
	mu        sync.RWMutex
	exchanges []chat.Message
	pingErr   error
}

var _ chatRepo.ExchangeRepository = (*ExchangeRepository)(nil)

// NewExchangeRepository returns an empty store.
func NewExchangeRepository() *ExchangeRepository {
	return &ExchangeRepository{}
}

func (r *ExchangeRepository) Create(_ context.Context, msg *chat.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exchanges = append(r.exchanges, msg.Clone())
	return nil
}

func (r *ExchangeRepository) ListByUser(_ context.Context, userID string) ([]chat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []chat.Message{}
	for _, m := range r.exchanges {
		if m.UserID == userID {
			out = append(out, m.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (r *ExchangeRepository) DeleteBySession(_ context.Context, userID, sessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.exchanges[:0:0]
	var n int64
	for _, m := range r.exchanges {
		if m.UserID == userID && m.SessionID == sessionID {
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.exchanges = kept
	return n, nil
}

func (r *ExchangeRepository) Ping(context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pingErr
}

// SetPingError makes Ping fail with err, or succeed again when err is nil.
func (r *ExchangeRepository) SetPingError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pingErr = err
}
