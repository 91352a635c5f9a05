package services

import (
	"context"
	"errors"
	"sync"

	"vizintel/api/internal/identity"
	"vizintel/api/internal/live"
)

type published struct {
	room  string
	event live.Event
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, room string, event live.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{room: room, event: event})
	return f.err
}

func (f *fakePublisher) last() published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[len(f.events)-1]
}

type fakeVerifier struct {
	identities map[string]identity.Identity
}

var errBadToken = errors.New("bad token")

func (f fakeVerifier) Verify(_ context.Context, token string) (identity.Identity, error) {
	id, ok := f.identities[token]
	if !ok {
		return identity.Identity{}, errBadToken
	}
	return id, nil
}

type failingArchive struct{}

func (failingArchive) Put(context.Context, string, string, []byte) error {
	return errors.New("disk full")
}
