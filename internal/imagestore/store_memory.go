package imagestore

import (
	"context"
	"sync"
	"time"

	"verity/pkg/requestcontext"
)

type storedImage struct {
	data     []byte
	storedAt time.Time
}

// InMemoryStore keeps images in process memory. Suitable for tests and local
// development only.
type InMemoryStore struct {
	mu     sync.RWMutex
	images map[string]storedImage
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{images: make(map[string]storedImage)}
}

func (s *InMemoryStore) Put(ctx context.Context, ref string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.images[ref] = storedImage{data: buf, storedAt: requestcontext.Now(ctx)}
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[ref]
	if !ok {
		return nil, ErrNotFound
	}
	buf := make([]byte, len(img.data))
	copy(buf, img.data)
	return buf, nil
}

func (s *InMemoryStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.images, ref)
	return nil
}

func (s *InMemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for ref, img := range s.images {
		if img.storedAt.Before(cutoff) {
			delete(s.images, ref)
			removed++
		}
	}
	return removed, nil
}
