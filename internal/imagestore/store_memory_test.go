package imagestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verity/pkg/requestcontext"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	now   time.Time
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *InMemoryStoreSuite) TestPutGet() {
	s.Run("round trip", func() {
		s.Require().NoError(s.store.Put(s.ctx, "v1/document", []byte("bytes")))

		data, err := s.store.Get(s.ctx, "v1/document")
		s.Require().NoError(err)
		s.Equal([]byte("bytes"), data)
	})

	s.Run("stored bytes do not alias the caller's slice", func() {
		input := []byte("original")
		s.Require().NoError(s.store.Put(s.ctx, "v1/alias", input))
		input[0] = 'X'

		data, err := s.store.Get(s.ctx, "v1/alias")
		s.Require().NoError(err)
		s.Equal([]byte("original"), data)
	})

	s.Run("unknown ref not found", func() {
		_, err := s.store.Get(s.ctx, "missing")
		s.True(errors.Is(err, ErrNotFound))
	})
}

func (s *InMemoryStoreSuite) TestDelete() {
	s.Run("delete removes the image", func() {
		s.Require().NoError(s.store.Put(s.ctx, "v1/gone", []byte("bytes")))
		s.Require().NoError(s.store.Delete(s.ctx, "v1/gone"))

		_, err := s.store.Get(s.ctx, "v1/gone")
		s.True(errors.Is(err, ErrNotFound))
	})

	s.Run("deleting an absent ref is not an error", func() {
		s.NoError(s.store.Delete(s.ctx, "never-existed"))
	})
}

func (s *InMemoryStoreSuite) TestDeleteOlderThan() {
	s.Run("reaps only images stored before the cutoff", func() {
		oldCtx := requestcontext.WithTime(context.Background(), s.now.Add(-48*time.Hour))
		s.Require().NoError(s.store.Put(oldCtx, "v1/old", []byte("old")))
		s.Require().NoError(s.store.Put(s.ctx, "v1/new", []byte("new")))

		removed, err := s.store.DeleteOlderThan(s.ctx, s.now.Add(-24*time.Hour))
		s.Require().NoError(err)
		s.Equal(1, removed)

		_, err = s.store.Get(s.ctx, "v1/old")
		s.True(errors.Is(err, ErrNotFound))
		_, err = s.store.Get(s.ctx, "v1/new")
		s.NoError(err)
	})
}
