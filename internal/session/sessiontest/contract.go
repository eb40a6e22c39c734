// Package sessiontest holds the behavioural contract every session.Store
// implementation must satisfy.
package sessiontest

import (
	"context"

	"github.com/stretchr/testify/suite"

	"github.com/replydesk/server/internal/model"
	"github.com/replydesk/server/internal/session"
)

// StoreSuite runs the session.Store contract against the store returned by NewStore
type StoreSuite struct {
	suite.Suite
	NewStore func() session.Store

	store session.Store
}

func (s *StoreSuite) SetupTest() {
	s.store = s.NewStore()
}

func (s *StoreSuite) TestGetMissing() {
	key, err := session.NewKey()
	s.Require().NoError(err)

	_, err = s.store.Get(context.Background(), key)
	s.Require().ErrorIs(err, session.ErrNotFound)
}

func (s *StoreSuite) TestSetThenGet() {
	ctx := context.Background()
	key, err := session.NewKey()
	s.Require().NoError(err)

	want := model.Session{
		Token: "header.payload.signature",
		Profile: &model.UserProfile{
			Email:    "owner@example.com",
			UserType: "business",
			Business: &model.Business{Name: "Acme", WhatsAppStatus: "PENDING"},
		},
	}
	s.Require().NoError(s.store.Set(ctx, key, want))

	got, err := s.store.Get(ctx, key)
	s.Require().NoError(err)
	s.Equal(want, got)
}

func (s *StoreSuite) TestSetReplaces() {
	ctx := context.Background()
	key, err := session.NewKey()
	s.Require().NoError(err)

	s.Require().NoError(s.store.Set(ctx, key, model.Session{Token: "a.b.c"}))
	s.Require().NoError(s.store.Set(ctx, key, model.Session{Token: "d.e.f"}))

	got, err := s.store.Get(ctx, key)
	s.Require().NoError(err)
	s.Equal("d.e.f", got.Token)
	s.Nil(got.Profile)
}

func (s *StoreSuite) TestClear() {
	ctx := context.Background()
	key, err := session.NewKey()
	s.Require().NoError(err)

	s.Require().NoError(s.store.Set(ctx, key, model.Session{Token: "a.b.c"}))
	s.Require().NoError(s.store.Clear(ctx, key))

	_, err = s.store.Get(ctx, key)
	s.Require().ErrorIs(err, session.ErrNotFound)

	s.NoError(s.store.Clear(ctx, key), "clearing a missing session is not an error")
}

func (s *StoreSuite) TestKeysAreIsolated() {
	ctx := context.Background()
	k1, err := session.NewKey()
	s.Require().NoError(err)
	k2, err := session.NewKey()
	s.Require().NoError(err)

	s.Require().NoError(s.store.Set(ctx, k1, model.Session{Token: "one.one.one"}))

	_, err = s.store.Get(ctx, k2)
	s.Require().ErrorIs(err, session.ErrNotFound)
}
