package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/replydesk/server/internal/model"
	"github.com/replydesk/server/internal/session"
	"github.com/replydesk/server/internal/session/sessiontest"
)

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &sessiontest.StoreSuite{
		NewStore: func() session.Store { return session.NewMemoryStore() },
	})
}

func TestMemoryStore_returnsCopies(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	in := model.Session{
		Token:   "a.b.c",
		Profile: &model.UserProfile{Business: &model.Business{WhatsAppStatus: "PENDING"}},
	}
	require.NoError(t, store.Set(ctx, "key", in))

	in.Profile.Business.WhatsAppStatus = "CONNECTED"

	got, err := store.Get(ctx, "key")
	require.NoError(t, err)
	require.Equal(t, "PENDING", got.Profile.Business.WhatsAppStatus)

	got.Profile.Business.WhatsAppStatus = "CONNECTED"
	again, err := store.Get(ctx, "key")
	require.NoError(t, err)
	require.Equal(t, "PENDING", again.Profile.Business.WhatsAppStatus)
}
