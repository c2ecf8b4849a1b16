package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/hugh/referral-hub/internal/auth"
	"github.com/hugh/referral-hub/internal/database/models"
	"github.com/hugh/referral-hub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_CreateAndResolve(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	store := auth.NewSessionStore(db, 48*time.Hour)
	user := testutil.CreateTestUser(t, db)

	token, err := store.Create(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	resolved, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
	assert.Equal(t, user.Email, resolved.Email)
}

func TestSessionStore_TokensAreUnique(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	store := auth.NewSessionStore(db, time.Hour)
	user := testutil.CreateTestUser(t, db)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		token, err := store.Create(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, seen[token], "token repeated")
		seen[token] = true
	}
}

func TestSessionStore_Resolve_Unknown(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	store := auth.NewSessionStore(db, time.Hour)

	_, err := store.Resolve(ctx, "")
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	_, err = store.Resolve(ctx, "not-a-real-token")
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestSessionStore_Resolve_ExpiredIsDeleted(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	store := auth.NewSessionStore(db, 48*time.Hour)
	user := testutil.CreateTestUser(t, db)

	token, err := store.Create(ctx, user.ID)
	require.NoError(t, err)

	// 48 hours plus a second after creation
	testutil.ExpireSession(t, db, token, time.Second)

	_, err = store.Resolve(ctx, token)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	// The expired row is gone after being observed.
	var count int64
	require.NoError(t, db.Model(&models.Session{}).Where("token = ?", token).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestSessionStore_Destroy(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	store := auth.NewSessionStore(db, time.Hour)
	user := testutil.CreateTestUser(t, db)

	token, err := store.Create(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, store.Destroy(ctx, token))
	_, err = store.Resolve(ctx, token)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	// Idempotent: destroying again is not an error.
	assert.NoError(t, store.Destroy(ctx, token))
}

func TestSessionStore_DefaultTTL(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := auth.NewSessionStore(db, 0)
	assert.Equal(t, 48*time.Hour, store.TTL())
}
