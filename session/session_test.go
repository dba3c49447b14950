package session

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/cockroachdb/pebble/v2/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimToken(t *testing.T, claims string) string {
	t.Helper()
	return "h." + base64.RawURLEncoding.EncodeToString([]byte(claims)) + ".s"
}

func TestParseIdentityScenarioToken(t *testing.T) {
	id, ok := ParseIdentity("h.eyJzdWIiOiJhQGIuY29tIn0.s")
	require.True(t, ok)
	assert.Equal(t, "a@b.com", id.Subject)
	assert.True(t, id.ExpiresAt.IsZero())
}

func TestParseIdentityRejectsMalformed(t *testing.T) {
	for _, tok := range []string{
		"",
		"abc",
		"a.b",
		"a.b.c.d",
		"h.!!!.s",
		"h." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".s",
		"h." + base64.RawURLEncoding.EncodeToString([]byte(`{"scope":"x"}`)) + ".s",
		"h." + base64.RawURLEncoding.EncodeToString([]byte(`{"sub":42}`)) + ".s",
	} {
		_, ok := ParseIdentity(tok)
		assert.False(t, ok, "token %q", tok)
	}
}

func TestParseIdentityReadsExpiry(t *testing.T) {
	id, ok := ParseIdentity(claimToken(t, `{"sub":"demo-user","exp":1700000000}`))
	require.True(t, ok)
	assert.Equal(t, "demo-user", id.Subject)
	assert.Equal(t, time.Unix(1700000000, 0).Unix(), id.ExpiresAt.Unix())
}

func TestSetTokenPersistsAndDerivesEmail(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(StoreTypeMemory)
	require.NoError(t, err)
	s := New(store)

	require.NoError(t, s.SetToken(ctx, "h.eyJzdWIiOiJhQGIuY29tIn0.s"))
	email, ok := s.Email()
	assert.True(t, ok)
	assert.Equal(t, "a@b.com", email)
	assert.True(t, s.Authenticated())

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "h.eyJzdWIiOiJhQGIuY29tIn0.s", stored)

	require.NoError(t, s.SetToken(ctx, "opaque"))
	_, ok = s.Email()
	assert.False(t, ok)
	assert.Equal(t, "web", s.EmailOr("web"))

	require.NoError(t, s.Clear(ctx))
	assert.False(t, s.Authenticated())
}

func TestRestoreFromPebble(t *testing.T) {
	ctx := context.Background()
	fs := vfs.NewMem()

	store, err := NewStore(StoreTypePebble, WithDataPath("token-db"), WithFS(fs))
	require.NoError(t, err)
	s := New(store)
	require.NoError(t, s.SetToken(ctx, "h.eyJzdWIiOiJhQGIuY29tIn0.s"))
	require.NoError(t, s.Close())

	store, err = NewStore(StoreTypePebble, WithDataPath("token-db"), WithFS(fs))
	require.NoError(t, err)
	restored, err := Restore(ctx, store)
	require.NoError(t, err)
	defer restored.Close()
	assert.Equal(t, "h.eyJzdWIiOiJhQGIuY29tIn0.s", restored.Token())
	email, _ := restored.Email()
	assert.Equal(t, "a@b.com", email)
}

func TestPebbleEmptyLoad(t *testing.T) {
	store, err := NewStore(StoreTypePebble, WithDataPath("empty"), WithFS(vfs.NewMem()))
	require.NoError(t, err)
	defer store.Close()
	tok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestNewStoreValidation(t *testing.T) {
	_, err := NewStore(StoreTypeRedis)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewStore(StoreTypePebble)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewStore("etcd")
	assert.ErrorIs(t, err, ErrInvalidStoreType)
}

func TestConversation(t *testing.T) {
	s := New(nil)
	_, ok := s.Conversation()
	assert.False(t, ok)
	s.SetConversation(7)
	id, ok := s.Conversation()
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	s.ClearConversation()
	_, ok = s.Conversation()
	assert.False(t, ok)
}
