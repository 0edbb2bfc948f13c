package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MariDenig/chatBot-hist/internal/log"
)

// downStore simulates a store whose database is unreachable.
type downStore struct {
	*Memory
}

func (d *downStore) AppendMessages(context.Context, string, string, []Message) (*ChatSession, error) {
	return nil, ErrUnavailable
}

func (d *downStore) ListSessions(context.Context) ([]ChatSession, error) {
	return nil, ErrUnavailable
}

func (d *downStore) User(context.Context, string) (*User, error) {
	return nil, ErrUnavailable
}

func (d *downStore) Setting(context.Context, string) (*Setting, error) {
	return nil, ErrUnavailable
}

func (d *downStore) Stats(context.Context) (*Stats, error) {
	return nil, ErrUnavailable
}

func (d *downStore) Dashboard(context.Context) (*Dashboard, error) {
	return nil, ErrUnavailable
}

func (d *downStore) RecordBotAccess(context.Context, string, string, time.Time) (int64, error) {
	return 0, ErrUnavailable
}

func (d *downStore) BotRanking(context.Context) ([]BotAccess, error) {
	return nil, ErrUnavailable
}

func (d *downStore) Connected(context.Context) bool { return false }

func TestFailoverChatPathSurvivesOutage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fallback := NewMemory()
	f := NewFailover(&downStore{Memory: NewMemory()}, fallback, log.NewNop())

	sess, err := f.AppendMessages(ctx, "s1", "bot", []Message{
		{Role: "user", Content: "oi", Timestamp: time.Now()},
		{Role: "assistant", Content: "olá", Timestamp: time.Now()},
	})
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 2)

	// The transcript landed in the fallback store.
	kept, err := fallback.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "s1", kept[0].SessionID)

	assert.False(t, f.Connected(ctx))
}

func TestFailoverAdminAndHistorySurface(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := NewFailover(&downStore{Memory: NewMemory()}, NewMemory(), log.NewNop())

	_, err := f.ListSessions(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = f.Stats(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = f.Dashboard(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFailoverBotAccessCountsInMemory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := NewFailover(&downStore{Memory: NewMemory()}, NewMemory(), log.NewNop())

	total, err := f.RecordBotAccess(ctx, "chatbotHistoriador", "Chatbot Historiador", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	total, err = f.RecordBotAccess(ctx, "chatbotHistoriador", "Chatbot Historiador", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	ranking, err := f.BotRanking(ctx)
	require.NoError(t, err)
	require.Len(t, ranking, 1)
	assert.Equal(t, int64(2), ranking[0].Acessos)
}

func TestFailoverPassThroughWhenHealthy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	primary := NewMemory()
	f := NewFailover(primary, NewMemory(), log.NewNop())

	_, err := f.AppendMessages(ctx, "s1", "bot", []Message{
		{Role: "user", Content: "oi", Timestamp: time.Now()},
	})
	require.NoError(t, err)

	sessions, err := primary.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}
