package store

import (
	"context"
	"errors"
	"time"

	"github.com/MariDenig/chatBot-hist/internal/log"
)

// Failover wraps a durable store with an in-memory fallback so the chat
// flow survives database outages.
//
// Fallback policy:
//   - Chat-path operations (AppendMessages, User, Setting, telemetry)
//     fall back to memory when the database is unreachable, so POST /chat
//     keeps answering and transcripts accumulate in memory.
//   - Admin and history operations surface ErrUnavailable; their handlers
//     translate it (503 for history, zeroed payloads for admin).
//
// Sessions captured in memory during an outage are NOT replayed into the
// database afterwards; the deployed system has the same behavior.
type Failover struct {
	primary  Storage
	fallback *Memory
	logger   log.Logger
}

// NewFailover wraps primary with an in-memory fallback.
func NewFailover(primary Storage, fallback *Memory, logger log.Logger) *Failover {
	return &Failover{primary: primary, fallback: fallback, logger: logger}
}

// unavailable reports whether err means the database cannot be reached.
func unavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// AppendMessages implements Storage with memory fallback.
func (f *Failover) AppendMessages(ctx context.Context, sessionID, botID string, msgs []Message) (*ChatSession, error) {
	sess, err := f.primary.AppendMessages(ctx, sessionID, botID, msgs)
	if unavailable(err) {
		f.logger.Warn("database unavailable, keeping transcript in memory", "sessionId", sessionID)
		return f.fallback.AppendMessages(ctx, sessionID, botID, msgs)
	}
	return sess, err
}

// ListSessions implements Storage (no fallback, history endpoints report 503).
func (f *Failover) ListSessions(ctx context.Context) ([]ChatSession, error) {
	return f.primary.ListSessions(ctx)
}

// Session implements Storage (no fallback).
func (f *Failover) Session(ctx context.Context, id string) (*ChatSession, error) {
	return f.primary.Session(ctx, id)
}

// SetTitle implements Storage (no fallback).
func (f *Failover) SetTitle(ctx context.Context, id, titulo string) (*ChatSession, error) {
	return f.primary.SetTitle(ctx, id, titulo)
}

// SetTitleBySession implements Storage (no fallback).
func (f *Failover) SetTitleBySession(ctx context.Context, sessionID, titulo string) (*ChatSession, error) {
	return f.primary.SetTitleBySession(ctx, sessionID, titulo)
}

// DeleteSession implements Storage (no fallback).
func (f *Failover) DeleteSession(ctx context.Context, id string) error {
	return f.primary.DeleteSession(ctx, id)
}

// User implements Storage with memory fallback so per-user instructions
// keep resolving during an outage.
func (f *Failover) User(ctx context.Context, userID string) (*User, error) {
	u, err := f.primary.User(ctx, userID)
	if unavailable(err) {
		return f.fallback.User(ctx, userID)
	}
	return u, err
}

// SaveUser implements Storage with memory fallback.
func (f *Failover) SaveUser(ctx context.Context, u User) (*User, error) {
	saved, err := f.primary.SaveUser(ctx, u)
	if unavailable(err) {
		return f.fallback.SaveUser(ctx, u)
	}
	return saved, err
}

// SetUserInstruction implements Storage with memory fallback.
func (f *Failover) SetUserInstruction(ctx context.Context, userID, instruction string) (*User, error) {
	u, err := f.primary.SetUserInstruction(ctx, userID, instruction)
	if unavailable(err) {
		return f.fallback.SetUserInstruction(ctx, userID, instruction)
	}
	return u, err
}

// Setting implements Storage with memory fallback.
func (f *Failover) Setting(ctx context.Context, chave string) (*Setting, error) {
	s, err := f.primary.Setting(ctx, chave)
	if unavailable(err) {
		return f.fallback.Setting(ctx, chave)
	}
	return s, err
}

// PutSetting implements Storage with memory fallback.
func (f *Failover) PutSetting(ctx context.Context, chave string, valor any) error {
	err := f.primary.PutSetting(ctx, chave, valor)
	if unavailable(err) {
		return f.fallback.PutSetting(ctx, chave, valor)
	}
	return err
}

// LogConnection implements Storage with memory fallback.
func (f *Failover) LogConnection(ctx context.Context, entry ConnectionLog) error {
	err := f.primary.LogConnection(ctx, entry)
	if unavailable(err) {
		return f.fallback.LogConnection(ctx, entry)
	}
	return err
}

// RecordBotAccess implements Storage. The in-memory counter is always
// kept so the ranking survives outages; the durable write is best effort.
func (f *Failover) RecordBotAccess(ctx context.Context, botID, nomeBot string, at time.Time) (int64, error) {
	count, memErr := f.fallback.RecordBotAccess(ctx, botID, nomeBot, at)

	total, err := f.primary.RecordBotAccess(ctx, botID, nomeBot, at)
	if err != nil {
		if !unavailable(err) {
			f.logger.Warn("recording bot access", "botId", botID, "error", err)
		}
		return count, memErr
	}
	return total, nil
}

// BotRanking implements Storage with memory fallback.
func (f *Failover) BotRanking(ctx context.Context) ([]BotAccess, error) {
	ranking, err := f.primary.BotRanking(ctx)
	if unavailable(err) {
		return f.fallback.BotRanking(ctx)
	}
	return ranking, err
}

// Stats implements Storage (no fallback, the admin handler zeroes the payload).
func (f *Failover) Stats(ctx context.Context) (*Stats, error) {
	return f.primary.Stats(ctx)
}

// Dashboard implements Storage (no fallback).
func (f *Failover) Dashboard(ctx context.Context) (*Dashboard, error) {
	return f.primary.Dashboard(ctx)
}

// Connected implements Storage.
func (f *Failover) Connected(ctx context.Context) bool {
	return f.primary.Connected(ctx)
}
