package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is the in-memory Storage implementation. It backs tests and the
// failover path when MongoDB is unreachable. All methods are safe for
// concurrent use.
type Memory struct {
	mu        sync.RWMutex
	sessions  map[string]*ChatSession // keyed by sessionId
	users     map[string]*User        // keyed by userId
	settings  map[string]*Setting
	connLogs  []ConnectionLog
	botAccess map[string]*BotAccess // keyed by botId
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions:  make(map[string]*ChatSession),
		users:     make(map[string]*User),
		settings:  make(map[string]*Setting),
		botAccess: make(map[string]*BotAccess),
	}
}

// AppendMessages implements Storage.
func (m *Memory) AppendMessages(_ context.Context, sessionID, botID string, msgs []Message) (*ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	sess, ok := m.sessions[sessionID]
	if !ok {
		sess = &ChatSession{
			ID:        primitive.NewObjectID(),
			SessionID: sessionID,
			BotID:     botID,
			Titulo:    DefaultTitle,
			StartTime: now,
		}
		m.sessions[sessionID] = sess
	}
	sess.Messages = append(sess.Messages, msgs...)
	sess.UpdatedAt = now

	cp := *sess
	cp.Messages = append([]Message(nil), sess.Messages...)
	return &cp, nil
}

// ListSessions implements Storage.
func (m *Memory) ListSessions(_ context.Context) ([]ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ChatSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		cp := *sess
		cp.Messages = append([]Message(nil), sess.Messages...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

// Session implements Storage.
func (m *Memory) Session(_ context.Context, id string) (*ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sess := range m.sessions {
		if sess.ID.Hex() == id {
			cp := *sess
			cp.Messages = append([]Message(nil), sess.Messages...)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// SetTitle implements Storage.
func (m *Memory) SetTitle(_ context.Context, id, titulo string) (*ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sess := range m.sessions {
		if sess.ID.Hex() == id {
			sess.Titulo = titulo
			sess.UpdatedAt = time.Now()
			cp := *sess
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// SetTitleBySession implements Storage.
func (m *Memory) SetTitleBySession(_ context.Context, sessionID, titulo string) (*ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	sess.Titulo = titulo
	sess.UpdatedAt = time.Now()
	cp := *sess
	return &cp, nil
}

// DeleteSession implements Storage.
func (m *Memory) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, sess := range m.sessions {
		if sess.ID.Hex() == id {
			delete(m.sessions, key)
			return nil
		}
	}
	return ErrNotFound
}

// User implements Storage.
func (m *Memory) User(_ context.Context, userID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// SaveUser implements Storage.
func (m *Memory) SaveUser(_ context.Context, u User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	existing, ok := m.users[u.UserID]
	if !ok {
		existing = &User{
			ID:        primitive.NewObjectID(),
			UserID:    u.UserID,
			CreatedAt: now,
		}
		m.users[u.UserID] = existing
	}
	if u.Nome != "" {
		existing.Nome = u.Nome
	}
	if u.Email != "" {
		existing.Email = u.Email
	}
	if u.ApelidoBot != "" {
		existing.ApelidoBot = u.ApelidoBot
	}
	existing.UpdatedAt = now

	cp := *existing
	return &cp, nil
}

// SetUserInstruction implements Storage.
func (m *Memory) SetUserInstruction(_ context.Context, userID, instruction string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	u, ok := m.users[userID]
	if !ok {
		u = &User{
			ID:        primitive.NewObjectID(),
			UserID:    userID,
			CreatedAt: now,
		}
		m.users[userID] = u
	}
	u.SystemInstruction = instruction
	u.UpdatedAt = now

	cp := *u
	return &cp, nil
}

// Setting implements Storage.
func (m *Memory) Setting(_ context.Context, chave string) (*Setting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.settings[chave]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// PutSetting implements Storage.
func (m *Memory) PutSetting(_ context.Context, chave string, valor any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings[chave] = &Setting{
		Chave:        chave,
		Valor:        valor,
		AtualizadoEm: time.Now(),
	}
	return nil
}

// LogConnection implements Storage.
func (m *Memory) LogConnection(_ context.Context, entry ConnectionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	m.connLogs = append(m.connLogs, entry)
	return nil
}

// RecordBotAccess implements Storage.
func (m *Memory) RecordBotAccess(_ context.Context, botID, nomeBot string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	access, ok := m.botAccess[botID]
	if !ok {
		access = &BotAccess{BotID: botID}
		m.botAccess[botID] = access
	}
	access.Acessos++
	access.NomeBot = nomeBot
	access.UltimoAcesso = at
	return access.Acessos, nil
}

// BotRanking implements Storage.
func (m *Memory) BotRanking(_ context.Context) ([]BotAccess, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]BotAccess, 0, len(m.botAccess))
	for _, access := range m.botAccess {
		out = append(out, *access)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Acessos > out[j].Acessos })
	return out, nil
}

// Stats implements Storage. MongoConnected is false: this store only
// serves stats while the database is down.
func (m *Memory) Stats(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{TotalConversas: int64(len(m.sessions))}
	recent := make([]SessionSummary, 0, len(m.sessions))
	for _, sess := range m.sessions {
		stats.TotalMensagens += int64(len(sess.Messages))
		recent = append(recent, SessionSummary{
			SessionID: sess.SessionID,
			Titulo:    sess.Titulo,
			StartTime: sess.StartTime,
			Messages:  int64(len(sess.Messages)),
		})
	}
	sort.Slice(recent, func(i, j int) bool { return recent[i].StartTime.After(recent[j].StartTime) })
	if len(recent) > recentSessions {
		recent = recent[:recentSessions]
	}
	stats.UltimasConversas = recent
	return stats, nil
}

// Dashboard implements Storage with the same aggregation semantics as
// the Mongo pipelines, computed in Go.
func (m *Memory) Dashboard(ctx context.Context) (*Dashboard, error) {
	stats, err := m.Stats(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	d := &Dashboard{Stats: *stats}

	bucketCounts := make(map[any]int64)
	var totalMsgs int64
	for _, sess := range m.sessions {
		n := len(sess.Messages)
		totalMsgs += int64(n)

		if n <= shortSessionMax {
			d.ConversasCurtas++
		} else {
			d.ConversasLongas++
		}
		bucketCounts[bucketFor(n)]++

		eng := UserEngagement{
			UserID:          sess.SessionID,
			TotalSessoes:    1,
			TotalMensagens:  int64(n),
			UltimaAtividade: sess.UpdatedAt,
		}
		eng.EngajamentoScore = math.Round((float64(eng.TotalSessoes)*2+float64(eng.TotalMensagens)*0.1)*10) / 10
		d.TopUsuarios = append(d.TopUsuarios, eng)

		if failed := failuresIn(sess); failed != nil {
			d.RespostasInconclusivas += failed.TotalFalhas
			d.ConversasComFalha = append(d.ConversasComFalha, *failed)
		}
	}

	if len(m.sessions) > 0 {
		d.DuracaoMedia = float64(totalMsgs) / float64(len(m.sessions))
	}

	for _, b := range engagementBoundaries {
		if count, ok := bucketCounts[b]; ok {
			d.DistribuicaoDetalhada = append(d.DistribuicaoDetalhada, BucketCount{ID: b, Count: count})
		}
	}
	if count, ok := bucketCounts[overflowBucket]; ok {
		d.DistribuicaoDetalhada = append(d.DistribuicaoDetalhada, BucketCount{ID: overflowBucket, Count: count})
	}

	sort.Slice(d.TopUsuarios, func(i, j int) bool {
		return d.TopUsuarios[i].EngajamentoScore > d.TopUsuarios[j].EngajamentoScore
	})
	if len(d.TopUsuarios) > topUsers {
		d.TopUsuarios = d.TopUsuarios[:topUsers]
	}

	sort.Slice(d.ConversasComFalha, func(i, j int) bool {
		return d.ConversasComFalha[i].TotalFalhas > d.ConversasComFalha[j].TotalFalhas
	})
	if len(d.ConversasComFalha) > topFailures {
		d.ConversasComFalha = d.ConversasComFalha[:topFailures]
	}

	return d, nil
}

// Connected implements Storage. The memory store is always reachable but
// never counts as a connected database.
func (m *Memory) Connected(context.Context) bool { return false }

// bucketFor maps a message count onto its distribution bucket.
func bucketFor(n int) any {
	for i := len(engagementBoundaries) - 1; i >= 0; i-- {
		if n >= engagementBoundaries[i] {
			if i == len(engagementBoundaries)-1 {
				return overflowBucket
			}
			return engagementBoundaries[i]
		}
	}
	return engagementBoundaries[0]
}

// failuresIn collects inconclusive assistant replies of one session.
func failuresIn(sess *ChatSession) *FailedConversation {
	var failed *FailedConversation
	for _, msg := range sess.Messages {
		if msg.Role != "assistant" || !inconclusive(msg.Content) {
			continue
		}
		if failed == nil {
			failed = &FailedConversation{SessionID: sess.SessionID, Titulo: sess.Titulo}
		}
		failed.TotalFalhas++
		if len(failed.ExemplosFalhas) < 3 {
			failed.ExemplosFalhas = append(failed.ExemplosFalhas, FailureExample{Content: msg.Content})
		}
	}
	return failed
}
