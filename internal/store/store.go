// Package store provides conversation persistence for the chatbot.
//
// Three Storage implementations exist:
//   - Mongo: durable storage backed by MongoDB
//   - Memory: in-memory storage with the same semantics, no durability
//   - Failover: wraps a durable store and falls back to memory when the
//     database is unreachable, so the chat endpoint keeps working
//
// Collection names and document field names mirror the deployed database
// (sessoesChat, usuarios, configuracoes), so this code can point at an
// existing instance without migration.
package store

import (
	"context"
	"errors"
	"regexp"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates the backing database cannot be reached.
	ErrUnavailable = errors.New("storage unavailable")
)

const (
	// DefaultTitle is assigned to sessions created without a title.
	DefaultTitle = "Conversa Sem Título"

	// SystemInstructionKey is the settings key holding the global
	// system instruction configured by an admin.
	SystemInstructionKey = "system_instruction"
)

// Message is a single turn in a conversation. Role is "user" or "assistant".
type Message struct {
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// ChatSession is one conversation thread. IDs are opaque strings at the
// API boundary. Extra captures fields written by older backend versions;
// the deployed collection has no enforced schema.
type ChatSession struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	SessionID string             `bson:"sessionId" json:"sessionId"`
	BotID     string             `bson:"botId" json:"botId"`
	Titulo    string             `bson:"titulo" json:"titulo"`
	StartTime time.Time          `bson:"startTime" json:"startTime"`
	EndTime   *time.Time         `bson:"endTime,omitempty" json:"endTime,omitempty"`
	Messages  []Message          `bson:"messages" json:"messages"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`

	Extra map[string]any `bson:",inline" json:"-"`
}

// User is an identified frontend user with an optional per-user
// system instruction overriding the global one.
type User struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID            string             `bson:"userId" json:"userId"`
	Nome              string             `bson:"nome" json:"nome"`
	Email             string             `bson:"email" json:"email"`
	ApelidoBot        string             `bson:"apelidoBot" json:"apelidoBot"`
	SystemInstruction string             `bson:"systemInstruction" json:"systemInstruction"`
	CreatedAt         time.Time          `bson:"createdAt" json:"-"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"-"`
}

// Setting is a key/value configuration entry. Valor is free-form.
type Setting struct {
	Chave        string    `bson:"chave" json:"chave"`
	Valor        any       `bson:"valor" json:"valor"`
	AtualizadoEm time.Time `bson:"atualizadoEm" json:"atualizadoEm"`
}

// ConnectionLog is a telemetry record written when a frontend connects.
type ConnectionLog struct {
	IP        string    `bson:"ip" json:"ip"`
	Acao      string    `bson:"acao" json:"acao"`
	NomeBot   string    `bson:"nomeBot,omitempty" json:"nomeBot,omitempty"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// BotAccess is a per-bot access counter used by the ranking endpoints.
type BotAccess struct {
	BotID        string    `bson:"botId" json:"botId"`
	NomeBot      string    `bson:"nomeBot" json:"nomeBot"`
	Acessos      int64     `bson:"acessos" json:"acessos"`
	UltimoAcesso time.Time `bson:"ultimoAcesso" json:"ultimoAcesso"`
}

// SessionSummary is a compact session view for the admin dashboard.
type SessionSummary struct {
	SessionID string    `bson:"sessionId" json:"sessionId"`
	Titulo    string    `bson:"titulo" json:"titulo"`
	StartTime time.Time `bson:"startTime" json:"startTime"`
	Messages  int64     `bson:"messages" json:"messages"`
}

// BucketCount is one entry of the message-count distribution. ID is the
// lower boundary of the bucket, or "muito_longas" for the overflow bucket.
type BucketCount struct {
	ID    any   `bson:"_id" json:"_id"`
	Count int64 `bson:"count" json:"count"`
}

// UserEngagement ranks the most active users. The grouping key is the
// sessionId; the deployed dashboard has always reported it as userId and
// consumers depend on that shape.
type UserEngagement struct {
	UserID           string    `bson:"_id" json:"userId"`
	TotalSessoes     int64     `bson:"totalSessoes" json:"totalSessoes"`
	TotalMensagens   int64     `bson:"totalMensagens" json:"totalMensagens"`
	UltimaAtividade  time.Time `bson:"ultimaAtividade" json:"ultimaAtividade"`
	EngajamentoScore float64   `bson:"engajamentoScore" json:"engajamentoScore"`
}

// FailureExample is a sampled inconclusive assistant reply.
type FailureExample struct {
	Content string `bson:"content" json:"content"`
}

// FailedConversation groups inconclusive replies per session.
type FailedConversation struct {
	SessionID      string           `bson:"_id" json:"sessionId"`
	Titulo         string           `bson:"titulo" json:"titulo"`
	TotalFalhas    int64            `bson:"totalFalhas" json:"totalFalhas"`
	ExemplosFalhas []FailureExample `bson:"exemplosFalhas" json:"exemplosFalhas"`
}

// Stats is the lightweight admin statistics view.
type Stats struct {
	TotalConversas   int64            `json:"totalConversas"`
	TotalMensagens   int64            `json:"totalMensagens"`
	MongoConnected   bool             `json:"mongoConnected"`
	UltimasConversas []SessionSummary `json:"ultimasConversas"`
}

// Dashboard is the full admin dashboard payload.
type Dashboard struct {
	Stats

	DuracaoMedia           float64              `json:"duracaoMedia"`
	ConversasCurtas        int64                `json:"conversasCurtas"`
	ConversasLongas        int64                `json:"conversasLongas"`
	DistribuicaoDetalhada  []BucketCount        `json:"distribuicaoDetalhada"`
	TopUsuarios            []UserEngagement     `json:"topUsuarios"`
	RespostasInconclusivas int64                `json:"respostasInconclusivas"`
	ConversasComFalha      []FailedConversation `json:"conversasComFalha"`
}

// Storage is the persistence contract handlers depend on.
// Mongo, Memory and Failover implement it.
type Storage interface {
	// AppendMessages appends turns to the session identified by sessionID,
	// creating the session when it does not exist yet.
	AppendMessages(ctx context.Context, sessionID, botID string, msgs []Message) (*ChatSession, error)

	// ListSessions returns all sessions, most recent first.
	ListSessions(ctx context.Context) ([]ChatSession, error)

	// Session returns one session by its document ID.
	Session(ctx context.Context, id string) (*ChatSession, error)

	// SetTitle renames a session by document ID.
	SetTitle(ctx context.Context, id, titulo string) (*ChatSession, error)

	// SetTitleBySession renames a session by its sessionId, the fallback
	// path the frontend uses when it only knows the thread identifier.
	SetTitleBySession(ctx context.Context, sessionID, titulo string) (*ChatSession, error)

	// DeleteSession removes a session by document ID.
	DeleteSession(ctx context.Context, id string) error

	// User returns a user by userId.
	User(ctx context.Context, userID string) (*User, error)

	// SaveUser upserts a user by userId (simple-login path).
	SaveUser(ctx context.Context, u User) (*User, error)

	// SetUserInstruction upserts the per-user system instruction.
	SetUserInstruction(ctx context.Context, userID, instruction string) (*User, error)

	// Setting returns a configuration entry by key.
	Setting(ctx context.Context, chave string) (*Setting, error)

	// PutSetting upserts a configuration entry.
	PutSetting(ctx context.Context, chave string, valor any) error

	// LogConnection records a frontend connection event.
	LogConnection(ctx context.Context, entry ConnectionLog) error

	// RecordBotAccess increments a per-bot access counter and returns
	// the new total.
	RecordBotAccess(ctx context.Context, botID, nomeBot string, at time.Time) (int64, error)

	// BotRanking returns access counters, most accessed first.
	BotRanking(ctx context.Context) ([]BotAccess, error)

	// Stats returns the lightweight admin statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Dashboard returns the full admin dashboard aggregation.
	Dashboard(ctx context.Context) (*Dashboard, error)

	// Connected reports whether the durable backend is reachable.
	Connected(ctx context.Context) bool
}

// engagementBoundaries are the message-count buckets of the dashboard
// distribution. Sessions with 100+ messages land in the overflow bucket.
var engagementBoundaries = []int{0, 2, 5, 10, 20, 50, 100}

// overflowBucket labels sessions past the last boundary.
const overflowBucket = "muito_longas"

// shortSessionMax is the inclusive message-count ceiling for a session
// to count as "curta".
const shortSessionMax = 3

// failurePattern matches canned refusal phrases in assistant replies.
// Kept as a plain pattern so the Mongo pipeline can reuse it with the
// case-insensitive option.
const failurePattern = `não sei|não posso|não consigo|não entendi|não foi possível|desculpe|não tenho certeza`

var failureRegexp = regexp.MustCompile(`(?i)` + failurePattern)

// inconclusiveLen flags very short replies as inconclusive.
const inconclusiveLen = 20

// inconclusive reports whether an assistant reply looks like a failure.
func inconclusive(content string) bool {
	return failureRegexp.MatchString(content) || utf8.RuneCountInString(content) <= inconclusiveLen
}
