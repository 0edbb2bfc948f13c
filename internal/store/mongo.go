package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MariDenig/chatBot-hist/internal/log"
)

// Collection names match the deployed database.
const (
	collSessions   = "sessoesChat"
	collUsers      = "usuarios"
	collSettings   = "configuracoes"
	collConnLogs   = "connectionLogs"
	collBotAccess  = "botAccesses"
	recentSessions = 5
	topUsers       = 5
	topFailures    = 5
)

// Mongo connection tuning.
const (
	maxPoolSize    = 50
	minPoolSize    = 10
	connectTimeout = 5 * time.Second
	socketTimeout  = 10 * time.Second
	pingTimeout    = 2 * time.Second
)

// Mongo is the durable Storage implementation backed by MongoDB.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	logger log.Logger
}

// NewMongo creates a Mongo store. The driver connects lazily, so this
// succeeds even when the database is down; callers should check
// Connected() and rely on Failover for runtime outages.
func NewMongo(ctx context.Context, uri, database string, logger log.Logger) (*Mongo, error) {
	opts := options.Client().ApplyURI(uri).
		SetMaxPoolSize(maxPoolSize).
		SetMinPoolSize(minPoolSize).
		SetConnectTimeout(connectTimeout).
		SetSocketTimeout(socketTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	m := &Mongo{
		client: client,
		db:     client.Database(database),
		logger: logger,
	}

	if err := m.ensureIndexes(ctx); err != nil {
		// Index creation fails when the database is down; the server
		// still starts and serves from the in-memory fallback.
		logger.Warn("could not ensure indexes", "error", err)
	}

	return m, nil
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnecting from MongoDB: %w", err)
	}
	return nil
}

// ensureIndexes creates the unique indexes the data model relies on.
// sessionId is deliberately NOT unique; the deployed collection has
// never enforced it.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	unique := options.Index().SetUnique(true)

	if _, err := m.db.Collection(collUsers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: unique,
	}); err != nil {
		return fmt.Errorf("creating userId index: %w", err)
	}

	if _, err := m.db.Collection(collSettings).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "chave", Value: 1}},
		Options: unique,
	}); err != nil {
		return fmt.Errorf("creating chave index: %w", err)
	}

	if _, err := m.db.Collection(collBotAccess).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "botId", Value: 1}},
		Options: unique,
	}); err != nil {
		return fmt.Errorf("creating botId index: %w", err)
	}

	return nil
}

// wrapErr converts driver failures into the package sentinels so
// handlers can branch with errors.Is.
func wrapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, mongo.ErrClientDisconnected),
		errors.Is(err, context.DeadlineExceeded),
		mongo.IsTimeout(err),
		mongo.IsNetworkError(err):
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// AppendMessages implements Storage. A single upsert keeps the
// read-then-write window closed on the happy path: new sessions are
// created and existing ones extended atomically. The insert path picks
// sessionId up from the filter; repeating it in $setOnInsert makes the
// server reject the upsert with a path conflict.
func (m *Mongo) AppendMessages(ctx context.Context, sessionID, botID string, msgs []Message) (*ChatSession, error) {
	now := time.Now()

	filter := bson.D{{Key: "sessionId", Value: sessionID}}
	update := bson.D{
		{Key: "$push", Value: bson.D{
			{Key: "messages", Value: bson.D{{Key: "$each", Value: msgs}}},
		}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: now}}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "botId", Value: botID},
			{Key: "titulo", Value: DefaultTitle},
			{Key: "startTime", Value: now},
		}},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var sess ChatSession
	err := m.db.Collection(collSessions).FindOneAndUpdate(ctx, filter, update, opts).Decode(&sess)
	if err != nil {
		return nil, wrapErr("appending messages", err)
	}
	return &sess, nil
}

// ListSessions implements Storage.
func (m *Mongo) ListSessions(ctx context.Context) ([]ChatSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startTime", Value: -1}})
	cursor, err := m.db.Collection(collSessions).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, wrapErr("listing sessions", err)
	}

	var sessions []ChatSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, wrapErr("decoding sessions", err)
	}
	return sessions, nil
}

// Session implements Storage.
func (m *Mongo) Session(ctx context.Context, id string) (*ChatSession, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}

	var sess ChatSession
	err = m.db.Collection(collSessions).FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&sess)
	if err != nil {
		return nil, wrapErr("loading session", err)
	}
	return &sess, nil
}

// SetTitle implements Storage.
func (m *Mongo) SetTitle(ctx context.Context, id, titulo string) (*ChatSession, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return m.rename(ctx, bson.D{{Key: "_id", Value: oid}}, titulo)
}

// SetTitleBySession implements Storage.
func (m *Mongo) SetTitleBySession(ctx context.Context, sessionID, titulo string) (*ChatSession, error) {
	return m.rename(ctx, bson.D{{Key: "sessionId", Value: sessionID}}, titulo)
}

func (m *Mongo) rename(ctx context.Context, filter bson.D, titulo string) (*ChatSession, error) {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "titulo", Value: titulo},
		{Key: "updatedAt", Value: time.Now()},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var sess ChatSession
	err := m.db.Collection(collSessions).FindOneAndUpdate(ctx, filter, update, opts).Decode(&sess)
	if err != nil {
		return nil, wrapErr("renaming session", err)
	}
	return &sess, nil
}

// DeleteSession implements Storage.
func (m *Mongo) DeleteSession(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}

	res, err := m.db.Collection(collSessions).DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return wrapErr("deleting session", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return nil
}

// User implements Storage.
func (m *Mongo) User(ctx context.Context, userID string) (*User, error) {
	var u User
	err := m.db.Collection(collUsers).FindOne(ctx, bson.D{{Key: "userId", Value: userID}}).Decode(&u)
	if err != nil {
		return nil, wrapErr("loading user", err)
	}
	return &u, nil
}

// SaveUser implements Storage.
func (m *Mongo) SaveUser(ctx context.Context, u User) (*User, error) {
	now := time.Now()
	set := bson.D{{Key: "updatedAt", Value: now}}
	if u.Nome != "" {
		set = append(set, bson.E{Key: "nome", Value: u.Nome})
	}
	if u.Email != "" {
		set = append(set, bson.E{Key: "email", Value: u.Email})
	}
	if u.ApelidoBot != "" {
		set = append(set, bson.E{Key: "apelidoBot", Value: u.ApelidoBot})
	}

	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$setOnInsert", Value: bson.D{{Key: "createdAt", Value: now}}},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var saved User
	err := m.db.Collection(collUsers).
		FindOneAndUpdate(ctx, bson.D{{Key: "userId", Value: u.UserID}}, update, opts).
		Decode(&saved)
	if err != nil {
		return nil, wrapErr("saving user", err)
	}
	return &saved, nil
}

// SetUserInstruction implements Storage. An empty instruction clears the
// per-user override so the global instruction applies again.
func (m *Mongo) SetUserInstruction(ctx context.Context, userID, instruction string) (*User, error) {
	now := time.Now()
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "systemInstruction", Value: instruction},
			{Key: "updatedAt", Value: now},
		}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "createdAt", Value: now}}},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var u User
	err := m.db.Collection(collUsers).
		FindOneAndUpdate(ctx, bson.D{{Key: "userId", Value: userID}}, update, opts).
		Decode(&u)
	if err != nil {
		return nil, wrapErr("saving user instruction", err)
	}
	return &u, nil
}

// Setting implements Storage.
func (m *Mongo) Setting(ctx context.Context, chave string) (*Setting, error) {
	var s Setting
	err := m.db.Collection(collSettings).FindOne(ctx, bson.D{{Key: "chave", Value: chave}}).Decode(&s)
	if err != nil {
		return nil, wrapErr("loading setting", err)
	}
	return &s, nil
}

// PutSetting implements Storage.
func (m *Mongo) PutSetting(ctx context.Context, chave string, valor any) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "chave", Value: chave},
		{Key: "valor", Value: valor},
		{Key: "atualizadoEm", Value: time.Now()},
	}}}
	_, err := m.db.Collection(collSettings).
		UpdateOne(ctx, bson.D{{Key: "chave", Value: chave}}, update, options.Update().SetUpsert(true))
	return wrapErr("saving setting", err)
}

// LogConnection implements Storage.
func (m *Mongo) LogConnection(ctx context.Context, entry ConnectionLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	_, err := m.db.Collection(collConnLogs).InsertOne(ctx, entry)
	return wrapErr("logging connection", err)
}

// RecordBotAccess implements Storage.
func (m *Mongo) RecordBotAccess(ctx context.Context, botID, nomeBot string, at time.Time) (int64, error) {
	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "acessos", Value: 1}}},
		{Key: "$set", Value: bson.D{
			{Key: "nomeBot", Value: nomeBot},
			{Key: "ultimoAcesso", Value: at},
		}},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var access BotAccess
	err := m.db.Collection(collBotAccess).
		FindOneAndUpdate(ctx, bson.D{{Key: "botId", Value: botID}}, update, opts).
		Decode(&access)
	if err != nil {
		return 0, wrapErr("recording bot access", err)
	}
	return access.Acessos, nil
}

// BotRanking implements Storage.
func (m *Mongo) BotRanking(ctx context.Context) ([]BotAccess, error) {
	opts := options.Find().SetSort(bson.D{{Key: "acessos", Value: -1}})
	cursor, err := m.db.Collection(collBotAccess).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, wrapErr("loading bot ranking", err)
	}

	var ranking []BotAccess
	if err := cursor.All(ctx, &ranking); err != nil {
		return nil, wrapErr("decoding bot ranking", err)
	}
	return ranking, nil
}

// Connected implements Storage by pinging the server with a short timeout.
func (m *Mongo) Connected(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return m.client.Ping(ctx, nil) == nil
}
