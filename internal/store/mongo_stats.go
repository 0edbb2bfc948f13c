package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// msgCountExpr counts messages per session, tolerating legacy documents
// where the array is missing entirely.
var msgCountExpr = bson.D{{Key: "$size", Value: bson.D{
	{Key: "$ifNull", Value: bson.A{"$messages", bson.A{}}},
}}}

// Stats implements Storage.
func (m *Mongo) Stats(ctx context.Context) (*Stats, error) {
	sessions := m.db.Collection(collSessions)

	total, err := sessions.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, wrapErr("counting sessions", err)
	}

	var totals []struct {
		Total int64 `bson:"total"`
	}
	pipe := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: msgCountExpr}}},
		}}},
	}
	if err := m.aggregate(ctx, pipe, &totals); err != nil {
		return nil, wrapErr("counting messages", err)
	}

	var totalMsgs int64
	if len(totals) > 0 {
		totalMsgs = totals[0].Total
	}

	var recent []SessionSummary
	pipe = mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "startTime", Value: -1}}}},
		{{Key: "$limit", Value: recentSessions}},
		{{Key: "$project", Value: bson.D{
			{Key: "sessionId", Value: 1},
			{Key: "titulo", Value: 1},
			{Key: "startTime", Value: 1},
			{Key: "messages", Value: msgCountExpr},
		}}},
	}
	if err := m.aggregate(ctx, pipe, &recent); err != nil {
		return nil, wrapErr("loading recent sessions", err)
	}

	return &Stats{
		TotalConversas:   total,
		TotalMensagens:   totalMsgs,
		MongoConnected:   true,
		UltimasConversas: recent,
	}, nil
}

// Dashboard implements Storage. Each section is a separate pipeline over
// sessoesChat; the collection is small enough that round trips dominate
// over any single-pipeline cleverness.
func (m *Mongo) Dashboard(ctx context.Context) (*Dashboard, error) {
	stats, err := m.Stats(ctx)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{Stats: *stats}

	if err := m.sessionLengths(ctx, d); err != nil {
		return nil, err
	}
	if err := m.lengthDistribution(ctx, d); err != nil {
		return nil, err
	}
	if err := m.topUsuarios(ctx, d); err != nil {
		return nil, err
	}
	if err := m.failedConversations(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// sessionLengths computes the average message count and the short/long
// session split.
func (m *Mongo) sessionLengths(ctx context.Context, d *Dashboard) error {
	pipe := mongo.Pipeline{
		{{Key: "$project", Value: bson.D{{Key: "msgCount", Value: msgCountExpr}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "media", Value: bson.D{{Key: "$avg", Value: "$msgCount"}}},
			{Key: "curtas", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$lte", Value: bson.A{"$msgCount", shortSessionMax}}}, 1, 0,
			}}}}}},
			{Key: "longas", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$gt", Value: bson.A{"$msgCount", shortSessionMax}}}, 1, 0,
			}}}}}},
		}}},
	}

	var out []struct {
		Media  float64 `bson:"media"`
		Curtas int64   `bson:"curtas"`
		Longas int64   `bson:"longas"`
	}
	if err := m.aggregate(ctx, pipe, &out); err != nil {
		return wrapErr("computing session lengths", err)
	}
	if len(out) > 0 {
		d.DuracaoMedia = out[0].Media
		d.ConversasCurtas = out[0].Curtas
		d.ConversasLongas = out[0].Longas
	}
	return nil
}

// lengthDistribution buckets sessions by message count.
func (m *Mongo) lengthDistribution(ctx context.Context, d *Dashboard) error {
	boundaries := bson.A{}
	for _, b := range engagementBoundaries {
		boundaries = append(boundaries, b)
	}

	pipe := mongo.Pipeline{
		{{Key: "$project", Value: bson.D{{Key: "msgCount", Value: msgCountExpr}}}},
		{{Key: "$bucket", Value: bson.D{
			{Key: "groupBy", Value: "$msgCount"},
			{Key: "boundaries", Value: boundaries},
			{Key: "default", Value: overflowBucket},
			{Key: "output", Value: bson.D{
				{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			}},
		}}},
	}

	var buckets []BucketCount
	if err := m.aggregate(ctx, pipe, &buckets); err != nil {
		return wrapErr("computing length distribution", err)
	}
	d.DistribuicaoDetalhada = buckets
	return nil
}

// topUsuarios ranks engagement. Grouping is by sessionId and the result
// is exposed as userId; see UserEngagement.
func (m *Mongo) topUsuarios(ctx context.Context, d *Dashboard) error {
	pipe := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$sessionId"},
			{Key: "totalSessoes", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "totalMensagens", Value: bson.D{{Key: "$sum", Value: msgCountExpr}}},
			{Key: "ultimaAtividade", Value: bson.D{{Key: "$max", Value: bson.D{
				{Key: "$ifNull", Value: bson.A{"$updatedAt", "$startTime"}},
			}}}},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "engajamentoScore", Value: bson.D{{Key: "$round", Value: bson.A{
				bson.D{{Key: "$add", Value: bson.A{
					bson.D{{Key: "$multiply", Value: bson.A{"$totalSessoes", 2}}},
					bson.D{{Key: "$multiply", Value: bson.A{"$totalMensagens", 0.1}}},
				}}},
				1,
			}}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "engajamentoScore", Value: -1}}}},
		{{Key: "$limit", Value: topUsers}},
	}

	var top []UserEngagement
	if err := m.aggregate(ctx, pipe, &top); err != nil {
		return wrapErr("computing top users", err)
	}
	d.TopUsuarios = top
	return nil
}

// failedConversations finds sessions whose assistant replies look
// inconclusive: canned refusal phrases or very short answers.
func (m *Mongo) failedConversations(ctx context.Context, d *Dashboard) error {
	failureExpr := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "$regexMatch", Value: bson.D{
			{Key: "input", Value: "$messages.content"},
			{Key: "regex", Value: failurePattern},
			{Key: "options", Value: "i"},
		}}},
		bson.D{{Key: "$lte", Value: bson.A{
			bson.D{{Key: "$strLenCP", Value: "$messages.content"}}, inconclusiveLen,
		}}},
	}}}

	pipe := mongo.Pipeline{
		{{Key: "$unwind", Value: "$messages"}},
		{{Key: "$match", Value: bson.D{{Key: "messages.role", Value: "assistant"}}}},
		{{Key: "$match", Value: bson.D{{Key: "$expr", Value: failureExpr}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$sessionId"},
			{Key: "titulo", Value: bson.D{{Key: "$first", Value: "$titulo"}}},
			{Key: "totalFalhas", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "exemplos", Value: bson.D{{Key: "$push", Value: bson.D{
				{Key: "content", Value: "$messages.content"},
			}}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "titulo", Value: 1},
			{Key: "totalFalhas", Value: 1},
			{Key: "exemplosFalhas", Value: bson.D{{Key: "$slice", Value: bson.A{"$exemplos", 3}}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "totalFalhas", Value: -1}}}},
	}

	var failed []FailedConversation
	if err := m.aggregate(ctx, pipe, &failed); err != nil {
		return wrapErr("computing failed conversations", err)
	}

	for _, f := range failed {
		d.RespostasInconclusivas += f.TotalFalhas
	}
	if len(failed) > topFailures {
		failed = failed[:topFailures]
	}
	d.ConversasComFalha = failed
	return nil
}

// aggregate runs a pipeline on sessoesChat and decodes all results.
func (m *Mongo) aggregate(ctx context.Context, pipe mongo.Pipeline, out any) error {
	cursor, err := m.db.Collection(collSessions).Aggregate(ctx, pipe)
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}
