package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Config holds the MongoDB connection settings.
type Config struct {
	URI        string
	Database   string
	Collection string

	// ServerSelectionTimeout bounds how long an operation waits for a usable server.
	ServerSelectionTimeout time.Duration

	// SocketTimeout bounds a single read or write on a connection.
	SocketTimeout time.Duration
}

// DefaultConfig returns settings for a local development MongoDB.
func DefaultConfig() Config {
	return Config{
		URI:                    "mongodb://localhost:27017",
		Database:               "catalog",
		Collection:             "products",
		ServerSelectionTimeout: 5 * time.Second,
		SocketTimeout:          45 * time.Second,
	}
}

// Mongo is the MongoDB-backed product store.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     zerolog.Logger
}

// Connect opens the connection pool and verifies it with a ping.
// The returned store owns the client; call Close to release it.
func Connect(ctx context.Context, cfg Config, logger zerolog.Logger) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongodb uri is required")
	}
	if cfg.Database == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("mongodb database and collection are required")
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.ServerSelectionTimeout).
		SetSocketTimeout(cfg.SocketTimeout).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	logger.Info().
		Str("database", cfg.Database).
		Str("collection", cfg.Collection).
		Msg("Connected to MongoDB")

	return &Mongo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger,
	}, nil
}

// Close disconnects the client pool.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Collection exposes the underlying collection. It is a maintenance hook:
// tests use it to write documents that bypass Product, such as legacy records
// with non-numeric prices. Request paths go through the typed methods.
func (m *Mongo) Collection() *mongo.Collection {
	return m.collection
}

// FindAll returns every product in natural order.
func (m *Mongo) FindAll(ctx context.Context) (products []Product, err error) {
	defer func(start time.Time) { observe("find_all", start, err) }(time.Now())

	return m.find(ctx, bson.M{})
}

// FindByID returns the product with the given id.
// A malformed id cannot match any document and yields ErrNotFound.
func (m *Mongo) FindByID(ctx context.Context, id string) (p Product, err error) {
	defer func(start time.Time) { observe("find_by_id", start, err) }(time.Now())

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Product{}, ErrNotFound
	}

	var doc bson.M
	err = m.collection.FindOne(ctx, bson.M{FieldID: oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("mongo find one: %w", err)
	}
	return fromDocument(doc), nil
}

// InsertOne stores p and returns the assigned id. p.ID is ignored.
func (m *Mongo) InsertOne(ctx context.Context, p Product) (id string, err error) {
	defer func(start time.Time) { observe("insert_one", start, err) }(time.Now())

	res, err := m.collection.InsertOne(ctx, bson.M(p.Fields()))
	if err != nil {
		return "", wrapWriteError("mongo insert one", err)
	}
	return idString(res.InsertedID), nil
}

// InsertMany stores all products and returns how many were inserted.
func (m *Mongo) InsertMany(ctx context.Context, products []Product) (n int, err error) {
	defer func(start time.Time) { observe("insert_many", start, err) }(time.Now())

	if len(products) == 0 {
		return 0, nil
	}

	docs := make([]any, 0, len(products))
	for _, p := range products {
		docs = append(docs, bson.M(p.Fields()))
	}

	res, err := m.collection.InsertMany(ctx, docs)
	if err != nil {
		return 0, wrapWriteError("mongo insert many", err)
	}
	return len(res.InsertedIDs), nil
}

// UpdateOne applies fields with $set semantics to the product with the given id.
// A malformed id matches nothing.
func (m *Mongo) UpdateOne(ctx context.Context, id string, fields map[string]any) (res UpdateResult, err error) {
	defer func(start time.Time) { observe("update_one", start, err) }(time.Now())

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return UpdateResult{}, nil
	}

	out, err := m.collection.UpdateOne(ctx, bson.M{FieldID: oid}, bson.M{"$set": bson.M(fields)})
	if err != nil {
		return UpdateResult{}, wrapWriteError("mongo update one", err)
	}
	return UpdateResult{MatchedCount: out.MatchedCount, ModifiedCount: out.ModifiedCount}, nil
}

// DeleteOne removes the product with the given id and returns the deleted count.
func (m *Mongo) DeleteOne(ctx context.Context, id string) (n int64, err error) {
	defer func(start time.Time) { observe("delete_one", start, err) }(time.Now())

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, nil
	}

	out, err := m.collection.DeleteOne(ctx, bson.M{FieldID: oid})
	if err != nil {
		return 0, fmt.Errorf("mongo delete one: %w", err)
	}
	return out.DeletedCount, nil
}

// Search returns products whose name or description contains query,
// ignoring case. The query is matched literally.
func (m *Mongo) Search(ctx context.Context, query string) (products []Product, err error) {
	defer func(start time.Time) { observe("search", start, err) }(time.Now())

	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{"$or": bson.A{
		bson.M{FieldName: pattern},
		bson.M{FieldDescription: pattern},
	}}
	return m.find(ctx, filter)
}

// AggregateStats computes count, price statistics and per-category counts in
// one round trip. Non-numeric prices are ignored by the price statistics.
func (m *Mongo) AggregateStats(ctx context.Context) (stats Stats, err error) {
	defer func(start time.Time) { observe("aggregate_stats", start, err) }(time.Now())

	cur, err := m.collection.Aggregate(ctx, statsPipeline())
	if err != nil {
		return Stats{}, fmt.Errorf("mongo aggregate: %w", err)
	}
	defer cur.Close(ctx)

	var facets []statsFacet
	if err := cur.All(ctx, &facets); err != nil {
		return Stats{}, fmt.Errorf("mongo aggregate decode: %w", err)
	}

	stats = Stats{Categories: map[string]int64{}}
	if len(facets) == 0 {
		return stats, nil
	}

	if totals := facets[0].Totals; len(totals) > 0 {
		stats.Count = totals[0].Count
		stats.AvgPrice = totals[0].AvgPrice
		stats.MinPrice = totals[0].MinPrice
		stats.MaxPrice = totals[0].MaxPrice
	}
	for _, c := range facets[0].Categories {
		stats.Categories[categoryLabel(c.ID)] += c.Count
	}
	return stats, nil
}

// Ping checks connectivity to the primary.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) find(ctx context.Context, filter bson.M) ([]Product, error) {
	cur, err := m.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer cur.Close(ctx)

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo find decode: %w", err)
	}

	products := make([]Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, fromDocument(doc))
	}
	return products, nil
}

// documentValidationFailure is the server code for a $jsonSchema rejection.
const documentValidationFailure = 121

func wrapWriteError(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrRejected, err)
	}

	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == documentValidationFailure {
				return fmt.Errorf("%s: %w: %v", op, ErrRejected, err)
			}
		}
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == documentValidationFailure {
				return fmt.Errorf("%s: %w: %v", op, ErrRejected, err)
			}
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

type statsFacet struct {
	Totals []struct {
		Count    int64    `bson:"count"`
		AvgPrice *float64 `bson:"avgPrice"`
		MinPrice *float64 `bson:"minPrice"`
		MaxPrice *float64 `bson:"maxPrice"`
	} `bson:"totals"`
	Categories []struct {
		ID    any   `bson:"_id"`
		Count int64 `bson:"count"`
	} `bson:"categories"`
}

func statsPipeline() mongo.Pipeline {
	numericPrice := bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$isNumber", Value: "$" + FieldPrice}}, "$" + FieldPrice, nil,
	}}}

	return mongo.Pipeline{
		{{Key: "$facet", Value: bson.D{
			{Key: "totals", Value: bson.A{
				bson.D{{Key: "$group", Value: bson.D{
					{Key: "_id", Value: nil},
					{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
					{Key: "avgPrice", Value: bson.D{{Key: "$avg", Value: numericPrice}}},
					{Key: "minPrice", Value: bson.D{{Key: "$min", Value: numericPrice}}},
					{Key: "maxPrice", Value: bson.D{{Key: "$max", Value: numericPrice}}},
				}}},
			}},
			{Key: "categories", Value: bson.A{
				bson.D{{Key: "$group", Value: bson.D{
					{Key: "_id", Value: "$" + FieldCategory},
					{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
				}}},
			}},
		}}},
	}
}

func categoryLabel(v any) string {
	switch c := v.(type) {
	case nil:
		return UncategorizedLabel
	case string:
		if c == "" {
			return UncategorizedLabel
		}
		return c
	default:
		return fmt.Sprint(c)
	}
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// fromDocument maps a raw document onto Product, converting the BSON
// specific id and date types first.
func fromDocument(doc bson.M) Product {
	fields := make(map[string]any, len(doc))
	for k, v := range doc {
		switch t := v.(type) {
		case primitive.DateTime:
			fields[k] = t.Time()
		default:
			fields[k] = v
		}
	}
	if id, ok := doc[FieldID]; ok {
		fields[FieldID] = idString(id)
	}
	return FromFields(fields)
}
