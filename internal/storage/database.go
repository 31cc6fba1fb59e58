package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/TrendGoat/internal/config"
	"github.com/IshaanNene/TrendGoat/internal/types"
)

// MongoStorage keeps snapshots in one MongoDB collection.
type MongoStorage struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	timeout    time.Duration
	logger     *slog.Logger
}

// snapshotDoc is the layout written by Insert.
type snapshotDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Trends    []string           `bson:"trends"`
	StartTime time.Time          `bson:"start_time"`
	EndTime   time.Time          `bson:"end_time"`
	IPAddress string             `bson:"ip_address"`
}

// NewMongoStorage connects and pings the server. With Lazy a failed ping is
// only logged; the driver keeps reconnecting in the background.
func NewMongoStorage(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger, opts ...Option) (*MongoStorage, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetServerSelectionTimeout(cfg.Timeout))
	if err != nil {
		return nil, &types.ScrapeError{Kind: types.KindStorage, Op: "connect", Err: err}
	}

	db := client.Database(cfg.Database)
	s := &MongoStorage{
		client:     client,
		db:         db,
		collection: db.Collection(cfg.Collection),
		timeout:    cfg.Timeout,
		logger:     logger.With("component", "mongo_storage"),
	}

	if err := client.Ping(ctx, nil); err != nil {
		if o.lazy {
			s.logger.Warn("mongodb unreachable at startup, requests will fail until it is back",
				"uri", maskedURI(cfg), "error", err)
			return s, nil
		}
		_ = client.Disconnect(context.Background())
		return nil, &types.ScrapeError{Kind: types.KindStorage, Op: "ping", Err: err}
	}
	return s, nil
}

func maskedURI(cfg *config.StorageConfig) string {
	c := config.Config{Storage: *cfg}
	return c.Redacted().Storage.URI
}

func (s *MongoStorage) Name() string { return "mongodb" }

func (s *MongoStorage) Insert(ctx context.Context, snap *types.TrendSnapshot) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	trends := snap.Trends
	if trends == nil {
		trends = []string{}
	}
	res, err := s.collection.InsertOne(ctx, snapshotDoc{
		Trends:    trends,
		StartTime: snap.StartTime,
		EndTime:   snap.EndTime,
		IPAddress: snap.IPAddress,
	})
	if err != nil {
		return "", fmt.Errorf("mongodb insert: %w", err)
	}

	id := idString(res.InsertedID)
	s.logger.Debug("snapshot stored in mongodb", "id", id, "trends", len(trends))
	return id, nil
}

// Latest returns the document with the highest _id.
func (s *MongoStorage) Latest(ctx context.Context) (*types.TrendSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})
	var raw bson.M
	err := s.collection.FindOne(ctx, bson.D{}, opts).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find latest: %w", err)
	}
	return decodeSnapshot(raw), nil
}

// EnsureCollection creates the collection if it does not exist yet.
func (s *MongoStorage) EnsureCollection(ctx context.Context) (created bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name := s.collection.Name()
	names, err := s.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return false, fmt.Errorf("mongodb list collections: %w", err)
	}
	if len(names) > 0 {
		return false, nil
	}
	if err := s.db.CreateCollection(ctx, name); err != nil {
		return false, fmt.Errorf("mongodb create collection: %w", err)
	}
	s.logger.Info("collection created", "database", s.db.Name(), "collection", name)
	return true, nil
}

func (s *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// decodeSnapshot reads the current layout as well as the two older ones:
// flat trend1..trendN string fields, and a nested trends sub-document.
func decodeSnapshot(raw bson.M) *types.TrendSnapshot {
	snap := &types.TrendSnapshot{
		ID:        idString(raw["_id"]),
		StartTime: decodeTime(raw["start_time"]),
		EndTime:   decodeTime(raw["end_time"]),
		Trends:    []string{},
	}
	if ip, ok := raw["ip_address"].(string); ok {
		snap.IPAddress = ip
	}

	switch trends := raw["trends"].(type) {
	case bson.A:
		for _, t := range trends {
			if s, ok := t.(string); ok {
				snap.Trends = append(snap.Trends, s)
			}
		}
	case bson.M:
		snap.Trends = numberedFields(trends)
	case bson.D:
		nested := make(bson.M, len(trends))
		for _, e := range trends {
			nested[e.Key] = e.Value
		}
		snap.Trends = numberedFields(nested)
	default:
		snap.Trends = numberedFields(raw)
	}
	return snap
}

// numberedFields collects trend1, trend2, ... in numeric order.
func numberedFields(m bson.M) []string {
	type slot struct {
		n int
		v string
	}
	var slots []slot
	for k, v := range m {
		rest, ok := strings.CutPrefix(k, "trend")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		if s, ok := v.(string); ok {
			slots = append(slots, slot{n, s})
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].n < slots[j].n })

	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.v
	}
	return out
}

func decodeTime(v any) time.Time {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time()
	case time.Time:
		return t
	case string:
		if parsed, err := time.ParseInLocation(types.TimeLayout, t, time.Local); err == nil {
			return parsed
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}
