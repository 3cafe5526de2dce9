package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/newsmonitor/internal/types"
)

// MongoStore keeps articles, change records and sources in three
// collections of one MongoDB database.
type MongoStore struct {
	client   *mongo.Client
	articles *mongo.Collection
	changes  *mongo.Collection
	sources  *mongo.Collection
	logger   *slog.Logger
}

// NewMongoStore connects to uri and ensures the collection indexes exist.
func NewMongoStore(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		articles: db.Collection("articles"),
		changes:  db.Collection("changes"),
		sources:  db.Collection("sources"),
		logger:   logger.With("component", "mongo_store"),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	s.logger.Debug("mongodb store opened", "database", database)
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	unique := []*mongo.Collection{s.articles, s.sources}
	for _, coll := range unique {
		_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "url", Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("mongodb index on %s.url: %w", coll.Name(), err)
		}
	}

	_, err := s.changes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "article_id", Value: 1}, {Key: "detected_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongodb index on changes.article_id: %w", err)
	}
	return nil
}

func (s *MongoStore) Name() string { return "mongodb" }

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) wrap(op string, err error) error {
	return &types.StorageError{Backend: "mongodb", Op: op, Err: err}
}

// --- Articles ---

func (s *MongoStore) GetArticleByURL(ctx context.Context, url string) (*types.Article, error) {
	var a types.Article
	err := s.articles.FindOne(ctx, bson.M{"url": url}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrArticleNotFound
	}
	if err != nil {
		return nil, s.wrap("get_article", err)
	}
	return &a, nil
}

func (s *MongoStore) InsertArticle(ctx context.Context, a *types.Article) error {
	if _, err := s.articles.InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.ErrDuplicateURL
		}
		return s.wrap("insert_article", err)
	}
	return nil
}

// UpdateArticle writes the article and then its change records. Without a
// replica set there is no multi-document transaction, so a failure after
// the article write leaves the article updated without its records.
func (s *MongoStore) UpdateArticle(ctx context.Context, a *types.Article, changes []types.ChangeRecord) error {
	result, err := s.articles.UpdateOne(ctx, bson.M{"_id": a.ID}, bson.M{"$set": bson.M{
		"source":       a.Source,
		"title":        a.Title,
		"content":      a.Content,
		"published_at": a.PublishedAt,
		"image_url":    a.ImageURL,
		"category":     a.Category,
		"updated_at":   a.UpdatedAt,
	}})
	if err != nil {
		return s.wrap("update_article", err)
	}
	if result.MatchedCount == 0 {
		return types.ErrArticleNotFound
	}

	if len(changes) == 0 {
		return nil
	}
	docs := make([]any, len(changes))
	for i := range changes {
		docs[i] = changes[i]
	}
	if _, err := s.changes.InsertMany(ctx, docs); err != nil {
		return s.wrap("insert_changes", err)
	}
	return nil
}

func (s *MongoStore) ListArticles(ctx context.Context, filter ArticleFilter) ([]types.Article, error) {
	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Source != "" {
		query["source"] = filter.Source
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.articles.Find(ctx, query, opts)
	if err != nil {
		return nil, s.wrap("list_articles", err)
	}
	var articles []types.Article
	if err := cursor.All(ctx, &articles); err != nil {
		return nil, s.wrap("list_articles", err)
	}
	return articles, nil
}

func (s *MongoStore) ListChanges(ctx context.Context, articleID string) ([]types.ChangeRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "detected_at", Value: 1}})
	cursor, err := s.changes.Find(ctx, bson.M{"article_id": articleID}, opts)
	if err != nil {
		return nil, s.wrap("list_changes", err)
	}
	var changes []types.ChangeRecord
	if err := cursor.All(ctx, &changes); err != nil {
		return nil, s.wrap("list_changes", err)
	}
	return changes, nil
}

// DeleteArticle removes the article and then its change records.
func (s *MongoStore) DeleteArticle(ctx context.Context, id string) error {
	result, err := s.articles.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return s.wrap("delete_article", err)
	}
	if result.DeletedCount == 0 {
		return types.ErrArticleNotFound
	}
	if _, err := s.changes.DeleteMany(ctx, bson.M{"article_id": id}); err != nil {
		return s.wrap("delete_changes", err)
	}
	return nil
}

// --- Sources ---

func (s *MongoStore) CreateSource(ctx context.Context, src *types.Source) error {
	if _, err := s.sources.InsertOne(ctx, src); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.ErrDuplicateURL
		}
		return s.wrap("create_source", err)
	}
	return nil
}

func (s *MongoStore) GetSource(ctx context.Context, id string) (*types.Source, error) {
	return s.findSource(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetSourceByURL(ctx context.Context, url string) (*types.Source, error) {
	return s.findSource(ctx, bson.M{"url": url})
}

func (s *MongoStore) findSource(ctx context.Context, filter bson.M) (*types.Source, error) {
	var src types.Source
	err := s.sources.FindOne(ctx, filter).Decode(&src)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrSourceNotFound
	}
	if err != nil {
		return nil, s.wrap("get_source", err)
	}
	return &src, nil
}

func (s *MongoStore) ListSources(ctx context.Context, filter SourceFilter) ([]types.Source, error) {
	query := bson.M{}
	if filter.Enabled != nil {
		query["enabled"] = *filter.Enabled
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.sources.Find(ctx, query, opts)
	if err != nil {
		return nil, s.wrap("list_sources", err)
	}
	var sources []types.Source
	if err := cursor.All(ctx, &sources); err != nil {
		return nil, s.wrap("list_sources", err)
	}
	return sources, nil
}

func (s *MongoStore) SetSourceEnabled(ctx context.Context, id string, enabled bool) error {
	return s.updateSource(ctx, "set_source_enabled", id, bson.M{"enabled": enabled})
}

func (s *MongoStore) MarkSourceScraped(ctx context.Context, id string, at time.Time) error {
	return s.updateSource(ctx, "mark_source_scraped", id, bson.M{"last_scraped_at": at})
}

func (s *MongoStore) updateSource(ctx context.Context, op, id string, set bson.M) error {
	result, err := s.sources.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return s.wrap(op, err)
	}
	if result.MatchedCount == 0 {
		return types.ErrSourceNotFound
	}
	return nil
}

func (s *MongoStore) DeleteSource(ctx context.Context, id string) error {
	result, err := s.sources.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return s.wrap("delete_source", err)
	}
	if result.DeletedCount == 0 {
		return types.ErrSourceNotFound
	}
	return nil
}

var _ Store = (*MongoStore)(nil)
