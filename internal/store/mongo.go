// Package store implements the Store adapter over MongoDB: existence
// checks, best-effort bulk insertion with partial-failure reporting, and the
// read-only views the downstream globe app consumes.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/the-globe-v2/news-scraper/internal/domain/entity"
	"github.com/the-globe-v2/news-scraper/internal/pipeline"
	"github.com/the-globe-v2/news-scraper/internal/resilience/circuitbreaker"
)

const articlesCollection = "articles"

// article is the BSON wire shape for entity.Article. URL-typed fields are
// stored as plain strings and timestamps as native BSON UTC datetimes, per
// spec §4.7.
type article struct {
	Title            string    `bson:"title"`
	URL              string    `bson:"url"`
	Description      string    `bson:"description"`
	DatePublished    time.Time `bson:"date_published"`
	Provider         string    `bson:"provider"`
	Content          string    `bson:"content"`
	OriginCountry    string    `bson:"origin_country"`
	SourceAPI        string    `bson:"source_api"`
	SchemaVersion    string    `bson:"schema_version"`
	DateScraped      time.Time `bson:"date_scraped"`
	PostProcessed    bool      `bson:"post_processed"`
	Language         string    `bson:"language,omitempty"`
	Keywords         []string  `bson:"keywords,omitempty"`
	Category         string    `bson:"category,omitempty"`
	Authors          []string  `bson:"authors,omitempty"`
	RelatedCountries []string  `bson:"related_countries,omitempty"`
	ImageURL         string    `bson:"image_url,omitempty"`
}

func toBSON(a entity.Article) article {
	return article{
		Title:            a.Title,
		URL:              a.URL,
		Description:      a.Description,
		DatePublished:    a.DatePublished,
		Provider:         a.Provider,
		Content:          a.Content,
		OriginCountry:    a.OriginCountry,
		SourceAPI:        a.SourceAPI,
		SchemaVersion:    a.SchemaVersion,
		DateScraped:      a.DateScraped,
		PostProcessed:    a.PostProcessed,
		Language:         a.Language,
		Keywords:         a.Keywords,
		Category:         a.Category,
		Authors:          a.Authors,
		RelatedCountries: a.RelatedCountries,
		ImageURL:         a.ImageURL,
	}
}

// MongoStore is the Store adapter backed by the MongoDB driver.
type MongoStore struct {
	client         *mongo.Client
	articles       *mongo.Collection
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *slog.Logger
}

// Connect dials uri and returns a MongoStore bound to dbName's "articles"
// collection. connectTimeout bounds the initial ping.
func Connect(ctx context.Context, uri, dbName string, connectTimeout time.Duration, logger *slog.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, err
	}

	return &MongoStore{
		client:         client,
		articles:       client.Database(dbName).Collection(articlesCollection),
		circuitBreaker: circuitbreaker.New(circuitbreaker.StoreConfig()),
		logger:         logger,
	}, nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Exists implements pipeline.Store. It returns false on any underlying
// error, logged rather than propagated (spec §4.7).
func (s *MongoStore) Exists(ctx context.Context, url string) bool {
	count, err := circuitbreaker.Call(s.circuitBreaker, func() (int64, error) {
		return s.articles.CountDocuments(ctx, bson.M{"url": url}, options.Count().SetLimit(1))
	})
	if err != nil {
		s.logger.Warn("store existence check failed", slog.String("url", url), slog.Any("error", err))
		return false
	}
	return count > 0
}

// BulkInsert implements pipeline.Store. Unordered insertion: one failed
// document does not abort the others. A partial failure (mongo.BulkWriteException)
// is walked into {index, url, errmsg} entries; a total failure (timeout,
// connection) returns no ids and a single synthetic error entry.
func (s *MongoStore) BulkInsert(ctx context.Context, articles []entity.Article) ([]string, []pipeline.BulkError) {
	if len(articles) == 0 {
		return nil, nil
	}

	docs := make([]interface{}, len(articles))
	for i, a := range articles {
		docs[i] = toBSON(a)
	}

	result, err := circuitbreaker.Call(s.circuitBreaker, func() (*mongo.InsertManyResult, error) {
		return s.articles.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	})

	if err == nil {
		return idsToStrings(result.InsertedIDs), nil
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		s.logger.Warn("bulk insert partial failure", slog.Int("failed", len(bwe.WriteErrors)))
		bulkErrs := make([]pipeline.BulkError, 0, len(bwe.WriteErrors))
		for _, we := range bwe.WriteErrors {
			url := ""
			if we.Index >= 0 && we.Index < len(articles) {
				url = articles[we.Index].URL
			}
			bulkErrs = append(bulkErrs, pipeline.BulkError{Index: we.Index, URL: url, ErrMsg: we.Message})
		}
		var insertedIDs []string
		if result != nil {
			insertedIDs = idsToStrings(result.InsertedIDs)
		}
		return insertedIDs, bulkErrs
	}

	s.logger.Error("bulk insert total failure", slog.Any("error", err))
	return nil, []pipeline.BulkError{{Index: -1, ErrMsg: err.Error()}}
}

// EnsureViews creates the indexes and read-only views the downstream globe
// app consumes. It is not invoked on every pipeline run — spec §1 places
// index/view management out of this pipeline's scope — so it is exposed
// only for the CLI's optional --init-store path.
func (s *MongoStore) EnsureViews(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "url", Value: 1}}, Options: options.Index().SetUnique(true).SetName("url_1")},
		{Keys: bson.D{{Key: "title", Value: 1}}, Options: options.Index().SetUnique(true).SetName("title_1")},
		{Keys: bson.D{{Key: "date_published", Value: -1}}, Options: options.Index().SetName("date_published_-1")},
		{Keys: bson.D{{Key: "category", Value: 1}}, Options: options.Index().SetName("category_1")},
		{Keys: bson.D{{Key: "origin_country", Value: 1}}, Options: options.Index().SetName("origin_country_1")},
		{
			Keys:    bson.D{{Key: "post_processed", Value: 1}, {Key: "date_scraped", Value: -1}},
			Options: options.Index().SetName("post_processed_1_date_scraped_-1"),
		},
	}
	if _, err := s.articles.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}

	db := s.client.Database(s.articles.Database().Name())
	if err := db.RunCommand(ctx, bson.D{
		{Key: "create", Value: "daily_article_summary_by_country"},
		{Key: "viewOn", Value: articlesCollection},
		{Key: "pipeline", Value: dailySummaryPipeline()},
	}).Err(); err != nil {
		return fmt.Errorf("create daily_article_summary_by_country view: %w", err)
	}
	if err := db.RunCommand(ctx, bson.D{
		{Key: "create", Value: "filtered_articles"},
		{Key: "viewOn", Value: articlesCollection},
		{Key: "pipeline", Value: filteredArticlesPipeline()},
	}).Err(); err != nil {
		return fmt.Errorf("create filtered_articles view: %w", err)
	}
	return nil
}

func dailySummaryPipeline() bson.A {
	return bson.A{
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "date", Value: bson.D{{Key: "$dateToString", Value: bson.D{{Key: "format", Value: "%Y-%m-%d"}, {Key: "date", Value: "$date_published"}}}}},
			{Key: "origin_country", Value: 1},
			{Key: "url", Value: 1},
		}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "date", Value: "$date"}, {Key: "origin_country", Value: "$origin_country"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "article_urls", Value: bson.D{{Key: "$addToSet", Value: "$url"}}},
		}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$_id.date"},
			{Key: "countries", Value: bson.D{{Key: "$push", Value: bson.D{
				{Key: "country", Value: "$_id.origin_country"},
				{Key: "count", Value: "$count"},
				{Key: "article_urls", Value: "$article_urls"},
			}}}},
			{Key: "total_count", Value: bson.D{{Key: "$sum", Value: "$count"}}},
		}}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "date", Value: "$_id"},
			{Key: "countries", Value: 1},
			{Key: "total_count", Value: 1},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "date", Value: -1}}}},
	}
}

func filteredArticlesPipeline() bson.A {
	return bson.A{
		bson.D{{Key: "$match", Value: bson.D{{Key: "post_processed", Value: true}}}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "url", Value: 1},
			{Key: "title", Value: "$title_translated"},
			{Key: "description", Value: "$description_translated"},
			{Key: "date_published", Value: 1},
			{Key: "provider", Value: 1},
			{Key: "language", Value: 1},
			{Key: "origin_country", Value: 1},
			{Key: "keywords", Value: 1},
			{Key: "category", Value: 1},
			{Key: "authors", Value: 1},
			{Key: "related_countries", Value: 1},
			{Key: "image_url", Value: 1},
			{Key: "_id", Value: 0},
		}}},
	}
}

// failedArticle is the document shape written to failed_articles (spec §6:
// "optional, with failure_reason") — best-effort, never blocking the main
// pipeline flow.
type failedArticle struct {
	URL           string    `bson:"url"`
	FailureReason string    `bson:"failure_reason"`
	FailedAt      time.Time `bson:"failed_at"`
}

// RecordFailedArticle best-effort-writes a single failed build to the
// failed_articles collection. Errors are logged, never returned, since a
// failure to record a failure must not interrupt the pipeline.
func (s *MongoStore) RecordFailedArticle(ctx context.Context, url, reason string, failedAt time.Time) {
	collection := s.client.Database(s.articles.Database().Name()).Collection("failed_articles")
	if _, err := collection.InsertOne(ctx, failedArticle{URL: url, FailureReason: reason, FailedAt: failedAt}); err != nil {
		s.logger.Warn("failed to record failed article", slog.String("url", url), slog.Any("error", err))
	}
}

// idsToStrings renders whatever _id type the driver generated (normally a
// bson.ObjectID) as a string, falling back to a generic format for any other
// type a caller-supplied _id might use.
func idsToStrings(ids []interface{}) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if oid, ok := id.(bson.ObjectID); ok {
			out = append(out, oid.Hex())
			continue
		}
		out = append(out, fmt.Sprint(id))
	}
	return out
}
