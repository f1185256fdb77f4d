// Package webcache is an on-disk page cache for the HTTP bio sources, keyed by
// normalized URL so reruns do not refetch pages they already saw.
package webcache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"net/url"
	"realitease/internal/components/chrono"
	"time"

	"github.com/PuerkitoBio/purell"
	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("realitease.internal.webcache")

// ErrMiss is returned when a page is not cached or has expired.
var ErrMiss = errors.New("page not cached")

const DefaultTTL = 24 * time.Hour

type webpage struct {
	Contents  []byte
	ExpiresAt int64
}

// Cache is a badger backed page cache. A nil *Cache is valid and never hits.
type Cache struct {
	db   *badger.DB
	ttl  time.Duration
	time chrono.TimeAPI
}

func New(db *badger.DB, ttl time.Duration, timeAPI chrono.TimeAPI) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{db: db, ttl: ttl, time: timeAPI}
}

// Open opens (or creates) a badger database in dir.
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	return badger.Open(opts)
}

// Key normalizes a URL into the cache key of a namespace (usually a source name).
func Key(namespace, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	normalized := purell.NormalizeURL(
		parsed,
		purell.FlagsSafe|
			purell.FlagsUsuallySafeNonGreedy|
			purell.FlagRemoveDirectoryIndex|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	)
	return namespace + ":" + normalized, nil
}

func (c *Cache) Get(ctx context.Context, namespace, rawURL string) ([]byte, error) {
	if c == nil {
		return nil, ErrMiss
	}
	_, span := tracer.Start(ctx, "Get")
	defer span.End()

	key, err := Key(namespace, rawURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return nil, err
	}
	span.SetAttributes(attribute.String("cache_key", key))

	var serialized []byte
	err = c.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(key))
		if err != nil {
			return err
		}
		serialized, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read item from badger")
		return nil, err
	}

	var cached webpage
	err = gob.NewDecoder(bytes.NewBuffer(serialized)).Decode(&cached)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deserialize cached item")
		return nil, err
	}

	if c.time.Now().Unix() >= cached.ExpiresAt {
		span.AddEvent("delete expired cache key", trace.WithAttributes(attribute.String("key", key)))
		err := c.db.Update(func(tx *badger.Txn) error {
			return tx.Delete([]byte(key))
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to delete expired key")
		}
		return nil, ErrMiss
	}

	span.AddEvent("cache hit", trace.WithAttributes(attribute.Int("contentlength", len(cached.Contents))))
	return cached.Contents, nil
}

func (c *Cache) Set(ctx context.Context, namespace, rawURL string, contents []byte) error {
	if c == nil {
		return nil
	}
	_, span := tracer.Start(ctx, "Set")
	defer span.End()

	key, err := Key(namespace, rawURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return err
	}

	serialized := bytes.NewBuffer(nil)
	err = gob.NewEncoder(serialized).Encode(webpage{
		Contents:  contents,
		ExpiresAt: c.time.Now().Add(c.ttl).Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize webpage")
		return err
	}

	err = c.db.Update(func(tx *badger.Txn) error {
		return tx.Set([]byte(key), serialized.Bytes())
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to set badger item")
	}
	return err
}

// Fetch returns the cached page for rawURL, or calls fetch and caches its result.
// Fetch errors are not cached.
func (c *Cache) Fetch(ctx context.Context, namespace, rawURL string, fetch func() ([]byte, error)) ([]byte, error) {
	if contents, err := c.Get(ctx, namespace, rawURL); err == nil {
		return contents, nil
	}
	contents, err := fetch()
	if err != nil {
		return nil, err
	}
	_ = c.Set(ctx, namespace, rawURL, contents)
	return contents, nil
}
