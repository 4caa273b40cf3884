// Package receiptengine assembles the object-store client, write pipeline,
// query engine, and PDF facade into one constructed unit, driven by
// environment configuration.
package receiptengine

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/voltcharge/receiptengine/cache"
	"github.com/voltcharge/receiptengine/common"
	"github.com/voltcharge/receiptengine/config"
	"github.com/voltcharge/receiptengine/receipt"
	"github.com/voltcharge/receiptengine/receiptindex"
	"github.com/voltcharge/receiptengine/receiptquery"
	"github.com/voltcharge/receiptengine/receiptstore"
	"github.com/voltcharge/receiptengine/receiptwrite"
	"github.com/voltcharge/receiptengine/storage"
)

// Engine bundles the engine's public operations. External handlers hold
// one Engine and call Writer.Store, Query.Query, and the Store facade's
// PDF operations.
type Engine struct {
	Writer *receiptwrite.Pipeline
	Query  *receiptquery.Engine
	Store  *receiptstore.Facade
	Client *storage.Client

	shardCache *receiptquery.ShardCache
}

// New loads configuration under prefix (e.g. "RECEIPT"), connects to the
// object store, and wires every component.
func New(ctx context.Context, prefix string) (*Engine, error) {
	cfg, err := config.LoadEngineConfig(prefix)
	if err != nil {
		return nil, err
	}

	configureLogger(cfg.Service)
	common.Logger.WithFields(logrus.Fields{
		"service":    cfg.Service.Name,
		"bucket":     cfg.Storage.Bucket,
		"endpoint":   cfg.Storage.Endpoint,
		"access_key": common.MaskSecret(cfg.Storage.AccessKey),
	}).Info("receiptengine: connecting to object store")

	client, err := storage.NewClient(ctx, storage.Options{
		Bucket:       cfg.Storage.Bucket,
		Region:       cfg.Storage.Region,
		Endpoint:     cfg.Storage.Endpoint,
		AccessKey:    cfg.Storage.AccessKey,
		SecretKey:    cfg.Storage.SecretKey,
		UsePathStyle: cfg.Storage.UsePathStyle,
	})
	if err != nil {
		return nil, err
	}

	var presigner storage.Presigner
	if api, ok := client.API().(*s3.Client); ok {
		presigner = storage.NewS3Presigner(api)
	}

	var pushdown storage.PushdownScanner
	if cfg.Storage.Pushdown {
		pushdown = storage.NewS3PushdownScanner(client)
	}

	return NewWithClient(client, presigner, pushdown, cfg)
}

// NewWithClient wires an Engine over an already-constructed client.
// presigner and pushdown may be nil; cfg may be nil for defaults. This is
// the constructor tests use with the in-memory store double.
func NewWithClient(client *storage.Client, presigner storage.Presigner, pushdown storage.PushdownScanner, cfg *config.EngineConfig) (*Engine, error) {
	if cfg == nil {
		cfg = &config.EngineConfig{
			Cache: config.CacheConfig{Enabled: true, MaxSize: cache.DefaultMaxSize, TTL: cache.DefaultTTL},
			Query: config.QueryConfig{Concurrency: 5},
		}
	}

	var shardCache *receiptquery.ShardCache
	if cfg.Cache.Enabled {
		c, err := cache.New[[]receipt.Metadata](cfg.Cache.MaxSize, cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("receiptengine: build query cache: %w", err)
		}
		if cfg.Cache.RedisURL != "" {
			backend, err := cache.NewRedisBackend(cfg.Cache.RedisURL)
			if err != nil {
				return nil, fmt.Errorf("receiptengine: build shared cache tier: %w", err)
			}
			shardCache = receiptquery.NewShardCacheWithBackend(c, backend, cfg.Cache.TTL)
		} else {
			shardCache = receiptquery.NewShardCache(c)
		}
	} else {
		shardCache = receiptquery.NewShardCache(nil)
	}

	index := receiptindex.NewManager(client)
	rollback := receiptindex.NewRollbackManager(client, nil)

	return &Engine{
		Writer:     receiptwrite.NewPipeline(client, index, rollback),
		Query:      receiptquery.NewEngine(index, pushdown, shardCache, cfg.Query.Concurrency),
		Store:      receiptstore.NewFacade(client, presigner),
		Client:     client,
		shardCache: shardCache,
	}, nil
}

// ClearCache drains the query cache, e.g. after a bulk backfill that makes
// cached shard snapshots stale ahead of their TTL.
func (e *Engine) ClearCache() {
	e.shardCache.Clear()
}

func configureLogger(svc config.ServiceConfig) {
	lvl, err := logrus.ParseLevel(svc.LogLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	common.Logger.SetLevel(lvl)
	if svc.LogFormat == "json" {
		common.Logger.SetFormatter(&logrus.JSONFormatter{})
	}
}
