package app

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tiercache/config"
	"github.com/unkn0wn-root/tiercache/provider"
	bigcacheprov "github.com/unkn0wn-root/tiercache/provider/bigcache"
	"github.com/unkn0wn-root/tiercache/provider/natskv"
	redisprov "github.com/unkn0wn-root/tiercache/provider/redis"
	ristrettoprov "github.com/unkn0wn-root/tiercache/provider/ristretto"
	"github.com/unkn0wn-root/tiercache/versionstore"
)

// redisClient returns the app's shared client, dialing it on first use.
// The app closes it; providers and version stores built on it do not.
func (a *App) redisClient(ctx context.Context, cfg config.Redis) (goredis.UniversalClient, error) {
	if a.rdb != nil {
		return a.rdb, nil
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	a.rdb = rdb
	a.closers = append(a.closers, rdb.Close)
	a.Logger.Info("redis connected", "addr", cfg.Addr)
	return rdb, nil
}

func (a *App) openRemote(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	rc := cfg.Remote
	switch rc.Kind {
	case config.RemoteRedis:
		rdb, err := a.redisClient(ctx, rc.Redis)
		if err != nil {
			return nil, err
		}
		p, err := redisprov.New(redisprov.Config{Client: rdb})
		if err != nil {
			return nil, err
		}
		a.Logger.Info("remote tier: redis", "addr", rc.Redis.Addr)
		return p, nil

	case config.RemoteNATS:
		nc, err := nats.Connect(rc.NATS.URL, nats.Name("tiercache"))
		if err != nil {
			return nil, fmt.Errorf("nats connect %s: %w", rc.NATS.URL, err)
		}
		a.closers = append(a.closers, func() error { nc.Close(); return nil })
		js, err := jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("jetstream: %w", err)
		}
		kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      rc.NATS.Bucket,
			Description: "tiercache remote tier",
			TTL:         rc.NATS.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("kv bucket %s: %w", rc.NATS.Bucket, err)
		}
		p, err := natskv.New(kv)
		if err != nil {
			return nil, err
		}
		a.Logger.Info("remote tier: nats kv", "url", rc.NATS.URL, "bucket", rc.NATS.Bucket)
		return p, nil

	case config.RemoteRistretto:
		maxCost := rc.Ristretto.MaxCostMB << 20
		p, err := ristrettoprov.New(ristrettoprov.Config{
			NumCounters: max(maxCost/1024*10, 1000), // ~10x expected 1KiB items
			MaxCost:     maxCost,
			BufferItems: 64,
		})
		if err != nil {
			return nil, err
		}
		return p, nil

	case config.RemoteBigCache:
		p, err := bigcacheprov.New(bigcacheprov.Config{
			LifeWindow:         rc.BigCache.LifeWindow,
			HardMaxCacheSizeMB: rc.BigCache.HardMaxMB,
		})
		if err != nil {
			return nil, err
		}
		return p, nil

	default:
		a.Logger.Info("remote tier: disabled")
		return nil, nil
	}
}

func (a *App) openVersions(ctx context.Context, cfg *config.Config) (versionstore.Store, error) {
	if cfg.Versions != config.VersionsRedis {
		return versionstore.NewLocal(), nil
	}
	rdb, err := a.redisClient(ctx, cfg.Remote.Redis)
	if err != nil {
		return nil, err
	}
	return versionstore.NewRedis(rdb, cfg.Remote.Redis.Prefix, false), nil
}
