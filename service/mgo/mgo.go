package mgo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Config struct {
	Uri         string
	Database    string
	Username    string
	Password    string
	MaxPoolSize uint64
	ConnectWait time.Duration
}

var (
	mu     sync.RWMutex
	client *mongo.Client
	dbName string
)

// Init connects and pings. Call once from global.ConfigAll.
func Init(ctx context.Context, cfg *Config) error {
	if cfg == nil || cfg.Uri == "" || cfg.Database == "" {
		return fmt.Errorf("mongo config incomplete")
	}
	wait := cfg.ConnectWait
	if wait <= 0 {
		wait = 10 * time.Second
	}
	opts := options.Client().ApplyURI(cfg.Uri)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{Username: cfg.Username, Password: cfg.Password})
	}

	cctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	cli, err := mongo.Connect(cctx, opts)
	if err != nil {
		return err
	}
	if err := cli.Ping(cctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return err
	}

	mu.Lock()
	client = cli
	dbName = cfg.Database
	mu.Unlock()
	return nil
}

func GetDB() *mongo.Database {
	mu.RLock()
	defer mu.RUnlock()
	if client == nil {
		return nil
	}
	return client.Database(dbName)
}

func Close(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()
	if client == nil {
		return nil
	}
	err := client.Disconnect(ctx)
	client = nil
	return err
}
