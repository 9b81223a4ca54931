package db

import (
	"context"
	"sync"
	"time"

	"github.com/whisperbox/apiserver/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second
)

var (
	connectOnce sync.Once
	client      *mongo.Client
	connectErr  error
)

// Connect establishes the process-wide Mongo client on first call and
// returns the cached client thereafter. The sync.Once guard means two
// concurrent first requests cannot race into duplicate connections.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*mongo.Client, error) {
	connectOnce.Do(func() {
		connectCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
		defer cancel()

		opts := options.Client().ApplyURI(cfg.URI)
		c, err := mongo.Connect(connectCtx, opts)
		if err != nil {
			connectErr = err
			return
		}

		pingCtx, cancelPing := context.WithTimeout(ctx, defaultPingTimeout)
		defer cancelPing()
		if err := c.Ping(pingCtx, readpref.Primary()); err != nil {
			_ = c.Disconnect(context.Background())
			connectErr = err
			return
		}

		client = c
	})
	return client, connectErr
}
