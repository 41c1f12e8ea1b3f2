package mongox

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	MaxPoolSize     = 10
	DefaultDatabase = "appointments"
)

type Client struct {
	*mongo.Client
	database string
}

// Open connects with a bounded pool and pings the primary before returning.
func Open(ctx context.Context, uri, database string) (*Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(MaxPoolSize).
		SetServerSelectionTimeout(10 * time.Second).
		SetSocketTimeout(45 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	c := &Client{Client: client, database: ResolveDatabase(uri, database)}
	if err := c.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return c, nil
}

func (c *Client) Database() *mongo.Database {
	return c.Client.Database(c.database)
}

// Ping runs the lightweight admin ping command.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return errors.New("mongo not configured")
	}
	return c.Client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Disconnect(ctx)
}

// ResolveDatabase prefers an explicit name, then the URI path, then DefaultDatabase.
func ResolveDatabase(uri, explicit string) string {
	if name := strings.TrimSpace(explicit); name != "" {
		return name
	}
	if u, err := url.Parse(uri); err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return DefaultDatabase
}
