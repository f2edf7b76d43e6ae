package pool

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nlquery/dbagent/pkg/dbendpoint"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoHandle wraps a *mongo.Client for the document kind.
type MongoHandle struct {
	Client   *mongo.Client
	Database string
}

func (h *MongoHandle) Kind() dbendpoint.Kind { return dbendpoint.KindDocument }

func (h *MongoHandle) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.Client.Disconnect(ctx)
}

// MongoDialer opens and pings a mongo-driver client (spec.md §4.1
// "explicit open" preflight for document kind). Grounded on
// LerianStudio-midaz/common/mmongo/mongo.go's Connect+Ping pattern.
type MongoDialer struct{}

func (MongoDialer) Dial(ctx context.Context, rawURL string, preflightTimeout time.Duration) (Handle, error) {
	dialCtx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()

	opts := options.Client().ApplyURI(rawURL)
	client, err := mongo.Connect(dialCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open mongo connection: %w", err)
	}
	if err := client.Ping(dialCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo preflight ping failed: %w", err)
	}

	return &MongoHandle{Client: client, Database: databaseNameFromURI(rawURL)}, nil
}

// databaseNameFromURI extracts the path component of a mongodb:// URI
// as the default database name, falling back to "admin" when absent.
func databaseNameFromURI(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "admin"
	}
	name := strings.TrimPrefix(u.Path, "/")
	if name == "" {
		return "admin"
	}
	return name
}
