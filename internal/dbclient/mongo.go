package dbclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"airexport/internal/domain"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// defaultMongoDatabase is used when neither the config nor the URI name one.
const defaultMongoDatabase = "airexport"

// mongoConnector implements Connector for MongoDB. Tables map to collections.
type mongoConnector struct {
	client *mongo.Client
	dbName string
}

func newMongoConnector(conn *domain.MirrorConnection) (*mongoConnector, error) {
	uri := conn.DSN
	if !strings.HasPrefix(uri, "mongodb://") && !strings.HasPrefix(uri, "mongodb+srv://") {
		return nil, fmt.Errorf("mongo dsn must start with mongodb:// or mongodb+srv://")
	}

	dbName := conn.Database
	if dbName == "" {
		dbName = databaseFromURI(uri)
	}
	if dbName == "" {
		dbName = defaultMongoDatabase
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &mongoConnector{client: client, dbName: dbName}, nil
}

// databaseFromURI extracts the path segment of user:pass@host/DB?params.
func databaseFromURI(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if at := strings.LastIndex(rest, "@"); at != -1 {
		rest = rest[at+1:]
	}
	slash := strings.Index(rest, "/")
	if slash == -1 {
		return ""
	}
	path := rest[slash+1:]
	if q := strings.Index(path, "?"); q != -1 {
		path = path[:q]
	}
	return path
}

func (c *mongoConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.client.Ping(ctx, nil)
}

// ReplaceTable drops the collection and inserts one document per row.
// Column order is kept inside each document.
func (c *mongoConnector) ReplaceTable(ctx context.Context, table string, columns []string, rows [][]any) (int, error) {
	coll := c.client.Database(c.dbName).Collection(table)
	if err := coll.Drop(ctx); err != nil {
		return 0, fmt.Errorf("drop %s: %w", table, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	docs := make([]any, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
		doc := make(bson.D, 0, len(columns))
		for j, col := range columns {
			if row[j] == nil {
				continue
			}
			doc = append(doc, bson.E{Key: col, Value: row[j]})
		}
		docs = append(docs, doc)
	}

	res, err := coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return len(res.InsertedIDs), nil
}

func (c *mongoConnector) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}
