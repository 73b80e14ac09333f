package store

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TruncatePostgres(ctx context.Context, r *PostgresRepo) error {
	_, err := r.pool.Exec(ctx, `TRUNCATE time_blocks`)
	return err
}

func TruncateMongo(ctx context.Context, r *MongoRepo) error {
	_, err := r.col.DeleteMany(ctx, bson.M{})
	return err
}
