package config

import (
	"context"
	"errors"
)

// Shutdown closes every datastore handle that was opened.
func Shutdown(ctx context.Context) error {
	var errs []error
	if MongoClient != nil {
		errs = append(errs, MongoClient.Disconnect(ctx))
	}
	if PostgresDB != nil {
		if sqlDB, err := PostgresDB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if RedisClient != nil {
		errs = append(errs, RedisClient.Close())
	}
	return errors.Join(errs...)
}
