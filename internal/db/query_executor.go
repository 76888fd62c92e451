package db

import (
	"context"

	"gorm.io/gorm"
)

// QueryExecutor handles database work that spans repositories.
type QueryExecutor struct {
	DB *gorm.DB
}

// NewQueryExecutor creates a new instance of QueryExecutor.
func NewQueryExecutor(db *gorm.DB) *QueryExecutor {
	return &QueryExecutor{DB: db}
}

// Transaction runs txFunc inside a database transaction. Returning an
// error (or panicking) rolls everything back.
func (qe *QueryExecutor) Transaction(ctx context.Context, txFunc func(tx *gorm.DB) error) error {
	return qe.DB.WithContext(ctx).Transaction(txFunc)
}

// Ping checks that the database is reachable.
func (qe *QueryExecutor) Ping(ctx context.Context) error {
	sqlDB, err := qe.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Count returns the number of rows of the given model that match the
// conditions.
func (qe *QueryExecutor) Count(ctx context.Context, model any, conditions map[string]any) (int64, error) {
	var count int64
	q := qe.DB.WithContext(ctx).Model(model)
	if len(conditions) > 0 {
		q = q.Where(conditions)
	}
	err := q.Count(&count).Error
	return count, err
}
