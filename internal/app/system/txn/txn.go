// internal/app/system/txn/txn.go
//
// Package txn runs multi-document operations in a Mongo transaction
// when the server supports them (replica set / mongos) and falls back
// to running the callback directly on standalone servers, where
// transactions raise server errors.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// WithTransaction runs fn inside a transaction session. On servers
// without transaction support the callback runs once with the plain
// context; callers must keep fn idempotent-safe for that path.
func WithTransaction(ctx context.Context, client *mongo.Client, fn func(ctx context.Context) error) error {
	session, err := client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			zap.L().Debug("sessions unsupported; running without transaction")
			return fn(ctx)
		}
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		zap.L().Debug("transactions unsupported; running without transaction")
		return fn(ctx)
	}
	return err
}

// IsNotSupported reports whether err indicates the server cannot run
// transactions (standalone mongod, old DocumentDB). Matches known
// server error codes first, then falls back to message keywords.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		// 20: IllegalOperation (txn numbers need a replica set)
		// 51: transactions not allowed for this operation
		// 263: OperationNotSupportedInTransaction
		switch ce.Code {
		case 20, 51, 263:
			return true
		}
	}

	s := strings.ToLower(err.Error())
	hasTx := strings.Contains(s, "transaction")
	hasSession := strings.Contains(s, "session")
	switch {
	case strings.Contains(s, "illegal operation"):
		return true
	case hasTx && (strings.Contains(s, "replica set") || hasSession):
		return true
	case hasSession && strings.Contains(s, "not supported"):
		return true
	}
	return false
}
