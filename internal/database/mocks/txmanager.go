// Package mocks provides mock implementations for testing database consumers.
package mocks

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"
)

// MockTxManager is a mock implementation of database.TxManager for testing.
type MockTxManager struct {
	mock.Mock
}

// WithTx mocks the WithTx method of TxManager.
func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

// WithTxOptions mocks the WithTxOptions method of TxManager.
func (m *MockTxManager) WithTxOptions(
	ctx context.Context,
	opts *sql.TxOptions,
	fn func(ctx context.Context) error,
) error {
	args := m.Called(ctx, opts, fn)
	return args.Error(0)
}

// PassthroughTxManager runs the function directly without a transaction.
// Useful when the test only cares about what happens inside the callback.
type PassthroughTxManager struct{}

// WithTx executes fn with the given context.
func (PassthroughTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// WithTxOptions executes fn with the given context, ignoring the options.
func (PassthroughTxManager) WithTxOptions(
	ctx context.Context,
	_ *sql.TxOptions,
	fn func(ctx context.Context) error,
) error {
	return fn(ctx)
}
