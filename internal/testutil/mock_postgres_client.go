package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/postgres"
	"github.com/flexprice/membership/internal/types"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

// MockTx collects the undo actions of in-memory writes made inside a transaction
type MockTx struct {
	mu   sync.Mutex
	undo []func()
}

// OnRollback registers fn to run if the transaction fails
func (t *MockTx) OnRollback(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = append(t.undo, fn)
}

func (t *MockTx) rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// TxFromContext returns the mock transaction carried by ctx, if any
func TxFromContext(ctx context.Context) *MockTx {
	if tx, ok := ctx.Value(types.CtxDBTransaction).(*MockTx); ok {
		return tx
	}
	return nil
}

// MockPostgresClient is a mock implementation of postgres client for testing.
// Transactions are emulated by undoing the in-memory writes of a failed fn.
type MockPostgresClient struct {
	logger *logger.Logger

	mu      sync.Mutex
	commits int
	aborts  int
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger) *MockPostgresClient {
	return &MockPostgresClient{
		logger: logger,
	}
}

// WithTx executes the given function within a transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	// If we're already in a transaction, reuse it
	if tx := TxFromContext(ctx); tx != nil {
		return fn(ctx)
	}

	tx := &MockTx{}
	if err := fn(context.WithValue(ctx, types.CtxDBTransaction, tx)); err != nil {
		tx.rollback()
		c.mu.Lock()
		c.aborts++
		c.mu.Unlock()
		c.logger.Debugw("mock transaction rolled back", "error", err)
		return err
	}

	c.mu.Lock()
	c.commits++
	c.mu.Unlock()
	return nil
}

// Stats returns the number of committed and rolled back transactions
func (c *MockPostgresClient) Stats() (commits, aborts int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commits, c.aborts
}
