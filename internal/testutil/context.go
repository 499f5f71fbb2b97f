package testutil

import (
	"context"

	"github.com/flexprice/membership/internal/types"
)

// SetupContext returns a context carrying a fresh request id, acting as the system user
func SetupContext() context.Context {
	ctx := types.SetRequestID(context.Background(), types.GenerateUUID())
	return types.SetUserID(ctx, types.DefaultUserID)
}

// AccountContext scopes ctx to an account, the way the session middleware does
func AccountContext(ctx context.Context, accountID string) context.Context {
	return types.SetUserID(types.SetAccountID(ctx, accountID), accountID)
}
