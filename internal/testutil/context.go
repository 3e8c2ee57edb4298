package testutil

import (
	"context"

	"github.com/numbrly/portal/internal/types"
)

// SetupContext returns a context carrying a request id and the default user
func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetUserID(ctx, types.DefaultUserID)
	ctx = types.SetRequestID(ctx, types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REQUEST))
	return ctx
}
