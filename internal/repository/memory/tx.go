package memory

import (
	"context"

	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/postgres"
)

var _ postgres.IClient = (*TxRunner)(nil)

// TxRunner is the transaction boundary of the memory driver. Each repository
// call is atomic under its store mutex, so WithTx only runs fn. Nothing is
// rolled back on error; callers that need undo compensate explicitly.
type TxRunner struct {
	logger *logger.Logger
}

func NewTxRunner(logger *logger.Logger) *TxRunner {
	return &TxRunner{logger: logger}
}

func (c *TxRunner) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
