package types

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex num_01HZX3Q4N6M5Y0V9K2T8R7C1BA
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

const (
	UUID_PREFIX_NUMBER             = "num"
	UUID_PREFIX_LEDGER_TRANSACTION = "txn"
	UUID_PREFIX_EVENT              = "evt"
	UUID_PREFIX_REQUEST            = "req"
)
