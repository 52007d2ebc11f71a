package insights

import (
	"context"

	"github.com/ecotrace/ecotrace/internal/catalog"
	"github.com/ecotrace/ecotrace/internal/domain"
)

// TransactionSource is the transaction population behind the service.
// Both the CSV store and the BigQuery repository satisfy it.
type TransactionSource interface {
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	AppendTransaction(ctx context.Context, tx domain.Transaction) error
}

// CategorySource delivers raw category records for catalog loading.
type CategorySource interface {
	ListCategories(ctx context.Context) ([]catalog.Record, error)
}

// ProfileSource delivers optional presentation overrides per user.
type ProfileSource interface {
	ListProfiles(ctx context.Context) (map[string]domain.UserProfile, error)
}

// AckStore records and lists suggestion acknowledgements.
type AckStore interface {
	Record(ctx context.Context, ack domain.Acknowledgement) error
	List(ctx context.Context, userID string) (map[string]domain.Acknowledgement, error)
}
