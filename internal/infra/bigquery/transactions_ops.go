package bigquery

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/iterator"

	"github.com/ecotrace/ecotrace/internal/domain"
)

// ListTransactions returns the full transaction population ordered by date,
// mapped into domain records. Rows with null dates come back with the zero
// time, matching the malformed-date degradation of the CSV source.
func (r *Repository) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			user_id,
			merchant,
			category_id,
			amount,
			transaction_date,
			created_ts
		FROM %s.%s
		ORDER BY transaction_date, created_ts
	`, r.dataset, transactionsTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query read: %w", err)
	}

	var out []domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iter next: %w", err)
		}

		userID := row.UserID
		if userID == "" {
			userID = domain.DefaultUserID
		}
		out = append(out, domain.Transaction{
			TransactionID: row.TransactionID,
			UserID:        userID,
			Merchant:      row.Merchant,
			CategoryID:    row.CategoryID.StringVal,
			Amount:        row.Amount,
			Date:          dateOrZero(row.TransactionDate),
		})
	}
	return out, nil
}

// AppendTransaction streams one transaction row into the transactions
// table. BigQuery serializes concurrent streaming inserts itself.
func (r *Repository) AppendTransaction(ctx context.Context, tx domain.Transaction) error {
	row := &TransactionRow{
		TransactionID:   tx.TransactionID,
		UserID:          tx.UserID,
		Merchant:        tx.Merchant,
		Amount:          tx.Amount,
		TransactionDate: nullDateOf(tx.Date),
		CreatedTS:       time.Now().UTC(),
	}
	if tx.CategoryID != "" {
		row.CategoryID = toNullString(tx.CategoryID)
	}

	inserter := r.table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, []*TransactionRow{row}); err != nil {
		return fmt.Errorf("AppendTransaction: inserting row: %w", err)
	}
	return nil
}
