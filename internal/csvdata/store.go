package csvdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ecotrace/ecotrace/internal/catalog"
	"github.com/ecotrace/ecotrace/internal/domain"
)

// TransactionStore is a CSV file acting as the transaction source. Appends
// are serialized by a mutex and flushed before returning, so a subsequent
// List observes them (read-after-write).
type TransactionStore struct {
	path string
	log  zerolog.Logger
	mu   sync.Mutex
}

// NewTransactionStore returns a store backed by the CSV file at path.
// The file does not need to exist yet.
func NewTransactionStore(path string, log zerolog.Logger) *TransactionStore {
	return &TransactionStore{path: path, log: log}
}

// ListTransactions reads the full transaction population. A missing file is
// reported as domain.ErrSourceMissing so callers can degrade to an empty
// population.
func (s *TransactionStore) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("ListTransactions: %q: %w", s.path, domain.ErrSourceMissing)
		}
		return nil, fmt.Errorf("ListTransactions: open %q: %w", s.path, err)
	}
	defer f.Close()

	return ParseTransactions(f, s.log), nil
}

// AppendTransaction appends one transaction row, creating the file with a
// header when absent.
func (s *TransactionStore) AppendTransaction(ctx context.Context, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, statErr := os.Stat(s.path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("AppendTransaction: open %q: %w", s.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(TransactionHeader); err != nil {
			return fmt.Errorf("AppendTransaction: write header: %w", err)
		}
	}

	date := ""
	if !tx.Date.IsZero() {
		date = tx.Date.Format(DateFormat)
	}
	record := []string{
		tx.TransactionID,
		tx.Merchant,
		tx.CategoryID,
		strconv.FormatFloat(tx.Amount, 'f', -1, 64),
		date,
		tx.UserID,
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("AppendTransaction: write row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("AppendTransaction: flush: %w", err)
	}
	return nil
}

// CategoryFile is a CSV file acting as the category source.
type CategoryFile struct {
	path string
	log  zerolog.Logger
}

// NewCategoryFile returns a category source backed by the CSV file at path.
func NewCategoryFile(path string, log zerolog.Logger) *CategoryFile {
	return &CategoryFile{path: path, log: log}
}

// ListCategories reads all category records. A missing file is reported as
// domain.ErrSourceMissing; the catalog loader treats that as an empty
// catalog.
func (c *CategoryFile) ListCategories(ctx context.Context) ([]catalog.Record, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("ListCategories: %q: %w", c.path, domain.ErrSourceMissing)
		}
		return nil, fmt.Errorf("ListCategories: open %q: %w", c.path, err)
	}
	defer f.Close()

	return ParseCategories(f, c.log), nil
}
