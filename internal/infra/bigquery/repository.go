// Package bigquery is the BigQuery-backed implementation of the transaction,
// category and profile sources. The store guarantees read-after-write
// visibility for inserts via the streaming inserter plus query reads.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const (
	// DefaultDatasetID is the dataset holding the ecotrace tables.
	DefaultDatasetID = "ecotrace"

	transactionsTable = "transactions"
	categoriesTable   = "categories"
	profilesTable     = "user_profiles"
)

// Repository bundles the ecotrace tables behind one shared client.
type Repository struct {
	client  *bigquery.Client
	dataset string
}

// NewRepository creates a repository for the given project, using
// Application Default Credentials. An empty dataset selects the default.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewRepository: project id is required")
	}
	if datasetID == "" {
		datasetID = DefaultDatasetID
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, dataset: datasetID}, nil
}

// NewRepositoryWithClient wraps an existing client; used by tests and by
// callers that manage client lifecycle themselves.
func NewRepositoryWithClient(client *bigquery.Client, datasetID string) *Repository {
	if datasetID == "" {
		datasetID = DefaultDatasetID
	}
	return &Repository{client: client, dataset: datasetID}
}

// Close closes the underlying BigQuery client.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Repository) table(name string) *bigquery.Table {
	return r.client.Dataset(r.dataset).Table(name)
}
