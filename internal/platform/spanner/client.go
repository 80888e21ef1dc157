// Package spanner provides Cloud Spanner client initialization and
// transaction plumbing shared by the module repositories.
package spanner

import (
	"context"
	"fmt"

	"cloud.google.com/go/spanner"
)

// Config holds Spanner connection configuration.
type Config struct {
	ProjectID  string
	InstanceID string
	DatabaseID string
}

// DSN returns the Spanner database connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("projects/%s/instances/%s/databases/%s",
		c.ProjectID, c.InstanceID, c.DatabaseID)
}

// NewClient creates a new Spanner client from config.
// The caller is responsible for closing the client when done.
func NewClient(ctx context.Context, cfg Config) (*spanner.Client, error) {
	client, err := spanner.NewClient(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create spanner client: %w", err)
	}
	return client, nil
}

// Reader returns the transaction carried by ctx, or a single-use read-only
// transaction when there is none. The returned func releases it.
func Reader(ctx context.Context, client *spanner.Client) (ReadTransaction, func()) {
	if tx, ok := ReadTransactionFromContext(ctx); ok {
		return tx, func() {}
	}
	roTx := client.ReadOnlyTransaction()
	return roTx, roTx.Close
}

// Apply buffers mutations into the transaction carried by ctx, or applies
// them on their own when there is none.
func Apply(ctx context.Context, client *spanner.Client, mutations []*spanner.Mutation) error {
	if tx, ok := ReadWriteTxFromContext(ctx); ok {
		return tx.BufferWrite(mutations)
	}
	if _, err := client.Apply(ctx, mutations); err != nil {
		return fmt.Errorf("failed to apply mutations: %w", err)
	}
	return nil
}
