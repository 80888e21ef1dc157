package spanner

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	database "cloud.google.com/go/spanner/admin/database/apiv1"
	"cloud.google.com/go/spanner/admin/database/apiv1/databasepb"
)

//go:embed schema.sql
var schema string

// Statements splits the embedded schema into DDL statements.
func Statements() []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// objectName returns the table or index a CREATE statement defines.
func objectName(stmt string) string {
	fields := strings.Fields(stmt)
	for i := 0; i+1 < len(fields); i++ {
		switch strings.ToUpper(fields[i]) {
		case "TABLE", "INDEX":
			name, _, _ := strings.Cut(fields[i+1], "(")
			return name
		}
	}
	return ""
}

// Pending drops the statements whose object already exists in current.
func Pending(current, wanted []string) []string {
	existing := make(map[string]bool, len(current))
	for _, stmt := range current {
		existing[objectName(stmt)] = true
	}
	var out []string
	for _, stmt := range wanted {
		if !existing[objectName(stmt)] {
			out = append(out, stmt)
		}
	}
	return out
}

// ApplySchema creates the tables and indexes missing from the database and
// returns how many statements ran.
func ApplySchema(ctx context.Context, cfg Config) (int, error) {
	admin, err := database.NewDatabaseAdminClient(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to create database admin client: %w", err)
	}
	defer admin.Close()

	current, err := admin.GetDatabaseDdl(ctx, &databasepb.GetDatabaseDdlRequest{Database: cfg.DSN()})
	if err != nil {
		return 0, fmt.Errorf("failed to read schema: %w", err)
	}
	pending := Pending(current.GetStatements(), Statements())
	if len(pending) == 0 {
		return 0, nil
	}

	op, err := admin.UpdateDatabaseDdl(ctx, &databasepb.UpdateDatabaseDdlRequest{
		Database:   cfg.DSN(),
		Statements: pending,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to update schema: %w", err)
	}
	if err := op.Wait(ctx); err != nil {
		return 0, fmt.Errorf("schema update failed: %w", err)
	}
	return len(pending), nil
}
