// Package repository provides data access interfaces and implementations
// for the Theme Discovery Service.
//
// # Overview
//
// This package defines repository interfaces and their PostgreSQL implementations
// following the repository pattern to abstract data persistence from business logic.
//
// # Repository Interfaces
//
//   - DocumentRepository: Manages document lifecycle state and duplicate links
//   - SectionRepository: Manages extracted section text and embeddings
//   - ThemeRepository: Manages generation-fenced theme sets and assignments
//   - ClusterRunRepository: Manages the per-project clustering run ledger
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use by multiple goroutines.
// The underlying pgxpool handles connection pooling and synchronization.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package.
// Wrap database errors with context using fmt.Errorf with %w verb.
// Common errors include:
//
//   - domain.ErrNotFound: Resource does not exist
//   - domain.ErrInvalidInput: Invalid parameters provided
//
// # Transactions
//
// Use the DBTX interface to support both pool and transaction contexts.
// Pass a transaction from database.DB.WithTransaction for atomic operations,
// e.g. the clustering engine replaces a project's theme set inside one
// transaction by constructing transactional repository instances:
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    themes := repository.NewPgThemeRepository(tx)
//	    if err := themes.InsertThemes(ctx, newThemes); err != nil {
//	        return err
//	    }
//	    // ...
//	    _, err := themes.DeleteGenerationsExcept(ctx, projectID, generation)
//	    return err
//	})
package repository

import (
	"github.com/helixir/theme-discovery-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
// This allows repositories to work with both direct pool connections and transactions.
type DBTX = database.DBTX
