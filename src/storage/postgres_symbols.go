package storage

import (
	"fmt"
	"regexp"
	"time"
)

// Info: Separate file for the symbol catalog logic specific to Postgres.
// The catalog records every symbol the seed tooling wrote, and lets scan
// lists reference another table ("schema.table.field") that expands to the
// symbols stored there.

// SymbolMetadata defines the structure for symbol registration
type SymbolMetadata struct {
	Symbol     string
	Type       string // "classic" or "postgres_ref"
	RefSchema  string
	RefTable   string
	RefField   string
	SourceName string
}

var pgSymbolRegex = regexp.MustCompile(`^(\w+)\.(\w+)\.(\w+)$`)

// -----------------------------------------------------------------------------

func (d *PostgresStore) ensureSymbolCatalog() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."symbols" (
			symbol TEXT PRIMARY KEY,
			type TEXT,
			ref_schema TEXT,
			ref_table TEXT,
			ref_field TEXT,
			source_name TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create symbol catalog: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// ExpandSymbols resolves a raw symbol list: plain symbols pass through,
// "schema.table.field" references are replaced by the symbols read from that
// table. Everything seen is registered in the catalog.
func (d *PostgresStore) ExpandSymbols(sourceName string, rawSymbols []string) ([]string, error) {
	var classicSymbols []string
	var catalog []SymbolMetadata

	for _, sym := range rawSymbols {
		matches := pgSymbolRegex.FindStringSubmatch(sym)
		if len(matches) == 4 {
			ref := SymbolMetadata{
				Symbol:     sym,
				Type:       "postgres_ref",
				RefSchema:  matches[1],
				RefTable:   matches[2],
				RefField:   matches[3],
				SourceName: sourceName,
			}
			catalog = append(catalog, ref)

			loadedSymbols, err := d.GetSymbolsFromTable(ref.RefSchema, ref.RefTable, ref.RefField)
			if err != nil {
				return classicSymbols, fmt.Errorf("failed to load symbols from %s: %w", sym, err)
			}

			for _, loadedSym := range loadedSymbols {
				classicSymbols = append(classicSymbols, loadedSym)
				catalog = append(catalog, SymbolMetadata{
					Symbol:     loadedSym,
					Type:       "classic",
					SourceName: sourceName,
				})
			}

		} else {
			classicSymbols = append(classicSymbols, sym)
			catalog = append(catalog, SymbolMetadata{
				Symbol:     sym,
				Type:       "classic",
				SourceName: sourceName,
			})
		}
	}

	if err := d.RegisterSymbols(catalog); err != nil {
		return classicSymbols, fmt.Errorf("failed to register symbols: %w", err)
	}

	return classicSymbols, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) RegisterSymbols(symbols []SymbolMetadata) error {
	if len(symbols) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tableName := fmt.Sprintf(`"%s"."symbols"`, d.Schema)
	query := fmt.Sprintf(`
		INSERT INTO %s (symbol, type, ref_schema, ref_table, ref_field, source_name, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol) DO UPDATE SET
			type = EXCLUDED.type,
			ref_schema = EXCLUDED.ref_schema,
			ref_table = EXCLUDED.ref_table,
			ref_field = EXCLUDED.ref_field,
			source_name = EXCLUDED.source_name,
			updated_at = EXCLUDED.updated_at
	`, tableName)

	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range symbols {
		_, err := stmt.Exec(s.Symbol, s.Type, s.RefSchema, s.RefTable, s.RefField, s.SourceName, time.Now().UTC())
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) GetSymbolsFromTable(schema, table, field string) ([]string, error) {
	// \w+ identifiers only, quoted; nothing user-supplied beyond that reaches
	// the query text
	query := fmt.Sprintf(`SELECT "%s" FROM "%s"."%s"`, field, schema, table)

	rows, err := d.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s != "" {
			symbols = append(symbols, s)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return symbols, nil
}
