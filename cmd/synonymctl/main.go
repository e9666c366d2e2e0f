// Command synonymctl manages the synonym store of a resolver database:
// bulk-import aliases from CSV, export them back out, or list what is
// stored. Import and export share the resolver's column layout
// (alias, street, postal_code, city, lat, lon).
//
// Usage:
//
//	go run ./cmd/synonymctl -db data/resolver.db -import synonyms.csv
//	go run ./cmd/synonymctl -db data/resolver.db -export backup.csv
//	go run ./cmd/synonymctl -db data/resolver.db -list
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jonboulle/clockwork"

	"github.com/tourkit/address-resolver/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	dbPath := flag.String("db", "data/resolver.db", "path to the resolver SQLite database")
	importPath := flag.String("import", "", "CSV file to import synonyms from")
	exportPath := flag.String("export", "", "CSV file to export synonyms to")
	list := flag.Bool("list", false, "print all stored synonyms")
	flag.Parse()

	actions := 0
	for _, set := range []bool{*importPath != "", *exportPath != "", *list} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		flag.Usage()
		return fmt.Errorf("exactly one of -import, -export, -list is required")
	}

	db, err := store.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if err := store.Migrate(ctx, db); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	synonyms := store.NewSynonymStore(db, clockwork.NewRealClock(), logger)

	switch {
	case *importPath != "":
		return runImport(ctx, synonyms, *importPath)
	case *exportPath != "":
		return runExport(ctx, synonyms, *exportPath)
	default:
		return runList(ctx, synonyms, os.Stdout)
	}
}

func runImport(ctx context.Context, synonyms *store.SynonymStore, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := synonyms.ImportCSV(ctx, f)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	fmt.Printf("imported %d synonyms from %s\n", n, path)
	return nil
}

func runExport(ctx context.Context, synonyms *store.SynonymStore, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, hash, err := synonyms.ExportCSV(ctx, f)
	if err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	fmt.Printf("exported %d synonyms to %s (sha256 %s)\n", n, path, hash)
	return nil
}

func runList(ctx context.Context, synonyms *store.SynonymStore, out io.Writer) error {
	all, err := synonyms.All(ctx)
	if err != nil {
		return err
	}
	for _, syn := range all {
		coords := "-"
		if syn.Coord != nil {
			coords = fmt.Sprintf("%.6f,%.6f", syn.Coord.Lat, syn.Coord.Lon)
		}
		fmt.Fprintf(out, "%-30s %s  [%s]\n", syn.Alias, syn.Address(), coords)
	}
	fmt.Fprintf(out, "%d synonyms\n", len(all))
	return nil
}
