// Command sheetkeys mints short-key lookup records for a batch of printed
// answer sheets, one per roster student, and prints the key assignments for
// the sheet generator to embed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"markscan/internal/assess"
	"markscan/internal/identify"
	"markscan/internal/lookup"
	"markscan/internal/version"
)

func main() {
	storePath := flag.String("store", "sheetkeys.db", "Path to the short-key lookup store")
	rosterPath := flag.String("roster", "", "Path to roster JSON")
	assignment := flag.String("assignment", "", "Assignment id")
	format := flag.String("format", "", "Sheet format tag (empty = standard)")
	variant := flag.String("variant", "", "Question-set variant tag")
	purge := flag.String("purge", "", "Instead of minting, delete all keys for this assignment id")
	stale := flag.Duration("stale", 0, "Instead of minting, delete keys older than this duration (e.g. 2160h)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(*storePath, *rosterPath, *assignment, *format, *variant, *purge, *stale); err != nil {
		fmt.Fprintf(os.Stderr, "sheetkeys: %v\n", err)
		os.Exit(1)
	}
}

func run(storePath, rosterPath, assignment, format, variant, purge string, stale time.Duration) error {
	ctx := context.Background()

	store, err := lookup.Open(ctx, storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if purge != "" {
		n, err := store.DeleteByAssignment(ctx, purge)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d keys for assignment %s\n", n, purge)
		return nil
	}

	if stale > 0 {
		n, err := store.DeleteOlderThan(ctx, time.Now().Add(-stale))
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d keys older than %s\n", n, stale)
		return nil
	}

	if rosterPath == "" || assignment == "" {
		return fmt.Errorf("usage: sheetkeys -roster <json> -assignment <id> [-store path] [-format f] [-variant v]")
	}

	data, err := os.ReadFile(rosterPath)
	if err != nil {
		return err
	}
	var roster assess.Roster
	if err := json.Unmarshal(data, &roster); err != nil {
		return fmt.Errorf("failed to parse roster: %w", err)
	}

	type assignedKey struct {
		StudentID string `json:"student_id"`
		Name      string `json:"name"`
		Key       string `json:"key"`
		Payload   string `json:"payload"`
	}

	records := make([]lookup.Record, 0, len(roster))
	out := make([]assignedKey, 0, len(roster))
	now := time.Now()
	for _, s := range roster {
		key, err := lookup.GenerateKey()
		if err != nil {
			return err
		}
		records = append(records, lookup.Record{
			Key:          key,
			AssignmentID: assignment,
			StudentID:    s.ID,
			Format:       format,
			Variant:      variant,
			DisplayName:  s.FullName(),
			CreatedAt:    now,
		})
		out = append(out, assignedKey{
			StudentID: s.ID,
			Name:      s.FullName(),
			Key:       key,
			Payload:   identify.EncodeShortKey(key),
		})
	}

	// One transaction for the whole print batch
	if err := store.PutBatch(ctx, records); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
