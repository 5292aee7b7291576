// Command scangrade grades a directory of scanned answer-sheet page images
// against an assessment and roster, printing the full result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"markscan/internal/assess"
	"markscan/internal/lookup"
	"markscan/internal/ocr"
	"markscan/internal/pipeline"
	"markscan/internal/report"
	"markscan/internal/version"
)

func main() {
	dir := flag.String("dir", "", "Directory of rasterized page images (PNG, JPEG, or TIFF), graded in name order")
	storePath := flag.String("store", "sheetkeys.db", "Path to the short-key lookup store")
	assessmentPath := flag.String("assessment", "", "Path to assessment JSON (questions, answer key, variants)")
	rosterPath := flag.String("roster", "", "Path to roster JSON")
	assignment := flag.String("assignment", "", "Assignment id")
	section := flag.String("section", "", "Section id")
	out := flag.String("o", "", "Write a report file instead of printing JSON to stdout")
	noOCR := flag.Bool("no-ocr", false, "Disable the OCR name fallback")
	verbose := flag.Bool("v", false, "Verbose logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if *dir == "" || *assessmentPath == "" || *rosterPath == "" || *assignment == "" {
		fmt.Println("Usage: scangrade -dir <pages> -assessment <json> -roster <json> -assignment <id> [-store path] [-section id]")
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(*dir, *storePath, *assessmentPath, *rosterPath, *assignment, *section, *out, *noOCR, logger); err != nil {
		logger.Error("scangrade failed", "err", err)
		os.Exit(1)
	}
}

func run(dir, storePath, assessmentPath, rosterPath, assignment, section, out string, noOCR bool, logger *slog.Logger) error {
	ctx := context.Background()

	var assessment assess.Assessment
	if err := loadJSON(assessmentPath, &assessment); err != nil {
		return fmt.Errorf("failed to load assessment: %w", err)
	}
	var roster assess.Roster
	if err := loadJSON(rosterPath, &roster); err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}

	pages, err := loadPages(dir)
	if err != nil {
		return err
	}
	logger.Info("loaded pages", "count", len(pages), "dir", dir)

	store, err := lookup.Open(ctx, storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	var engine *ocr.Engine
	if !noOCR {
		engine, err = ocr.NewEngine()
		if err != nil {
			// OCR is a fallback path; grade without it rather than fail
			logger.Warn("OCR engine unavailable, name fallback disabled", "err", err)
		} else {
			defer engine.Close()
		}
	}

	progress := make(chan pipeline.Event, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range progress {
			if e.Stage == pipeline.StageParsing {
				fmt.Fprintf(os.Stderr, "parsing %d/%d\n", e.Page, e.Total)
			} else {
				fmt.Fprintln(os.Stderr, e.Stage)
			}
		}
	}()

	p := pipeline.New(store, engine, pipeline.WithLogger(logger), pipeline.WithProgress(progress))
	resp, err := p.Run(ctx, pipeline.Request{
		AssignmentID: assignment,
		SectionID:    section,
		Assessment:   &assessment,
		Roster:       roster,
		Pages:        pages,
	})
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if out != "" {
		rep := report.New(assignment, section, resp)
		rep.SetInputs(out, dir, assessmentPath, rosterPath)
		if err := rep.Save(out); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		logger.Info("report written", "path", out)
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func loadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// loadPages reads every supported image in the directory in name order, which
// is the order the rasterizer emits them.
func loadPages(dir string) ([][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read page directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, fmt.Errorf("no page images in %s", dir)
	}

	pages := make([][]byte, len(names))
	for i, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		pages[i] = data
	}
	return pages, nil
}
