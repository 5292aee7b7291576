// Package report provides grading report file handling and persistence.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"markscan/internal/pipeline"
)

// currentVersion is the report file schema version.
const currentVersion = 1

// File represents a saved grading run (.gradereport.json). Overrides and
// manual page assignments applied after the run are persisted by saving the
// updated result back to the same file.
type File struct {
	Version      int       `json:"version"`
	AssignmentID string    `json:"assignment_id"`
	SectionID    string    `json:"section_id,omitempty"`
	Created      time.Time `json:"created"`
	Modified     time.Time `json:"modified"`

	// Input paths (relative to the report file)
	SourceDir      string `json:"source_dir,omitempty"`
	AssessmentPath string `json:"assessment,omitempty"`
	RosterPath     string `json:"roster,omitempty"`

	Result *pipeline.Response `json:"result"`
}

// New creates a report file for one grading run.
func New(assignmentID, sectionID string, result *pipeline.Response) *File {
	now := time.Now()
	return &File{
		Version:      currentVersion,
		AssignmentID: assignmentID,
		SectionID:    sectionID,
		Created:      now,
		Modified:     now,
		Result:       result,
	}
}

// Load loads a report from a file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rep File
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, err
	}
	if rep.Version != currentVersion {
		return nil, fmt.Errorf("report %s: unsupported version %d", path, rep.Version)
	}
	return &rep, nil
}

// Save saves the report to a file.
func (f *File) Save(path string) error {
	f.Modified = time.Now()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SetInputs records the run's input paths relative to the report location so
// the report stays valid when the whole directory moves.
func (f *File) SetInputs(reportPath, sourceDir, assessmentPath, rosterPath string) {
	f.SourceDir = relTo(reportPath, sourceDir)
	f.AssessmentPath = relTo(reportPath, assessmentPath)
	f.RosterPath = relTo(reportPath, rosterPath)
	f.Modified = time.Now()
}

// GetSourceDir returns the absolute path to the page image directory.
func (f *File) GetSourceDir(reportPath string) string {
	return absFrom(reportPath, f.SourceDir)
}

// GetAssessmentPath returns the absolute path to the assessment file.
func (f *File) GetAssessmentPath(reportPath string) string {
	return absFrom(reportPath, f.AssessmentPath)
}

// GetRosterPath returns the absolute path to the roster file.
func (f *File) GetRosterPath(reportPath string) string {
	return absFrom(reportPath, f.RosterPath)
}

func relTo(reportPath, target string) string {
	if target == "" {
		return ""
	}
	rel, err := filepath.Rel(filepath.Dir(reportPath), target)
	if err != nil {
		return target
	}
	return rel
}

func absFrom(reportPath, stored string) string {
	if stored == "" {
		return ""
	}
	if filepath.IsAbs(stored) {
		return stored
	}
	return filepath.Join(filepath.Dir(reportPath), stored)
}
