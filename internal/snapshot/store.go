package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"dqa/internal/dataset"
	"dqa/internal/quality"

	"github.com/rs/zerolog/log"
)

// ReportFile is the run report written next to the stage snapshots.
const ReportFile = "report.json"

// Store persists stage outputs as one JSONL file per stage, partitioned by
// run ID: <dir>/<runID>/<stage>.jsonl.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the file of one stage snapshot.
func (s *Store) Path(runID string, stage quality.Stage) string {
	return filepath.Join(s.dir, runID, stage.String()+".jsonl")
}

// Save writes the snapshot of one stage, as returned by Session.Snapshot.
func (s *Store) Save(runID string, stage quality.Stage, snap any) error {
	path := s.Path(runID, stage)
	switch rows := snap.(type) {
	case []dataset.Observation:
		return writeJSONL(path, rows)
	case []quality.QualityRecord:
		return writeJSONL(path, rows)
	case []quality.SeriesStyle:
		return writeJSONL(path, rows)
	case []quality.FacilityStat:
		return writeJSONL(path, rows)
	case []quality.RollupStat:
		return writeJSONL(path, rows)
	case quality.PresentationTable:
		return writeJSONL(path, rows.Rows)
	}
	return fmt.Errorf("unsupported snapshot type %T for stage %s", snap, stage)
}

// SaveSession writes every completed stage of a session and its report.
func (s *Store) SaveSession(sess *quality.Session) error {
	runID := sess.RunID()
	for stage := quality.StageRaw; stage <= sess.Stage(); stage++ {
		snap, ok := sess.Snapshot(stage)
		if !ok {
			continue
		}
		if err := s.Save(runID, stage, snap); err != nil {
			return err
		}
	}
	if err := s.SaveReport(sess.Report()); err != nil {
		return err
	}
	log.Info().Str("run", runID).Str("stage", sess.Stage().String()).Str("dir", filepath.Join(s.dir, runID)).Msg("Stage snapshots saved")
	return nil
}

// SaveResult writes the stages retained in a merged result, as produced by
// sharded runs, and its report.
func (s *Store) SaveResult(res *quality.Result) error {
	stages := []struct {
		stage quality.Stage
		snap  any
	}{
		{quality.StageAvailability, res.Records},
		{quality.StageReportingStyle, res.Styles},
		{quality.StageFacility, res.Facilities},
		{quality.StageRollup, res.Rollup},
		{quality.StagePresentation, res.Presentation},
	}
	for _, st := range stages {
		if err := s.Save(res.RunID, st.stage, st.snap); err != nil {
			return err
		}
	}
	return s.SaveReport(res.Report)
}

// SaveReport writes the run report as indented JSON.
func (s *Store) SaveReport(report quality.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	path := filepath.Join(s.dir, report.RunID, ReportFile)
	return atomicWrite(path, func(w *bufio.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Load reads a stage snapshot. Invalid lines are skipped with a warning.
func Load[T any](s *Store, runID string, stage quality.Stage) ([]T, error) {
	path := s.Path(runID, stage)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	var rows []T
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var row T
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			log.Warn().Err(err).Str("run", runID).Str("stage", stage.String()).Msg("Skipping invalid JSON line in snapshot")
			continue
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading snapshot: %w", err)
	}
	return rows, nil
}

// LoadReport reads the report of a run.
func (s *Store) LoadReport(runID string) (quality.RunReport, error) {
	var report quality.RunReport
	data, err := os.ReadFile(filepath.Join(s.dir, runID, ReportFile))
	if err != nil {
		return report, fmt.Errorf("failed to read report: %w", err)
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("failed to decode report: %w", err)
	}
	return report, nil
}

// Runs lists the stored run IDs, sorted.
func (s *Store) Runs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var runs []string
	for _, e := range entries {
		if e.IsDir() {
			runs = append(runs, e.Name())
		}
	}
	slices.Sort(runs)
	return runs, nil
}

// Stages lists the stages stored for a run, in execution order.
func (s *Store) Stages(runID string) ([]quality.Stage, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, runID))
	if err != nil {
		return nil, err
	}
	stored := make(map[string]bool)
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".jsonl"); ok {
			stored[name] = true
		}
	}
	var out []quality.Stage
	for stage := quality.StageRaw; stage <= quality.StagePresentation; stage++ {
		if stored[stage.String()] {
			out = append(out, stage)
		}
	}
	return out, nil
}

func writeJSONL[T any](path string, rows []T) error {
	return atomicWrite(path, func(w *bufio.Writer) error {
		encoder := json.NewEncoder(w)
		for _, r := range rows {
			if err := encoder.Encode(r); err != nil {
				return fmt.Errorf("failed to encode row: %w", err)
			}
		}
		return nil
	})
}

// atomicWrite writes through a temp file and renames it into place.
func atomicWrite(path string, write func(*bufio.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	writer := bufio.NewWriter(file)
	if err := write(writer); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}
	return nil
}
