package file

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"prodigy/internal/domain/counsel"
	"prodigy/pkg/errors"
)

// TimestampLayout is the file-name timestamp, e.g. 2024-01-15T14-30-45
const TimestampLayout = "2006-01-02T15-04-05"

var _ counsel.Repository = (*ReportStore)(nil)

// ReportStore writes each run as <idea>_<timestamp>.json under one directory.
// A second run landing on the same name gets its run id appended.
type ReportStore struct {
	dir string
}

func NewReportStore(dir string) *ReportStore {
	if dir == "" {
		dir = "reports"
	}
	return &ReportStore{dir: dir}
}

func (s *ReportStore) Dir() string { return s.dir }

// SanitizeName keeps letters, digits, '-' and '_' and replaces everything else with '_'
func SanitizeName(name string) string {
	if name == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Write stores the run report and returns its path
func (s *ReportStore) Write(run *counsel.Run) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create reports dir %s", s.dir)
	}

	stamp := run.CompletedAt
	if stamp.IsZero() {
		stamp = time.Now().UTC()
	}
	base := SanitizeName(run.Brief.IdeaName) + "_" + stamp.Format(TimestampLayout)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run.Report()); err != nil {
		return "", errors.Wrapf(err, "encode report for run %s", run.ID)
	}

	path := filepath.Join(s.dir, base+".json")
	err := writeExclusive(path, buf.Bytes())
	if os.IsExist(err) {
		if !s.owns(path, run.ID) {
			// Another run of the same idea finished in the same second
			path = filepath.Join(s.dir, base+"_"+run.ID.String()+".json")
		}
		err = os.WriteFile(path, buf.Bytes(), 0o644)
	}
	if err != nil {
		return "", errors.Wrapf(err, "write report %s", path)
	}
	return path, nil
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// owns reports whether the file at path already holds the report of run id
func (s *ReportStore) owns(path string, id uuid.UUID) bool {
	rec, err := readRecord(path, time.Time{})
	return err == nil && rec.ID == id
}

// Save writes the report, discarding its path
func (s *ReportStore) Save(_ context.Context, run *counsel.Run) error {
	_, err := s.Write(run)
	return err
}

// Get scans the directory for the report of the given run
func (s *ReportStore) Get(ctx context.Context, id uuid.UUID) (*counsel.Record, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := readRecord(f.path, f.modTime)
		if err != nil {
			continue
		}
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "report for run %s", id)
}

// List returns up to limit reports, most recently written first
func (s *ReportStore) List(_ context.Context, limit int) ([]*counsel.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	files, err := s.files()
	if err != nil {
		return nil, err
	}

	records := make([]*counsel.Record, 0, min(limit, len(files)))
	for _, f := range files {
		if len(records) == limit {
			break
		}
		rec, err := readRecord(f.path, f.modTime)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

type reportFile struct {
	path    string
	modTime time.Time
}

func (s *ReportStore) files() ([]reportFile, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read reports dir %s", s.dir)
	}

	files := make([]reportFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, reportFile{path: filepath.Join(s.dir, e.Name()), modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })
	return files, nil
}

// storedReport is the subset of a report needed to rebuild a Record
type storedReport struct {
	RunID       uuid.UUID `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Project     struct {
		IdeaName string `json:"idea_name"`
	} `json:"project"`
	CounselSummary struct {
		OverallScore    float64 `json:"overall_score"`
		OverallDecision string  `json:"overall_decision"`
	} `json:"counsel_summary"`
	DevilsAdvocate json.RawMessage `json:"devils_advocate"`
	Usage          struct {
		CostUSD float64 `json:"cost_usd"`
	} `json:"usage"`
}

func readRecord(path string, modTime time.Time) (*counsel.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r storedReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.RunID == uuid.Nil {
		return nil, errors.Wrapf(errors.ErrMalformedPayload, "%s has no run_id", path)
	}

	created := r.GeneratedAt
	if created.IsZero() {
		created = modTime
	}
	return &counsel.Record{
		ID:              r.RunID,
		IdeaName:        r.Project.IdeaName,
		OverallScore:    r.CounselSummary.OverallScore,
		OverallDecision: r.CounselSummary.OverallDecision,
		Challenged:      len(r.DevilsAdvocate) > 0 && string(r.DevilsAdvocate) != "null",
		CostUSD:         r.Usage.CostUSD,
		Report:          json.RawMessage(bytes.TrimSpace(data)),
		CreatedAt:       created,
	}, nil
}
