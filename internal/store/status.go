package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"horoscope-relay/internal/components/assert"
	"horoscope-relay/internal/components/telemetry"
)

const report_status_read = "status.read"

// StatusFileName is the file under the data directory holding the date of
// the last successful scheduled scrape.
const StatusFileName = "last_successful_scrape.txt"

// StatusFile persists a single YYYY-MM-DD date.
type StatusFile struct {
	path string
	loc  *time.Location
	tel  telemetry.API
}

func NewStatusFile(dataDir string, loc *time.Location, tel telemetry.API) StatusFile {
	assert.NotNil(loc)
	assert.NotNil(tel)
	return StatusFile{
		path: filepath.Join(dataDir, StatusFileName),
		loc:  loc,
		tel:  telemetry.NewScopedAPI("store", tel),
	}
}

func (s StatusFile) Path() string {
	return s.path
}

// LastSuccess returns the stored date. A missing or unreadable file means
// there was never a successful run and yields ok = false.
func (s StatusFile) LastSuccess() (date time.Time, ok bool) {
	contents, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, false
	}
	if err != nil {
		s.tel.ReportWarning(report_status_read, err)
		return time.Time{}, false
	}

	text := strings.TrimSpace(string(contents))
	date, err = time.ParseInLocation(time.DateOnly, text, s.loc)
	if err != nil {
		s.tel.ReportWarning(report_status_read, fmt.Errorf("invalid date %q: %w", text, err))
		return time.Time{}, false
	}
	return date, true
}

// SetLastSuccess overwrites the stored date.
func (s StatusFile) SetLastSuccess(date time.Time) error {
	err := os.MkdirAll(filepath.Dir(s.path), 0777)
	if err != nil {
		return fmt.Errorf("status file: %w", err)
	}
	tmp := s.path + ".tmp"
	err = os.WriteFile(tmp, []byte(date.In(s.loc).Format(time.DateOnly)), 0666)
	if err != nil {
		return fmt.Errorf("status file: %w", err)
	}
	err = os.Rename(tmp, s.path)
	if err != nil {
		return fmt.Errorf("status file: %w", err)
	}
	return nil
}
