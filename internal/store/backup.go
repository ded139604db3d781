package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"horoscope-relay/internal/components/assert"
	"horoscope-relay/internal/horoscope"
)

const (
	backupPrefix     = "horoscopes_backup_"
	backupExt        = ".json"
	backupTimeLayout = "20060102_150405"

	maxSnapshotsPerSecond = 100
)

var ErrNoBackups = errors.New("no backups found")

// backupRecord keeps the field names of snapshots written by earlier
// deployments so they can still be republished.
type backupRecord struct {
	NameAr                 string `json:"name_ar"`
	NameEn                 string `json:"name_en"`
	Symbol                 string `json:"symbol"`
	Date                   string `json:"date"`
	Content                string `json:"content"`
	ProfessionalPercentage int    `json:"professional_percentage"`
	FinancialPercentage    int    `json:"financial_percentage"`
	EmotionalPercentage    int    `json:"emotional_percentage"`
	HealthPercentage       *int   `json:"health_percentage"`
	MessageID              *int   `json:"message_id"`
	HTMLContent            string `json:"html_content"`
}

// BackupDir writes and reads JSON snapshots of extracted records.
type BackupDir struct {
	dir string
	loc *time.Location
}

func NewBackupDir(dir string, loc *time.Location) BackupDir {
	assert.NotNil(loc)
	return BackupDir{dir: dir, loc: loc}
}

// BackupName is the file name of a snapshot taken at t.
func BackupName(t time.Time) string {
	return backupPrefix + t.Format(backupTimeLayout) + backupExt
}

// Save writes records to a new snapshot named after at and returns its name.
func (b BackupDir) Save(records []horoscope.Record, at time.Time) (string, error) {
	out := make([]backupRecord, len(records))
	for i, r := range records {
		messageID := r.MessageID
		out[i] = backupRecord{
			NameAr:                 r.Sign.Local(),
			NameEn:                 r.Sign.Canonical(),
			Symbol:                 r.Sign.Glyph(),
			Date:                   r.DateString(),
			Content:                r.Body,
			ProfessionalPercentage: r.Professional,
			FinancialPercentage:    r.Financial,
			EmotionalPercentage:    r.Emotional,
			HealthPercentage:       r.Health,
			MessageID:              &messageID,
			HTMLContent:            r.Rendered,
		}
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	err := encoder.Encode(out)
	if err != nil {
		return "", fmt.Errorf("backup: encode: %w", err)
	}

	err = os.MkdirAll(b.dir, 0777)
	if err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}
	return b.create(at.In(b.loc), buf.Bytes())
}

// create writes contents to a snapshot file that did not exist before. A
// second snapshot within the same second gets a numbered suffix, which
// still sorts after the first.
func (b BackupDir) create(at time.Time, contents []byte) (string, error) {
	base := strings.TrimSuffix(BackupName(at), backupExt)
	for n := 1; n < maxSnapshotsPerSecond; n++ {
		name := base + backupExt
		if n > 1 {
			name = fmt.Sprintf("%s_%02d%s", base, n, backupExt)
		}

		f, err := os.OpenFile(filepath.Join(b.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0666)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("backup: create: %w", err)
		}
		_, err = f.Write(contents)
		closeErr := f.Close()
		if err = errors.Join(err, closeErr); err != nil {
			return "", fmt.Errorf("backup: write %s: %w", name, err)
		}
		return name, nil
	}
	return "", fmt.Errorf("backup: more than %d snapshots at %s", maxSnapshotsPerSecond-1, base)
}

func (b BackupDir) resolve(name string) string {
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	return filepath.Join(b.dir, name)
}

// Load reads a snapshot back. name is either a file name inside the backup
// directory or a path. Records are re-rendered, the stored markup is ignored.
func (b BackupDir) Load(name string) ([]horoscope.Record, error) {
	contents, err := os.ReadFile(b.resolve(name))
	if err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}

	var stored []backupRecord
	err = json.Unmarshal(contents, &stored)
	if err != nil {
		return nil, fmt.Errorf("backup: decode %s: %w", name, err)
	}

	records := make([]horoscope.Record, 0, len(stored))
	for i, s := range stored {
		sign, err := horoscope.ParseSign(s.NameEn)
		if err != nil {
			sign, err = horoscope.ParseSign(s.NameAr)
		}
		if err != nil {
			return nil, fmt.Errorf("backup: entry %d: %w", i, err)
		}
		date, err := time.ParseInLocation(time.DateOnly, s.Date, b.loc)
		if err != nil {
			return nil, fmt.Errorf("backup: entry %d: %w", i, err)
		}
		messageID := 0
		if s.MessageID != nil {
			messageID = *s.MessageID
		}

		records = append(records, horoscope.NewRecord(
			sign,
			date,
			s.Content,
			horoscope.Scores{
				Professional: s.ProfessionalPercentage,
				Financial:    s.FinancialPercentage,
				Emotional:    s.EmotionalPercentage,
				Health:       s.HealthPercentage,
			},
			messageID,
		))
	}
	return records, nil
}

// List returns the snapshot file names, oldest first.
func (b BackupDir) List() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupExt) {
			continue
		}
		names = append(names, name)
	}
	// the timestamp layout sorts lexically
	sort.Strings(names)
	return names, nil
}

// Latest returns the most recent snapshot name or ErrNoBackups.
func (b BackupDir) Latest() (string, error) {
	names, err := b.List()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", ErrNoBackups
	}
	return names[len(names)-1], nil
}
