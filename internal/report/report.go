// Package report manages the daily session log: one append-only text file
// per calendar day under the reports directory. The file doubles as the
// same-day idempotence record; the orchestrator reads it back to skip
// invoices already handled in today's session.
package report

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlleexMartinsT/Botana/internal/logger"
)

// MaxAge is how long daily report files are kept before being purged.
const MaxAge = 7 * 24 * time.Hour

var nfToken = regexp.MustCompile(`NF\s*([0-9]+)`)

type Reporter struct {
	dir string
	now func() time.Time
	log zerolog.Logger
}

// New creates a reporter writing under dir. The directory is created if
// missing.
func New(dir string) (*Reporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating reports dir: %w", err)
	}
	return &Reporter{
		dir: dir,
		now: time.Now,
		log: logger.WithComponent("report"),
	}, nil
}

// Path returns today's report file path.
func (r *Reporter) Path() string {
	return filepath.Join(r.dir, fmt.Sprintf("relatorio_%s.txt", r.now().Format("2006-01-02")))
}

// Append writes one timestamped line to today's report. When the file is
// locked by another process a .tmp sibling takes the line instead, so an
// event is never lost to a permission error.
func (r *Reporter) Append(text string) {
	line := fmt.Sprintf("%s %s\n", r.now().Format("2006-01-02 15:04:05"), text)
	path := r.Path()
	if err := appendLine(path, line); err != nil {
		if err := appendLine(path+".tmp", line); err != nil {
			r.log.Error().Err(err).Str("file", path).Msg("Failed to write session log")
		}
	}
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line)
	return err
}

// ReportedInvoices reads back today's report and returns the set of invoice
// numbers on "Processado" lines (any numeric token following "NF"). Other
// lines are ignored so that exclusion entries, which may quote attachment
// filenames with embedded digits, never count as processed.
func (r *Reporter) ReportedInvoices() map[string]bool {
	seen := make(map[string]bool)
	f, err := os.Open(r.Path())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.log.Warn().Err(err).Msg("Could not read session log")
		}
		return seen
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "Processado") {
			continue
		}
		for _, m := range nfToken.FindAllStringSubmatch(line, -1) {
			seen[strings.TrimSpace(m[1])] = true
		}
	}
	return seen
}

// PurgeOld removes report files whose last modification is older than MaxAge.
// Failures are logged and swallowed; purging is opportunistic housekeeping.
func (r *Reporter) PurgeOld() {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		r.log.Warn().Err(err).Msg("Could not list reports dir")
		return
	}
	cutoff := r.now().Add(-MaxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(r.dir, entry.Name())
			if err := os.Remove(path); err != nil {
				r.log.Warn().Err(err).Str("file", path).Msg("Could not purge old report")
			}
		}
	}
}
