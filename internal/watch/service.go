// Package watch imports schedule files dropped into a watched
// directory tree. Each immediate subdirectory of the drop root is one
// program's inbox; files landing there are registered as imports and
// moved to an archive directory once handed off.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

// Importer is the slice of the import pipeline the watcher drives.
type Importer interface {
	CreateImport(ctx context.Context, programID, filename string, source models.ImportSource, payload []byte) (*models.Import, error)
	MarkQueued(ctx context.Context, importID string) error
	ProcessImport(ctx context.Context, importID string) (*models.Import, error)
}

// Enqueuer hands created imports to the work queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, imp *models.Import) error
}

// RetentionStore deletes expired import rows. Schedule rows, payloads
// and history cascade in the database.
type RetentionStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ServiceConfig holds the directory layout and retention window.
type ServiceConfig struct {
	Root       string
	ArchiveDir string
	MaxAgeDays int
}

// Service turns dropped schedule files into imports: read, register,
// enqueue, archive. With no enqueuer configured the import is
// processed inline instead.
type Service struct {
	root       string
	archiveDir string
	maxAge     time.Duration
	importer   Importer
	enqueuer   Enqueuer
	store      RetentionStore
	logger     *logrus.Logger
}

// NewService wires the drop-directory pipeline. An empty archive dir
// defaults to <root>/.archive; a nil logger uses the logrus standard
// logger.
func NewService(cfg ServiceConfig, importer Importer, enqueuer Enqueuer, store RetentionStore, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	root := filepath.Clean(cfg.Root)
	archiveDir := cfg.ArchiveDir
	if archiveDir == "" {
		archiveDir = filepath.Join(root, ".archive")
	}

	return &Service{
		root:       root,
		archiveDir: filepath.Clean(archiveDir),
		maxAge:     time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
		importer:   importer,
		enqueuer:   enqueuer,
		store:      store,
		logger:     logger,
	}
}

// IsScheduleFile reports whether a filename looks like an XER export.
func IsScheduleFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xer")
}

// HandleFile imports one dropped file and archives it on success. The
// file stays in place when registration or enqueueing fails, so the
// next rescan picks it up again.
func (s *Service) HandleFile(ctx context.Context, programID, path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	imp, err := s.importer.CreateImport(ctx, programID, filepath.Base(path), models.SourceWatch, payload)
	if err != nil {
		return fmt.Errorf("failed to register import for %s: %w", path, err)
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.Enqueue(ctx, imp); err != nil {
			return fmt.Errorf("failed to enqueue import %s: %w", imp.ID, err)
		}
		if err := s.importer.MarkQueued(ctx, imp.ID); err != nil {
			// The worker accepts received imports too, so this only
			// delays the visible status change.
			s.logger.WithError(err).WithField("import_id", imp.ID).Warn("Failed to mark import queued")
		}
	} else {
		if _, err := s.importer.ProcessImport(ctx, imp.ID); err != nil {
			return fmt.Errorf("failed to process import %s inline: %w", imp.ID, err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"import_id":  imp.ID,
		"program_id": programID,
		"file":       filepath.Base(path),
	}).Info("Dropped file imported")

	return s.archive(programID, path)
}

// Rescan walks the drop root and imports every schedule file found,
// catching anything dropped while the watcher was not running.
func (s *Service) Rescan(ctx context.Context) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("failed to read drop root: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		programID := entry.Name()

		files, err := os.ReadDir(filepath.Join(s.root, programID))
		if err != nil {
			s.logger.WithError(err).WithField("program_id", programID).Warn("Failed to read program inbox")
			continue
		}
		for _, f := range files {
			if f.IsDir() || !IsScheduleFile(f.Name()) {
				continue
			}
			path := filepath.Join(s.root, programID, f.Name())
			if err := s.HandleFile(ctx, programID, path); err != nil {
				s.logger.WithError(err).WithField("path", path).Error("Failed to import dropped file")
			}
		}
	}

	return nil
}

// Purge deletes imports past the retention window. Schedule rows,
// payloads and history go with them through the database cascade.
func (s *Service) Purge(ctx context.Context) error {
	if s.maxAge <= 0 || s.store == nil {
		return nil
	}

	cutoff := time.Now().Add(-s.maxAge)
	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge old imports: %w", err)
	}

	if deleted > 0 {
		s.logger.WithFields(logrus.Fields{
			"deleted": deleted,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Purged expired imports")
	}
	return nil
}

// archive moves a handled file into the archive tree, prefixed with a
// UTC timestamp so repeated drops of the same name never collide.
func (s *Service) archive(programID, path string) error {
	dir := filepath.Join(s.archiveDir, programID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := time.Now().UTC().Format("20060102T150405") + "_" + filepath.Base(path)
	if err := os.Rename(path, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("failed to archive %s: %w", path, err)
	}
	return nil
}
