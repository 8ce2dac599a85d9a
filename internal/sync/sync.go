package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/gitsource"
	"github.com/conorfennell/recall/internal/knol"
	"github.com/conorfennell/recall/internal/parser"
	"github.com/conorfennell/recall/internal/storage"
)

// ErrInProgress is returned by Run while another run is active.
var ErrInProgress = errors.New("sync already in progress")

// Report summarizes one run over all sources.
type Report struct {
	Sources int `json:"sources"`
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"` // sources that could not be reconciled
	Errors  int `json:"errors"` // notes that could not be parsed or stored
}

// Syncer imports markdown sources into their decks.
type Syncer struct {
	db       *storage.DB
	reposDir string
	logger   *slog.Logger
	now      func() time.Time
	running  atomic.Bool
}

// New creates a Syncer that checks git sources out under reposDir.
func New(db *storage.DB, reposDir string, logger *slog.Logger) *Syncer {
	return &Syncer{
		db:       db,
		reposDir: reposDir,
		logger:   logger,
		now:      time.Now,
	}
}

// Run iterates over all sources and reconciles them. A failing source is
// logged and skipped.
func (s *Syncer) Run(ctx context.Context) (Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Report{}, ErrInProgress
	}
	defer s.running.Store(false)

	sources, err := s.db.GetAllSources(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to get sources: %w", err)
	}

	var report Report
	if len(sources) == 0 {
		s.logger.Info("no sources configured")
		return report, nil
	}

	s.logger.Info("starting sync", "sources", len(sources))
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Sources++

		dir := source.Path
		if source.Type == storage.SourceGit {
			dir, err = s.checkout(ctx, source.Path)
			if err != nil {
				s.logger.Error("failed to sync git repo", "source_id", source.ID, "url", source.Path, "error", err)
				report.Failed++
				continue
			}
		}

		r, err := s.reconcile(ctx, source, dir)
		if err != nil {
			s.logger.Error("failed to reconcile source", "source_id", source.ID, "path", dir, "error", err)
			report.Failed++
			continue
		}
		report.Added += r.Added
		report.Removed += r.Removed
		report.Errors += r.Errors
	}
	s.logger.Info("sync complete",
		"sources", report.Sources,
		"added", report.Added,
		"removed", report.Removed,
		"failed", report.Failed,
		"errors", report.Errors,
	)
	return report, nil
}

func (s *Syncer) checkout(ctx context.Context, repoURL string) (string, error) {
	dir, err := gitsource.LocalPath(s.reposDir, repoURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return "", fmt.Errorf("failed to create repos directory: %w", err)
	}
	if err := gitsource.Sync(ctx, s.logger, repoURL, dir); err != nil {
		return "", err
	}
	return dir, nil
}

// reconcile makes the cards of source match the notes found under dir.
// Cards whose note is unchanged keep their scheduling history.
func (s *Syncer) reconcile(ctx context.Context, source storage.Source, dir string) (Report, error) {
	var report Report
	now := s.now().UTC()
	found := make(map[string]bool)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".md") {
			return nil
		}

		notes, err := parser.ParseFile(path)
		if err != nil {
			s.logger.Warn("failed to parse file", "path", path, "error", err)
			report.Errors++
			return nil
		}
		for _, note := range notes {
			hash := knol.Hash(note)
			if found[hash] {
				continue
			}
			found[hash] = true

			added, err := s.importNote(ctx, source, note, hash, now)
			if err != nil {
				s.logger.Warn("failed to import note", "path", path, "hash", hash, "error", err)
				report.Errors++
				continue
			}
			if added {
				report.Added++
			}
		}
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("failed to walk %s: %w", dir, walkErr)
	}

	cards, err := s.db.GetCardsBySourceID(ctx, source.ID)
	if err != nil {
		return report, err
	}
	for _, card := range cards {
		if found[card.Hash] {
			continue
		}
		s.logger.Info("removing orphaned card", "card_id", card.ID, "hash", card.Hash)
		if err := s.db.DeleteCardByID(ctx, card.ID); err != nil {
			s.logger.Warn("failed to delete orphaned card", "card_id", card.ID, "error", err)
			report.Errors++
			continue
		}
		report.Removed++
	}

	if err := s.db.UpdateSourceLastScanned(ctx, source.ID, now); err != nil {
		s.logger.Warn("failed to update last scanned", "source_id", source.ID, "error", err)
	}
	s.logger.Info("reconciliation complete",
		"source_id", source.ID,
		"path", dir,
		"added", report.Added,
		"removed", report.Removed,
		"errors", report.Errors,
	)
	return report, nil
}

// importNote inserts note as a new card unless the deck already holds it.
func (s *Syncer) importNote(ctx context.Context, source storage.Source, note domain.Note, hash string, now time.Time) (bool, error) {
	existing, err := s.db.FindCardByHash(ctx, source.DeckID, hash)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	data := note.Data()
	if html, err := parser.RenderHTML(note.Question); err == nil {
		data["questionHtml"] = html
	}
	if html, err := parser.RenderHTML(note.Answer); err == nil {
		data["answerHtml"] = html
	}

	card := domain.NewCard(source.UserID, source.DeckID, data, now)
	card.Hash = hash
	card.SourceID = &source.ID
	if err := s.db.InsertCard(ctx, &card); err != nil {
		return false, err
	}
	return true, nil
}
