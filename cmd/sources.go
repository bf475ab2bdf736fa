package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
	"github.com/kozaktomas/face-attendance/internal/recognizer"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/kozaktomas/face-attendance/internal/timetable"
)

// loadIndexes loads the roster and the timetable. Unreadable sources are
// logged and yield empty indexes; the session still runs.
func loadIndexes(ctx context.Context, cfg *config.Config) (*roster.Index, *timetable.Index) {
	var src roster.Source = roster.CSVSource{Path: cfg.Paths.RosterCSV}
	if cfg.Roster.DatabaseURL != "" {
		pool, err := mariadb.Open(ctx, &cfg.Roster)
		if err != nil {
			slog.Error("roster database unavailable", "err", err)
			src = nil
		} else {
			defer pool.Close()
			src = pool
		}
	}

	students := roster.NewIndex(nil)
	if src != nil {
		var err error
		if students, err = roster.Load(ctx, src); err != nil {
			slog.Error("roster unreadable, continuing with an empty roster", "err", err)
		}
	}

	schedule, err := timetable.Load(ctx, timetable.CSVSource{Path: cfg.Paths.Timetable})
	if err != nil {
		slog.Error("timetable unreadable, continuing with an empty timetable", "err", err)
	}

	slog.Info("indexes loaded", "students", students.Len(), "schedule_entries", schedule.Len())
	return students, schedule
}

// newDetector builds the recognition backend selected by RECOGNIZER_MODE.
func newDetector(cfg *config.Config) (pipeline.Detector, error) {
	client := recognizer.NewClient(cfg.Recognizer.URL)
	if !cfg.Recognizer.GalleryMode() {
		return client, nil
	}

	g, err := gallery.Load(cfg.Paths.Gallery)
	if err != nil {
		return nil, fmt.Errorf("loading face gallery: %w", err)
	}
	if g.Len() == 0 {
		return nil, errors.New("face gallery is empty, run the enroll command first")
	}
	slog.Info("face gallery loaded", "path", cfg.Paths.Gallery, "embeddings", g.Len(), "labels", len(g.Labels()))
	return recognizer.NewGalleryDetector(client, g), nil
}
