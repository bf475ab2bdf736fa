package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a camera attendance session",
	Long: `Run a camera session until interrupted.

Frames are read from the configured source (a directory of images or an
HTTP snapshot URL), faces are recognized by the configured backend, and
every confirmed student is appended to a new per-session attendance log.

Examples:
  face-attendance run
  face-attendance run --source ./frames --port 8080`,
	Args: cobra.NoArgs,
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("source", "", "Frame source: image directory or snapshot URL (overrides CAPTURE_SOURCE)")
	runCmd.Flags().Int("port", -1, "Status API port, 0 disables it (overrides WEB_PORT)")
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if src := mustGetString(cmd, "source"); src != "" {
		cfg.Capture.Source = src
	}
	if port := mustGetInt(cmd, "port"); port >= 0 {
		cfg.Web.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Capture.Source == "" {
		return fmt.Errorf("no frame source configured, set CAPTURE_SOURCE or pass --source")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepLogs(cfg, "")

	students, schedule := loadIndexes(ctx, cfg)
	fmt.Printf("Roster: %d students, timetable: %d entries\n", students.Len(), schedule.Len())

	detector, err := newDetector(cfg)
	if err != nil {
		return err
	}

	startedAt := time.Now()
	log, err := attendance.Open(cfg.Paths.LogDir, startedAt)
	if err != nil {
		// Every append retries creating the file, so the session still runs.
		fmt.Printf("Warning: %v\n", err)
	}
	fmt.Printf("Attendance log: %s\n", log.Path())

	source, err := capture.Open(cfg.Capture.Source)
	if err != nil {
		return fmt.Errorf("opening frame source: %w", err)
	}

	var mirror pipeline.Mirror
	if cfg.Database.URL != "" {
		fmt.Printf("Connecting to PostgreSQL database...\n")
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			fmt.Printf("Warning: attendance mirror disabled: %v\n", err)
		} else {
			defer pool.Close()
			mirror = postgres.NewAttendanceRepository(pool)
			fmt.Printf("Attendance mirror enabled (PostgreSQL)\n")
		}
	}

	mode, err := recognition.ParseMode(cfg.Recognition.CounterMode)
	if err != nil {
		return err
	}
	session := pipeline.NewSession(pipeline.Deps{
		Source:    source,
		Detector:  detector,
		Roster:    students,
		Timetable: schedule,
		Log:       log,
		Mirror:    mirror,
	}, pipeline.Options{
		Interval:   cfg.Capture.Interval,
		MaxWidth:   cfg.Capture.MaxWidth,
		OverlapIoU: cfg.Recognition.OverlapIoU,
		Recognition: recognition.Options{
			ConfirmCount:  cfg.Recognition.ConfirmCount,
			MinConfidence: cfg.Recognition.MinConfidence,
			Window:        cfg.Recognition.Window,
			Mode:          mode,
		},
	})

	go sweepPeriodically(ctx, cfg, log.Path())

	var server *web.Server
	if cfg.Web.Port > 0 {
		server = web.NewServer(&cfg.Web, session)
		go func() {
			if err := server.Start(); err != nil {
				slog.Error("status API stopped", "err", err)
			}
		}()
		fmt.Printf("Status API on http://%s:%d/api/v1/status\n", cfg.Web.Host, cfg.Web.Port)
	}

	fmt.Printf("Camera session running, press Ctrl+C to stop\n")
	runErr := session.Run(ctx)

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
		cancel()
	}

	st := session.Status()
	fmt.Printf("\nSession finished after %s\n", time.Since(startedAt).Round(time.Second))
	fmt.Printf("  Frames processed: %d\n", st.Frames)
	fmt.Printf("  Attendance rows:  %d\n", st.EventsAppended)
	fmt.Printf("  Backend errors:   %d\n", st.BackendErrors)
	fmt.Printf("  Storage errors:   %d\n", st.StorageErrors)
	fmt.Printf("  Log file:         %s\n", log.Path())
	return runErr
}

// sweepPeriodically repeats the retention sweep for the lifetime of ctx,
// never touching the active log.
func sweepPeriodically(ctx context.Context, cfg *config.Config, active string) {
	if cfg.Retention.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.Retention.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepLogs(cfg, active)
		}
	}
}

// sweepLogs runs one retention sweep and logs its failure.
func sweepLogs(cfg *config.Config, active string) {
	var keep []string
	if active != "" {
		keep = append(keep, active)
	}
	if _, err := attendance.Sweep(cfg.Paths.LogDir, cfg.Retention.MaxAge, time.Now(), keep...); err != nil {
		slog.Error("attendance log sweep failed", "dir", cfg.Paths.LogDir, "err", err)
	}
}
