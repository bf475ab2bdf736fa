package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete attendance logs older than the retention age",
	Long: `Delete attendance log files whose last modification is older than the
retention age. When DATABASE_URL is set, mirrored rows older than the same
cutoff are deleted too.

With --dry-run the expired log files and the number of expired mirrored rows
are listed, and nothing is deleted.

Examples:
  face-attendance sweep
  face-attendance sweep --max-age 720h --dry-run`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().Duration("max-age", 0, "Retention age (overrides ATTENDANCE_RETENTION)")
	sweepCmd.Flags().Bool("dry-run", false, "List what would be deleted without deleting anything")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if maxAge := mustGetDuration(cmd, "max-age"); maxAge > 0 {
		cfg.Retention.MaxAge = maxAge
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	dryRun := mustGetBool(cmd, "dry-run")

	now := time.Now()
	cutoff := now.Add(-cfg.Retention.MaxAge)
	fmt.Printf("Retention: %d days (logs modified before %s)\n",
		cfg.Retention.RetentionDays(), cutoff.Format(time.DateTime))

	if err := sweepLogDir(os.Stdout, cfg.Paths.LogDir, cfg.Retention.MaxAge, now, dryRun); err != nil {
		return err
	}

	if cfg.Database.URL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()
	pool, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	repo := postgres.NewAttendanceRepository(pool)

	if dryRun {
		n, err := repo.CountOlderThan(ctx, cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("[DRY-RUN] Would delete %d mirrored rows\n", n)
		return nil
	}

	n, err := repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	fmt.Printf("Mirrored rows: %d deleted\n", n)
	return nil
}

// sweepLogDir deletes the expired session logs in dir, or in dry-run mode
// lists them, and reports the outcome to w.
func sweepLogDir(w io.Writer, dir string, maxAge time.Duration, now time.Time, dryRun bool) error {
	if dryRun {
		expired, err := attendance.Expired(dir, maxAge, now)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "[DRY-RUN] Would delete %d log files\n", len(expired))
		for _, path := range expired {
			fmt.Fprintf(w, "  - %s\n", path)
		}
		return nil
	}

	res, err := attendance.Sweep(dir, maxAge, now)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Log files: %d deleted, %d kept, %d failed\n", len(res.Deleted), res.Kept, res.Failed)
	for _, path := range res.Deleted {
		fmt.Fprintf(w, "  - %s\n", path)
	}
	return nil
}
