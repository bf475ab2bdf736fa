package cmd

import (
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <student>",
	Short: "Show which class a student is scheduled for",
	Long: `Look up a student by identifier or display name and print the timetable
entry in session at the given moment (default: now).

Examples:
  face-attendance resolve P1
  face-attendance resolve "Jane Doe" --at 2024-01-01T09:30:00+01:00`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().String("at", "", "Moment to resolve, RFC3339 (default: now)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	at := time.Now()
	if s := mustGetString(cmd, "at"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid --at value: %w", err)
		}
		at = parsed.Local()
	}

	students, schedule := loadIndexes(cmd.Context(), cfg)
	student, ok := students.Lookup(args[0])
	if !ok {
		return fmt.Errorf("student %q not found in roster", args[0])
	}

	fmt.Printf("Student:    %s (%s)\n", student.DisplayName, student.Identifier)
	fmt.Printf("Group:      %s / %s\n", student.Group, student.Subgroup)
	fmt.Printf("Moment:     %s\n", at.Format("Monday 2006-01-02 15:04"))

	entry, ok := schedule.Resolve(student, at)
	if !ok {
		fmt.Printf("No class in session\n")
		return nil
	}
	fmt.Printf("Class:      %s %s\n", entry.Day, entry.Time)
	fmt.Printf("Subject:    %s\n", entry.Subject)
	fmt.Printf("Instructor: %s\n", entry.Instructor)
	return nil
}
