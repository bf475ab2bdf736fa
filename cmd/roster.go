package cmd

import (
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/spf13/cobra"
)

var rosterCmd = &cobra.Command{
	Use:   "roster [student]",
	Short: "List the loaded roster or look up one student",
	Long: `Load the roster from the configured source (CSV file or MariaDB) and print
it. With an argument, look up a single student by identifier or display name.

Examples:
  face-attendance roster
  face-attendance roster "jane doe"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRoster,
}

func init() {
	rootCmd.AddCommand(rosterCmd)
}

func runRoster(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	students, _ := loadIndexes(cmd.Context(), cfg)

	if len(args) == 1 {
		s, ok := students.Lookup(args[0])
		if !ok {
			return fmt.Errorf("student %q not found in roster", args[0])
		}
		printStudent(s)
		return nil
	}

	if students.Len() == 0 {
		fmt.Println("Roster is empty")
		return nil
	}
	fmt.Printf("%-16s %-30s %-8s %s\n", "IDENTIFIER", "NAME", "GROUP", "SUBGROUP")
	for _, s := range students.Students() {
		printStudent(s)
	}
	fmt.Printf("\nTotal: %d students\n", students.Len())
	return nil
}

func printStudent(s roster.Student) {
	fmt.Printf("%-16s %-30s %-8s %s\n", s.Identifier, s.DisplayName, s.Group, s.Subgroup)
}
