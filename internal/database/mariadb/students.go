package mariadb

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/roster"
)

const studentsQuery = `
	SELECT identifier, COALESCE(display_name, ''), COALESCE(student_group, ''), COALESCE(subgroup, '')
	FROM students
	ORDER BY id
`

// Students implements roster.Source over the students table.
func (p *Pool) Students(ctx context.Context) ([]roster.Student, error) {
	rows, err := p.db.QueryContext(ctx, studentsQuery)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var students []roster.Student
	for rows.Next() {
		var s roster.Student
		if err := rows.Scan(&s.Identifier, &s.DisplayName, &s.Group, &s.Subgroup); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}
