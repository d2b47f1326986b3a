// Package report renders a teacher's class report as aligned text for the
// terminal and email.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"cantogame/internal/models"
)

// Class is a teacher's class at a point in time
type Class struct {
	Teacher     models.User
	GeneratedAt time.Time
	Students    []models.StudentSummary
	TopWords    []models.WrongWord
}

// Title is the report heading, also used as the email subject
func (c *Class) Title() string {
	name := c.Teacher.DisplayName
	if name == "" {
		name = c.Teacher.Username
	}
	return fmt.Sprintf("Class report for %s (%s)", name, c.GeneratedAt.Format(models.CivilDateLayout))
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	headStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	boxStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
)

// table holds rows of cells padded to display width, so CJK text lines up
type table struct {
	header []string
	rows   [][]string
	right  map[int]bool
}

func (t *table) widths() []int {
	w := make([]int, len(t.header))
	for i, h := range t.header {
		w[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if n := runewidth.StringWidth(cell); n > w[i] {
				w[i] = n
			}
		}
	}
	return w
}

func (t *table) line(cells []string, widths []int) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		if t.right[i] {
			parts[i] = runewidth.FillLeft(cell, widths[i])
		} else {
			parts[i] = runewidth.FillRight(cell, widths[i])
		}
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

// render writes the table. style wraps the header line and may be nil.
func (t *table) render(style func(string) string) string {
	widths := t.widths()
	var b strings.Builder

	head := t.line(t.header, widths)
	if style != nil {
		head = style(head)
	}
	b.WriteString(head)
	b.WriteByte('\n')

	total := 0
	for _, w := range widths {
		total += w
	}
	b.WriteString(strings.Repeat("-", total+2*(len(widths)-1)))
	b.WriteByte('\n')

	for _, row := range t.rows {
		b.WriteString(t.line(row, widths))
		b.WriteByte('\n')
	}
	return b.String()
}

func studentTable(students []models.StudentSummary) *table {
	t := &table{
		header: []string{"Student", "Games", "Total", "Best", "Streak", "Longest"},
		right:  map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true},
	}
	for _, s := range students {
		name := s.User.DisplayName
		if name == "" {
			name = s.User.Username
		}
		t.rows = append(t.rows, []string{
			name,
			strconv.Itoa(s.TotalGames),
			strconv.Itoa(s.TotalScore),
			strconv.Itoa(s.BestScore),
			strconv.Itoa(s.CurrentStreak),
			strconv.Itoa(s.LongestStreak),
		})
	}
	return t
}

func wordTable(words []models.WrongWord) *table {
	t := &table{
		header: []string{"#", "Word", "Jyutping", "Wrong", "Tries", "Error %"},
		right:  map[int]bool{0: true, 3: true, 4: true, 5: true},
	}
	for i, w := range words {
		t.rows = append(t.rows, []string{
			strconv.Itoa(i + 1),
			w.Text,
			w.Jyutping,
			strconv.Itoa(w.IncorrectAttempts),
			strconv.Itoa(w.TotalAttempts),
			fmt.Sprintf("%.0f%%", w.ErrorRatio*100),
		})
	}
	return t
}

// Text renders the report without styling
func Text(c *Class) string {
	var b strings.Builder
	b.WriteString(c.Title())
	b.WriteString("\n\n")

	if len(c.Students) == 0 {
		b.WriteString("No students.\n")
	} else {
		b.WriteString(studentTable(c.Students).render(nil))
	}

	b.WriteString("\nMost mispronounced words\n\n")
	if len(c.TopWords) == 0 {
		b.WriteString("No attempts yet.\n")
	} else {
		b.WriteString(wordTable(c.TopWords).render(nil))
	}
	return b.String()
}

// Styled renders the report for a terminal
func Styled(c *Class) string {
	style := func(s string) string { return headStyle.Render(s) }

	students := mutedStyle.Render("No students.")
	if len(c.Students) > 0 {
		students = strings.TrimRight(studentTable(c.Students).render(style), "\n")
	}
	words := mutedStyle.Render("No attempts yet.")
	if len(c.TopWords) > 0 {
		words = strings.TrimRight(wordTable(c.TopWords).render(style), "\n")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(c.Title()),
		boxStyle.Render(students),
		titleStyle.Render("Most mispronounced words"),
		boxStyle.Render(words),
	) + "\n"
}

// WrongWords renders a ranked word table on its own
func WrongWords(words []models.WrongWord) string {
	if len(words) == 0 {
		return "No attempts yet.\n"
	}
	return wordTable(words).render(nil)
}

// Summary renders one user's totals followed by their score history
func Summary(s *models.UserSummary, history []models.ScorePoint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User %s\n\n", s.UserID)

	totals := &table{
		header: []string{"Games", "Total", "Average", "Best", "Streak", "Longest"},
		right:  map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true, 5: true},
		rows: [][]string{{
			strconv.Itoa(s.TotalGames),
			strconv.Itoa(s.TotalScore),
			strconv.FormatFloat(s.AverageScore, 'f', 1, 64),
			strconv.Itoa(s.BestScore),
			strconv.Itoa(s.CurrentStreak),
			strconv.Itoa(s.LongestStreak),
		}},
	}
	b.WriteString(totals.render(nil))

	b.WriteString("\nScore history\n\n")
	if len(history) == 0 {
		b.WriteString("No completed games.\n")
		return b.String()
	}
	points := &table{header: []string{"Date", "Score"}, right: map[int]bool{1: true}}
	for _, p := range history {
		points.rows = append(points.rows, []string{p.Date, strconv.Itoa(p.Score)})
	}
	b.WriteString(points.render(nil))
	return b.String()
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		table { border-collapse: collapse; width: 100%; margin-bottom: 24px; }
		th, td { padding: 4px 8px; border-bottom: 1px solid #ddd; text-align: left; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<h1>{{.Title}}</h1>
		<h2>Students</h2>
		{{if .Students}}<table>
			<tr><th>Student</th><th>Games</th><th>Total</th><th>Best</th><th>Streak</th></tr>
			{{range .Students}}<tr><td>{{if .User.DisplayName}}{{.User.DisplayName}}{{else}}{{.User.Username}}{{end}}</td><td>{{.TotalGames}}</td><td>{{.TotalScore}}</td><td>{{.BestScore}}</td><td>{{.CurrentStreak}}</td></tr>
			{{end}}</table>{{else}}<p>No students.</p>{{end}}
		<h2>Most mispronounced words</h2>
		{{if .TopWords}}<table>
			<tr><th>Word</th><th>Jyutping</th><th>Wrong</th><th>Tries</th></tr>
			{{range .TopWords}}<tr><td>{{.Text}}</td><td>{{.Jyutping}}</td><td>{{.IncorrectAttempts}}</td><td>{{.TotalAttempts}}</td></tr>
			{{end}}</table>{{else}}<p>No attempts yet.</p>{{end}}
		<div class="footer">
			<p>This is an automated email from Cantogame. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`))

// HTML renders the report as an email body
func HTML(c *Class) (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, c); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}
