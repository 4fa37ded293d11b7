// Package syllabus extracts deadline candidates from course syllabi
// (PDF or plain text) so they can be added to the tracker in bulk.
package syllabus

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"
)

// Candidate is a deadline found in a syllabus. Candidates are
// suggestions; the caller decides which to persist.
type Candidate struct {
	Name   string    `json:"name"`
	DueAt  time.Time `json:"due_at"`
	Source string    `json:"source"`
	Line   string    `json:"line"`
}

// Extractor parses syllabi into deadline candidates.
type Extractor struct {
	// Year used when a date in the document omits one.
	DefaultYear int
	// Location for parsed dates.
	Location *time.Location
}

// New returns an Extractor defaulting omitted years to the current one.
func New() *Extractor {
	return &Extractor{
		DefaultYear: time.Now().Year(),
		Location:    time.Local,
	}
}

// Date formats that show up in syllabi. Month names are matched
// case-insensitively, with or without a year.
var (
	// "March 15, 2026" / "Mar 15 2026" / "March 15"
	monthDayRe = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s*(\d{4}))?\b`)
	// "3/15/2026" / "3/15"
	slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	// "2026-03-15"
	isoDateRe = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
)

// Lines containing one of these words near a date are treated as
// deadline candidates.
var deadlineWords = []string{
	"due", "deadline", "exam", "midterm", "final", "quiz", "test",
	"assignment", "project", "paper", "essay", "presentation",
	"submission", "submit", "homework", "hw", "lab", "report",
}

var monthsByName = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// ExtractText scans plain text for lines that pair a deadline keyword
// with a date.
func (e *Extractor) ExtractText(text, source string) []Candidate {
	var out []Candidate
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		if !containsDeadlineWord(lower) {
			continue
		}
		due, ok := e.firstDate(trimmed)
		if !ok {
			continue
		}
		out = append(out, Candidate{
			Name:   candidateName(trimmed),
			DueAt:  due,
			Source: source,
			Line:   trimmed,
		})
	}
	return out
}

// ExtractPDF extracts text from a PDF and scans it for deadlines.
// Image-only pages are skipped.
func (e *Extractor) ExtractPDF(r io.ReaderAt, size int64, source string) ([]Candidate, error) {
	rdr, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= rdr.NumPage(); i++ {
		pg := rdr.Page(i)
		txt, err := pg.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(txt)
		sb.WriteString("\n")
	}
	return e.ExtractText(sb.String(), source), nil
}

// ExtractFile extracts candidates from a .pdf or .txt file.
func (e *Extractor) ExtractFile(path string) ([]Candidate, error) {
	source := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stating %s: %w", path, err)
		}
		return e.ExtractPDF(f, info.Size(), source)
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return e.ExtractText(string(data), source), nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}

// ImportDir extracts candidates from every supported file in dir,
// processing files concurrently.
func (e *Extractor) ImportDir(ctx context.Context, dir string) ([]Candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pdf", ".txt", ".md":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, nil
	}

	results := make([][]Candidate, len(paths))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency; PDF parsing is memory-heavy.

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			cands, err := e.ExtractFile(path)
			if err != nil {
				return fmt.Errorf("extracting %s: %w", path, err)
			}
			results[i] = cands
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Candidate
	for _, cands := range results {
		all = append(all, cands...)
	}
	return all, nil
}

func containsDeadlineWord(lower string) bool {
	for _, w := range deadlineWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// firstDate returns the first recognizable date in the line. End of day
// is used so a deadline "due March 15" is not overdue on the 15th.
func (e *Extractor) firstDate(line string) (time.Time, bool) {
	if m := isoDateRe.FindStringSubmatch(line); m != nil {
		t, err := time.ParseInLocation("2006-01-02", m[0], e.loc())
		if err == nil {
			return endOfDay(t), true
		}
	}

	if m := monthDayRe.FindStringSubmatch(line); m != nil {
		month, ok := monthsByName[strings.ToLower(strings.TrimSuffix(m[1], "."))]
		if ok {
			day := atoi(m[2])
			year := e.year(m[3])
			if validDay(month, day) {
				return endOfDay(time.Date(year, month, day, 0, 0, 0, 0, e.loc())), true
			}
		}
	}

	if m := slashDateRe.FindStringSubmatch(line); m != nil {
		month := atoi(m[1])
		day := atoi(m[2])
		year := e.year(m[3])
		if month >= 1 && month <= 12 && validDay(time.Month(month), day) {
			return endOfDay(time.Date(year, time.Month(month), day, 0, 0, 0, 0, e.loc())), true
		}
	}

	return time.Time{}, false
}

func (e *Extractor) year(s string) int {
	if s == "" {
		if e.DefaultYear != 0 {
			return e.DefaultYear
		}
		return time.Now().Year()
	}
	y := atoi(s)
	if y < 100 {
		y += 2000
	}
	return y
}

func (e *Extractor) loc() *time.Location {
	if e.Location != nil {
		return e.Location
	}
	return time.Local
}

// candidateName strips the date and filler from the line to produce a
// short deadline name.
func candidateName(line string) string {
	name := isoDateRe.ReplaceAllString(line, "")
	name = monthDayRe.ReplaceAllString(name, "")
	name = slashDateRe.ReplaceAllString(name, "")
	name = strings.Trim(name, " \t-:,.()•*")
	for _, filler := range []string{"due on", "due by", "due", "deadline"} {
		if idx := strings.Index(strings.ToLower(name), filler); idx >= 0 {
			name = strings.TrimSpace(name[:idx] + name[idx+len(filler):])
		}
	}
	name = strings.Trim(name, " \t-:,.()•*")
	if name == "" {
		name = "Untitled deadline"
	}
	if len(name) > 80 {
		name = strings.TrimSpace(name[:80])
	}
	return name
}

func validDay(month time.Month, day int) bool {
	if day < 1 || day > 31 {
		return false
	}
	switch month {
	case time.April, time.June, time.September, time.November:
		return day <= 30
	case time.February:
		return day <= 29
	}
	return true
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, t.Location())
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
