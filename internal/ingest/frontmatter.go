package ingest

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Frontmatter holds the metadata block at the top of a transcript file
type Frontmatter struct {
	Title          string  `yaml:"title"`
	Show           string  `yaml:"show"`
	Date           string  `yaml:"date"`
	TimestampStart float64 `yaml:"timestamp_start"`
	TimestampEnd   float64 `yaml:"timestamp_end"`
	Type           string  `yaml:"type"`
	Location       string  `yaml:"location"`
	FirstPerson    *bool   `yaml:"first_person"`
	Caller         string  `yaml:"caller"`
	TimePeriod     string  `yaml:"time_period"`
	Summary        string  `yaml:"summary"`
}

// IsFirstPerson treats an absent flag as true; only an explicit
// "first_person: false" marks a secondhand account.
func (f *Frontmatter) IsFirstPerson() bool {
	return f.FirstPerson == nil || *f.FirstPerson
}

// AirDate parses the date field as YYYY-MM-DD
func (f *Frontmatter) AirDate() (time.Time, error) {
	if f.Date == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	t, err := time.Parse("2006-01-02", f.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", f.Date, err)
	}
	return t, nil
}

// ParseFrontmatter splits a markdown document into its YAML frontmatter
// and body. A document without a leading "---" block parses as an empty
// Frontmatter with the whole content as body.
func ParseFrontmatter(content string) (*Frontmatter, string, error) {
	trimmed := strings.TrimLeft(content, "\n\r ")
	if !strings.HasPrefix(trimmed, "---") {
		return &Frontmatter{}, content, nil
	}

	parts := strings.SplitN(trimmed, "---", 3)
	if len(parts) < 3 {
		return &Frontmatter{}, content, nil
	}

	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(parts[1]), &fm); err != nil {
		return nil, "", fmt.Errorf("parse frontmatter: %w", err)
	}

	body := strings.TrimSpace(parts[2])
	return &fm, body, nil
}
