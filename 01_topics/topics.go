package topics

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"trendwave-pipeline/config"
	"trendwave-pipeline/types"
)

// DateLayout is the calendar-day format used by topic dates and artifact names
const DateLayout = "2006-01-02"

// Source reads the curated topic library
type Source struct {
	cfg *config.Config
}

// New creates a new Source
func New(cfg *config.Config) *Source {
	return &Source{cfg: cfg}
}

// Load reads and decodes the library file
func (s *Source) Load() (*types.Library, error) {
	data, err := os.ReadFile(s.cfg.Paths.Library)
	if err != nil {
		return nil, fmt.Errorf("read topic library: %w", err)
	}
	var lib types.Library
	if err := json.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("parse topic library %s: %w", s.cfg.Paths.Library, err)
	}
	return &lib, nil
}

// Today returns the topics dated on the given day, in library order
func (s *Source) Today(day time.Time) ([]types.Topic, error) {
	lib, err := s.Load()
	if err != nil {
		return nil, err
	}
	selected := Select(lib, day)
	log.Printf("[topics] %d of %d topic(s) dated %s", len(selected), len(lib.TrendingTopics), day.Format(DateLayout))
	return selected, nil
}

// Select filters a library down to the topics whose date equals day
func Select(lib *types.Library, day time.Time) []types.Topic {
	want := day.Format(DateLayout)
	var out []types.Topic
	for _, t := range lib.TrendingTopics {
		if t.Date == want {
			out = append(out, t)
		}
	}
	return out
}

var titleReplacer = strings.NewReplacer(
	":", "", "?", "", "/", "", "*", "", `"`, "", "<", "", ">", "", "|", "",
	" ", "_",
)

// SanitizeTitle strips : ? / * " < > | and turns spaces into underscores.
// Unlike the upload title it is never truncated.
func SanitizeTitle(title string) string {
	return titleReplacer.Replace(title)
}

// ArtifactName is the final video's file name for a topic on a run date
func ArtifactName(day time.Time, title string) string {
	return fmt.Sprintf("%s_%s.mp4", day.Format(DateLayout), SanitizeTitle(title))
}
