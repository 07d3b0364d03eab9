package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"
	_ "time/tzdata" // validity times are local to Europe/Berlin

	"disbahn/models"

	"github.com/mmcdole/gofeed/rss"
	"go.uber.org/zap"
)

// validityLayout is how zuginfo.nrw formats validity window times in the
// feed's category elements.
const validityLayout = "2006-01-02 15:04:05"

// Source fetches and parses the announcement feed.
type Source struct {
	log    *zap.Logger
	url    string
	client *http.Client
	parser *rss.Parser
	loc    *time.Location
}

// NewSource creates a Source for the given feed URL.
func NewSource(log *zap.Logger, feedURL string) (*Source, error) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		return nil, fmt.Errorf("failed to load feed timezone: %w", err)
	}

	return &Source{
		log:    log,
		url:    feedURL,
		client: &http.Client{Timeout: 30 * time.Second},
		parser: &rss.Parser{},
		loc:    loc,
	}, nil
}

// Fetch downloads the feed and returns its items as announcements, in feed
// order. Items missing a required field are logged and dropped; one
// malformed item never fails the fetch.
func (s *Source) Fetch(ctx context.Context) ([]models.Announcement, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %s", resp.Status)
	}

	parsed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	announcements := make([]models.Announcement, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		ann, err := s.mapItem(item)
		if err != nil {
			s.log.Warn("Skipping malformed feed item", zap.Error(err))
			continue
		}
		announcements = append(announcements, ann)
	}

	return announcements, nil
}

// mapItem converts one feed item into an announcement. The validity window
// and the disruption class travel in category elements whose domain
// attribute names the field.
func (s *Source) mapItem(item *rss.Item) (models.Announcement, error) {
	if item.GUID == nil || item.GUID.Value == "" {
		return models.Announcement{}, fmt.Errorf("missing GUID")
	}
	guid := item.GUID.Value

	if item.Title == "" {
		return models.Announcement{}, fmt.Errorf("item %s: missing title", guid)
	}
	if item.Link == "" {
		return models.Announcement{}, fmt.Errorf("item %s: missing link", guid)
	}
	if item.Description == "" {
		return models.Announcement{}, fmt.Errorf("item %s: missing description", guid)
	}
	if item.PubDateParsed == nil {
		return models.Announcement{}, fmt.Errorf("item %s: missing or unparsable publication date %q", guid, item.PubDate)
	}

	begin, err := s.validityTime(item, "validityBegin")
	if err != nil {
		return models.Announcement{}, fmt.Errorf("item %s: %w", guid, err)
	}
	end, err := s.validityTime(item, "validityEnd")
	if err != nil {
		return models.Announcement{}, fmt.Errorf("item %s: %w", guid, err)
	}

	icon, _ := categoryValue(item, "icon")

	return models.Announcement{
		GUID:          guid,
		Title:         item.Title,
		Link:          item.Link,
		Description:   htmlToMarkdown(item.Description),
		Icon:          icon,
		ValidityBegin: begin,
		ValidityEnd:   end,
		Published:     item.PubDateParsed.UTC(),
	}, nil
}

// validityTime parses the named validity category as local Berlin time.
func (s *Source) validityTime(item *rss.Item, domain string) (time.Time, error) {
	value, ok := categoryValue(item, domain)
	if !ok {
		return time.Time{}, fmt.Errorf("missing %s category", domain)
	}
	t, err := time.ParseInLocation(validityLayout, value, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s value %q: %w", domain, value, err)
	}
	return t, nil
}

// categoryValue returns the value of the first category carrying the given
// domain attribute.
func categoryValue(item *rss.Item, domain string) (string, bool) {
	for _, c := range item.Categories {
		if c != nil && c.Domain == domain {
			return c.Value, true
		}
	}
	return "", false
}
