package assets

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"trendwave-pipeline/config"

	"github.com/patrickmn/go-cache"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// Outcome says how a lookup was resolved
type Outcome int

const (
	Cached Outcome = iota + 1
	Downloaded
	NotFound
	ProviderError
)

func (o Outcome) String() string {
	switch o {
	case Cached:
		return "cached"
	case Downloaded:
		return "downloaded"
	case NotFound:
		return "not_found"
	case ProviderError:
		return "provider_error"
	}
	return "unknown"
}

// Result is the outcome of a Fetch. Path is set only when Found reports true.
type Result struct {
	Path    string
	Outcome Outcome
	Err     error
}

// Found reports whether a usable clip is on disk
func (r Result) Found() bool {
	return r.Outcome == Cached || r.Outcome == Downloaded
}

// linkPath is where the first portrait clip's file URL sits in a search response
const linkPath = "videos.0.video_files.0.link"

// Cache resolves search keywords to stock clips stored under the assets dir.
// Files are never refreshed once written.
type Cache struct {
	cfg        *config.Config
	httpClient *http.Client
	dlClient   *http.Client
	limiter    *rate.Limiter
	absent     *cache.Cache // Key(keyword) → Result, for lookups that found nothing this process
}

// New creates a new Cache
func New(cfg *config.Config) *Cache {
	rpm := cfg.Assets.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	return &Cache{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Assets.Timeout},
		dlClient:   &http.Client{},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		absent:     cache.New(cache.NoExpiration, 0),
	}
}

// Key strips everything outside [A-Za-z0-9] and truncates to max characters
func Key(keyword string, max int) string {
	b := make([]byte, 0, len(keyword))
	for i := 0; i < len(keyword) && len(b) < max; i++ {
		ch := keyword[i]
		if ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ('0' <= ch && ch <= '9') {
			b = append(b, ch)
		}
	}
	return string(b)
}

// Path is the on-disk location for a keyword's clip
func (c *Cache) Path(keyword string) string {
	return filepath.Join(c.cfg.Paths.Assets, Key(keyword, c.cfg.Assets.KeyMaxChars)+".mp4")
}

// Fetch returns the cached clip for keyword, downloading it on first use.
// It never fails: provider trouble comes back as NotFound or ProviderError.
func (c *Cache) Fetch(ctx context.Context, keyword string) Result {
	path := c.Path(keyword)
	if _, err := os.Stat(path); err == nil {
		log.Printf("[assets] %q: cache hit %s", keyword, path)
		return Result{Path: path, Outcome: Cached}
	}

	key := Key(keyword, c.cfg.Assets.KeyMaxChars)
	if prev, ok := c.absent.Get(key); ok {
		return prev.(Result)
	}

	res := c.download(ctx, keyword, path)
	switch res.Outcome {
	case Downloaded:
		log.Printf("[assets] %q: downloaded → %s", keyword, path)
	case NotFound:
		log.Printf("[assets] %q: no match from provider — using placeholder", keyword)
		c.absent.Set(key, res, cache.NoExpiration)
	default:
		log.Printf("[assets] %q: provider error: %v — using placeholder", keyword, res.Err)
		c.absent.Set(key, res, cache.NoExpiration)
	}
	return res
}

func (c *Cache) download(ctx context.Context, keyword, path string) Result {
	if c.cfg.Assets.APIKey == "" {
		return Result{Outcome: ProviderError, Err: fmt.Errorf("PEXELS_API_KEY not set")}
	}

	link, err := c.search(ctx, keyword)
	if err != nil {
		return Result{Outcome: ProviderError, Err: err}
	}
	if link == "" {
		return Result{Outcome: NotFound}
	}

	if err := c.stream(ctx, link, path); err != nil {
		return Result{Outcome: ProviderError, Err: err}
	}
	return Result{Path: path, Outcome: Downloaded}
}

// search returns the first result's file link, or "" when nothing matched
func (c *Cache) search(ctx context.Context, keyword string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("query", keyword)
	q.Set("orientation", "portrait")
	q.Set("per_page", "1")

	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.Assets.SearchURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.cfg.Assets.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from asset search", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read search response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("malformed search response (%d bytes)", len(body))
	}
	return gjson.GetBytes(body, linkPath).String(), nil
}

// stream writes the clip next to its final path and renames it into place,
// so a partial download is never seen as a cache hit.
func (c *Cache) stream(ctx context.Context, link, path string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", link, nil)
	if err != nil {
		return err
	}
	resp, err := c.dlClient.Do(req)
	if err != nil {
		return fmt.Errorf("download clip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d downloading clip", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write clip: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
