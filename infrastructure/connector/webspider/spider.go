// Package webspider implements the polite web crawler connector: a
// breadth-first crawl from seed URLs bounded by depth and page count,
// honoring robots.txt and a per-host rate limit, with content-hash change
// detection against the index.
package webspider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/meridiansearch/meridian/domain/connector"
	"github.com/meridiansearch/meridian/domain/document"
)

const (
	defaultMaxDepth = 2
	defaultMaxPages = 100
	defaultRPS      = 2.0

	maxBodyBytes = 4 << 20

	userAgent = "meridian-spider/1.0"
)

// Runner executes web connector syncs.
type Runner struct {
	documents document.Store
	client    *http.Client
}

// NewRunner creates a Runner. A nil client uses a default with a 15
// second timeout.
func NewRunner(documents document.Store, client *http.Client) *Runner {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Runner{documents: documents, client: client}
}

// crawlTarget is one queued URL with its BFS depth.
type crawlTarget struct {
	url   string
	depth int
}

// Run performs one crawl.
func (r *Runner) Run(ctx context.Context, c connector.Connector, sink connector.ProgressSink) (connector.Counters, error) {
	cfg, ok := c.Config().(connector.WebConfig)
	if !ok {
		return connector.Counters{}, fmt.Errorf("connector %s: config is not a web config", c.ID())
	}

	maxDepth := cfg.MaxDepth
	if maxDepth == 0 {
		maxDepth = defaultMaxDepth
	}
	maxPages := cfg.MaxPages
	if maxPages == 0 {
		maxPages = defaultMaxPages
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = defaultRPS
	}

	include, exclude, err := compilePatterns(cfg)
	if err != nil {
		return connector.Counters{}, err
	}

	crawl := &crawler{
		runner:  r,
		config:  cfg,
		include: include,
		exclude: exclude,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		robots:  map[string]*robotsRules{},
		seen:    map[string]struct{}{},
	}

	seedHosts := map[string]struct{}{}
	queue := make([]crawlTarget, 0, len(cfg.SeedURLs))
	for _, seed := range cfg.SeedURLs {
		canonical, host, err := canonicalize(seed)
		if err != nil {
			sink.Log("warn", "seed skipped", map[string]any{"url": seed, "error": err.Error()})
			continue
		}
		seedHosts[host] = struct{}{}
		queue = append(queue, crawlTarget{url: canonical})
	}

	var counters connector.Counters
	visited := make([]string, 0, maxPages)

	for len(queue) > 0 && len(visited) < maxPages {
		if err := ctx.Err(); err != nil {
			return counters, err
		}
		target := queue[0]
		queue = queue[1:]

		if _, dup := crawl.seen[target.url]; dup {
			continue
		}
		crawl.seen[target.url] = struct{}{}

		if !crawl.admissible(target.url, seedHosts) {
			continue
		}

		page, err := crawl.fetch(ctx, target.url)
		if err != nil {
			sink.Log("warn", "fetch failed", map[string]any{"url": target.url, "error": err.Error()})
			continue
		}
		visited = append(visited, target.url)

		outcome, err := r.indexPage(ctx, c, target.url, page)
		if err != nil {
			return counters, err
		}
		switch outcome {
		case document.OutcomeCreated:
			counters = counters.Add(connector.NewCounters(1, 0, 0))
		case document.OutcomeUpdated:
			counters = counters.Add(connector.NewCounters(0, 1, 0))
		}
		sink.SetCounters(counters)

		if target.depth < maxDepth {
			for _, link := range page.links {
				if _, dup := crawl.seen[link]; !dup {
					queue = append(queue, crawlTarget{url: link, depth: target.depth + 1})
				}
			}
		}
	}

	sink.Log("info", "crawl finished", map[string]any{"pages": len(visited)})
	return counters, nil
}

// indexPage upserts one crawled page, skipping the write when the stored
// content hash is unchanged.
func (r *Runner) indexPage(ctx context.Context, c connector.Connector, pageURL string, page *fetchedPage) (document.UpsertOutcome, error) {
	hash := contentHash(page.text)

	existing, err := r.documents.BySourceExternalID(ctx, c.ID().String(), pageURL)
	if err == nil && existing.Attributes().GetString(document.AttrContentHash) == hash {
		return "", nil
	}

	doc := document.New(c.ID().String(), pageURL, page.title, page.text, "web:page").
		WithURL(pageURL).
		WithAttributes(document.NewAttributes(map[string]any{
			document.AttrContentHash: hash,
		})).
		WithLastModified(time.Now().UTC())

	_, outcome, err := r.documents.Upsert(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("upsert page %s: %w", pageURL, err)
	}
	return outcome, nil
}

// crawler holds per-run crawl state.
type crawler struct {
	runner  *Runner
	config  connector.WebConfig
	include []*regexp.Regexp
	exclude []*regexp.Regexp
	limiter *rate.Limiter
	robots  map[string]*robotsRules
	seen    map[string]struct{}
}

// admissible applies domain, pattern, and robots policy to a URL.
func (cr *crawler) admissible(pageURL string, seedHosts map[string]struct{}) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	if cr.config.SameDomainOnly {
		if _, ok := seedHosts[u.Hostname()]; !ok {
			return false
		}
	}
	for _, p := range cr.exclude {
		if p.MatchString(pageURL) {
			return false
		}
	}
	if len(cr.include) > 0 {
		matched := false
		for _, p := range cr.include {
			if p.MatchString(pageURL) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return cr.allowedByRobots(u)
}

func (cr *crawler) allowedByRobots(u *url.URL) bool {
	rules, ok := cr.robots[u.Host]
	if !ok {
		rules = cr.fetchRobots(u)
		cr.robots[u.Host] = rules
	}
	return rules.allowed(u.Path)
}

func (cr *crawler) fetchRobots(u *url.URL) *robotsRules {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	req, err := http.NewRequest(http.MethodGet, robotsURL, nil)
	if err != nil {
		return &robotsRules{}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := cr.runner.client.Do(req)
	if err != nil {
		return &robotsRules{}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return &robotsRules{}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if err != nil {
		return &robotsRules{}
	}
	return parseRobots(string(body))
}

// fetchedPage is the extraction of one crawled HTML page.
type fetchedPage struct {
	title string
	text  string
	links []string
}

func (cr *crawler) fetch(ctx context.Context, pageURL string) (*fetchedPage, error) {
	if err := cr.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := cr.runner.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "text/html") {
		return nil, fmt.Errorf("unsupported content type %s", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	title, text, links := extractHTML(string(body), pageURL)
	return &fetchedPage{title: title, text: text, links: links}, nil
}

// canonicalize normalizes a URL for crawl deduplication: lowercase
// scheme/host, no fragment, no trailing slash on non-root paths.
func canonicalize(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String(), u.Hostname(), nil
}

func compilePatterns(cfg connector.WebConfig) (include, exclude []*regexp.Regexp, err error) {
	for _, p := range cfg.IncludePatterns {
		compiled, err := regexp.Compile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("include pattern %q: %w", p, err)
		}
		include = append(include, compiled)
	}
	for _, p := range cfg.ExcludePatterns {
		compiled, err := regexp.Compile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("exclude pattern %q: %w", p, err)
		}
		exclude = append(exclude, compiled)
	}
	return include, exclude, nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
