package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

// DefaultNitterInstances are public Nitter mirrors tried in order.
var DefaultNitterInstances = []string{
	"https://nitter.net",
	"https://nitter.privacydev.net",
	"https://nitter.poast.org",
}

const (
	defaultNitterCooldown = 10 * time.Minute
	defaultNitterRetries  = 3
	nitterCooldownPrefix  = "nitter:cooldown:"
	captionRunes          = 200
)

// TwitterOptions configures the Nitter backed Twitter source.
type TwitterOptions struct {
	HTTP      HTTPOptions
	Instances []string
	// Cache records instances that answered 429 so that other workers skip
	// them until Cooldown passes. Optional.
	Cache    core.CacheRepository
	Cooldown time.Duration
	// Retries is the number of passes over the instance list per page.
	Retries int
	// RetryDelay is slept after a 429 before trying the next instance.
	RetryDelay time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// Twitter reads public profiles and timelines from Nitter mirrors.
type Twitter struct {
	fetch      fetcher
	instances  []string
	cache      core.CacheRepository
	cooldown   time.Duration
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	current int
}

var _ Source = (*Twitter)(nil)

// NewTwitter creates a Twitter source.
func NewTwitter(opts TwitterOptions) (*Twitter, error) {
	instances := make([]string, 0, len(opts.Instances))
	for _, in := range opts.Instances {
		if in = strings.TrimRight(strings.TrimSpace(in), "/"); in != "" {
			instances = append(instances, in)
		}
	}
	if len(instances) == 0 {
		return nil, errors.New("twitter collector: at least one nitter instance is required")
	}
	cooldown := opts.Cooldown
	if cooldown <= 0 {
		cooldown = defaultNitterCooldown
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = defaultNitterRetries
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Twitter{
		fetch:      newFetcher(opts.HTTP),
		instances:  instances,
		cache:      opts.Cache,
		cooldown:   cooldown,
		retries:    retries,
		retryDelay: opts.RetryDelay,
		logger:     logger.With("component", "collector", "platform", string(model.PlatformTwitter)),
		now:        now,
	}, nil
}

// Platform implements Source.
func (t *Twitter) Platform() model.Platform { return model.PlatformTwitter }

// Close implements Source.
func (t *Twitter) Close() error {
	t.fetch.client.CloseIdleConnections()
	return nil
}

func (t *Twitter) instance() (int, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.instances[t.current]
}

func (t *Twitter) rotate(from int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == from {
		t.current = (t.current + 1) % len(t.instances)
	}
}

func (t *Twitter) coolingDown(ctx context.Context, instance string) bool {
	if t.cache == nil {
		return false
	}
	ok, err := t.cache.Exists(ctx, nitterCooldownPrefix+instance)
	if err != nil {
		t.logger.WarnContext(ctx, "nitter cooldown lookup failed", "instance", instance, "error", err)
		return false
	}
	return ok
}

func (t *Twitter) markCooldown(ctx context.Context, instance string) {
	if t.cache == nil {
		return
	}
	if err := t.cache.Set(ctx, nitterCooldownPrefix+instance, []byte("429"), t.cooldown); err != nil {
		t.logger.WarnContext(ctx, "nitter cooldown store failed", "instance", instance, "error", err)
	}
}

// fetchPage fetches path from the current instance, rotating through the
// others on failure. It returns ErrPlatformBlocked when every attempt failed.
func (t *Twitter) fetchPage(ctx context.Context, path string) (*html.Node, error) {
	attempts := t.retries * len(t.instances)
	skipped := 0
	for range attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx, instance := t.instance()
		if t.coolingDown(ctx, instance) {
			t.rotate(idx)
			skipped++
			if skipped >= len(t.instances) {
				break
			}
			continue
		}
		skipped = 0

		resp, err := t.fetch.get(ctx, instance+"/"+path, map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			t.logger.WarnContext(ctx, "nitter request failed", "instance", instance, "error", err)
			t.rotate(idx)
			continue
		}

		switch resp.status {
		case http.StatusOK:
			doc, err := html.Parse(bytes.NewReader(resp.body))
			if err != nil {
				return nil, fmt.Errorf("parse nitter page: %w", err)
			}
			return doc, nil
		case http.StatusNotFound:
			return nil, nil
		case http.StatusTooManyRequests:
			t.logger.WarnContext(ctx, "nitter rate limited", "instance", instance)
			t.markCooldown(ctx, instance)
			t.rotate(idx)
			if err := sleepCtx(ctx, t.retryDelay); err != nil {
				return nil, err
			}
		default:
			t.logger.WarnContext(ctx, "nitter instance unavailable", "instance", instance, "status", resp.status)
			t.rotate(idx)
		}
	}
	return nil, Blocked(model.PlatformTwitter, "all nitter instances failed")
}

// CollectProfile implements Source.
func (t *Twitter) CollectProfile(ctx context.Context, handle string) (Profile, error) {
	doc, err := t.fetchPage(ctx, url.PathEscape(handle))
	if err != nil || doc == nil {
		return Profile{}, err
	}
	return parseNitterProfile(doc), nil
}

// parseNitterProfile reads the tweets / following / followers stat list.
func parseNitterProfile(doc *html.Node) Profile {
	var p Profile
	stats := findAll(doc, byClass("profile-stat-num"))
	if len(stats) >= 3 {
		p.Following = intPtr(ParseCount(text(stats[1])))
		p.Followers = intPtr(ParseCount(text(stats[2])))
	}
	if p.Followers == nil {
		if n := findFirst(doc, statIn("followers")); n != nil {
			p.Followers = intPtr(ParseCount(text(n)))
		}
	}
	if p.Following == nil {
		if n := findFirst(doc, statIn("following")); n != nil {
			p.Following = intPtr(ParseCount(text(n)))
		}
	}
	return p
}

func statIn(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return hasClass(n, "profile-stat-num") && n.Parent != nil && hasClass(n.Parent, class)
	}
}

// CollectPosts implements Source. Retweets, replies and pinned tweets are skipped.
func (t *Twitter) CollectPosts(ctx context.Context, handle string, opts PostsOptions) iter.Seq2[*model.Post, error] {
	return func(yield func(*model.Post, error) bool) {
		limit := opts.limit()
		count := 0
		cursor := ""
		for count < limit {
			path := url.PathEscape(handle)
			if cursor != "" {
				path += "?cursor=" + url.QueryEscape(cursor)
			}
			doc, err := t.fetchPage(ctx, path)
			if err != nil {
				yield(nil, err)
				return
			}
			if doc == nil {
				return
			}
			items := findAll(doc, byClass("timeline-item"))
			if len(items) == 0 {
				return
			}
			for _, item := range items {
				post := t.parseTweet(item, handle)
				if post == nil {
					continue
				}
				keep, stop := opts.inWindow(post.PostedAt)
				if stop {
					return
				}
				if !keep {
					continue
				}
				if !yield(post, nil) {
					return
				}
				count++
				if count >= limit {
					return
				}
			}
			cursor = nextCursor(doc)
			if cursor == "" {
				return
			}
		}
	}
}

func nextCursor(doc *html.Node) string {
	a := findFirst(doc, within("show-more", "a"))
	if a == nil {
		return ""
	}
	href := attr(a, "href")
	i := strings.Index(href, "cursor=")
	if i < 0 {
		return ""
	}
	cursor, err := url.QueryUnescape(href[i+len("cursor="):])
	if err != nil {
		return ""
	}
	return cursor
}

var hashtagRe = regexp.MustCompile(`#(\w+)`)

// Nitter renders "Jan 13, 2026 · 10:30 AM UTC" in the date link title.
var nitterDateLayouts = []string{
	"Jan 2, 2006 · 3:04 PM MST",
	"Jan 2, 2006",
}

func parseNitterDate(title string) (time.Time, bool) {
	title = strings.TrimSpace(title)
	for _, layout := range nitterDateLayouts {
		if ts, err := time.Parse(layout, title); err == nil {
			return ts.UTC(), true
		}
	}
	if date, _, ok := strings.Cut(title, " · "); ok {
		if ts, err := time.Parse("Jan 2, 2006", strings.TrimSpace(date)); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func (t *Twitter) parseTweet(item *html.Node, handle string) *model.Post {
	if findFirst(item, byClass("retweet-header")) != nil ||
		findFirst(item, byClass("replying-to")) != nil ||
		findFirst(item, byClass("pinned")) != nil {
		return nil
	}

	link := findFirst(item, byClass("tweet-link"))
	if link == nil {
		return nil
	}
	href := attr(link, "href")
	id := href[strings.LastIndex(href, "/")+1:]
	id, _, _ = strings.Cut(id, "#")
	if id == "" {
		return nil
	}

	dateLink := findFirst(item, within("tweet-date", "a"))
	if dateLink == nil {
		return nil
	}
	postedAt, ok := parseNitterDate(attr(dateLink, "title"))
	if !ok {
		t.logger.Debug("skipping tweet with unreadable date", "tweet_id", id, "title", attr(dateLink, "title"))
		return nil
	}

	caption := snippet(text(findFirst(item, byClass("tweet-content"))), captionRunes)

	content := model.ContentText
	switch {
	case findFirst(item, byClass("attachment", "video-container")) != nil:
		content = model.ContentVideo
	case findFirst(item, byClass("attachment", "image")) != nil:
		content = model.ContentImage
	}

	var hashtags []string
	for _, m := range hashtagRe.FindAllStringSubmatch(caption, -1) {
		hashtags = append(hashtags, m[1])
	}

	return &model.Post{
		ID:             uuid.NewString(),
		PlatformPostID: id,
		PostedAt:       postedAt,
		ContentType:    content,
		Likes:          tweetStat(item, "icon-heart"),
		Comments:       tweetStat(item, "icon-comment"),
		Shares:         tweetStat(item, "icon-retweet") + tweetStat(item, "icon-quote"),
		URL:            fmt.Sprintf("https://twitter.com/%s/status/%s", handle, id),
		Caption:        caption,
		Hashtags:       hashtags,
		CollectedAt:    t.now().UTC(),
	}
}

// tweetStat reads the counter rendered next to an icon.
func tweetStat(item *html.Node, icon string) int {
	n := findFirst(item, byClass(icon))
	if n == nil || n.Parent == nil {
		return 0
	}
	return ParseCount(text(n.Parent))
}
