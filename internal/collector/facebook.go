package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

const (
	defaultFacebookBaseURL = "https://mbasic.facebook.com"
	// pages of "see more stories" followed per listing
	maxFacebookPages = 50
)

var (
	fbFollowersRe = regexp.MustCompile(`(?i)(\d[\d.,]*\s?[KMB]?)\s*(?:volgers|followers)`)
	fbLikesRe     = regexp.MustCompile(`(?i)(\d[\d.,]*\s?[KMB]?)\s*(?:vind-ik-leuks|likes)`)
	fbCommentsRe  = regexp.MustCompile(`(?i)(\d[\d.,]*\s?[KMB]?)\s*(?:opmerkingen|reacties|comments?)`)
	fbSharesRe    = regexp.MustCompile(`(?i)(\d[\d.,]*\s?[KMB]?)\s*(?:keer gedeeld|shares?)`)
	fbCountRe     = regexp.MustCompile(`\d[\d.,]*\s?[KMB]?`)
	fbBlockedRe   = regexp.MustCompile(`(?i)temporarily blocked|tijdelijk geblokkeerd|too many requests`)
)

// FacebookOptions configures the Facebook source.
type FacebookOptions struct {
	HTTP HTTPOptions
	// BaseURL overrides https://mbasic.facebook.com.
	BaseURL string
	Logger  *slog.Logger
	Now     func() time.Time
}

// Facebook reads public pages from the basic (no JavaScript) mobile site.
type Facebook struct {
	fetch   fetcher
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

var _ Source = (*Facebook)(nil)

// NewFacebook creates a Facebook source.
func NewFacebook(opts FacebookOptions) *Facebook {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultFacebookBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Facebook{
		fetch:   newFetcher(opts.HTTP),
		baseURL: base,
		logger:  logger.With("component", "collector", "platform", string(model.PlatformFacebook)),
		now:     now,
	}
}

// Platform implements Source.
func (c *Facebook) Platform() model.Platform { return model.PlatformFacebook }

// Close implements Source.
func (c *Facebook) Close() error {
	c.fetch.client.CloseIdleConnections()
	return nil
}

func (c *Facebook) page(ctx context.Context, u string) (*html.Node, error) {
	resp, err := c.fetch.get(ctx, u, map[string]string{"Accept": "text/html"})
	if err != nil {
		return nil, err
	}
	switch resp.status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	case http.StatusTooManyRequests:
		return nil, Blocked(model.PlatformFacebook, "too many requests")
	default:
		return nil, fmt.Errorf("facebook: unexpected HTTP %d", resp.status)
	}
	if fbBlockedRe.Match(resp.body) {
		return nil, Blocked(model.PlatformFacebook, "temporarily blocked")
	}
	doc, err := html.Parse(bytes.NewReader(resp.body))
	if err != nil {
		return nil, fmt.Errorf("facebook: parse page: %w", err)
	}
	return doc, nil
}

// CollectProfile implements Source. Pages have no following count.
func (c *Facebook) CollectProfile(ctx context.Context, handle string) (Profile, error) {
	doc, err := c.page(ctx, c.baseURL+"/"+url.PathEscape(handle))
	if err != nil || doc == nil {
		return Profile{}, err
	}
	body := text(findFirst(doc, byTag("body")))
	for _, re := range []*regexp.Regexp{fbFollowersRe, fbLikesRe} {
		if m := re.FindStringSubmatch(body); m != nil {
			return Profile{Followers: intPtr(ParseCount(m[1]))}, nil
		}
	}
	return Profile{}, nil
}

// CollectPosts implements Source.
func (c *Facebook) CollectPosts(ctx context.Context, handle string, opts PostsOptions) iter.Seq2[*model.Post, error] {
	return func(yield func(*model.Post, error) bool) {
		limit := opts.limit()
		count := 0
		seen := make(map[string]struct{})
		next := c.baseURL + "/" + url.PathEscape(handle) + "?v=timeline"

		for pages := 0; next != "" && pages < maxFacebookPages; pages++ {
			doc, err := c.page(ctx, next)
			if err != nil {
				yield(nil, err)
				return
			}
			if doc == nil {
				return
			}
			for _, article := range findAll(doc, byTag("article")) {
				post := c.parseArticle(article, handle)
				if post == nil {
					continue
				}
				if _, dup := seen[post.PlatformPostID]; dup {
					continue
				}
				seen[post.PlatformPostID] = struct{}{}

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
			next = c.moreStories(doc)
		}
	}
}

// moreStories returns the absolute URL of the next timeline section.
func (c *Facebook) moreStories(doc *html.Node) string {
	a := findFirst(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "a" {
			return false
		}
		href := attr(n, "href")
		return strings.Contains(href, "sectionLoadingID") || strings.Contains(href, "cursor=")
	})
	if a == nil {
		return ""
	}
	href := attr(a, "href")
	if strings.HasPrefix(href, "http") {
		return href
	}
	return c.baseURL + href
}

// parseArticle reads a timeline story. The basic site keeps the post id and
// publish time in the data-ft JSON attribute.
func (c *Facebook) parseArticle(article *html.Node, handle string) *model.Post {
	raw := attr(article, "data-ft")
	if raw == "" {
		return nil
	}
	var ft any
	if err := json.Unmarshal([]byte(raw), &ft); err != nil {
		c.logger.Debug("skipping story with unreadable data-ft", "error", err)
		return nil
	}
	id := jsonString(search("top_level_post_id || mf_story_key", ft))
	if id == "" {
		return nil
	}
	publish, ok := number(search("page_insights.*.post_context.publish_time | [0]", ft))
	if !ok {
		return nil
	}

	var paragraphs []string
	for _, p := range findAll(article, byTag("p")) {
		paragraphs = append(paragraphs, text(p))
	}
	caption := snippet(strings.Join(paragraphs, " "), captionRunes)

	content := model.ContentText
	switch {
	case findFirst(article, byTag("video")) != nil:
		content = model.ContentVideo
	case findFirst(article, byTag("img")) != nil:
		content = model.ContentImage
	}

	footer := text(findFirst(article, byTag("footer")))
	post := &model.Post{
		ID:             uuid.NewString(),
		PlatformPostID: id,
		PostedAt:       time.Unix(int64(publish), 0).UTC(),
		ContentType:    content,
		Likes:          footerCount(article, footer),
		Comments:       matchCount(fbCommentsRe, footer),
		Shares:         matchCount(fbSharesRe, footer),
		URL:            fmt.Sprintf("https://www.facebook.com/%s/posts/%s", handle, id),
		Caption:        caption,
		CollectedAt:    c.now().UTC(),
	}
	for _, m := range hashtagRe.FindAllStringSubmatch(caption, -1) {
		post.Hashtags = append(post.Hashtags, m[1])
	}
	return post
}

// footerCount reads the reaction total from the like_<id> span, falling back
// to the footer text.
func footerCount(article *html.Node, footer string) int {
	span := findFirst(article, func(n *html.Node) bool {
		return n.Type == html.ElementNode && strings.HasPrefix(attr(n, "id"), "like_")
	})
	if span != nil {
		if m := fbCountRe.FindString(text(span)); m != "" {
			return ParseCount(m)
		}
	}
	return matchCount(fbLikesRe, footer)
}

func matchCount(re *regexp.Regexp, s string) int {
	if m := re.FindStringSubmatch(s); m != nil {
		return ParseCount(m[1])
	}
	return 0
}

func jsonString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatInt(int64(s), 10)
	default:
		return ""
	}
}
