package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

const (
	defaultInstagramBaseURL = "https://www.instagram.com"
	instagramAppID          = "936619743392459"
	// timeline media query used by the public web client
	defaultInstagramQueryHash = "69cba40317214236af40e7efa697781d"
	instagramPageSize         = 12
)

// JMESPath expressions over the web profile and timeline responses.
const (
	igUserID    = "data.user.id"
	igFollowers = "data.user.edge_followed_by.count"
	igFollowing = "data.user.edge_follow.count"
	igMedia     = "data.user.edge_owner_to_timeline_media"
	igPageInfo  = "page_info.{has_next: has_next_page, cursor: end_cursor}"
	igNodes     = "edges[].node.{shortcode: shortcode, taken_at: taken_at_timestamp, is_video: is_video, " +
		"typename: __typename, product_type: product_type, " +
		"likes: edge_liked_by.count || edge_media_preview_like.count, " +
		"comments: edge_media_to_comment.count, views: video_view_count, " +
		"caption: edge_media_to_caption.edges[0].node.text, pinned: length(pinned_for_users || `[]`) > `0`}"
)

// InstagramOptions configures the Instagram source.
type InstagramOptions struct {
	HTTP HTTPOptions
	// BaseURL overrides https://www.instagram.com.
	BaseURL   string
	QueryHash string
	// SessionID is an optional sessionid cookie; logged in sessions get
	// higher limits.
	SessionID string
	Logger    *slog.Logger
	Now       func() time.Time
}

// Instagram reads public profiles through the web client JSON endpoints.
type Instagram struct {
	fetch     fetcher
	baseURL   string
	queryHash string
	sessionID string
	logger    *slog.Logger
	now       func() time.Time
}

var _ Source = (*Instagram)(nil)

// NewInstagram creates an Instagram source.
func NewInstagram(opts InstagramOptions) *Instagram {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultInstagramBaseURL
	}
	hash := opts.QueryHash
	if hash == "" {
		hash = defaultInstagramQueryHash
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Instagram{
		fetch:     newFetcher(opts.HTTP),
		baseURL:   base,
		queryHash: hash,
		sessionID: opts.SessionID,
		logger:    logger.With("component", "collector", "platform", string(model.PlatformInstagram)),
		now:       now,
	}
}

// Platform implements Source.
func (c *Instagram) Platform() model.Platform { return model.PlatformInstagram }

// Close implements Source.
func (c *Instagram) Close() error {
	c.fetch.client.CloseIdleConnections()
	return nil
}

// getJSON fetches u and decodes the body. A missing profile yields nil data.
func (c *Instagram) getJSON(ctx context.Context, u string) (any, error) {
	headers := map[string]string{
		"Accept":      "application/json",
		"X-IG-App-ID": instagramAppID,
	}
	if c.sessionID != "" {
		headers["Cookie"] = "sessionid=" + c.sessionID
	}
	resp, err := c.fetch.get(ctx, u, headers)
	if err != nil {
		return nil, err
	}
	switch resp.status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	case http.StatusTooManyRequests, http.StatusUnauthorized:
		return nil, Blocked(model.PlatformInstagram, fmt.Sprintf("too many requests (HTTP %d)", resp.status))
	default:
		return nil, fmt.Errorf("instagram: unexpected HTTP %d", resp.status)
	}

	var data any
	if err := json.Unmarshal(resp.body, &data); err != nil {
		return nil, fmt.Errorf("instagram: decode response: %w", err)
	}
	if status, _ := search("status", data).(string); status == "fail" {
		msg, _ := search("message", data).(string)
		if strings.Contains(strings.ToLower(msg), "wait") || strings.Contains(strings.ToLower(msg), "rate") {
			return nil, Blocked(model.PlatformInstagram, msg)
		}
		return nil, fmt.Errorf("instagram: %s", msg)
	}
	return data, nil
}

func (c *Instagram) profileJSON(ctx context.Context, handle string) (any, error) {
	u := c.baseURL + "/api/v1/users/web_profile_info/?username=" + url.QueryEscape(handle)
	return c.getJSON(ctx, u)
}

// CollectProfile implements Source.
func (c *Instagram) CollectProfile(ctx context.Context, handle string) (Profile, error) {
	data, err := c.profileJSON(ctx, handle)
	if err != nil || data == nil {
		if data == nil && err == nil {
			c.logger.WarnContext(ctx, "instagram profile not found", "handle", handle)
		}
		return Profile{}, err
	}
	var p Profile
	if n, ok := number(search(igFollowers, data)); ok {
		p.Followers = intPtr(n)
	}
	if n, ok := number(search(igFollowing, data)); ok {
		p.Following = intPtr(n)
	}
	return p, nil
}

// CollectPosts implements Source.
func (c *Instagram) CollectPosts(ctx context.Context, handle string, opts PostsOptions) iter.Seq2[*model.Post, error] {
	return func(yield func(*model.Post, error) bool) {
		data, err := c.profileJSON(ctx, handle)
		if err != nil {
			yield(nil, err)
			return
		}
		if data == nil {
			return
		}
		userID, _ := search(igUserID, data).(string)
		media := search(igMedia, data)

		limit := opts.limit()
		count := 0
		for media != nil {
			for _, item := range c.parseMedia(media) {
				post := item.post
				keep, stop := opts.inWindow(post.PostedAt)
				if stop && !item.pinned {
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

			page, _ := search(igPageInfo, media).(map[string]any)
			hasNext, _ := page["has_next"].(bool)
			cursor, _ := page["cursor"].(string)
			if !hasNext || cursor == "" || userID == "" {
				return
			}
			next, err := c.timelinePage(ctx, userID, cursor)
			if err != nil {
				yield(nil, err)
				return
			}
			media = next
		}
	}
}

func (c *Instagram) timelinePage(ctx context.Context, userID, cursor string) (any, error) {
	vars, err := json.Marshal(map[string]any{"id": userID, "first": instagramPageSize, "after": cursor})
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("query_hash", c.queryHash)
	q.Set("variables", string(vars))
	data, err := c.getJSON(ctx, c.baseURL+"/graphql/query/?"+q.Encode())
	if err != nil || data == nil {
		return nil, err
	}
	return search(igMedia, data), nil
}

// mediaPost marks posts pinned to the top of the grid; they are out of
// chronological order and must not end the listing.
type mediaPost struct {
	post   *model.Post
	pinned bool
}

func (c *Instagram) parseMedia(media any) []mediaPost {
	nodes, _ := search(igNodes, media).([]any)
	posts := make([]mediaPost, 0, len(nodes))
	for _, raw := range nodes {
		node, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		shortcode, _ := node["shortcode"].(string)
		takenAt, ok := number(node["taken_at"])
		if shortcode == "" || !ok {
			continue
		}
		caption, _ := node["caption"].(string)
		isVideo, _ := node["is_video"].(bool)
		typename, _ := node["typename"].(string)
		productType, _ := node["product_type"].(string)

		content := model.ContentImage
		switch {
		case isVideo && productType == "clips":
			content = model.ContentReel
		case isVideo:
			content = model.ContentVideo
		case typename == "GraphSidecar":
			content = model.ContentCarousel
		}

		post := &model.Post{
			ID:             uuid.NewString(),
			PlatformPostID: shortcode,
			PostedAt:       time.Unix(int64(takenAt), 0).UTC(),
			ContentType:    content,
			URL:            fmt.Sprintf("https://www.instagram.com/p/%s/", shortcode),
			Caption:        snippet(caption, captionRunes),
			CollectedAt:    c.now().UTC(),
		}
		post.Likes, _ = number(node["likes"])
		post.Comments, _ = number(node["comments"])
		if views, ok := number(node["views"]); ok && isVideo {
			post.Views = intPtr(views)
		}
		for _, m := range hashtagRe.FindAllStringSubmatch(caption, -1) {
			post.Hashtags = append(post.Hashtags, m[1])
		}
		pinned, _ := node["pinned"].(bool)
		posts = append(posts, mediaPost{post: post, pinned: pinned})
	}
	return posts
}

// search evaluates a JMESPath expression, returning nil on any error.
func search(expr string, data any) any {
	if data == nil {
		return nil
	}
	out, err := jmespath.Search(expr, data)
	if err != nil {
		return nil
	}
	return out
}

// number converts a decoded JSON number.
func number(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}
