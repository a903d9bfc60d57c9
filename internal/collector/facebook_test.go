package collector

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

func fbStory(id string, publish time.Time, body, footer string) string {
	ft := fmt.Sprintf(`{"top_level_post_id":"%s","page_insights":{"1001":{"post_context":{"publish_time":%d}}}}`, id, publish.Unix())
	return fmt.Sprintf(`<article data-ft="%s"><div><p>%s</p></div><footer>%s</footer></article>`,
		html.EscapeString(ft), body, footer)
}

func TestFacebook_CollectProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/nederlandinjapan", r.URL.Path)
		fmt.Fprint(w, `<html><body><div>Ambassade</div><div>4.321 vind-ik-leuks · 5,2K volgers</div></body></html>`)
	}))
	defer srv.Close()

	p, err := NewFacebook(FacebookOptions{BaseURL: srv.URL}).CollectProfile(context.Background(), "nederlandinjapan")
	require.NoError(t, err)
	require.NotNil(t, p.Followers)
	assert.Equal(t, 5200, *p.Followers)
	assert.Nil(t, p.Following)
}

func TestFacebook_Blocked(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "429", status: http.StatusTooManyRequests},
		{name: "block page", status: http.StatusOK, body: "<html><body>You're Temporarily Blocked</body></html>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewFacebook(FacebookOptions{BaseURL: srv.URL}).CollectProfile(context.Background(), "x")
			assert.True(t, IsPlatformBlocked(err))
		})
	}
}

func TestFacebook_CollectPosts(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	page1 := fbStory("555", now.AddDate(0, 0, -1), "Open dag #ambassade", `<span id="like_555">1,2K</span> 14 opmerkingen 3 keer gedeeld`) +
		fbStory("555", now.AddDate(0, 0, -1), "duplicate", "") +
		`<article><p>no metadata</p></article>` +
		`<a href="/nederlandinjapan?sectionLoadingID=m_timeline_loading&amp;cursor=abc">Meer verhalen weergeven</a>`
	page2 := fbStory("444", now.AddDate(0, 0, -5), "Tweede post", "20 likes 2 comments") +
		fbStory("111", now.AddDate(0, -3, 0), "Oud", "")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "abc" {
			fmt.Fprint(w, "<html><body>"+page2+"</body></html>")
			return
		}
		assert.Equal(t, "timeline", r.URL.Query().Get("v"))
		fmt.Fprint(w, "<html><body>"+page1+"</body></html>")
	}))
	defer srv.Close()

	fb := NewFacebook(FacebookOptions{BaseURL: srv.URL, Now: func() time.Time { return now }})
	var got []*model.Post
	for post, err := range fb.CollectPosts(context.Background(), "nederlandinjapan", PostsOptions{Since: now.AddDate(0, -1, 0)}) {
		require.NoError(t, err)
		got = append(got, post)
	}

	require.Len(t, got, 2)
	first := got[0]
	assert.Equal(t, "555", first.PlatformPostID)
	assert.Equal(t, now.AddDate(0, 0, -1), first.PostedAt)
	assert.Equal(t, 1200, first.Likes)
	assert.Equal(t, 14, first.Comments)
	assert.Equal(t, 3, first.Shares)
	assert.Equal(t, []string{"ambassade"}, first.Hashtags)
	assert.Equal(t, "https://www.facebook.com/nederlandinjapan/posts/555", first.URL)

	assert.Equal(t, "444", got[1].PlatformPostID)
	assert.Equal(t, 20, got[1].Likes)
	assert.Equal(t, 2, got[1].Comments)
}
