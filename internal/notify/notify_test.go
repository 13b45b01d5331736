// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/yt-observatory/pkg/types"
)

type capturedPost struct {
	path     string
	user     string
	password string
	form     url.Values
}

func mailgunServer(t *testing.T, status int) (*httptest.Server, *[]capturedPost) {
	t.Helper()
	var posts []capturedPost
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		user, pass, _ := r.BasicAuth()
		posts = append(posts, capturedPost{path: r.URL.Path, user: user, password: pass, form: r.PostForm})
		w.WriteHeader(status)
	}))
	t.Cleanup(ts.Close)
	return ts, &posts
}

func testConfig(baseURL string) types.MailgunConfig {
	return types.MailgunConfig{
		APIBaseURL: baseURL + "/v3/mg.example.org/",
		APIKey:     "key-123",
		From:       "Observatory <alerts@mg.example.org>",
		To:         "ops@example.org",
	}
}

func TestMailgun_SendPostsFormWithBasicAuth(t *testing.T) {
	ts, posts := mailgunServer(t, http.StatusOK)
	m := NewMailgun(testConfig(ts.URL), nil)

	require.NoError(t, m.Send(context.Background(), "hello", "body text"))

	require.Len(t, *posts, 1)
	p := (*posts)[0]
	assert.Equal(t, "/v3/mg.example.org/messages", p.path)
	assert.Equal(t, "api", p.user)
	assert.Equal(t, "key-123", p.password)
	assert.Equal(t, "Observatory <alerts@mg.example.org>", p.form.Get("from"))
	assert.Equal(t, "ops@example.org", p.form.Get("to"))
	assert.Equal(t, "hello", p.form.Get("subject"))
	assert.Equal(t, "body text", p.form.Get("text"))
}

func TestMailgun_SendNon2xxIsError(t *testing.T) {
	ts, _ := mailgunServer(t, http.StatusUnauthorized)
	err := NewMailgun(testConfig(ts.URL), nil).Send(context.Background(), "s", "t")
	assert.ErrorContains(t, err, "HTTP 401")
}

func TestMailgun_Exception(t *testing.T) {
	ts, posts := mailgunServer(t, http.StatusOK)
	m := NewMailgun(testConfig(ts.URL), nil)

	m.Exception(context.Background(), "YouTube Random Sampler", "Problem getting videos", errors.New("quota exceeded"))

	require.Len(t, *posts, 1)
	form := (*posts)[0].form
	assert.Equal(t, "[YouTube Random Sampler] Unexpected Error: Problem getting videos", form.Get("subject"))
	assert.Contains(t, form.Get("text"), "Problem getting videos: quota exceeded")
}

func TestMailgun_FailureIsLoggedNotReturned(t *testing.T) {
	ts, _ := mailgunServer(t, http.StatusInternalServerError)
	var buf bytes.Buffer
	m := NewMailgun(testConfig(ts.URL), slog.New(slog.NewTextHandler(&buf, nil)))

	m.Update(context.Background(), "daily update", "seen: 3")

	assert.Contains(t, buf.String(), "unable to send update mail")
}

func TestNew(t *testing.T) {
	assert.IsType(t, LogNotifier{}, New(types.MailgunConfig{}, nil))
	assert.IsType(t, &Mailgun{}, New(types.MailgunConfig{APIKey: "k"}, nil))
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	n.Exception(context.Background(), "mod", "it broke", errors.New("boom"))
	n.Update(context.Background(), "summary", "seen: 1")

	out := buf.String()
	assert.Contains(t, out, "it broke")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "summary")
}
