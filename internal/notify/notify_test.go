package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPush_NoopWhenUnconfigured(t *testing.T) {
	t.Parallel()

	n := New(Config{})

	err := n.Push(context.Background(), "title", "message")
	require.NoError(t, err)
}

func TestPush_PostsToURLTopicWithTitleHeader(t *testing.T) {
	t.Parallel()

	var gotPath, gotTitle, gotBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTitle = r.Header.Get("Title")

		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := New(Config{URL: server.URL, Topic: "backups"})

	err := n.Push(context.Background(), "coldvault backup", "run complete")
	require.NoError(t, err)

	assert.Equal(t, "/backups", gotPath)
	assert.Equal(t, "coldvault backup", gotTitle)
	assert.Equal(t, "run complete", gotBody)
}

func TestPush_ErrorsOnServerFailureStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := New(Config{URL: server.URL, Topic: "backups"})

	err := n.Push(context.Background(), "title", "message")
	require.Error(t, err)
}
