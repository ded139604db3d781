package wordpress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"horoscope-relay/internal/components/telemetry"
	"horoscope-relay/internal/horoscope"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type uploadedMedia struct {
	fileName    string
	contentType string
	data        string
	title       string
	altText     string
	caption     string
}

type fakeWordPress struct {
	mu          sync.Mutex
	media       []uploadedMedia
	posts       []PostRequest
	failMedia   bool
	failPosts   bool
	credentials [2]string
}

func (f *fakeWordPress) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /wp-json/wp/v2/media", func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		data, err := io.ReadAll(file)
		require.NoError(t, err)

		f.mu.Lock()
		f.credentials = [2]string{user, pass}
		f.media = append(f.media, uploadedMedia{
			fileName:    header.Filename,
			contentType: header.Header.Get("Content-Type"),
			data:        string(data),
			title:       r.FormValue("title"),
			altText:     r.FormValue("alt_text"),
			caption:     r.FormValue("caption"),
		})
		fail := f.failMedia
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if fail {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			w.Write([]byte(`{"code":"rest_upload_file_too_big"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 501}`))
	})
	mux.HandleFunc("POST /wp-json/wp/v2/posts", func(w http.ResponseWriter, r *http.Request) {
		var req PostRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		f.posts = append(f.posts, req)
		fail := f.failPosts
		count := len(f.posts)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"code":"internal_error"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Post{ID: 900 + count, Link: "https://example.com/?p=1"})
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeWordPress, tel telemetry.API) Client {
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		BaseURL:     server.URL + "/wp-json/wp/v2/",
		Username:    "editor",
		AppPassword: "abcd efgh",
		Timeout:     5 * time.Second,
	}, tel)
	require.NoError(t, err)
	return client
}

func TestClientUploadMedia(t *testing.T) {
	fake := &fakeWordPress{}
	client := newTestClient(t, fake, &telemetry.Recorder{})

	id, err := client.UploadMedia(context.Background(), Media{
		FileName:    "aries.png",
		ContentType: "image/png",
		Data:        []byte("png-bytes"),
		Title:       "برج الحمل",
	})
	require.NoError(t, err)
	require.Equal(t, 501, id)

	require.Equal(t, [2]string{"editor", "abcd efgh"}, fake.credentials)
	require.Equal(t, []uploadedMedia{{
		fileName:    "aries.png",
		contentType: "image/png",
		data:        "png-bytes",
		title:       "برج الحمل",
		altText:     "برج الحمل",
		caption:     "برج الحمل",
	}}, fake.media)
}

func TestClientErrors(t *testing.T) {
	fake := &fakeWordPress{failMedia: true, failPosts: true}
	tel := &telemetry.Recorder{}
	client := newTestClient(t, fake, tel)

	_, err := client.UploadMedia(context.Background(), Media{FileName: "a.png", ContentType: "image/png"})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusRequestEntityTooLarge, statusErr.Status)
	require.Contains(t, statusErr.Body, "rest_upload_file_too_big")
	require.Len(t, tel.Warnings(report_client_upload_media), 1)

	_, err = client.CreatePost(context.Background(), PostRequest{Title: "x", Status: "publish"})
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusInternalServerError, statusErr.Status)
	require.Len(t, tel.Broken(report_client_create_post), 1)
}

func TestStatusErrorTruncatesBody(t *testing.T) {
	arabic := strings.Repeat("ع", 300)

	tests := []struct {
		name string
		body string
		kept string
	}{
		{name: "short", body: `{"code":"rest_forbidden"}`, kept: `{"code":"rest_forbidden"}`},
		{name: "ascii", body: strings.Repeat("a", 600), kept: strings.Repeat("a", 512) + "..."},
		{name: "arabic on a rune boundary", body: arabic, kept: strings.Repeat("ع", 256) + "..."},
		{name: "arabic inside a rune", body: "x" + arabic, kept: "x" + strings.Repeat("ع", 255) + "..."},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			msg := (&StatusError{Status: http.StatusBadGateway, Body: test.body}).Error()
			require.True(t, utf8.ValidString(msg))
			require.Equal(t, "wordpress: unexpected status 502: "+test.kept, msg)
		})
	}
}

func TestClientUnreachable(t *testing.T) {
	tel := &telemetry.Recorder{}
	client, err := NewClient(Options{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, tel)
	require.NoError(t, err)

	_, err = client.CreatePost(context.Background(), PostRequest{Title: "x"})
	require.Error(t, err)
	var statusErr *StatusError
	require.False(t, errors.As(err, &statusErr))
	require.Len(t, tel.Broken(report_client_create_post), 1)
}

func TestPublisher(t *testing.T) {
	imagesDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(imagesDir, "aquarius.webp"), []byte("webp"), 0644))

	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	aquarius := horoscope.NewRecord(horoscope.Aquarius, date, "نص", horoscope.Scores{Professional: 1, Financial: 2, Emotional: 3}, 10)
	leo := horoscope.NewRecord(horoscope.Leo, date, "نص", horoscope.Scores{Professional: 1, Financial: 2, Emotional: 3}, 10)

	t.Run("with image", func(t *testing.T) {
		fake := &fakeWordPress{}
		tel := &telemetry.Recorder{}
		publisher := NewPublisher(newTestClient(t, fake, tel), PublisherOptions{ImagesDir: imagesDir, CategoryID: 33}, tel)

		post, err := publisher.Publish(context.Background(), aquarius)
		require.NoError(t, err)
		require.Equal(t, 901, post.ID)

		require.Len(t, fake.media, 1)
		require.Equal(t, "image/webp", fake.media[0].contentType)
		require.Equal(t, "برج الدلو ♒ - 5 مارس 2024", fake.media[0].title)

		expected := []PostRequest{{
			Title:         "توقعات برج الدلو ♒ ليوم 5 مارس 2024",
			Content:       aquarius.Rendered,
			Status:        "publish",
			Categories:    []int{33},
			FeaturedMedia: 501,
		}}
		if diff := cmp.Diff(expected, fake.posts); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("missing image still posts", func(t *testing.T) {
		fake := &fakeWordPress{}
		tel := &telemetry.Recorder{}
		publisher := NewPublisher(newTestClient(t, fake, tel), PublisherOptions{ImagesDir: imagesDir, Status: "draft"}, tel)

		_, err := publisher.Publish(context.Background(), leo)
		require.NoError(t, err)
		require.Empty(t, fake.media)
		require.Len(t, fake.posts, 1)
		require.Equal(t, 0, fake.posts[0].FeaturedMedia)
		require.Equal(t, "draft", fake.posts[0].Status)
		require.Nil(t, fake.posts[0].Categories)
		require.Len(t, tel.Warnings(report_publisher_find_image), 1)
	})

	t.Run("failed upload still posts", func(t *testing.T) {
		fake := &fakeWordPress{failMedia: true}
		tel := &telemetry.Recorder{}
		publisher := NewPublisher(newTestClient(t, fake, tel), PublisherOptions{ImagesDir: imagesDir}, tel)

		_, err := publisher.Publish(context.Background(), aquarius)
		require.NoError(t, err)
		require.Len(t, fake.posts, 1)
		require.Equal(t, 0, fake.posts[0].FeaturedMedia)
		require.Len(t, tel.Warnings(report_publisher_upload_image), 1)
	})

	t.Run("failed post", func(t *testing.T) {
		fake := &fakeWordPress{failPosts: true}
		tel := &telemetry.Recorder{}
		publisher := NewPublisher(newTestClient(t, fake, tel), PublisherOptions{ImagesDir: imagesDir}, tel)

		_, err := publisher.Publish(context.Background(), leo)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, http.StatusInternalServerError, statusErr.Status)
	})
}
