// Package wordpress publishes records through the WordPress REST API
// (wp-json/wp/v2) using application password authentication.
package wordpress

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"horoscope-relay/internal/components/assert"
	"horoscope-relay/internal/components/telemetry"
	"horoscope-relay/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	report_client_upload_media = "client.upload-media"
	report_client_create_post  = "client.create-post"
)

// StatusError is returned when WordPress answers with a non-2xx status.
type StatusError struct {
	Status int
	Body   string
}

const maxErrorBody = 512

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	return fmt.Sprintf("wordpress: unexpected status %d: %s", e.Status, body)
}

// Media is a file to upload to the media library.
type Media struct {
	FileName    string
	ContentType string
	Data        []byte
	// Title is used as the title, alt text and caption of the attachment.
	Title string
}

type PostRequest struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	Status        string `json:"status"`
	Categories    []int  `json:"categories,omitempty"`
	FeaturedMedia int    `json:"featured_media,omitempty"`
}

type Post struct {
	ID   int    `json:"id"`
	Link string `json:"link"`
}

// API is the subset of the REST API the publisher needs.
//
// note: fault injection point
type API interface {
	UploadMedia(ctx context.Context, media Media) (int, error)
	CreatePost(ctx context.Context, req PostRequest) (Post, error)
}

type Options struct {
	// BaseURL is the REST root, ex. https://example.com/wp-json/wp/v2
	BaseURL     string
	Username    string
	AppPassword string
	Timeout     time.Duration
	// RequestsPerSecond limits outgoing requests, 0 disables the limit.
	RequestsPerSecond float64

	// Tracer and Output are optional.
	Tracer trace.Tracer
	Output restyutil.InstrumentOutput
}

type Client struct {
	http *resty.Client
	tel  telemetry.API
}

func NewClient(opts Options, tel telemetry.API) (Client, error) {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("wordpress", tel)

	if opts.BaseURL == "" {
		return Client{}, fmt.Errorf("wordpress: base url is required")
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/"))
	httpClient.SetBasicAuth(opts.Username, opts.AppPassword)
	httpClient.SetHeader("user-agent", "horoscope-relay/1.0")
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}

	if opts.RequestsPerSecond > 0 {
		// burst of 1 so consecutive uploads and posts are spread out
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel)
	restyutil.InstrumentClient(httpClient, opts.Tracer, opts.Output)

	return Client{http: httpClient, tel: tel}, nil
}

func statusError(res *resty.Response) error {
	if res.StatusCode() >= 200 && res.StatusCode() < 300 {
		return nil
	}
	return &StatusError{Status: res.StatusCode(), Body: string(res.Body())}
}

// UploadMedia uploads a file and returns the attachment id.
func (c Client) UploadMedia(ctx context.Context, media Media) (int, error) {
	var out struct {
		ID int `json:"id"`
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("file", media.FileName, media.ContentType, bytes.NewReader(media.Data)).
		SetMultipartFormData(map[string]string{
			"title":    media.Title,
			"alt_text": media.Title,
			"caption":  media.Title,
		}).
		SetResult(&out).
		Post("/media")
	if err != nil {
		c.tel.ReportBroken(report_client_upload_media, fmt.Errorf("request: %w", err), "file", media.FileName)
		return 0, fmt.Errorf("wordpress: upload media: %w", err)
	}
	if err := statusError(res); err != nil {
		c.tel.ReportWarning(report_client_upload_media, err, "file", media.FileName)
		return 0, err
	}
	if out.ID == 0 {
		err := fmt.Errorf("wordpress: upload media: response has no id")
		c.tel.ReportWarning(report_client_upload_media, err, "file", media.FileName)
		return 0, err
	}

	c.tel.ReportDebug("media uploaded", "id", out.ID, "file", media.FileName)
	return out.ID, nil
}

// CreatePost creates a post and returns its id and permalink.
func (c Client) CreatePost(ctx context.Context, req PostRequest) (Post, error) {
	var out Post
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetBody(req).
		SetResult(&out).
		Post("/posts")
	if err != nil {
		c.tel.ReportBroken(report_client_create_post, fmt.Errorf("request: %w", err), "title", req.Title)
		return Post{}, fmt.Errorf("wordpress: create post: %w", err)
	}
	if err := statusError(res); err != nil {
		c.tel.ReportBroken(report_client_create_post, err, "title", req.Title)
		return Post{}, err
	}

	c.tel.ReportDebug("post created", "id", out.ID, "link", out.Link)
	return out, nil
}
