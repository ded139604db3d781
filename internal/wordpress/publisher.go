package wordpress

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"horoscope-relay/internal/components/assert"
	"horoscope-relay/internal/components/telemetry"
	"horoscope-relay/internal/horoscope"
)

const (
	report_publisher_find_image   = "publisher.find-image"
	report_publisher_upload_image = "publisher.upload-image"
)

type PublisherOptions struct {
	// ImagesDir holds one image per sign, named after Sign.Image().
	ImagesDir  string
	CategoryID int
	// Status of created posts, ex. "publish" or "draft".
	Status string
}

// Publisher turns a record into an uploaded featured image and a post.
type Publisher struct {
	api  API
	opts PublisherOptions
	tel  telemetry.API
}

func NewPublisher(api API, opts PublisherOptions, tel telemetry.API) Publisher {
	assert.NotNil(api)
	assert.NotNil(tel)
	if opts.Status == "" {
		opts.Status = "publish"
	}
	return Publisher{
		api:  api,
		opts: opts,
		tel:  telemetry.NewScopedAPI("wordpress", tel),
	}
}

func MediaTitle(r horoscope.Record) string {
	return fmt.Sprintf("برج %s %s - %s", r.Sign.Local(), r.Sign.Glyph(), horoscope.FormatArabicDate(r.Date))
}

func PostTitle(r horoscope.Record) string {
	return fmt.Sprintf("توقعات برج %s %s ليوم %s", r.Sign.Local(), r.Sign.Glyph(), horoscope.FormatArabicDate(r.Date))
}

func contentType(fileName string) string {
	if strings.EqualFold(filepath.Ext(fileName), ".webp") {
		return "image/webp"
	}
	return "image/png"
}

// featuredImage uploads the sign's image, returning 0 when there is none.
// A missing image never prevents the post itself.
func (p Publisher) featuredImage(ctx context.Context, r horoscope.Record) int {
	name := r.Sign.Image()
	if name == "" {
		p.tel.ReportWarning(report_publisher_find_image, fmt.Errorf("no image for sign %v", r.Sign))
		return 0
	}
	path := filepath.Join(p.opts.ImagesDir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		p.tel.ReportWarning(report_publisher_find_image, fmt.Errorf("image not found: %s", path))
		return 0
	}
	if err != nil {
		p.tel.ReportWarning(report_publisher_find_image, fmt.Errorf("read image: %w", err))
		return 0
	}

	id, err := p.api.UploadMedia(ctx, Media{
		FileName:    name,
		ContentType: contentType(name),
		Data:        data,
		Title:       MediaTitle(r),
	})
	if err != nil {
		p.tel.ReportWarning(report_publisher_upload_image, err, "sign", r.Sign.Canonical())
		return 0
	}
	return id
}

// Publish uploads the featured image (best effort) and creates the post.
func (p Publisher) Publish(ctx context.Context, r horoscope.Record) (Post, error) {
	if r.Rendered == "" {
		r.Refresh()
	}

	req := PostRequest{
		Title:         PostTitle(r),
		Content:       r.Rendered,
		Status:        p.opts.Status,
		FeaturedMedia: p.featuredImage(ctx, r),
	}
	if p.opts.CategoryID > 0 {
		req.Categories = []int{p.opts.CategoryID}
	}

	post, err := p.api.CreatePost(ctx, req)
	if err != nil {
		return Post{}, fmt.Errorf("publish %v %s: %w", r.Sign, r.DateString(), err)
	}
	return post, nil
}
