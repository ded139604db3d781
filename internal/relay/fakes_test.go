package relay

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"horoscope-relay/internal/components/chrono"
	"horoscope-relay/internal/components/telemetry"
	"horoscope-relay/internal/horoscope"
	"horoscope-relay/internal/store"
	"horoscope-relay/internal/wordpress"

	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	channels map[string][]Message
	// failAfter makes History fail once this many messages were visited.
	failAfter int
	visited   int
}

func (r *fakeReader) Resolve(ctx context.Context, handle string) (Channel, error) {
	if _, ok := r.channels[handle]; !ok {
		return Channel{}, fmt.Errorf("%s: %w", handle, ErrChannelNotFound)
	}
	return Channel{Handle: handle}, nil
}

func (r *fakeReader) History(ctx context.Context, channel Channel, visit func(Message) bool) error {
	for _, msg := range r.channels[channel.Handle] {
		if r.failAfter > 0 && r.visited >= r.failAfter {
			return fmt.Errorf("FLOOD_WAIT")
		}
		r.visited++
		if !visit(msg) {
			return nil
		}
	}
	return nil
}

type fakeSource struct {
	mu       sync.Mutex
	reader   *fakeReader
	err      error
	sessions int
	// block, when set, is waited on inside the session.
	block chan struct{}
}

func (s *fakeSource) Session(ctx context.Context, fn func(ctx context.Context, reader ChannelReader) error) error {
	s.mu.Lock()
	s.sessions++
	err := s.err
	block := s.block
	s.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return err
	}
	return fn(ctx, s.reader)
}

func (s *fakeSource) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

type fakePublisher struct {
	mu        sync.Mutex
	fail      map[horoscope.Sign]bool
	published []horoscope.Record
}

func (p *fakePublisher) Publish(ctx context.Context, r horoscope.Record) (wordpress.Post, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[r.Sign] {
		return wordpress.Post{}, &wordpress.StatusError{Status: 500, Body: "boom"}
	}
	p.published = append(p.published, r)
	return wordpress.Post{ID: len(p.published), Link: fmt.Sprintf("https://example.com/?p=%d", len(p.published))}, nil
}

type harness struct {
	clock     *chrono.Fake
	tel       *telemetry.Recorder
	publisher *fakePublisher
	ledger    store.Ledger
	backups   store.BackupDir
	status    store.StatusFile
	scraper   Scraper
}

func baghdad(t *testing.T) *time.Location {
	loc, err := time.LoadLocation(chrono.Zone)
	require.NoError(t, err)
	return loc
}

func newHarness(t *testing.T, opts ScrapeOptions) *harness {
	loc := baghdad(t)
	clock := chrono.NewFake(time.Date(2024, time.March, 5, 10, 0, 0, 0, loc))
	tel := &telemetry.Recorder{}

	db, err := store.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dataDir := t.TempDir()
	h := &harness{
		clock:     clock,
		tel:       tel,
		publisher: &fakePublisher{fail: map[horoscope.Sign]bool{}},
		ledger:    store.NewLedger(db),
		backups:   store.NewBackupDir(filepath.Join(dataDir, "backups"), loc),
		status:    store.NewStatusFile(dataDir, loc, tel),
	}
	h.scraper = NewScraper(ScraperDeps{
		Extractor: horoscope.NewExtractor(tel, clock),
		Publisher: h.publisher,
		Ledger:    h.ledger,
		Clock:     clock,
		Tel:       tel,
	}, opts)
	return h
}

func (h *harness) orchestrator(source Source, channels ...string) *Orchestrator {
	return NewOrchestrator(OrchestratorDeps{
		Source:  source,
		Scraper: h.scraper,
		Status:  h.status,
		Backups: h.backups,
		Clock:   h.clock,
		Tel:     h.tel,
	}, OrchestratorOptions{Channels: channels})
}

// post builds a channel post with a well formed segment for every sign.
func post(signs ...horoscope.Sign) string {
	var b strings.Builder
	b.WriteString("توقعات الأبراج اليوم\n")
	for _, s := range signs {
		fmt.Fprintf(&b, "#%s%s\nيوم جميل لمواليد %s\n●مهنيا 50 ●ماليا 60 ●عاطفيا 70\n", s.Local(), s.Glyph(), s.Local())
	}
	b.WriteString("@channel")
	return b.String()
}

// at returns a time on March 5th 2024 in Baghdad.
func at(t *testing.T, hour, minute int) time.Time {
	return time.Date(2024, time.March, 5, hour, minute, 0, 0, baghdad(t))
}
