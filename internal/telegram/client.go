// Package telegram reads channel history through an MTProto user session.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"horoscope-relay/internal/components/assert"
	"horoscope-relay/internal/components/telemetry"
	"horoscope-relay/internal/relay"

	"github.com/gotd/td/session"
	gotelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message/peer"
	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	report_client_session = "client.session"
	report_client_resolve = "client.resolve"
)

// ErrUnauthorized is returned by Session when the stored session is not
// logged in. Run the login command to create one.
var ErrUnauthorized = errors.New("telegram session is not authorized")

type Options struct {
	AppID       int
	AppHash     string
	Phone       string
	SessionFile string
	// Keyword, when set, blanks the text of messages that do not contain it
	// so they are skipped without affecting the date bounds.
	Keyword string
}

// Client opens short lived sessions. Resolved channels are cached across
// sessions since access hashes are stable for a given account.
type Client struct {
	opts  Options
	tel   telemetry.API
	peers *expirable.LRU[string, tg.InputPeerClass]
}

func NewClient(opts Options, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)

	if opts.AppID == 0 || opts.AppHash == "" {
		return nil, fmt.Errorf("telegram: api id and api hash are required")
	}
	if opts.SessionFile == "" {
		return nil, fmt.Errorf("telegram: session file is required")
	}

	return &Client{
		opts:  opts,
		tel:   telemetry.NewScopedAPI("telegram", tel),
		peers: expirable.NewLRU[string, tg.InputPeerClass](256, nil, time.Hour*24),
	}, nil
}

func (c *Client) newClient() *gotelegram.Client {
	return gotelegram.NewClient(c.opts.AppID, c.opts.AppHash, gotelegram.Options{
		SessionStorage: &session.FileStorage{Path: c.opts.SessionFile},
		NoUpdates:      true,
	})
}

// Session connects with the stored session, checks that it is authorized,
// calls fn and disconnects once fn returns.
func (c *Client) Session(ctx context.Context, fn func(ctx context.Context, reader relay.ChannelReader) error) error {
	client := c.newClient()

	var fnErr error
	err := client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized {
			return ErrUnauthorized
		}
		c.tel.ReportDebug("session opened")

		fnErr = fn(ctx, reader{api: client.API(), client: c})
		return fnErr
	})
	if err == nil {
		return nil
	}
	if fnErr == nil && ctx.Err() == nil {
		c.tel.ReportBroken(report_client_session, err)
	}
	return fmt.Errorf("telegram: %w", err)
}

// normalizeHandle accepts "@name", "name" and t.me links.
func normalizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	for _, prefix := range []string{"https://", "http://"} {
		handle = strings.TrimPrefix(handle, prefix)
	}
	handle = strings.TrimPrefix(handle, "t.me/")
	handle = strings.TrimPrefix(handle, "telegram.me/")
	handle = strings.TrimPrefix(handle, "@")
	handle = strings.TrimSuffix(handle, "/")
	return strings.ToLower(handle)
}

type reader struct {
	api    *tg.Client
	client *Client
}

func (r reader) Resolve(ctx context.Context, handle string) (relay.Channel, error) {
	domain := normalizeHandle(handle)
	if domain == "" {
		return relay.Channel{}, fmt.Errorf("empty handle: %w", relay.ErrChannelNotFound)
	}
	if cached, ok := r.client.peers.Get(domain); ok {
		return relay.Channel{Handle: handle, Ref: cached}, nil
	}

	inputPeer, err := peer.DefaultResolver(r.api).ResolveDomain(ctx, domain)
	if tgerr.Is(err, "USERNAME_NOT_OCCUPIED", "USERNAME_INVALID", "CHANNEL_PRIVATE") {
		return relay.Channel{}, fmt.Errorf("%s: %w", handle, relay.ErrChannelNotFound)
	}
	if err != nil {
		r.client.tel.ReportWarning(report_client_resolve, err, "channel", handle)
		return relay.Channel{}, fmt.Errorf("resolve %s: %w", handle, err)
	}

	r.client.peers.Add(domain, inputPeer)
	return relay.Channel{Handle: handle, Ref: inputPeer}, nil
}

func (r reader) History(ctx context.Context, channel relay.Channel, visit func(relay.Message) bool) error {
	inputPeer, ok := channel.Ref.(tg.InputPeerClass)
	if !ok {
		return fmt.Errorf("channel %s was not resolved by this reader", channel.Handle)
	}

	iter := query.Messages(r.api).GetHistory(inputPeer).BatchSize(100).Iter()
	for iter.Next(ctx) {
		msg, ok := iter.Value().Msg.(*tg.Message)
		if !ok {
			// service messages (pins, title changes) carry no text
			continue
		}
		if !visit(r.client.toMessage(msg)) {
			return nil
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("history %s: %w", channel.Handle, err)
	}
	return nil
}

func (c *Client) toMessage(msg *tg.Message) relay.Message {
	text := msg.Message
	if c.opts.Keyword != "" && !strings.Contains(text, c.opts.Keyword) {
		text = ""
	}
	return relay.Message{
		ID:   msg.ID,
		Text: text,
		Time: time.Unix(int64(msg.Date), 0),
	}
}
