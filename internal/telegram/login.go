package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/tcnksm/go-input"
)

// Prompter asks the operator for a value, *input.UI implements it.
type Prompter interface {
	Ask(query string, opts *input.Options) (string, error)
}

// terminalAuth drives the phone code / two factor flow through prompts.
type terminalAuth struct {
	phone string
	ui    Prompter
}

func (a terminalAuth) Phone(_ context.Context) (string, error) {
	if a.phone != "" {
		return a.phone, nil
	}
	phone, err := a.ui.Ask("phone number (international format):", &input.Options{Required: true, Loop: true})
	return strings.TrimSpace(phone), err
}

func (a terminalAuth) Password(_ context.Context) (string, error) {
	return a.ui.Ask("two factor password:", &input.Options{Required: true, Loop: true, Mask: true})
}

func (a terminalAuth) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	code, err := a.ui.Ask("login code:", &input.Options{Required: true, Loop: true})
	return strings.TrimSpace(code), err
}

func (a terminalAuth) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (a terminalAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("this phone number has no telegram account, sign up with an official app first")
}

// Login runs the interactive login flow and stores the session file. It is a
// no-op if the stored session is already authorized.
func (c *Client) Login(ctx context.Context, ui Prompter) error {
	client := c.newClient()
	err := client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(terminalAuth{phone: c.opts.Phone, ui: ui}, auth.SendCodeOptions{})
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return err
		}
		self, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("get self: %w", err)
		}
		c.tel.ReportDebug("logged in", "user_id", self.ID, "username", self.Username)
		return nil
	})
	if err != nil {
		return fmt.Errorf("telegram: login: %w", err)
	}
	return nil
}
