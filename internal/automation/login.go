package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/IshaanNene/TrendGoat/internal/config"
	"github.com/IshaanNene/TrendGoat/internal/fetcher"
	"github.com/IshaanNene/TrendGoat/internal/types"
)

// LoginState is a step of the login sequence.
type LoginState int

const (
	AwaitingHandle LoginState = iota
	AwaitingVerification
	AwaitingPassword
	AwaitingHomeRedirect
	Authenticated
)

func (s LoginState) String() string {
	switch s {
	case AwaitingHandle:
		return "awaiting_handle"
	case AwaitingVerification:
		return "awaiting_verification"
	case AwaitingPassword:
		return "awaiting_password"
	case AwaitingHomeRedirect:
		return "awaiting_home_redirect"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Credentials holds the three values the login form asks for.
type Credentials struct {
	Handle           string
	VerificationName string
	Password         string
}

// Authenticator drives the login form of an already-open page.
type Authenticator struct {
	cfg       *config.LoginConfig
	creds     Credentials
	home      *regexp.Regexp
	pollEvery time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *slog.Logger
}

// NewAuthenticator creates an Authenticator from the login configuration.
func NewAuthenticator(cfg *config.LoginConfig, logger *slog.Logger) (*Authenticator, error) {
	home, err := regexp.Compile(cfg.HomePattern)
	if err != nil {
		return nil, fmt.Errorf("compile home pattern: %w", err)
	}
	return &Authenticator{
		cfg: cfg,
		creds: Credentials{
			Handle:           cfg.Handle,
			VerificationName: cfg.VerificationName,
			Password:         cfg.Password,
		},
		home:      home,
		pollEvery: 250 * time.Millisecond,
		sleep:     sleepCtx,
		logger:    logger.With("component", "authenticator"),
	}, nil
}

// Login fills the handle, the optional verification prompt and the password,
// then waits for the home page. A failure is a KindAuthTimeout error naming
// the state it happened in.
func (a *Authenticator) Login(ctx context.Context, page fetcher.Page) error {
	state := AwaitingHandle
	fail := func(err error) error {
		a.logger.Warn("login failed", "state", state, "error", err)
		return types.NewError(types.KindAuthTimeout, state.String(), err)
	}

	handleSel := fetcher.CSS(a.cfg.HandleSelector)
	if err := a.fill(ctx, page, handleSel, a.creds.Handle, a.cfg.HandleTimeout); err != nil {
		return fail(err)
	}

	if err := a.sleep(ctx, a.cfg.SettleDelay); err != nil {
		return fail(err)
	}

	// The site sometimes asks for the account name again before the password.
	state = AwaitingVerification
	if a.creds.VerificationName == "" {
		a.logger.Warn("no verification name configured, not answering a verification prompt")
	} else {
		err := a.fill(ctx, page, handleSel, a.creds.VerificationName, a.cfg.VerificationTimeout)
		switch {
		case err == nil:
			a.logger.Info("verification prompt answered")
		case errors.Is(err, types.ErrTimeout) || errors.Is(err, types.ErrNotFound):
			a.logger.Info("no verification prompt")
		default:
			return fail(err)
		}
	}

	state = AwaitingPassword
	if err := a.fill(ctx, page, fetcher.CSS(a.cfg.PasswordSelector), a.creds.Password, a.cfg.PasswordTimeout); err != nil {
		return fail(err)
	}

	state = AwaitingHomeRedirect
	if err := a.waitHome(ctx, page); err != nil {
		return fail(err)
	}

	state = Authenticated
	a.logger.Info("login successful", "state", state)
	return nil
}

// fill waits up to timeout for sel, types value and presses Enter.
func (a *Authenticator) fill(ctx context.Context, page fetcher.Page, sel fetcher.Selector, value string, timeout time.Duration) error {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := page.Element(stepCtx, sel)
	if err != nil {
		return err
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("type into %s: %w", sel, err)
	}
	if err := el.Submit(); err != nil {
		return fmt.Errorf("submit %s: %w", sel, err)
	}
	return nil
}

// waitHome polls the page URL until it matches the home pattern.
func (a *Authenticator) waitHome(ctx context.Context, page fetcher.Page) error {
	stepCtx, cancel := context.WithTimeout(ctx, a.cfg.HomeTimeout)
	defer cancel()

	for {
		u, err := page.URL(stepCtx)
		if err == nil && a.home.MatchString(u) {
			return nil
		}
		if err := a.sleep(stepCtx, a.pollEvery); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%w waiting for URL matching %q (last %q)", types.ErrTimeout, a.home, u)
			}
			return err
		}
	}
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
