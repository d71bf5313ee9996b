// Package imap implements the mailbox source on top of go-imap.
package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/core"
)

// Settings holds the mailbox connection parameters
type Settings struct {
	Host           string
	Port           int
	TLS            bool
	Username       string
	Password       string
	DialTimeout    time.Duration
	CommandTimeout time.Duration
}

// Source is a core.MailSource backed by one IMAP session. Only the client
// pointer swap is guarded; commands are issued by the monitor goroutine
// except for Noop.
type Source struct {
	settings Settings
	logger   *zap.Logger

	mu     sync.Mutex
	client *client.Client
}

// NewSource creates a disconnected source
func NewSource(settings Settings, logger *zap.Logger) *Source {
	if settings.Port == 0 {
		settings.Port = 993
	}
	if settings.DialTimeout == 0 {
		settings.DialTimeout = 30 * time.Second
	}
	return &Source{settings: settings, logger: logger}
}

// Connect dials the server and logs in
func (s *Source) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.settings.Host, strconv.Itoa(s.settings.Port))
	dialer := &net.Dialer{Timeout: s.settings.DialTimeout}

	var c *client.Client
	var err error
	if s.settings.TLS {
		c, err = client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: s.settings.Host})
	} else {
		c, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w: %w", addr, core.ErrTransport, err)
	}
	c.Timeout = s.settings.CommandTimeout

	if err := c.Login(s.settings.Username, s.settings.Password); err != nil {
		c.Logout()
		return fmt.Errorf("failed to log in as %s: %w", s.settings.Username, err)
	}

	s.mu.Lock()
	old := s.client
	s.client = c
	s.mu.Unlock()

	if old != nil {
		old.Terminate()
	}

	s.logger.Info("Connected to mailbox",
		zap.String("address", addr),
		zap.String("username", s.settings.Username),
		zap.Bool("tls", s.settings.TLS))
	return nil
}

// Reconnect drops the current session and logs in again
func (s *Source) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	old := s.client
	s.client = nil
	s.mu.Unlock()

	if old != nil {
		old.Terminate()
	}
	return s.Connect(ctx)
}

// Select opens folder read-write and returns its UIDVALIDITY
func (s *Source) Select(ctx context.Context, folder string) (uint32, error) {
	c, err := s.current(ctx)
	if err != nil {
		return 0, err
	}

	mbox, err := c.Select(folder, false)
	if err != nil {
		return 0, s.wrap(c, "select "+folder, err)
	}
	return mbox.UidValidity, nil
}

// SearchUnseen returns the UIDs of all messages without \Seen
func (s *Source) SearchUnseen(ctx context.Context) ([]uint32, error) {
	c, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	criteria := goimap.NewSearchCriteria()
	criteria.WithoutFlags = []string{goimap.SeenFlag}

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, s.wrap(c, "search", err)
	}
	return uids, nil
}

// Fetch returns the full message without setting \Seen
func (s *Source) Fetch(ctx context.Context, uid uint32) ([]byte, error) {
	c, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	seqset := new(goimap.SeqSet)
	seqset.AddNum(uid)
	section := &goimap.BodySectionName{Peek: true}
	items := []goimap.FetchItem{section.FetchItem()}

	messages := make(chan *goimap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	var raw []byte
	var readErr error
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, readErr = io.ReadAll(body)
	}

	if err := <-done; err != nil {
		return nil, s.wrap(c, fmt.Sprintf("fetch uid %d", uid), err)
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read uid %d: %w", uid, readErr)
	}
	if raw == nil {
		return nil, fmt.Errorf("message uid %d not found", uid)
	}
	return raw, nil
}

// MarkSeen adds \Seen to a message
func (s *Source) MarkSeen(ctx context.Context, uid uint32) error {
	c, err := s.current(ctx)
	if err != nil {
		return err
	}

	seqset := new(goimap.SeqSet)
	seqset.AddNum(uid)
	item := goimap.FormatFlagsOp(goimap.AddFlags, true)
	flags := []interface{}{goimap.SeenFlag}

	if err := c.UidStore(seqset, item, flags, nil); err != nil {
		return s.wrap(c, fmt.Sprintf("store uid %d", uid), err)
	}
	return nil
}

// Noop pokes the server. It may be called from any goroutine.
func (s *Source) Noop() error {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Noop()
}

// Logout ends the session
func (s *Source) Logout() error {
	s.mu.Lock()
	c := s.client
	s.client = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	if err := c.Logout(); err != nil {
		c.Terminate()
		return err
	}
	s.logger.Info("Logged out of mailbox")
	return nil
}

func (s *Source) current(ctx context.Context) (*client.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	c := s.client
	s.mu.Unlock()

	if c == nil {
		return nil, fmt.Errorf("%w: not connected", core.ErrTransport)
	}
	return c, nil
}

// wrap marks err as a transport failure when the session is gone
func (s *Source) wrap(c *client.Client, op string, err error) error {
	if isConnectionError(err) || c.State() == goimap.LogoutState {
		return fmt.Errorf("%s: %w: %w", op, core.ErrTransport, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConnectionError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, client.ErrNotLoggedIn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
