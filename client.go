// SPDX-License-Identifier: GPL-3.0-or-later

package isavail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
)

// Errors emitted by [*Client].
var (
	// ErrRetriesExhausted means that no usable response arrived
	// after sending the query [Config.MaxRetries] times.
	ErrRetriesExhausted = errors.New("no response")

	// ErrCorrelationMismatch means that a response refers to another
	// query. The client discards such responses and keeps waiting.
	ErrCorrelationMismatch = errors.New("response does not match the query ID")
)

// HandshakeName is the domain name queried by [*Client.Handshake].
const HandshakeName = "registro.br"

// Client queries the availability service.
//
// Construct using [NewClient]. A client handles one query at a
// time and is not safe for concurrent use.
//
// The client only accepts datagrams whose source is the configured server
// address and port. A server replying from another address (e.g., a
// multi-homed host) is never heard and queries fail with [ErrRetriesExhausted].
type Client struct {
	cfg    Config
	store  SessionStore
	logger *zap.Logger
	cookie string
}

// NewClient returns a new [*Client] using the given config, session store
// and logger. The cookie is loaded from the store; when it cannot be
// loaded the client starts with [NoCookie].
//
// A nil store means a fresh [*MemorySessionStore]. A nil logger
// means [zap.NewNop].
func NewClient(cfg Config, store SessionStore, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = &MemorySessionStore{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cookie := NoCookie
	stored, err := store.Load()
	switch {
	case err != nil:
		logger.Debug("no stored cookie, handshake required", zap.Error(err))
	case sessionNormalize(stored) != "":
		cookie = sessionNormalize(stored)
	}

	c := &Client{
		cfg:    cfg,
		store:  store,
		logger: logger,
		cookie: cookie,
	}
	return c, nil
}

// Cookie returns the current session cookie.
func (c *Client) Cookie() string {
	return c.cookie
}

// NeedsHandshake returns whether the client does not have a cookie yet.
func (c *Client) NeedsHandshake() bool {
	return c.cookie == NoCookie
}

// Handshake obtains a cookie by querying [HandshakeName] with [NoCookie].
// It does nothing when the client already has a cookie.
func (c *Client) Handshake(ctx context.Context) error {
	if !c.NeedsHandshake() {
		return nil
	}
	resp, err := c.Query(ctx, HandshakeName)
	if err != nil {
		return err
	}
	c.logger.Debug("handshake complete",
		zap.String("queryID", resp.QueryID),
		zap.Bool("renewed", resp.IsCookieRenewal()))
	return nil
}

// Query sends a query for fqdn and returns the response.
//
// When the server renews the cookie, the new cookie is saved and, unless
// the client had no cookie, the query is sent again once with the new
// cookie. The returned error wraps [ErrRetriesExhausted] when the server
// does not answer, or [ErrInvalidName] when fqdn is empty.
func (c *Client) Query(ctx context.Context, fqdn string) (*Response, error) {
	query, err := NewQuery(c.cfg, c.cookie, fqdn)
	if err != nil {
		return nil, err
	}
	if _, err := nameToASCII(query.FQDN); err != nil {
		c.logger.Debug("querying a name the server will likely reject",
			zap.String("fqdn", query.FQDN), zap.Error(err))
	}
	return c.exchange(ctx, query)
}

// exchange owns the socket for the query and its possible re-issue.
func (c *Client) exchange(ctx context.Context, query *Query) (*Response, error) {
	raddr, err := net.ResolveUDPAddr("udp", c.cfg.address())
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", c.cfg.address(), err)
	}
	network := "udp6"
	if raddr.IP.To4() != nil {
		network = "udp4"
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, network, "")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Unblock a pending read as soon as the context is done.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for reissued := false; ; reissued = true {
		resp, err := c.roundTrip(ctx, conn, raddr, query)
		if err != nil {
			return nil, err
		}
		if !resp.IsCookieRenewal() {
			return resp, nil
		}
		c.renewCookie(resp.Cookie)
		if query.Cookie == NoCookie || reissued {
			return resp, nil
		}
		c.logger.Debug("cookie renewed, sending query again", zap.String("fqdn", query.FQDN))
		query = query.reissue(c.cookie)
	}
}

// roundTrip sends the query, escalating the timeout and resending on
// timeout, until it receives a decodable response matching the query.
func (c *Client) roundTrip(ctx context.Context, conn net.PacketConn, raddr *net.UDPAddr, query *Query) (*Response, error) {
	payload := query.Bytes()
	queryID := query.IDString()
	buffer := make([]byte, MaxDatagramSize)
	logger := c.logger.With(zap.String("fqdn", query.FQDN), zap.String("queryID", queryID))

	var timeout time.Duration
	attempts := 0
	resend := true
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if resend {
			resend = false
			attempts++
			if attempts > c.cfg.MaxRetries {
				return nil, fmt.Errorf("%w after %d attempts", ErrRetriesExhausted, c.cfg.MaxRetries)
			}
			logger.Debug("sending query", zap.Int("attempt", attempts), zap.Stringer("server", raddr))
			if _, err := conn.WriteTo(payload, raddr); err != nil {
				return nil, err
			}
		}

		timeout += c.cfg.RetryTimeout
		deadline := time.Now().Add(timeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}

		// The context may have been done while we were setting the deadline,
		// in which case we just overwrote the deadline set on cancellation.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		count, addr, err := conn.ReadFrom(buffer)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				logger.Debug("timeout waiting for response", zap.Duration("timeout", timeout))
				resend = true
				continue
			}
			return nil, err
		}

		if !clientSameAddr(addr, raddr) {
			logger.Debug("discarding datagram from unexpected peer", zap.Stringer("peer", addr))
			continue
		}

		resp, err := ParseResponse(buffer[:count])
		if err != nil {
			logger.Debug("discarding undecodable response", zap.Error(err))
			continue
		}

		if resp.QueryID != queryID && resp.Status != StatusServerError {
			logger.Debug("discarding response",
				zap.Error(ErrCorrelationMismatch),
				zap.String("responseID", resp.QueryID))
			continue
		}

		return resp, nil
	}
}

// renewCookie adopts the cookie and saves it. Failing to save only
// affects future clients, so we log and continue.
func (c *Client) renewCookie(cookie string) {
	c.cookie = cookie
	if err := c.store.Save(cookie); err != nil {
		c.logger.Warn("cannot save cookie", zap.Error(err))
	}
}

func clientSameAddr(addr net.Addr, raddr *net.UDPAddr) bool {
	udpAddr, ok := addr.(*net.UDPAddr)
	return ok && udpAddr.Port == raddr.Port && udpAddr.IP.Equal(raddr.IP)
}
