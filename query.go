// SPDX-License-Identifier: GPL-3.0-or-later

package isavail

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

const (
	// CookieMaxLength is the maximum length of a session cookie.
	CookieMaxLength = 20

	// NoCookie is the cookie we send when we don't have a session yet.
	//
	// The server replies to a query carrying this cookie with a fresh one.
	NoCookie = "00000000000000000000"
)

// ErrInvalidName indicates that the domain name is empty.
//
// Any other name is sent as given: judging its syntax is up to the
// server, which answers with [StatusInvalidQuery].
var ErrInvalidName = errors.New("invalid domain name")

// Query is an availability query.
//
// Construct using [NewQuery]. The [*Client] never modifies a query once
// built: a resend with a renewed cookie uses a new query.
type Query struct {
	// ProxiedIP is the OPTIONAL address of the client being proxied.
	ProxiedIP string

	// Version is the protocol version.
	Version int

	// Cookie is the MANDATORY session cookie.
	Cookie string

	// Language selects the language of server messages.
	Language Language

	// ID is the query ID used to correlate the response.
	ID uint32

	// FQDN is the MANDATORY domain name to query.
	FQDN string

	// Suggest asks for alternative names. Only sent when Version > 0.
	Suggest bool
}

// NewQuery constructs a new [*Query] for fqdn using the given config and
// session cookie. The query ID is randomized.
//
// Surrounding whitespace is removed from fqdn. An empty fqdn causes
// an error wrapping [ErrInvalidName].
func NewQuery(cfg Config, cookie, fqdn string) (*Query, error) {
	fqdn = strings.TrimSpace(fqdn)
	if fqdn == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	q := &Query{
		ProxiedIP: cfg.ProxiedIP,
		Version:   cfg.Version,
		Cookie:    cookie,
		Language:  cfg.Language,
		ID:        newQueryID(),
		FQDN:      fqdn,
		Suggest:   cfg.Suggest,
	}
	return q, nil
}

// Clone returns a deep copy of the query.
func (q *Query) Clone() *Query {
	return &Query{
		ProxiedIP: q.ProxiedIP,
		Version:   q.Version,
		Cookie:    q.Cookie,
		Language:  q.Language,
		ID:        q.ID,
		FQDN:      q.FQDN,
		Suggest:   q.Suggest,
	}
}

// reissue returns a copy of the query using the given cookie and a new ID.
func (q *Query) reissue(cookie string) *Query {
	clone := q.Clone()
	clone.Cookie = cookie
	clone.ID = newQueryID()
	return clone
}

// IDString returns the query ID as it appears on the wire.
func (q *Query) IDString() string {
	return strconv.FormatUint(uint64(q.ID), 10)
}

// String returns the wire representation of the query.
func (q *Query) String() string {
	var b strings.Builder
	if q.ProxiedIP != "" {
		b.WriteString("[" + q.ProxiedIP + "] ")
	}
	fields := []string{
		strconv.Itoa(q.Version),
		q.Cookie,
		strconv.Itoa(int(q.Language)),
		q.IDString(),
		q.FQDN,
	}
	if q.Version > 0 {
		fields = append(fields, queryFlag(q.Suggest))
	}
	b.WriteString(strings.Join(fields, " "))
	return b.String()
}

// Bytes returns the datagram payload for the query.
func (q *Query) Bytes() []byte {
	return []byte(q.String())
}

func queryFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// newQueryID returns a random 32 bit query ID.
func newQueryID() uint32 {
	return uint32(dns.Id())<<16 | uint32(dns.Id())
}

// nameToASCII returns the ACE form of name or an error if name is
// not a valid, possibly internationalized, domain name.
func nameToASCII(name string) (string, error) {
	punyName, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return "", err
	}
	if _, ok := dns.IsDomainName(punyName); !ok {
		return "", fmt.Errorf("invalid domain name %q", punyName)
	}
	return punyName, nil
}
