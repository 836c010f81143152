// SPDX-License-Identifier: GPL-3.0-or-later

package isavail

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Errors emitted by [ParseResponse].
var (
	// ErrDecode indicates that a response does not follow the grammar.
	ErrDecode = errors.New("cannot decode availability response")

	// ErrTruncated indicates that a response ended while we were
	// still expecting a mandatory line. It wraps [ErrDecode].
	ErrTruncated = fmt.Errorf("%w: truncated response", ErrDecode)
)

// Response is a decoded availability response.
//
// Construct a new instance using [ParseResponse].
type Response struct {
	// Status is the response status or [StatusNone] for a cookie renewal.
	Status Status

	// QueryID is the ID of the query this response refers to.
	QueryID string

	// FQDN is the domain name the response refers to.
	FQDN string

	// ACE is the OPTIONAL ASCII compatible encoding of FQDN.
	ACE string

	// Cookie is the renewed session cookie, set only for cookie renewals.
	Cookie string

	// Detail contains the status specific fields. It is nil
	// for cookie renewals.
	Detail Detail

	// Raw is the raw response text.
	Raw string
}

// IsCookieRenewal returns whether the server issued a new cookie.
func (r *Response) IsCookieRenewal() bool {
	return r.Cookie != ""
}

// ASCIIName returns the ACE form of the domain name. When the server
// did not send it, we IDNA encode FQDN ourselves, falling back to FQDN
// itself if it cannot be encoded.
func (r *Response) ASCIIName() string {
	if r.ACE != "" {
		return r.ACE
	}
	if punyName, err := nameToASCII(r.FQDN); err == nil {
		return punyName
	}
	return r.FQDN
}

// ParseResponse decodes a response datagram.
//
// Blank lines and comment lines (starting with %) are skipped until
// the first meaningful line. On failure, the returned error wraps
// [ErrDecode]. Parsing does not depend on any state but data.
func ParseResponse(data []byte) (*Response, error) {
	p := &responseParser{
		lines: bufio.NewScanner(bytes.NewReader(data)),
		resp:  &Response{Status: StatusNone, Raw: string(data)},
	}
	for state := responseStateStart; state != nil; {
		next, err := state(p)
		if err != nil {
			return nil, err
		}
		state = next
	}
	return p.resp, nil
}

// responseParser carries the status and the fields collected so far
// across the line reads of the state machine.
type responseParser struct {
	lines       *bufio.Scanner
	resp        *Response
	tickets     []int
	nameservers []string
	suggestions []string
	expiration  string
	publication string
	message     string
	start, end  string
}

// responseStateFn is a state of the parser. It returns the next state, or
// nil once the response is complete.
type responseStateFn func(p *responseParser) (responseStateFn, error)

func (p *responseParser) next() (string, bool) {
	if !p.lines.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.lines.Text()), true
}

func (p *responseParser) mandatory(what string) (string, error) {
	line, ok := p.next()
	if !ok {
		return "", fmt.Errorf("%w: missing %s line", ErrTruncated, what)
	}
	return line, nil
}

func responseStateStart(p *responseParser) (responseStateFn, error) {
	var line string
	for {
		var ok bool
		if line, ok = p.next(); !ok {
			return nil, fmt.Errorf("%w: missing status line", ErrTruncated)
		}
		if line != "" && !strings.HasPrefix(line, "%") {
			break
		}
	}

	tokens := strings.Fields(line)
	switch tokens[0] {
	case "CK":
		if len(tokens) < 3 {
			return nil, fmt.Errorf("%w: malformed cookie line %q", ErrDecode, line)
		}
		cookie := tokens[1]
		if len(cookie) > CookieMaxLength {
			cookie = cookie[:CookieMaxLength]
		}
		p.resp.Cookie = cookie
		p.resp.QueryID = tokens[2]
		return nil, nil

	case "ST":
		if len(tokens) < 2 {
			return nil, fmt.Errorf("%w: malformed status line %q", ErrDecode, line)
		}
		code, err := strconv.Atoi(tokens[1])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid status %q", ErrDecode, tokens[1])
		}
		p.resp.Status = Status(code)
		if len(tokens) >= 3 {
			p.resp.QueryID = tokens[2]
		}
		if p.resp.Status == StatusServerError {
			return responseStateServerError, nil
		}
		if len(tokens) < 3 {
			return nil, fmt.Errorf("%w: missing query ID in %q", ErrDecode, line)
		}
		return responseStateFQDN, nil

	default:
		return nil, fmt.Errorf("%w: unexpected line %q", ErrDecode, line)
	}
}

func responseStateServerError(p *responseParser) (responseStateFn, error) {
	line, err := p.mandatory("error message")
	if err != nil {
		return nil, err
	}
	p.resp.Detail = ServerError{Message: line}
	return nil, nil
}

func responseStateFQDN(p *responseParser) (responseStateFn, error) {
	line, err := p.mandatory("domain name")
	if err != nil {
		return nil, err
	}
	words := strings.Split(line, "|")
	switch len(words) {
	case 1:
		p.resp.FQDN = words[0]
	case 2:
		p.resp.FQDN, p.resp.ACE = words[0], words[1]
	default:
		return nil, fmt.Errorf("%w: malformed domain name line %q", ErrDecode, line)
	}

	switch p.resp.Status {
	case StatusAvailable, StatusReleaseWaiting:
		return responseStateDone, nil
	case StatusAvailableWithTickets:
		return responseStateTickets, nil
	case StatusRegistered:
		return responseStateRegistered, nil
	case StatusUnavailable, StatusInvalidQuery:
		return responseStateMessage, nil
	case StatusReleaseInProgress, StatusReleaseInProgressWithTickets:
		return responseStateRelease, nil
	default:
		return nil, fmt.Errorf("%w: unknown status %d", ErrDecode, int(p.resp.Status))
	}
}

func responseStateTickets(p *responseParser) (responseStateFn, error) {
	line, err := p.mandatory("tickets")
	if err != nil {
		return nil, err
	}
	tickets, err := responseParseTickets(line)
	if err != nil {
		return nil, err
	}
	p.tickets = tickets
	return responseStateDone, nil
}

func responseStateRegistered(p *responseParser) (responseStateFn, error) {
	line, err := p.mandatory("registration")
	if err != nil {
		return nil, err
	}
	words := strings.Split(line, "|")
	if len(words) < 2 {
		return nil, fmt.Errorf("%w: malformed registration line %q", ErrDecode, line)
	}
	p.expiration = words[0]
	p.publication = words[1]
	p.nameservers = append([]string{}, words[2:]...)
	return responseStateSuggestions, nil
}

func responseStateMessage(p *responseParser) (responseStateFn, error) {
	line, err := p.mandatory("message")
	if err != nil {
		return nil, err
	}
	p.message = line
	if p.resp.Status == StatusUnavailable {
		return responseStateSuggestions, nil
	}
	return responseStateDone, nil
}

// responseStateSuggestions reads the optional suggestions line.
func responseStateSuggestions(p *responseParser) (responseStateFn, error) {
	line, ok := p.next()
	if !ok || line == "" {
		return responseStateDone, nil
	}
	for _, s := range strings.Split(line, "|") {
		p.suggestions = append(p.suggestions, s+".br")
	}
	return responseStateDone, nil
}

func responseStateRelease(p *responseParser) (responseStateFn, error) {
	line, err := p.mandatory("release process")
	if err != nil {
		return nil, err
	}
	dates := strings.Split(line, "|")
	if len(dates) != 2 {
		return nil, fmt.Errorf("%w: malformed release process line %q", ErrDecode, line)
	}
	p.start, p.end = dates[0], dates[1]
	if p.resp.Status == StatusReleaseInProgressWithTickets {
		return responseStateTickets, nil
	}
	return responseStateDone, nil
}

// responseStateDone attaches the detail matching the status.
func responseStateDone(p *responseParser) (responseStateFn, error) {
	switch p.resp.Status {
	case StatusAvailable:
		p.resp.Detail = Available{}
	case StatusAvailableWithTickets:
		p.resp.Detail = AvailableWithTickets{Tickets: p.tickets}
	case StatusRegistered:
		p.resp.Detail = Registered{
			Expiration:  p.expiration,
			Publication: p.publication,
			Nameservers: p.nameservers,
			Suggestions: p.suggestions,
		}
	case StatusUnavailable:
		p.resp.Detail = Unavailable{Message: p.message, Suggestions: p.suggestions}
	case StatusInvalidQuery:
		p.resp.Detail = InvalidQuery{Message: p.message}
	case StatusReleaseWaiting:
		p.resp.Detail = ReleaseWaiting{}
	case StatusReleaseInProgress:
		p.resp.Detail = ReleaseInProgress{Start: p.start, End: p.end}
	case StatusReleaseInProgressWithTickets:
		p.resp.Detail = ReleaseInProgressWithTickets{Start: p.start, End: p.end, Tickets: p.tickets}
	}
	return nil, nil
}

func responseParseTickets(line string) ([]int, error) {
	words := strings.Split(line, "|")
	tickets := make([]int, 0, len(words))
	for _, w := range words {
		t, err := strconv.Atoi(w)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid ticket %q", ErrDecode, w)
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

// String returns a human readable report of the response.
func (r *Response) String() string {
	if r.Detail == nil {
		if r.Raw != "" {
			return r.Raw
		}
		return "No response"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Query ID: %s\n", r.QueryID)
	fmt.Fprintf(&b, "Domain name: %s\n", r.FQDN)
	fmt.Fprintf(&b, "Response Status: %d (%s)\n", int(r.Status), r.Status)

	switch d := r.Detail.(type) {
	case AvailableWithTickets:
		responseWriteTickets(&b, d.Tickets)

	case Registered:
		if d.Expiration == "0" {
			b.WriteString("Expiration Date: Exempt from payment\n")
		} else {
			fmt.Fprintf(&b, "Expiration Date: %s\n", d.Expiration)
		}
		fmt.Fprintf(&b, "Publication Status: %s\n", d.Publication)
		b.WriteString("Nameservers:\n")
		for _, ns := range d.Nameservers {
			fmt.Fprintf(&b, "  %s\n", ns)
		}
		responseWriteSuggestions(&b, d.Suggestions)

	case Unavailable:
		fmt.Fprintf(&b, "Additional Message: %s\n", d.Message)
		responseWriteSuggestions(&b, d.Suggestions)

	case InvalidQuery:
		fmt.Fprintf(&b, "Additional Message: %s\n", d.Message)

	case ReleaseInProgress:
		responseWriteRelease(&b, d.Start, d.End)

	case ReleaseInProgressWithTickets:
		responseWriteRelease(&b, d.Start, d.End)
		responseWriteTickets(&b, d.Tickets)

	case ServerError:
		fmt.Fprintf(&b, "Additional Message: %s\n", d.Message)
	}
	return b.String()
}

func responseWriteTickets(b *strings.Builder, tickets []int) {
	b.WriteString("Tickets:\n")
	for _, t := range tickets {
		fmt.Fprintf(b, "  %d\n", t)
	}
}

func responseWriteSuggestions(b *strings.Builder, suggestions []string) {
	if len(suggestions) <= 0 {
		return
	}
	b.WriteString("Suggestions:")
	for _, s := range suggestions {
		b.WriteString(" " + s)
	}
	b.WriteString("\n")
}

func responseWriteRelease(b *strings.Builder, start, end string) {
	b.WriteString("Release Process:\n")
	fmt.Fprintf(b, "  Start date: %s\n", start)
	fmt.Fprintf(b, "  End date:   %s\n", end)
}
