// SPDX-License-Identifier: GPL-3.0-or-later

package isavail

import "strconv"

// Status is the availability status returned by the server.
type Status int

const (
	// StatusNone marks a response without status, i.e., a cookie renewal.
	StatusNone Status = -1

	// StatusAvailable means the domain can be registered.
	StatusAvailable Status = 0

	// StatusAvailableWithTickets means the domain is available but there
	// are active registration tickets for it.
	StatusAvailableWithTickets Status = 1

	// StatusRegistered means the domain is already registered.
	StatusRegistered Status = 2

	// StatusUnavailable means the domain cannot be registered.
	StatusUnavailable Status = 3

	// StatusInvalidQuery means the server rejected the query.
	StatusInvalidQuery Status = 4

	// StatusReleaseWaiting means the domain waits for a release process.
	StatusReleaseWaiting Status = 5

	// StatusReleaseInProgress means the domain is in a release process.
	StatusReleaseInProgress Status = 6

	// StatusReleaseInProgressWithTickets is like [StatusReleaseInProgress]
	// but there are also active tickets.
	StatusReleaseInProgressWithTickets Status = 7

	// StatusServerError means the server failed to process the query.
	StatusServerError Status = 8
)

var statusNames = map[Status]string{
	StatusAvailable:                    "Available",
	StatusAvailableWithTickets:         "Available with active tickets",
	StatusRegistered:                   "Registered",
	StatusUnavailable:                  "Unavailable",
	StatusInvalidQuery:                 "Invalid query",
	StatusReleaseWaiting:               "Release process waiting",
	StatusReleaseInProgress:            "Release process in progress",
	StatusReleaseInProgressWithTickets: "Release process in progress with active tickets",
	StatusServerError:                  "Error",
}

// String returns the human readable name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	if s == StatusNone {
		return "None"
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// Detail contains the fields that only make sense for a given [Status].
//
// The set of implementations is closed: [Available], [AvailableWithTickets],
// [Registered], [Unavailable], [InvalidQuery], [ReleaseWaiting],
// [ReleaseInProgress], [ReleaseInProgressWithTickets] and [ServerError].
type Detail interface {
	// Status returns the status this detail belongs to.
	Status() Status

	sealed()
}

// Available is the [Detail] of [StatusAvailable].
type Available struct{}

// AvailableWithTickets is the [Detail] of [StatusAvailableWithTickets].
type AvailableWithTickets struct {
	// Tickets contains the active ticket IDs.
	Tickets []int
}

// Registered is the [Detail] of [StatusRegistered].
type Registered struct {
	// Expiration is the expiration date. The value "0" means the
	// domain is exempt from payment.
	Expiration string

	// Publication is the publication status of the domain.
	Publication string

	// Nameservers contains the delegated nameservers in order.
	Nameservers []string

	// Suggestions contains alternative names, if requested.
	Suggestions []string
}

// Unavailable is the [Detail] of [StatusUnavailable].
type Unavailable struct {
	Message     string
	Suggestions []string
}

// InvalidQuery is the [Detail] of [StatusInvalidQuery].
type InvalidQuery struct {
	Message string
}

// ReleaseWaiting is the [Detail] of [StatusReleaseWaiting].
type ReleaseWaiting struct{}

// ReleaseInProgress is the [Detail] of [StatusReleaseInProgress].
type ReleaseInProgress struct {
	Start string
	End   string
}

// ReleaseInProgressWithTickets is the [Detail] of [StatusReleaseInProgressWithTickets].
type ReleaseInProgressWithTickets struct {
	Start   string
	End     string
	Tickets []int
}

// ServerError is the [Detail] of [StatusServerError].
type ServerError struct {
	Message string
}

func (Available) Status() Status                    { return StatusAvailable }
func (AvailableWithTickets) Status() Status         { return StatusAvailableWithTickets }
func (Registered) Status() Status                   { return StatusRegistered }
func (Unavailable) Status() Status                  { return StatusUnavailable }
func (InvalidQuery) Status() Status                 { return StatusInvalidQuery }
func (ReleaseWaiting) Status() Status               { return StatusReleaseWaiting }
func (ReleaseInProgress) Status() Status            { return StatusReleaseInProgress }
func (ReleaseInProgressWithTickets) Status() Status { return StatusReleaseInProgressWithTickets }
func (ServerError) Status() Status                  { return StatusServerError }

func (Available) sealed()                    {}
func (AvailableWithTickets) sealed()         {}
func (Registered) sealed()                   {}
func (Unavailable) sealed()                  {}
func (InvalidQuery) sealed()                 {}
func (ReleaseWaiting) sealed()               {}
func (ReleaseInProgress) sealed()            {}
func (ReleaseInProgressWithTickets) sealed() {}
func (ServerError) sealed()                  {}
