// SPDX-License-Identifier: GPL-3.0-or-later

// Package isavail is a client for the Registro.br domain availability
// service, a line-oriented text protocol carried over UDP.
//
// [NewQuery] and [*Query] construct and format a query. [ParseResponse]
// and [*Response] decode a raw reply datagram. [*Client] sends queries,
// escalates timeouts across retries, correlates replies with the
// outstanding query and renews the session cookie through a [SessionStore].
//
// A [*Client] owns a single outstanding query at a time and is not safe
// for concurrent use.
package isavail
