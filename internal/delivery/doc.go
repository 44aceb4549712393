// Package delivery drains the pending-write store into an acceptor.
//
// Delivery is at-least-once. A record is removed only after the acceptor
// confirmed it; a failed attempt leaves the record for the next flush, with
// no attempt limit. Two flushes may overlap and deliver the same record
// twice, so acceptors must de-duplicate (HTTPAcceptor sends an
// Idempotency-Key for that).
package delivery
