// Package trigger holds deferred-delivery registrations and the scheduler
// that decides when they fire.
//
// A registration asks for delivery logic to run once conditions are good.
// How often it actually fires is not guaranteed: zero, one or many times.
// Handlers must be safe under all three. While online the scheduler also
// flushes records that are pending without any registration.
package trigger
