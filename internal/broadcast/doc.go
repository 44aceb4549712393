// Package broadcast is a many-to-many, fire-and-forget message hub.
//
// Messages are advisory: Publish never blocks, and a subscriber whose buffer
// is full simply misses the message. There is no ordering across channels.
package broadcast
