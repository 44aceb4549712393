package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainDelivery = "vacatrack/delivery/v1"
	DomainAsset    = "vacatrack/asset/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DeliveryKey computes the idempotency key sent with every delivery attempt
// of a pending record. Repeated attempts for the same record produce the same
// key, which lets the acceptor discard duplicates of an at-least-once delivery.
func DeliveryKey(rec PendingRecord) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"id":      rec.ID,
		"payload": rec.Payload,
	})
	if err != nil {
		return "", fmt.Errorf("DeliveryKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDelivery, canonical), nil
}

// ContentHash computes the strong validator stored alongside a cached body.
func ContentHash(body []byte) string {
	return hashWithDomain(DomainAsset, body)
}

// MustDeliveryKey is like DeliveryKey but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDeliveryKey(rec PendingRecord) string {
	key, err := DeliveryKey(rec)
	if err != nil {
		panic(err)
	}
	return key
}
