// Package ir provides the shared records of the vacatrack agent.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Responses are copied with Clone before they cross a component boundary
//   - PendingRecord is never mutated after creation
//   - All JSON tags use snake_case
//   - Content hashes use canonical JSON with domain separation
package ir
