// Package testutil provides shared fakes for vacatrack tests: a switchable
// asset origin and fixed id generators.
package testutil
