// Package fetch retrieves resources from the asset origin over HTTP.
//
// Transport failures are reported as ir NetworkError; any HTTP answer,
// including 4xx and 5xx, is a successful fetch carrying that status. A body
// over the size limit fails the fetch rather than coming back truncated.
package fetch
