// Package intercept answers resource requests cache-first.
//
// Per request:
//
//	START → CACHE_LOOKUP → HIT: return cached
//	CACHE_LOOKUP (miss) → NETWORK_FETCH → SUCCESS: store, then return
//	                                    → NETWORK_ERROR: FALLBACK
//	FALLBACK → navigation: offline document, if cached
//	         → otherwise: propagate the network error
package intercept
