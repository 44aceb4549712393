// Package assetcache maintains the versioned snapshot of static assets.
//
// Exactly one snapshot is current: the one named by the cache prefix plus the
// active version tag. Install populates it from the manifest, Activate
// deletes every other snapshot and claims control so the interceptor starts
// serving from it. The version tag must change whenever the manifest or any
// asset changes; activation deletes stale snapshots unconditionally.
package assetcache
