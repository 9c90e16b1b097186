// Package cache provides the two-tier result cache for chunking
// output. The first tier is a bounded in-process LRU; the second is a
// persistent store shared across restarts. A cache failure is never a
// chunking failure: every error path degrades to a miss.
//
// The cache tracks access patterns per fingerprint to pick entry
// lifetimes adaptively and to warm documents that historically follow
// the one just requested.
package cache
