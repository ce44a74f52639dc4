// Package partitioner maps record keys onto a fixed set of logical
// channels. Keyed records must land on a stable channel no matter which
// broker partition they arrive from, so per-channel event time stays
// meaningful for the watermark tracking downstream.
package partitioner

import "hash/fnv"

// Assign maps key to a channel in [0, channels) using FNV-1a. Channels
// must be positive.
func Assign(key []byte, channels int) int {
	h := fnv.New64a()
	h.Write(key)
	return int(h.Sum64() % uint64(channels))
}

// AssignString is Assign for string keys, without the []byte conversion
// at every call site.
func AssignString(key string, channels int) int {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int(h.Sum64() % uint64(channels))
}
