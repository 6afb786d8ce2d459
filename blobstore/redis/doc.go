// Package redis stores tile blobs in Redis.
//
// Tile names contain no glob metacharacters, so List is a SCAN over the
// key prefix.
package redis
