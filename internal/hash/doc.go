// Package hash provides the CRC32-Castagnoli checksum used by every
// persisted tile record and payload header.
package hash
