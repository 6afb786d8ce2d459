// Package compress wraps line-set payloads in a checksummed block that is
// optionally LZ4 or ZSTD compressed.
//
// Coastline vertex streams compress well because neighbouring coordinates
// share their high-order bytes. LZ4 is the default; ZSTD is available for
// stores that are written once and read rarely.
package compress
