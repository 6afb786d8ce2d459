// Package mmap maps persisted tile payloads read-only so decoding a large
// raster does not copy the file through a read buffer first.
//
// On platforms without mmap the file is read into memory instead.
package mmap
