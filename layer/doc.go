// Package layer implements the data kinds a tile can carry.
//
// A Layer is either a LineSet (polylines such as coastlines) or a Raster
// (a fixed-size depth grid). Both support the operations the tile tree
// needs to keep a multi-resolution pyramid consistent: Split distributes
// data among child triangles, Merge folds data in, Reduce lowers fidelity
// to a byte budget, and Encode/Decode move payloads to and from storage.
//
// Line sets duplicate the crossing point when a line is split at a seam,
// so neighbouring fragments always share an endpoint and Merge can splice
// them back together.
package layer
