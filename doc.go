// Package geotile is an embedded multi-resolution spatial store for earth
// data layers such as coastlines and seabed depth.
//
// The earth is tessellated into the 20 faces of an icosahedron. Each face
// is a root tile that recursively splits into four children whenever the
// data inserted into it outgrows its per-tile budget. Every tile keeps a
// reduced summary of everything below it, so a query can stop at the
// coarsest level that still resolves the requested detail.
//
// # Quick Start
//
//	ctx := context.Background()
//	st, _ := geotile.Open(ctx, geotile.WithDir("./tiles"))
//	defer st.Close()
//
//	coast, _ := layer.FromGeoJSON(data)
//	_ = st.Insert(ctx, coast)
//
//	res, _ := st.QueryLLA(ctx, []layer.Kind{layer.KindLineSet},
//	    geo.LLA{Lat: 54.3, Lon: 10.1}, 50_000, 100)
//	defer geotile.ReleaseAll(res)
//	for _, h := range res[layer.KindLineSet] {
//	    ls := h.Layer().(*layer.LineSet)
//	    fmt.Println(h.Path(), ls.NumLines())
//	}
//
// # Layers
//
//   - layer.LineSet: polylines in geodetic and earth-centred coordinates,
//     cut at tile seams on insert and spliced back together on merge.
//     Summaries are reduced by collapsing the shortest segments first.
//   - layer.Raster: a 256x256 depth grid per tile, resampled bilinearly
//     between levels and stored as a 16-bit PNG.
//
// # Storage
//
// Tiles are persisted lazily through a blobstore.Store: the local file
// system by default, or S3, MinIO and Redis via the blobstore
// subpackages. Resident tiles and payloads are bounded by two LRU lists;
// eviction writes dirty data first and never drops anything a Handle
// still pins.
//
// # Concurrency
//
// A Store serializes its operations with one mutex. Handles returned by
// Query stay valid after the call returns and may be released from any
// goroutine.
package geotile
