package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/hupe1980/geotile"
	"github.com/hupe1980/geotile/geo"
	"github.com/hupe1980/geotile/layer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newQueryCmd(v *viper.Viper) *cobra.Command {
	var (
		lat, lon   float64
		radius     float64
		resolution float64
		kindNames  []string
		asGeoJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query layers around a point",
		Long:  "List the tiles whose layers intersect a sphere around a point at the requested resolution, or print the coastlines as GeoJSON.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			kinds := make([]layer.Kind, 0, len(kindNames))
			for _, n := range kindNames {
				k, err := layer.ParseKind(n)
				if err != nil {
					return err
				}
				kinds = append(kinds, k)
			}

			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, closeStore, err := cfg.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeStore(); cerr != nil && err == nil {
					err = cerr
				}
			}()

			res, err := st.QueryLLA(ctx, kinds, geo.LLA{Lat: lat, Lon: lon}, radius, resolution)
			if err != nil {
				return err
			}
			defer geotile.ReleaseAll(res)

			out := cmd.OutOrStdout()
			if asGeoJSON {
				merged := layer.NewLineSet(geo.Triangle{})
				for _, h := range res[layer.KindLineSet] {
					if err := merged.Merge(h.Layer()); err != nil {
						return err
					}
				}
				data, err := merged.ToGeoJSON()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tTILE\tLEVEL\tRESOLUTION\tCONTENT")
			for _, k := range kinds {
				for _, h := range res[k] {
					fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%s\n", k, h.Path(), h.Level(), h.Layer().Resolution(), describe(h.Layer()))
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude in degrees")
	cmd.Flags().Float64Var(&radius, "radius", 10_000, "query radius in metres")
	cmd.Flags().Float64Var(&resolution, "resolution", 0, "coarsest acceptable feature size in metres")
	cmd.Flags().StringSliceVar(&kindNames, "kind", []string{layer.KindLineSet.String()}, "layer kinds to query")
	cmd.Flags().BoolVar(&asGeoJSON, "geojson", false, "print the coastlines as one GeoJSON feature")

	return cmd
}

func describe(l layer.Layer) string {
	switch l := l.(type) {
	case *layer.LineSet:
		return fmt.Sprintf("%d lines, %d points", l.NumLines(), l.NumPoints())
	case *layer.Raster:
		return fmt.Sprintf("%d pixels", l.Coverage())
	default:
		return fmt.Sprintf("%d bytes", l.Size())
	}
}
