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

func newStatsCmd(v *viper.Viper) *cobra.Command {
	var load bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show tile statistics",
		Long:  "Open the store and print resident tile and payload statistics. With --load the whole tree is read first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
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

			if load {
				res, err := st.Query(ctx, layer.Kinds(), geo.Vec3{}, 2*geo.SemiMajorAxis, 0)
				if err != nil {
					return err
				}
				geotile.ReleaseAll(res)
			}

			s := st.Stats()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "tiles\t%d\n", s.Tiles)
			fmt.Fprintf(w, "max level\t%d\n", s.MaxLevel)
			fmt.Fprintf(w, "layers\t%d\n", s.Layers)
			for _, k := range layer.Kinds() {
				fmt.Fprintf(w, "  %s bytes\t%d\n", k, s.LayerBytes[k])
			}
			fmt.Fprintf(w, "dirty tiles\t%d\n", s.DirtyTiles)
			fmt.Fprintf(w, "dirty layers\t%d\n", s.DirtyLayers)
			fmt.Fprintf(w, "evicted tiles\t%d\n", s.EvictedTiles)
			fmt.Fprintf(w, "evicted layers\t%d\n", s.EvictedLayers)
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&load, "load", false, "load every tile before reporting")
	return cmd
}
