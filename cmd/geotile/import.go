package main

import (
	"fmt"
	"os"

	"github.com/hupe1980/geotile/layer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newImportCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.geojson>...",
		Short: "Import GeoJSON coastlines",
		Long:  "Read line and polygon geometries from GeoJSON feature collections and insert them as a coastline layer.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
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
					err = fmt.Errorf("persisting tiles: %w", cerr)
				}
			}()

			for _, name := range args {
				data, err := os.ReadFile(name)
				if err != nil {
					return err
				}
				ls, err := layer.FromGeoJSON(data)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				if err := st.Insert(ctx, ls); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s: %d lines, %d points\n", name, ls.NumLines(), ls.NumPoints())
			}
			return nil
		},
	}
}
