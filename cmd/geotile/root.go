package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd creates the geotile command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "geotile",
		Short:         "geotile: multi-resolution coastline and depth tiles",
		Long:          "geotile imports coastline and depth layers into an icosahedral tile store and queries them at any resolution.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd, v)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("dir", "", "tile directory for the local backend")
	root.PersistentFlags().String("backend", "", "blob store backend: local, s3, minio or redis")
	root.PersistentFlags().Int("max-tiles", 0, "resident tile limit")
	root.PersistentFlags().Int("max-level", 0, "deepest tile level")
	root.PersistentFlags().String("compression", "", "line-set payload compression: none, lz4 or zstd")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newImportCmd(v),
		newQueryCmd(v),
		newStatsCmd(v),
	)

	return root
}

var flagKeys = map[string]string{
	"dir":         "dir",
	"backend":     "backend",
	"max-tiles":   "max_tiles",
	"max-level":   "max_level",
	"compression": "compression",
	"log-level":   "log_level",
}

// initViper applies defaults, env bindings, the optional config file and
// flag bindings so the precedence flag > env > file > defaults holds.
func initViper(cmd *cobra.Command, v *viper.Viper) error {
	setDefaults(v)
	setupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	} else {
		v.SetConfigName("geotile")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/geotile")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("reading config: %w", err)
			}
		}
	}

	for flag, key := range flagKeys {
		f := cmd.Root().PersistentFlags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding %s flag: %w", flag, err)
		}
	}
	return nil
}
