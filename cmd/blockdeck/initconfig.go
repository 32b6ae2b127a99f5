package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/blockdeck/internal/appconfig"
)

func newInitConfigCmd() *cobra.Command {
	var cfgPath string
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := appconfig.WriteDefault(cfgPath, overwrite)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote config: %s\n", written)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "overwrite an existing config file")
	return cmd
}
