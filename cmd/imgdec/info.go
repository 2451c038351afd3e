package main

import (
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fumiama/imgdec"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE...",
		Short: "Print format and declared size without decoding pixels",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, name := range args {
				data, err := os.ReadFile(name)
				if err != nil {
					log.Println(err)
					failed++
					continue
				}
				sz, f, err := imgdec.DecodeSize(data)
				if err != nil {
					log.Printf("%s: %v", name, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%dx%d\n", name, f, sz.Width, sz.Height)
			}
			if failed > 0 {
				return errors.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}
