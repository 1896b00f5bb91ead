package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cadena-mfg/costing-cli/internal/fetch"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <ftp-url> <dest>",
	Short: "Download an ERP extract over FTP",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := fetch.NewFTPFetcher(fetch.FTPOptions{
			User:     cfg.Fetch.FTPUser,
			Password: cfg.Fetch.FTPPassword,
			Timeout:  time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		})

		n, err := f.DownloadToFile(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		fmt.Printf("downloaded %d bytes to %s\n", n, args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
