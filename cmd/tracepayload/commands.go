package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tracepayload/internal/app"
	"tracepayload/internal/auth"
	"tracepayload/internal/config"
	"tracepayload/internal/logger"
	"tracepayload/internal/output"
	"tracepayload/internal/query"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "tracepayload",
		Short:        "Reconstruct transaction payloads from Application Insights traces",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (default: search ./config.yaml)")

	cmd.AddCommand(newDownloadCmd(opts), newQueryCmd(opts), newHashSecretCmd())
	return cmd
}

func (o *rootOptions) load() (*config.Config, zerolog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log, nil
}

func newDownloadCmd(root *rootOptions) *cobra.Command {
	var (
		id, date, out string
		stdout        bool
		timeout       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the assembled payload of one transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := query.ParseKey(id, date, time.Now())
			if err != nil {
				return err
			}

			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			// The CLI writes its own file; the configured export sink would duplicate it.
			cfg.Export.Enabled = false

			a, err := app.New(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			res, err := a.Service.Download(ctx, key)
			if err != nil {
				return err
			}
			for _, d := range res.Diagnostics {
				log.Warn().Str("kind", d.Kind).Int("row", d.Row).Msg(d.Detail)
			}

			if stdout {
				return output.WriteJSON(cmd.OutOrStdout(), res.Payload, true)
			}

			path, err := output.NewFileExporter(out, false).Export(res.Payload, key.TransactionID)
			if err != nil {
				return err
			}
			abs, _ := filepath.Abs(path)
			fmt.Fprintf(cmd.OutOrStdout(), "Payload written to %s (%d transaction, %d discount pairs)\n",
				abs, len(res.Payload.Transaction), len(res.Payload.EvaluateDiscounts))
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "transaction id")
	cmd.Flags().StringVar(&date, "date", "", "transaction date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&out, "out", ".", "directory to write the payload file into")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the payload instead of writing a file")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall download timeout")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func newQueryCmd(root *rootOptions) *cobra.Command {
	var id, date string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print the KQL query for one transaction without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := query.ParseKey(id, date, time.Now())
			if err != nil {
				return err
			}
			cfg, _, err := root.load()
			if err != nil {
				return err
			}

			q, err := query.NewBuilder(app.QueryOptions(cfg.Query)).Build(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), q)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "transaction id")
	cmd.Flags().StringVar(&date, "date", "", "transaction date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func newHashSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret [secret]",
		Short: "Print a bcrypt hash for auth.secret_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := auth.HashSecret(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
}
