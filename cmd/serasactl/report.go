package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Checker-Finance/serasa-adapter/internal/serasa"
	"github.com/Checker-Finance/serasa-adapter/pkg/utils"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		reportName string
		summary    bool
	)

	cmd := &cobra.Command{
		Use:   "report <document>",
		Short: "Fetch a person information report for a CPF/CNPJ",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := utils.NormalizeDocument(args[0])
			if !utils.IsDocumentNumber(doc) {
				return fmt.Errorf("invalid document %q: expected 11 or 14 digits", args[0])
			}

			client, err := opts.client()
			if err != nil {
				return err
			}
			report, err := client.PersonInformationReport(cmd.Context(), doc, reportName)
			if err != nil {
				var se *serasa.Error
				if errors.As(err, &se) {
					_ = writeJSON(cmd.ErrOrStderr(), se.ToMap())
				}
				return err
			}

			if summary {
				return writeJSON(cmd.OutOrStdout(), serasa.Summarize(report, reportName))
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVar(&reportName, "report-name", serasa.ReportAdvancedPF, "report to request")
	cmd.Flags().BoolVar(&summary, "summary", false, "print the summary instead of the raw report")
	return cmd
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check credentials by obtaining a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			if err := client.Login(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "login ok (token alive: %t)\n", client.TokenAlive())
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
