package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/claimcheck/internal/helpers"
	"github.com/mohammad-safakhou/claimcheck/models"
)

func researchCMD(load configLoader) *cobra.Command {
	var (
		req     models.ResearchRequest
		date    string
		asJSON  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "research <statement>",
		Short: "Fact-check one statement and print the verdict",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.General)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			req.Statement = strings.Join(args, " ")
			if date != "" {
				t, err := models.ParseStatementDate(date)
				if err != nil {
					return fmt.Errorf("--date: %w", err)
				}
				req.StatementDate = &t
			}

			ctx := cmd.Context()
			a, err := newResearchApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			resp, err := a.research.Research(ctx, req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printVerdict(out, resp)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Source, "source", "", "who made the statement")
	f.StringVar(&req.Context, "context", "", "where or when it was said")
	f.StringVar(&req.Country, "country", "", "two-letter country code (default research.default_country)")
	f.StringVar((*string)(&req.Category), "category", "", "statement category")
	f.StringVar(&date, "date", "", "statement date (YYYY-MM-DD or RFC 3339)")
	f.BoolVar(&asJSON, "json", false, "print the raw response as JSON")
	f.DurationVar(&timeout, "timeout", 0, "overall deadline for the research call")
	return cmd
}

func printVerdict(w io.Writer, resp models.ResearchResponse) {
	rows := [][]string{
		{"Statement", resp.Statement},
		{"Status", string(resp.Verdict)},
		{"Confidence", strconv.Itoa(resp.ConfidenceScore)},
		{"Verdict", resp.VerdictText},
	}
	if resp.Correction != "" {
		rows = append(rows, []string{"Correction", resp.Correction})
	}
	rows = append(rows,
		[]string{"Sources", resp.ValidSources},
		[]string{"Method", resp.ResearchMethod},
	)
	if resp.RecordID != "" {
		rows = append(rows, []string{"Record", resp.RecordID})
	}
	if resp.Duplicate {
		rows = append(rows, []string{"Duplicate", "yes"})
	}
	if len(resp.RelatedRecords) > 0 {
		rows = append(rows, []string{"Related", strings.Join(resp.RelatedRecords, ", ")})
	}
	fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, rows))

	citations := append(
		helpers.FormatCitations("A", resp.ResourcesAgreed),
		helpers.FormatCitations("D", resp.ResourcesDisagreed)...,
	)
	if len(citations) > 0 {
		fmt.Fprintln(w, "\nReferences (A = supporting, D = contradicting):")
		for _, c := range citations {
			fmt.Fprintln(w, "  "+c)
		}
	}

	if len(resp.ExpertPerspectives) > 0 {
		prows := make([][]string, 0, len(resp.ExpertPerspectives))
		for _, p := range resp.ExpertPerspectives {
			prows = append(prows, []string{
				p.ExpertName,
				string(p.Stance),
				strconv.FormatFloat(p.ConfidenceLevel, 'f', 0, 64),
				helpers.Truncate(p.Reasoning, 100),
			})
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, renderTable([]string{"Perspective", "Stance", "Confidence", "Reasoning"}, prows, 3))
	}
}
