package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/DogLicense/internal/app"
	"github.com/dharsanguruparan/DogLicense/internal/model"
	"github.com/dharsanguruparan/DogLicense/internal/review"
)

func newDraftCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Inspect or discard the saved draft",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the saved draft as JSON",
			RunE: func(cmd *cobra.Command, args []string) error {
				rt, err := app.Build(cmd.Context(), c.cfg, nil)
				if err != nil {
					return err
				}
				defer rt.Close()
				draft, err := rt.Store.LoadDraft(cmd.Context())
				if err != nil {
					return err
				}
				if draft == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No saved draft.")
					return nil
				}
				return printJSON(cmd.OutOrStdout(), draft)
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete the saved draft",
			RunE: func(cmd *cobra.Command, args []string) error {
				rt, err := app.Build(cmd.Context(), c.cfg, nil)
				if err != nil {
					return err
				}
				defer rt.Close()
				if err := rt.Store.ClearDraft(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Draft cleared.")
				return nil
			},
		},
	)
	return cmd
}

func newListCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submitted applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.Build(cmd.Context(), c.cfg, nil)
			if err != nil {
				return err
			}
			defer rt.Close()
			apps, err := rt.Store.ListSubmissions(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				if apps == nil {
					apps = []model.SubmittedApplication{}
				}
				return printJSON(cmd.OutOrStdout(), apps)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tOWNER\tDOG\tSUBMITTED\tSTATUS")
			for _, a := range apps {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.OwnerName, a.DogName, a.SubmittedAt.Format(time.RFC3339), a.Status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newTrackCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "track <id>",
		Short: "Show a submitted application and its certificate review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := app.Build(ctx, c.cfg, nil)
			if err != nil {
				return err
			}
			defer rt.Close()
			submitted, err := rt.Store.GetSubmission(ctx, args[0])
			if err != nil {
				return err
			}
			view := struct {
				Application model.SubmittedApplication `json:"application"`
				Review      *model.CertificateReview   `json:"review,omitempty"`
			}{Application: submitted}
			rv, err := rt.Reviews.Get(ctx, args[0])
			switch {
			case err == nil:
				view.Review = rv
			case !errors.Is(err, review.ErrNotFound):
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
