package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/DogLicense/internal/app"
	"github.com/dharsanguruparan/DogLicense/internal/certificate"
	"github.com/dharsanguruparan/DogLicense/internal/model"
	"github.com/dharsanguruparan/DogLicense/internal/validation"
	"github.com/dharsanguruparan/DogLicense/internal/wizard"
)

var fieldFlags = map[model.Field]string{
	model.FieldOwnerName:      "owner-name",
	model.FieldOwnerAddress:   "owner-address",
	model.FieldOwnerPhone:     "owner-phone",
	model.FieldDogName:        "dog-name",
	model.FieldDogBreed:       "dog-breed",
	model.FieldDogAge:         "dog-age",
	model.FieldDogColor:       "dog-color",
	model.FieldLastRabiesShot: "last-rabies-shot",
}

var errIncomplete = errors.New("application incomplete")

func newApplyCmd(c *cli) *cobra.Command {
	values := map[model.Field]*string{}
	var certPath string
	var saveOnly bool
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Fill in the application and submit it",
		Long: `apply restores the saved draft, sets every field given as a flag, and walks
the four steps. Fields left out keep their draft values. With --save-only the
draft is updated and nothing is submitted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			rt, err := app.Build(ctx, c.cfg, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			p := &printer{out: out}
			opts := []wizard.Option{
				wizard.WithRules(validation.NewRules(
					validation.WithCertificateLimits(c.cfg.MaxCertificateSize, c.cfg.AllowedTypes),
				)),
				wizard.WithNotifier(p),
				wizard.WithNavigator(p),
				wizard.WithRedirect(c.cfg.TrackingPath, c.cfg.RedirectDelay),
			}
			if d := rt.OneShotDispatcher(); d != nil {
				opts = append(opts, wizard.WithDispatcher(d))
			}
			w := wizard.New(rt.Store, opts...)
			w.Restore(ctx)

			for _, f := range model.TextFields {
				if cmd.Flags().Changed(fieldFlags[f]) {
					if err := w.Set(ctx, f, *values[f]); err != nil {
						return err
					}
				}
			}
			if saveOnly {
				fmt.Fprintln(out, "Draft saved.")
				return nil
			}
			if certPath != "" {
				if err := attach(cmd, c, rt, w, certPath); err != nil {
					return err
				}
			}
			for w.Step() < wizard.LastStep {
				if !w.Next(ctx) {
					printErrors(out, w.Errors())
					return fmt.Errorf("%w at step %d (%s)", errIncomplete, w.Step(), w.Step())
				}
			}
			submitted, err := w.Submit(ctx)
			if err != nil {
				if errs, ok := validation.AsErrors(err); ok {
					printErrors(out, errs)
				}
				return err
			}
			fmt.Fprintf(out, "Application ID: %s\n", submitted.ID)
			return nil
		},
	}
	for _, f := range model.TextFields {
		values[f] = cmd.Flags().String(fieldFlags[f], "", fmt.Sprintf("Value for %s", f))
	}
	cmd.Flags().StringVar(&certPath, "certificate", "", "Path to the vaccination certificate (PDF, JPEG or PNG)")
	cmd.Flags().BoolVar(&saveOnly, "save-only", false, "Only update the saved draft")
	return cmd
}

func attach(cmd *cobra.Command, c *cli, rt *app.Runtime, w *wizard.Wizard, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open certificate: %w", err)
	}
	defer f.Close()

	up, err := certificate.Receive(f, filepath.Base(path), c.cfg.MaxCertificateSize)
	if err != nil {
		return err
	}
	defer up.Close()

	cert := up.Certificate()
	if w.Rules().Certificate(&cert) == "" {
		if cert, err = up.Store(cmd.Context(), rt.Blobs); err != nil {
			return fmt.Errorf("store certificate: %w", err)
		}
	}
	w.AttachCertificate(cert)
	return nil
}

// printer shows wizard notifications on the terminal.
type printer struct {
	out io.Writer
}

func (p *printer) Notify(n wizard.Notification) {
	fmt.Fprintf(p.out, "[%s] %s: %s\n", n.Level, n.Title, n.Message)
}

func (p *printer) Navigate(url string, after time.Duration) {
	fmt.Fprintf(p.out, "Track your application at %s (redirect after %s)\n", url, after)
}

func printErrors(out io.Writer, errs validation.Errors) {
	for _, f := range wizard.AllFields() {
		if msg, ok := errs[f]; ok {
			fmt.Fprintf(out, "  %s: %s\n", f, msg)
		}
	}
}
