package cmd

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/pricewatch/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/extractor"
)

func newCheckCommand() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Fetch one product page and print what was extracted",
		Long: `Check runs the fetch and extraction pipeline against a single URL.
Nothing is stored, repriced or sent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := bootstrap.NewCommandDeps(configPath())
			if err != nil {
				return err
			}
			defer func() { _ = deps.Logger.Sync() }()

			url := args[0]
			src := domain.Source(source)
			if src == "" {
				src = extractor.ResolveSource(url)
			}

			snap := bootstrap.NewPageMonitor(deps.Config, deps.Logger).Run(cmd.Context(), url, src)
			renderSnapshot(url, src, snap)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "retailer source (resolved from the URL by default)")
	return cmd
}

func renderSnapshot(url string, source domain.Source, snap domain.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendRow(table.Row{"URL", url})
	t.AppendRow(table.Row{"Source", source})
	t.AppendRow(table.Row{"Transport", snap.Transport})
	t.AppendRow(table.Row{"Strategy", snap.Strategy})
	t.AppendRow(table.Row{"Status", snap.Status})

	price := "-"
	if snap.Price.Valid {
		price = snap.Price.Decimal.String()
	}
	t.AppendRow(table.Row{"Price", price})
	t.AppendRow(table.Row{"Name", deref(snap.Name)})
	t.AppendRow(table.Row{"Thumbnail", deref(snap.ThumbnailURL)})
	if snap.Details != "" {
		t.AppendRow(table.Row{"Details", snap.Details})
	}
	if snap.Err != nil {
		t.AppendRow(table.Row{"Error", snap.Err.Error()})
	}
	t.Render()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
