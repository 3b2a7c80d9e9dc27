package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/energia/backend/internal/catalog"
)

// catalogCmd represents the catalog command
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "XM resource listings",
	Long: `Refreshes or shows the XM resource listings that decide which
resources per-resource metrics are fetched for.

Example:
  go run ./cmd/energia catalog refresh
  go run ./cmd/energia catalog list ListadoRecursos`,
}

var (
	catalogRefreshCmd = &cobra.Command{
		Use:   "refresh [listing...]",
		Short: "Reload listings from XM",
		RunE:  runCatalogRefresh,
	}

	catalogListCmd = &cobra.Command{
		Use:   "list [listing]",
		Short: "Show a stored listing",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCatalogList,
	}
)

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogRefreshCmd)
	catalogCmd.AddCommand(catalogListCmd)
}

func runCatalogRefresh(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	PrintHeader(out, "Catalog Refresh")

	result, err := a.resources.Refresh(ctx, args...)
	if result != nil {
		names := make([]string, 0, len(result.Upserted))
		for name := range result.Upserted {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			PrintKeyValue(out, name, fmt.Sprintf("%d resources", result.Upserted[name]), 16)
		}
		for name, reason := range result.Failed {
			PrintError(out, fmt.Sprintf("%s: %s", name, reason))
		}
	}
	return err
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	listing := catalog.ListadoRecursos
	if len(args) == 1 {
		listing = args[0]
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	resources, err := a.resources.Resources(ctx, listing)
	if err != nil {
		return err
	}

	widths := []int{12, 40, 16}
	PrintTableHeader(out, []string{"CODIGO", "NOMBRE", "TIPO"}, widths)
	for _, r := range resources {
		PrintTableRow(out, []string{r.Codigo, r.Nombre, r.Tipo}, widths)
	}
	PrintInfo(out, fmt.Sprintf("%d resources in %s", len(resources), listing))
	return nil
}
