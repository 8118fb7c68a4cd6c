package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/shipsmith/shipsmith/internal/model"
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List defined products",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")

		products, err := st.ListProducts(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "products list")
		}

		if len(products) == 0 {
			fmt.Fprintln(os.Stderr, "No products found.")
			return nil
		}

		formatProducts(os.Stdout, products)
		return nil
	},
}

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "List marketplace listings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")

		listings, err := st.ListListings(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "listings list")
		}

		if len(listings) == 0 {
			fmt.Fprintln(os.Stderr, "No listings found.")
			return nil
		}

		formatListings(os.Stdout, listings)
		return nil
	},
}

func init() {
	productsCmd.Flags().Int("limit", 20, "max products to list")
	listingsCmd.Flags().Int("limit", 20, "max listings to list")
	rootCmd.AddCommand(productsCmd)
	rootCmd.AddCommand(listingsCmd)
}

func formatProducts(out io.Writer, products []model.Product) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tPROBLEM\tTITLE")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t-----")

	for _, p := range products {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			shortUUID(p.ID),
			p.ProductType,
			shortUUID(p.ProblemID),
			truncate(p.Title, 60),
		)
	}

	_ = w.Flush()
}

func formatListings(out io.Writer, listings []model.MarketplaceListing) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPRODUCT\tIMPULSE\tANCHOR\tBUNDLE\tTITLE")
	_, _ = fmt.Fprintln(w, "--\t-------\t-------\t------\t------\t-----")

	for _, l := range listings {
		_, _ = fmt.Fprintf(w, "%s\t%s\t$%.2f\t$%.2f\t%s\t%s\n",
			shortUUID(l.ID),
			shortUUID(l.ProductID),
			l.ImpulsePrice,
			l.AnchorPrice,
			truncate(l.AssetBundlePath, 40),
			truncate(l.Title, 50),
		)
	}

	_ = w.Flush()
}
