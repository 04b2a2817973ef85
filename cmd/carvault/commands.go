package main

import (
	"time"

	"github.com/spf13/cobra"
)

var app *application

var (
	sortField      string
	sortDescending bool

	carName        string
	carBrand       string
	carSeries      string
	carYear        string
	carColor       string
	carScale       string
	carCondition   string
	carPrice       float64
	carDate        string
	carDescription string
	carImagePath   string

	filterBrand     string
	filterSeries    string
	filterColor     string
	filterCondition string

	wishName  string
	wishBrand string
	wishPrice float64
	wishNotes string

	exportCSV bool
	exportOut string

	addDetected bool

	watchInterval time.Duration

	rootCmd = &cobra.Command{
		Use:   "carvault",
		Short: "Manage a diecast model car collection",
		Long: `carvault keeps a model car collection and wishlist, stored locally,
in a GitHub repository, or in Firebase depending on what is configured.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			app, err = buildApplication(cmd.Context())
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				app.close()
			}
		},
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List the collection",
		RunE:  runList,
	}
	addCmd = &cobra.Command{
		Use:   "add",
		Short: "Add a car to the collection",
		RunE:  runAdd,
	}
	updateCmd = &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a car",
		Args:  cobra.ExactArgs(1),
		RunE:  runUpdate,
	}
	deleteCmd = &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a car from the collection",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
	searchCmd = &cobra.Command{
		Use:   "search [query]",
		Short: "Search the collection",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSearch,
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show collection statistics",
		RunE:  runStats,
	}
	valuesCmd = &cobra.Command{
		Use:       "values <field>",
		Short:     "List distinct values of a car field",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"brand", "series", "color", "condition", "year"},
		RunE:      runValues,
	}

	wishlistCmd = &cobra.Command{
		Use:   "wishlist",
		Short: "Manage the wishlist",
	}
	wishlistListCmd = &cobra.Command{
		Use:   "list",
		Short: "List wishlist entries",
		RunE:  runWishlistList,
	}
	wishlistAddCmd = &cobra.Command{
		Use:   "add",
		Short: "Add a wishlist entry",
		RunE:  runWishlistAdd,
	}
	wishlistUpdateCmd = &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a wishlist entry",
		Args:  cobra.ExactArgs(1),
		RunE:  runWishlistUpdate,
	}
	wishlistDeleteCmd = &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a wishlist entry",
		Args:  cobra.ExactArgs(1),
		RunE:  runWishlistDelete,
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export the full collection state",
		RunE:  runExport,
	}
	importCmd = &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the collection with an exported bundle",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}

	setupCmd = &cobra.Command{
		Use:   "setup <password>",
		Short: "Set or verify the admin password",
		Args:  cobra.ExactArgs(1),
		RunE:  runSetup,
	}
	testConnectionCmd = &cobra.Command{
		Use:   "test-connection",
		Short: "Probe each configured backend",
		RunE:  runTestConnection,
	}
	analyzeCmd = &cobra.Command{
		Use:   "analyze <image>",
		Short: "Identify a model car from a photo",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Print collection changes as they happen (Firebase only)",
		RunE:  runWatch,
	}
)

func init() {
	listCmd.Flags().StringVar(&sortField, "sort", "name", "sort field: name, brand, price, purchaseDate")
	listCmd.Flags().BoolVar(&sortDescending, "desc", false, "sort descending")

	for _, c := range []*cobra.Command{addCmd, updateCmd} {
		c.Flags().StringVar(&carName, "name", "", "casting name")
		c.Flags().StringVar(&carBrand, "brand", "", "manufacturer brand")
		c.Flags().StringVar(&carSeries, "series", "", "series")
		c.Flags().StringVar(&carYear, "year", "", "release year")
		c.Flags().StringVar(&carColor, "color", "", "main color")
		c.Flags().StringVar(&carScale, "scale", "", "scale, e.g. 1:64")
		c.Flags().StringVar(&carCondition, "condition", "", "condition, e.g. Mint")
		c.Flags().Float64Var(&carPrice, "price", 0, "purchase price")
		c.Flags().StringVar(&carDate, "date", "", "purchase date (YYYY-MM-DD)")
		c.Flags().StringVar(&carDescription, "description", "", "free-form notes")
		c.Flags().StringVar(&carImagePath, "image", "", "photo file to attach")
	}

	searchCmd.Flags().StringVar(&filterBrand, "brand", "", "filter by brand")
	searchCmd.Flags().StringVar(&filterSeries, "series", "", "filter by series")
	searchCmd.Flags().StringVar(&filterColor, "color", "", "filter by color")
	searchCmd.Flags().StringVar(&filterCondition, "condition", "", "filter by condition")

	for _, c := range []*cobra.Command{wishlistAddCmd, wishlistUpdateCmd} {
		c.Flags().StringVar(&wishName, "name", "", "casting name")
		c.Flags().StringVar(&wishBrand, "brand", "", "manufacturer brand")
		c.Flags().Float64Var(&wishPrice, "expected-price", 0, "expected price")
		c.Flags().StringVar(&wishNotes, "notes", "", "notes")
	}

	exportCmd.Flags().BoolVar(&exportCSV, "csv", false, "export cars as CSV instead of the JSON bundle")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "write to file instead of stdout")

	analyzeCmd.Flags().BoolVar(&addDetected, "add", false, "add the detected car to the collection")

	watchCmd.Flags().DurationVar(&watchInterval, "interval", 15*time.Second, "poll interval")

	wishlistCmd.AddCommand(wishlistListCmd, wishlistAddCmd, wishlistUpdateCmd, wishlistDeleteCmd)
	rootCmd.AddCommand(listCmd, addCmd, updateCmd, deleteCmd, searchCmd,
		statsCmd, valuesCmd, wishlistCmd, exportCmd, importCmd,
		setupCmd, testConnectionCmd, analyzeCmd, watchCmd)
}
