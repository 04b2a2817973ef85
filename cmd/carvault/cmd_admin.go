package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nsridhar/carvault/internal/domain"
	"github.com/nsridhar/carvault/internal/storage"
	"github.com/nsridhar/carvault/internal/vision/claude"
)

func runWishlistList(cmd *cobra.Command, args []string) error {
	items := app.coord.GetWishlist()
	if len(items) == 0 {
		fmt.Println("wishlist is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tBRAND\tEXPECTED\tNOTES")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			item.ID, item.Name, item.Brand,
			app.coord.FormatPrice(item.ExpectedPrice), item.Notes)
	}
	w.Flush()
	return nil
}

func runWishlistAdd(cmd *cobra.Command, args []string) error {
	item, err := app.coord.AddWishlistItem(cmd.Context(), domain.WishlistItem{
		Name:          wishName,
		Brand:         wishBrand,
		ExpectedPrice: wishPrice,
		Notes:         wishNotes,
	})
	if err != nil {
		return err
	}
	fmt.Printf("added %s to wishlist (id %s)\n", item.Name, item.ID)
	return nil
}

func runWishlistUpdate(cmd *cobra.Command, args []string) error {
	id := domain.ID(args[0])
	var item domain.WishlistItem
	found := false
	for _, w := range app.coord.GetWishlist() {
		if w.ID == id {
			item = w
			found = true
			break
		}
	}
	if !found {
		return &storage.NotFoundError{Resource: "wishlist item " + id.String()}
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		item.Name = wishName
	}
	if flags.Changed("brand") {
		item.Brand = wishBrand
	}
	if flags.Changed("expected-price") {
		item.ExpectedPrice = wishPrice
	}
	if flags.Changed("notes") {
		item.Notes = wishNotes
	}

	if err := app.coord.UpdateWishlistItem(cmd.Context(), item); err != nil {
		return err
	}
	fmt.Printf("updated wishlist entry %s\n", item.ID)
	return nil
}

func runWishlistDelete(cmd *cobra.Command, args []string) error {
	id := domain.ID(args[0])
	if err := app.coord.DeleteWishlistItem(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("removed %s from wishlist\n", id)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if exportCSV {
		data, err = app.coord.ExportCSV()
	} else {
		data, err = app.coord.ExportJSON()
	}
	if err != nil {
		return err
	}

	if exportOut == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Printf("exported to %s\n", exportOut)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read bundle: %w", err)
	}
	if err := app.coord.Import(cmd.Context(), data); err != nil {
		return err
	}
	fmt.Printf("imported %d cars, %d wishlist entries\n",
		len(app.coord.GetCars()), len(app.coord.GetWishlist()))
	return nil
}

func runSetup(cmd *cobra.Command, args []string) error {
	firstRun := app.coord.GetSettings().SetupRequired

	ok, err := app.coord.ValidatePassword(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	switch {
	case ok && firstRun:
		fmt.Println("admin password set, setup complete")
	case ok:
		fmt.Println("password accepted")
	case firstRun:
		return fmt.Errorf("password must be at least 6 characters")
	default:
		return fmt.Errorf("password rejected")
	}
	return nil
}

func runTestConnection(cmd *cobra.Command, args []string) error {
	for _, b := range app.backends {
		prober, ok := b.(storage.Prober)
		if !ok {
			fmt.Printf("%s: ok (no probe needed)\n", b.Name())
			continue
		}
		if !b.Configured() {
			fmt.Printf("%s: not configured\n", b.Name())
			continue
		}
		if err := prober.TestConnection(cmd.Context()); err != nil {
			fmt.Printf("%s: %v\n", b.Name(), err)
			continue
		}
		// A write-read-delete probe catches tokens with read-only scope.
		if rt, ok := b.(interface{ VerifyRoundTrip(context.Context) error }); ok {
			if err := rt.VerifyRoundTrip(cmd.Context()); err != nil {
				fmt.Printf("%s: reachable but writes fail: %v\n", b.Name(), err)
				continue
			}
		}
		fmt.Printf("%s: ok\n", b.Name())
	}
	fmt.Printf("active backend: %s\n", app.coord.Backend())
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	fb := app.firebase
	if app.coord.Backend() != fb.Name() {
		return fmt.Errorf("watch requires the firebase backend (active: %s)", app.coord.Backend())
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	fb.WatchCars(ctx, watchInterval, func(cars []domain.Car) {
		fmt.Printf("[%s] collection changed: %d cars\n",
			time.Now().Format(time.TimeOnly), len(cars))
	})
	fb.WatchWishlist(ctx, watchInterval, func(items []domain.WishlistItem) {
		fmt.Printf("[%s] wishlist changed: %d entries\n",
			time.Now().Format(time.TimeOnly), len(items))
	})

	fmt.Println("watching for changes, interrupt to stop")
	<-ctx.Done()
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if app.cfg.ClaudeAPIKey == "" {
		return fmt.Errorf("CLAUDE_API_KEY is required for photo analysis")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	analyzer := claude.New(app.cfg.ClaudeAPIKey, app.cfg.ClaudeModel)
	result, err := analyzer.Analyze(cmd.Context(),
		f, mime.TypeByExtension(filepath.Ext(args[0])))
	if err != nil {
		return err
	}
	if len(result.Cars) == 0 {
		fmt.Println("no car identified")
		app.logger.Debug("vision response held no parseable lines", "raw", result.RawResponse)
		return nil
	}

	for _, detected := range result.Cars {
		fmt.Printf("name: %s\nbrand: %s\nseries: %s\ncolor: %s\nscale: %s\n",
			detected.Name, detected.Brand, detected.Series, detected.Color, detected.Scale)

		if !addDetected {
			continue
		}
		car, err := app.coord.AddCar(cmd.Context(), domain.Car{
			Name:   detected.Name,
			Brand:  detected.Brand,
			Series: detected.Series,
			Color:  detected.Color,
			Scale:  detected.Scale,
		})
		if err != nil {
			return fmt.Errorf("failed to add detected car: %w", err)
		}
		fmt.Printf("added to collection (id %s)\n", car.ID)
	}
	return nil
}
