package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nsridhar/carvault/internal/domain"
	"github.com/nsridhar/carvault/internal/manager"
	"github.com/nsridhar/carvault/internal/query"
)

func printCars(cars []domain.Car) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tBRAND\tSERIES\tCOLOR\tCONDITION\tPRICE")
	for _, car := range cars {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			car.ID, car.Name, car.Brand, car.Series, car.Color, car.Condition,
			app.coord.FormatPrice(car.PurchasePrice))
	}
	w.Flush()
}

func runList(cmd *cobra.Command, args []string) error {
	cars := query.Sort(app.coord.GetCars(), sortField, sortDescending)
	if len(cars) == 0 {
		fmt.Println("collection is empty")
		return nil
	}
	printCars(cars)
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	car := domain.Car{
		Name:          carName,
		Brand:         carBrand,
		Series:        carSeries,
		Year:          carYear,
		Color:         carColor,
		Scale:         carScale,
		Condition:     carCondition,
		PurchasePrice: carPrice,
		PurchaseDate:  carDate,
		Description:   carDescription,
	}

	saved, err := app.coord.AddCar(cmd.Context(), car)
	if err != nil {
		return err
	}
	fmt.Printf("added %s (id %s)\n", saved.Name, saved.ID)

	if carImagePath != "" {
		if err := attachImage(cmd, saved.ID, carImagePath); err != nil {
			return err
		}
	}
	return nil
}

func attachImage(cmd *cobra.Command, id domain.ID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	ref, err := app.coord.AttachImage(cmd.Context(), id, filepath.Base(path), data)
	if err != nil {
		return err
	}
	fmt.Printf("image stored at %s\n", ref)
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	car, err := app.coord.GetCarByID(domain.ID(args[0]))
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		car.Name = carName
	}
	if flags.Changed("brand") {
		car.Brand = carBrand
	}
	if flags.Changed("series") {
		car.Series = carSeries
	}
	if flags.Changed("year") {
		car.Year = carYear
	}
	if flags.Changed("color") {
		car.Color = carColor
	}
	if flags.Changed("scale") {
		car.Scale = carScale
	}
	if flags.Changed("condition") {
		car.Condition = carCondition
	}
	if flags.Changed("price") {
		car.PurchasePrice = carPrice
	}
	if flags.Changed("date") {
		car.PurchaseDate = carDate
	}
	if flags.Changed("description") {
		car.Description = carDescription
	}

	if err := app.coord.UpdateCar(cmd.Context(), car); err != nil {
		return err
	}
	fmt.Printf("updated %s\n", car.ID)

	if flags.Changed("image") {
		return attachImage(cmd, car.ID, carImagePath)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	id := domain.ID(args[0])
	if err := app.coord.DeleteCar(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", id)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	q := ""
	if len(args) > 0 {
		q = args[0]
	}
	cars := app.coord.SearchCars(q, query.Filters{
		Brand:     filterBrand,
		Series:    filterSeries,
		Color:     filterColor,
		Condition: filterCondition,
	})
	if len(cars) == 0 {
		fmt.Println("no matches")
		return nil
	}
	printCars(cars)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	stats := app.coord.Statistics()

	fmt.Printf("cars: %d\n", stats.TotalCars)
	fmt.Printf("total value: %s\n", app.coord.FormatPrice(stats.TotalValue))
	fmt.Printf("average price: %s\n", app.coord.FormatPrice(stats.AveragePrice))
	if stats.MostExpensive != nil {
		fmt.Printf("most expensive: %s (%s)\n",
			stats.MostExpensive.Name, app.coord.FormatPrice(stats.MostExpensive.PurchasePrice))
	}
	if stats.LeastExpensive != nil {
		fmt.Printf("least expensive: %s (%s)\n",
			stats.LeastExpensive.Name, app.coord.FormatPrice(stats.LeastExpensive.PurchasePrice))
	}

	if len(stats.ByBrand) > 0 {
		fmt.Println("\nby brand:")
		for _, brand := range manager.SortedBrands(stats) {
			fmt.Printf("  %s: %d\n", brand, stats.ByBrand[brand])
		}
	}

	bands := app.coord.PriceBands()
	if len(bands) > 0 {
		fmt.Println("\nby price:")
		for _, band := range []string{"under 5", "5 to 20", "20 to 100", "100 and up"} {
			if n := bands[band]; n > 0 {
				fmt.Printf("  %s: %d\n", band, n)
			}
		}
	}
	return nil
}

func runValues(cmd *cobra.Command, args []string) error {
	for _, v := range app.coord.UniqueFieldValues(args[0]) {
		fmt.Println(v)
	}
	return nil
}
