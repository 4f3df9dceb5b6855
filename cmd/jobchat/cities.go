package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var citiesOutput string

var citiesCmd = &cobra.Command{
	Use:   "cities",
	Short: "Manage the city taxonomy",
}

var citiesGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Fetch the city feed and write the grouped taxonomy",
	Long: `Fetch the third-party city group feed, falling back to CITY_BACKUP_PATH when it is
unreachable, and write the grouped taxonomy served by GET /api/cities.`,
	Args: cobra.NoArgs,
	RunE: runCitiesGenerate,
}

func init() {
	citiesGenerateCmd.Flags().StringVarP(&citiesOutput, "output", "o", "", "output file (default CITY_DATA_PATH)")
	citiesCmd.AddCommand(citiesGenerateCmd)
}

func runCitiesGenerate(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := citiesOutput
	if out == "" {
		out = a.Config.CityDataPath
	}

	fetcher, err := a.CityFetcher()
	if err != nil {
		return err
	}

	taxonomy, err := fetcher.Generate(cmd.Context(), out)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d cities to %s\n", len(taxonomy.CityOptions), out)
	return nil
}
