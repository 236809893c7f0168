package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/porttrack/core/forecast"
)

var forecastFormat string

var forecastCmd = &cobra.Command{
	Use:   "forecast [file]",
	Short: "Print the arrival forecast summary",
	Long: "Print the arrival forecast for the vessels listed in file (YAML or JSON), " +
		"or for the vessels in the tracking store still heading to port.",
	Args: cobra.MaximumNArgs(1),
	RunE: runForecast,
}

func init() {
	forecastCmd.Flags().StringVarP(&forecastFormat, "format", "f", "json", "output format: json or yaml")
	rootCmd.AddCommand(forecastCmd)
}

type forecastReport struct {
	Summary   forecast.Summary   `json:"summary" yaml:"summary"`
	Windows   []forecast.Window  `json:"windows" yaml:"windows"`
	Frequency forecast.Frequency `json:"frequency" yaml:"frequency"`
}

func runForecast(cmd *cobra.Command, args []string) error {
	if forecastFormat != "json" && forecastFormat != "yaml" {
		return fmt.Errorf("unsupported format %q", forecastFormat)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var vessels []forecast.Vessel
	if len(args) == 1 {
		vessels, err = forecast.LoadVessels(args[0])
		if err != nil {
			return err
		}
	} else {
		tr, closeFn, err := openTracker(cfg)
		if err != nil {
			return err
		}
		vessels = forecast.FromRecords(tr.Vessels())
		closeFn()
	}

	engine := forecast.New(cfg.Port)
	report := forecastReport{
		Summary:   engine.Summarize(vessels),
		Windows:   engine.GenerateForecast(vessels),
		Frequency: engine.AnalyzeFrequency(vessels),
	}
	out := cmd.OutOrStdout()
	if forecastFormat == "yaml" {
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(report)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
