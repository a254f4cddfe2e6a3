// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rootCmd = &cobra.Command{
		Use:   "pathway",
		Short: "A CLI for the Pathway property risk analysis service",
		Long: `Pathway evaluates residential investment properties against
hard risk rules and document evidence, producing a gatekeeper verdict
and a weighted risk report.`,
	}

	analyzeCmd = &cobra.Command{
		Use:   "analyze [property-id]",
		Short: "Start a risk analysis for a property",
		Long:  `Starts an analysis run on the orchestrator. With --wait the command polls until the run finishes and prints the risk report.`,
		Args:  cobra.ExactArgs(1),
		Run:   runAnalyze,
	}
	propertyType string
	address      string
	lat, lng     float64
	state        string
	askingPrice  float64
	weeklyRent   float64
	waitForRun   bool

	statusCmd = &cobra.Command{
		Use:   "status [analysis-id]",
		Short: "Show the current state of an analysis run",
		Args:  cobra.ExactArgs(1),
		Run:   runStatus,
	}

	gatekeeperCmd = &cobra.Command{
		Use:   "gatekeeper [property-id]",
		Short: "Show the gatekeeper verdict from the latest analysis of a property",
		Args:  cobra.ExactArgs(1),
		Run:   runGatekeeper,
	}

	scoreCmd = &cobra.Command{
		Use:   "score [property-id]",
		Short: "Show the composite risk report from the latest analysis of a property",
		Args:  cobra.ExactArgs(1),
		Run:   runScore,
	}

	ingestCmd = &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingest extracted document text for a property",
		Long:  `Reads one or more text files (pages separated by form feed characters) and posts them to the orchestrator for chunking and embedding.`,
		Args:  cobra.MinimumNArgs(1),
		Run:   runIngest,
	}
	ingestProperty string
	ingestDocument string
	ingestKind     string

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a grounded question against a property's documents",
		Long:  `Sends a question to the orchestrator, which retrieves the most relevant document chunks and generates a cited answer. Scope to a single document with --document.`,
		Args:  cobra.MinimumNArgs(1),
		Run:   runAsk,
	}
	askProperty string
	askDocument string

	rulesCmd = &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate gatekeeper rule files",
	}
	rulesValidateCmd = &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a gatekeeper rule YAML file without loading it into the service",
		Args:  cobra.ExactArgs(1),
		Run:   runRulesValidate,
	}
)

func init() {
	rootCmd.PersistentFlags().String("api", "", "Base URL of the orchestrator (default http://localhost:9180, env PATHWAY_API)")
	_ = viper.BindPFlag("api", rootCmd.PersistentFlags().Lookup("api"))
	viper.SetEnvPrefix("pathway")
	_ = viper.BindEnv("api")
	viper.SetDefault("api", "http://localhost:9180")

	analyzeCmd.Flags().StringVar(&propertyType, "type", "house", "Property type (house, apartment, townhouse, unit, land)")
	analyzeCmd.Flags().StringVar(&address, "address", "", "Street address used for spatial fact lookups")
	analyzeCmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	analyzeCmd.Flags().Float64Var(&lng, "lng", 0, "Longitude")
	analyzeCmd.Flags().StringVar(&state, "state", "VIC", "State code")
	analyzeCmd.Flags().Float64Var(&askingPrice, "price", 0, "Asking price in dollars, used for the gross yield")
	analyzeCmd.Flags().Float64Var(&weeklyRent, "rent", 0, "Expected weekly rent in dollars")
	analyzeCmd.Flags().BoolVar(&waitForRun, "wait", false, "Poll until the run finishes and print the report")
	_ = analyzeCmd.MarkFlagRequired("address")

	ingestCmd.Flags().StringVar(&ingestProperty, "property", "", "Property ID the documents belong to")
	ingestCmd.Flags().StringVar(&ingestDocument, "document", "", "Document ID (defaults to the file name)")
	ingestCmd.Flags().StringVar(&ingestKind, "kind", "generic", "Document kind (contract, title, planning, strata_minutes, building_report, generic)")
	_ = ingestCmd.MarkFlagRequired("property")

	askCmd.Flags().StringVar(&askProperty, "property", "", "Property ID to query")
	askCmd.Flags().StringVar(&askDocument, "document", "", "Restrict retrieval to one document")
	_ = askCmd.MarkFlagRequired("property")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(gatekeeperCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
}
