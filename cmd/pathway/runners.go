// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pathwayprop/pathway/pkg/logging"
	"github.com/pathwayprop/pathway/services/analysis"
	"github.com/pathwayprop/pathway/services/gatekeeper"
	"github.com/pathwayprop/pathway/services/orchestrator/datatypes"
	"github.com/pathwayprop/pathway/services/rag"
	"github.com/pathwayprop/pathway/services/scoring"
)

var logger = logging.New(logging.Config{
	Level:   logging.LevelInfo,
	LogDir:  "~/.pathway/logs",
	Service: "cli",
})

var httpClient = &http.Client{Timeout: 5 * time.Minute}

func apiURL(path string) string {
	return strings.TrimRight(viper.GetString("api"), "/") + path
}

// postJSON posts a request body and decodes the response into out.
func postJSON(path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(apiURL(path), "application/json", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func getJSON(path string, out any) error {
	resp, err := httpClient.Get(apiURL(path))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	req := datatypes.StartAnalysisRequest{
		PropertyID:   args[0],
		PropertyType: propertyType,
		Address:      address,
		Lat:          lat,
		Lng:          lng,
		State:        state,
		AskingPrice:  askingPrice,
		WeeklyRent:   weeklyRent,
	}
	if err := req.Validate(); err != nil {
		log.Fatalf("Invalid analysis request: %v", err)
	}

	var run analysis.Analysis
	if err := postJSON("/v1/analyses", req, &run); err != nil {
		log.Fatalf("Failed to start analysis: %v", err)
	}
	fmt.Printf("Analysis started: %s (%s)\n", run.ID, run.Status)

	if !waitForRun {
		fmt.Printf("Poll with: pathway status %s\n", run.ID)
		return
	}

	run = pollUntilFinished(run.ID)
	printRun(run)
}

func pollUntilFinished(id string) analysis.Analysis {
	var run analysis.Analysis
	for {
		time.Sleep(time.Second)
		if err := getJSON("/v1/analyses/"+id, &run); err != nil {
			log.Fatalf("Failed to poll analysis: %v", err)
		}
		switch run.Status {
		case analysis.StatusComplete, analysis.StatusRejected, analysis.StatusFailed, analysis.StatusCanceled:
			return run
		}
		logger.Debug("analysis still running", "analysis_id", id, "status", run.Status)
	}
}

func runStatus(cmd *cobra.Command, args []string) {
	var run analysis.Analysis
	if err := getJSON("/v1/analyses/"+args[0], &run); err != nil {
		log.Fatalf("Failed to fetch analysis: %v", err)
	}
	printRun(run)
}

func printRun(run analysis.Analysis) {
	fmt.Printf("Analysis %s\n", run.ID)
	fmt.Printf("  Property: %s (%s)\n", run.PropertyID, run.PropertyType)
	fmt.Printf("  Status:   %s\n", run.Status)
	if run.Error != "" {
		fmt.Printf("  Error:    %s\n", run.Error)
	}
	if run.Gatekeeper != nil {
		printGatekeeper(run.Gatekeeper)
	}
	if run.Report != nil {
		printReport(run.Report)
	}
}

func printGatekeeper(result *gatekeeper.Result) {
	fmt.Printf("  Gatekeeper: %s (rules %s)\n", result.Verdict, result.RuleVersion)
	for _, reason := range result.KillReasons {
		fmt.Printf("    KILL: %s\n", reason)
	}
	for _, check := range result.Checks {
		if check.Score == gatekeeper.CheckPass {
			continue
		}
		flag := ""
		if check.DataIncomplete {
			flag = " (data incomplete)"
		}
		fmt.Printf("    %-7s %s: %s%s\n", check.Score, check.RuleID, check.Detail, flag)
	}
}

func printReport(report *scoring.Report) {
	fmt.Printf("  Risk score: %.1f (%s), confidence %.0f%%\n",
		report.OverallScore, report.Rating, report.Confidence*100)
	for _, cat := range report.Categories {
		fmt.Printf("    %-18s %.1f (weight %.2f, %d factors)\n",
			cat.Category, cat.Score, cat.Weight, cat.FactorCount)
	}
	if len(report.TopFactors) > 0 {
		fmt.Println("  Top factors:")
		for _, f := range report.TopFactors {
			fmt.Printf("    %.2f %s/%s\n", f.Contribution, f.Category, f.Name)
		}
	}
	for _, rec := range report.Recommendations {
		fmt.Printf("  Recommendation: %s\n", rec)
	}
}

func runGatekeeper(cmd *cobra.Command, args []string) {
	var body struct {
		AnalysisID string             `json:"analysis_id"`
		Gatekeeper *gatekeeper.Result `json:"gatekeeper"`
	}
	if err := getJSON("/v1/properties/"+args[0]+"/gatekeeper", &body); err != nil {
		log.Fatalf("Failed to fetch gatekeeper result: %v", err)
	}
	fmt.Printf("Latest analysis: %s\n", body.AnalysisID)
	printGatekeeper(body.Gatekeeper)
}

func runScore(cmd *cobra.Command, args []string) {
	var body struct {
		AnalysisID string          `json:"analysis_id"`
		Report     *scoring.Report `json:"report"`
	}
	if err := getJSON("/v1/properties/"+args[0]+"/score", &body); err != nil {
		log.Fatalf("Failed to fetch risk report: %v", err)
	}
	fmt.Printf("Latest analysis: %s\n", body.AnalysisID)
	printReport(body.Report)
}

func runIngest(cmd *cobra.Command, args []string) {
	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Could not read file %s: %v", path, err)
		}

		documentID := ingestDocument
		if documentID == "" || len(args) > 1 {
			base := filepath.Base(path)
			documentID = strings.TrimSuffix(base, filepath.Ext(base))
		}

		req := datatypes.IngestDocumentRequest{
			PropertyID: ingestProperty,
			DocumentID: documentID,
			Kind:       ingestKind,
			Source:     filepath.Base(path),
		}
		// Pages are separated by form feed characters; a file without
		// them is a single page.
		for i, page := range strings.Split(string(content), "\f") {
			req.Pages = append(req.Pages, datatypes.IngestPage{
				PageNumber: i + 1,
				Text:       page,
			})
		}
		if err := req.Validate(); err != nil {
			log.Fatalf("Invalid ingest request for %s: %v", path, err)
		}

		var result struct {
			DocumentID string `json:"document_id"`
			ChunkCount int    `json:"chunk_count"`
			Fallback   bool   `json:"fallback"`
		}
		if err := postJSON("/v1/documents", req, &result); err != nil {
			log.Fatalf("Failed to ingest %s: %v", path, err)
		}
		fmt.Printf("Ingested %s as %s: %d chunks", path, result.DocumentID, result.ChunkCount)
		if result.Fallback {
			fmt.Printf(" (page fallback; no recognized structure)")
		}
		fmt.Println()
	}
}

func runAsk(cmd *cobra.Command, args []string) {
	req := datatypes.QueryRequest{
		PropertyID: askProperty,
		DocumentID: askDocument,
		Question:   strings.Join(args, " "),
	}
	if err := req.Validate(); err != nil {
		log.Fatalf("Invalid query: %v", err)
	}

	var answer rag.Answer
	if err := postJSON("/v1/query", req, &answer); err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	if answer.NotFound {
		fmt.Println("The documents do not contain an answer to this question.")
		return
	}
	fmt.Println(answer.Text)
	fmt.Printf("\nConfidence: %.0f%%\n", answer.Confidence*100)
	if answer.Ambiguous {
		fmt.Println("Warning: the answer cites no sources and should be verified manually.")
	}
	for _, c := range answer.Citations {
		section := c.Section
		if section == "" {
			section = "(untitled section)"
		}
		fmt.Printf("  [%s] %s, page %d\n", c.DocumentID, section, c.Page)
	}
}

func runRulesValidate(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatalf("Could not read rule file: %v", err)
	}

	rules, err := gatekeeper.Load(data)
	if err != nil {
		if gatekeeper.IsInvalidRuleDefinition(err) {
			log.Fatalf("Rule file is invalid: %v", err)
		}
		log.Fatalf("Could not parse rule file: %v", err)
	}

	fmt.Printf("Rule file OK: version %s, %d rules\n", rules.Version, len(rules.Rules))
	for _, category := range rules.Categories() {
		fmt.Printf("  %s: %d rules\n", category, len(rules.ByCategory(category)))
	}
}
