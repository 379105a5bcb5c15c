package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adcommander/adcmdr-tools/client"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration and connectivity",
		Long:  "Run diagnostic checks against config, server, schema and auth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context())
		},
	}
}

type checkResult struct {
	Name   string
	Passed bool
	Detail string
	Hint   string
}

func runDoctor(ctx context.Context) error {
	fmt.Println("\nadcmdr doctor")
	fmt.Println("=============")

	var results []checkResult

	// 1. Config file.
	cfgPath, _, cfgErr := loadConfigFile()
	if cfgErr != nil {
		// The file is optional once flags or env supply a key.
		results = append(results, checkResult{
			Name: "Config file", Passed: flagKey != "",
			Detail: "not found (" + cfgPath + ")",
			Hint:   "Create it with url and api_key, or set ADCMDR_URL and ADCMDR_API_KEY",
		})
	} else {
		results = append(results, checkResult{
			Name: "Config file", Passed: true,
			Detail: fmt.Sprintf("found (%s)", cfgPath),
		})
	}

	// 2. API key.
	if flagKey == "" {
		results = append(results, checkResult{
			Name: "API key", Passed: false,
			Hint: "Set --api-key, ADCMDR_API_KEY, or api_key in the config file",
		})
	} else {
		results = append(results, checkResult{
			Name: "API key", Passed: true, Detail: "configured",
		})
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// 3. Server reachable.
	health, err := apiClient.Health(ctx)
	if err != nil {
		results = append(results, checkResult{
			Name: "Server reachable", Passed: false,
			Detail: flagURL,
			Hint:   fmt.Sprintf("Is adcmdr-server running?\n   Error: %v", err),
		})
	} else {
		results = append(results, checkResult{
			Name: "Server reachable", Passed: true,
			Detail: fmt.Sprintf("v%s, export %s", health.Version, health.Export),
		})

		// 4. Schema.
		ready, err := apiClient.Ready(ctx)
		if err != nil {
			results = append(results, checkResult{
				Name: "Database schema", Passed: false,
				Hint: fmt.Sprintf("Restart adcmdr-server to apply migrations. Error: %v", err),
			})
		} else {
			results = append(results, checkResult{
				Name: "Database schema", Passed: true,
				Detail: fmt.Sprintf("version %d", ready.SchemaVersion),
			})
		}

		// 5. Authentication.
		if flagKey != "" {
			if _, err := apiClient.Bundles.List(ctx); err != nil {
				hint := fmt.Sprintf("Check your API key. Error: %v", err)
				if client.IsRateLimited(err) {
					hint = "Too many failed attempts; wait for the lockout to expire"
				}
				results = append(results, checkResult{Name: "Authentication", Passed: false, Hint: hint})
			} else {
				results = append(results, checkResult{Name: "Authentication", Passed: true, Detail: "valid"})
			}
		}
	}

	// Print results.
	fmt.Println()
	allPassed := true
	for _, r := range results {
		mark := "ok  "
		if !r.Passed {
			mark = "FAIL"
			allPassed = false
		}
		if r.Detail != "" {
			fmt.Printf("[%s] %s: %s\n", mark, r.Name, r.Detail)
		} else {
			fmt.Printf("[%s] %s\n", mark, r.Name)
		}
		if !r.Passed && r.Hint != "" {
			fmt.Printf("       Hint: %s\n", r.Hint)
		}
	}

	fmt.Println()
	if !allPassed {
		fmt.Println("Some checks failed.")
		return fmt.Errorf("doctor found issues")
	}

	fmt.Println("All checks passed!")
	return nil
}
