// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/content-engine/internal/completion"
	"github.com/pdiddy/content-engine/internal/content"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a pipeline definition without calling any backend",
	Long: `Validate builds the content pipeline from the default stages, or from
the definition given with --pipeline, applies the configured stage
overrides, and reports whether the stage chain is well formed. No
credentials are needed and no network call is made.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("pipeline"); path != "" {
		cfg.Content.PipelineFile = path
	}

	a, err := content.New(offlineClient{}, cfg.Content)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	def := a.Definition()
	fmt.Fprintf(w, "pipeline %s: %d stages\n", def.Name, len(def.Stages))
	for i, s := range def.Stages {
		model := s.Model
		if model == "" {
			model = "(default)"
		}
		fmt.Fprintf(w, "  %d. %-16s %s -> %s  model=%s\n", i+1, s.Name, s.Input, s.Output, model)
	}
	fmt.Fprintf(w, "result: %s\n", a.ResultKey())
	fmt.Fprintln(w, "ok")
	return nil
}

// offlineClient stands in for a backend when a pipeline is only validated.
type offlineClient struct{}

func (offlineClient) Complete(context.Context, completion.Request) (completion.Response, error) {
	return completion.Response{}, &completion.Error{
		Kind:    completion.ErrBackendUnavailable,
		Backend: "offline",
		Err:     errors.New("validation only"),
	}
}

func init() {
	validateCmd.Flags().String("pipeline", "", "YAML pipeline definition to validate (default: built-in stages)")

	rootCmd.AddCommand(validateCmd)
}
