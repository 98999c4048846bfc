// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/content-engine/internal/completion"
	"github.com/pdiddy/content-engine/internal/content"
	"github.com/pdiddy/content-engine/internal/history"
	vlog "github.com/pdiddy/content-engine/internal/log"
	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/internal/secrets"
)

var runCmd = &cobra.Command{
	Use:   "run <topic...>",
	Short: "Generate a Markdown blog post for a topic",
	Long: `Run sends the topic through the content pipeline: IdeaAgent brainstorms
4-6 post ideas, WriterAgent expands them into a ~300-word draft, and
FormatterAgent formats the draft as Markdown. The formatted post is printed
to stdout; progress goes to stderr.

If a stage fails, later stages never start and the failing stage is
reported. Use --resume with a run id from "history list" to continue a
failed run without repeating the stages that already succeeded.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	resumeID, _ := cmd.Flags().GetInt64("resume")
	showState, _ := cmd.Flags().GetBool("show-state")

	topic := strings.TrimSpace(strings.Join(args, " "))
	if topic == "" && resumeID == 0 {
		return errors.New("topic required: content-engine run <topic...>")
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	key, err := secrets.Resolve(cfg.AI.Backend, cfg.AI.APIKey, loadedSecrets)
	if err != nil {
		return err
	}
	cfg.AI.APIKey = key

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, err := completion.New(ctx, cfg.AI, nil)
	if err != nil {
		return err
	}

	assistant, err := content.New(client, cfg.Content,
		pipeline.WithTimeout(cfg.AI.Timeout),
		pipeline.WithProgress(cmd.ErrOrStderr()),
	)
	if err != nil {
		return err
	}

	var store *history.Store
	if !cfg.History.Disabled || resumeID != 0 {
		store, err = history.Open(cfg.History)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	var (
		out    string
		res    *pipeline.Result
		runErr error
	)
	if resumeID != 0 {
		prior, err := store.Get(ctx, resumeID)
		if err != nil {
			return err
		}
		if prior.Pipeline != assistant.Pipeline().Name() {
			return fmt.Errorf("run %d used pipeline %s, current pipeline is %s", resumeID, prior.Pipeline, assistant.Pipeline().Name())
		}
		topic = prior.Topic
		fmt.Fprintf(cmd.ErrOrStderr(), "resuming run %d (%s)\n", resumeID, topic)
		out, res, runErr = assistant.Resume(ctx, prior.State)
	} else {
		out, res, runErr = assistant.Generate(ctx, topic)
	}

	if res == nil && runErr != nil {
		return runErr
	}

	rec := content.NewRecord(res, topic, string(cfg.AI.Backend), cfg.AI.Model, runErr)
	if store != nil && !cfg.History.Disabled {
		id, err := store.Record(context.WithoutCancel(ctx), rec)
		if err != nil {
			vlog.Error("recording run", "err", err)
		} else {
			rec.ID = id
			fmt.Fprintf(cmd.ErrOrStderr(), "recorded run %d\n", id)
		}
	}

	if cfg.Content.OutputDir != "" {
		path, err := content.SaveResult(cfg.Content.OutputDir, rec, out)
		if err != nil {
			vlog.Error("saving result", "err", err)
		} else if path != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
		}
	}

	if runErr != nil {
		if name, ok := pipeline.FailedStage(runErr); ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "pipeline failed at stage %s\n", name)
		}
		if rec.ID != 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "resume with: content-engine run --resume %d\n", rec.ID)
		}
		if showState {
			printState(cmd.OutOrStdout(), res.State)
		}
		return runErr
	}

	if showState {
		return printState(cmd.OutOrStdout(), res.State)
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(out, "\n"))
	return nil
}

func printState(w io.Writer, state map[string]string) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(state)
}

func init() {
	runCmd.Flags().String("backend", "", "model backend: gemini, claude, anthropic, openai, ollama, ark, qwen")
	runCmd.Flags().String("model", "", "default model identifier for every stage")
	runCmd.Flags().String("api-key", "", "API key (overrides secrets and environment)")
	runCmd.Flags().String("base-url", "", "override the backend endpoint")
	runCmd.Flags().Duration("timeout", 0, "timeout for each model call (default 2m)")
	runCmd.Flags().String("pipeline", "", "YAML pipeline definition replacing the default stages")
	runCmd.Flags().String("output-dir", "", "directory for the Markdown post and run record (default output)")
	runCmd.Flags().Bool("no-history", false, "do not record the run in the history database")
	runCmd.Flags().Bool("show-state", false, "print the full pipeline state as YAML instead of the post")
	runCmd.Flags().Int64("resume", 0, "resume the recorded run with this id")

	viper.BindPFlag("ai.backend", runCmd.Flags().Lookup("backend"))
	viper.BindPFlag("ai.model", runCmd.Flags().Lookup("model"))
	viper.BindPFlag("ai.api_key", runCmd.Flags().Lookup("api-key"))
	viper.BindPFlag("ai.base_url", runCmd.Flags().Lookup("base-url"))
	viper.BindPFlag("ai.timeout", runCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("content.pipeline_file", runCmd.Flags().Lookup("pipeline"))
	viper.BindPFlag("content.output_dir", runCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("history.disabled", runCmd.Flags().Lookup("no-history"))

	rootCmd.AddCommand(runCmd)
}
