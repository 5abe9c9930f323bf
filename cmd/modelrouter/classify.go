package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/modelrouter/internal/adapter/llm"
	"github.com/xiaot623/gogo/modelrouter/internal/router"
)

var rulesOnly bool

var classifyCmd = &cobra.Command{
	Use:   "classify [query]",
	Short: "Print the routing decision for a query",
	Long: `Runs the rule tier and, unless --rules-only is set, the model classifier,
and prints the resulting decision as JSON. Nothing is dispatched.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&rulesOnly, "rules-only", false, "skip the model classifier")
}

func runClassify(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	if rulesOnly {
		d := router.NewPatternDetector().Detect(query, false)
		if d == nil {
			return printJSON(cmd, map[string]interface{}{"query": query, "decision": nil})
		}
		return printJSON(cmd, d)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := zap.NewNop()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	backends, err := llm.NewBackendsFromConfig(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM backends: %w", err)
	}

	r := router.New(
		router.NewPatternDetector(),
		router.NewModelClassifier(backends.Classification(), cfg.ClassifierTimeout, logger),
		router.WithThreshold(cfg.AcceptThreshold),
	)
	decision, metadata := r.Route(ctx, query, nil)
	return printJSON(cmd, map[string]interface{}{
		"decision":         decision,
		"routing_metadata": metadata,
	})
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
