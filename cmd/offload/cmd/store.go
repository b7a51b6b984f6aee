package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/offloadkit/offload"
	"github.com/offloadkit/offload/stores/local"
)

var storeCmd = &cobra.Command{
	Use:   "store <file.json>...",
	Short: "Offload payloads from JSON files",
	Long:  "Offload each file's selected payload to the local store and write the rewritten JSON next to it as <name>.offloaded.json.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStore,
}

func init() {
	storeCmd.Flags().String("selector", "", "path to offload (default: whole output)")
	storeCmd.Flags().Int64("min-size", 0, "offload threshold in bytes (default: from config)")
	rootCmd.AddCommand(storeCmd)
}

func runStore(cmd *cobra.Command, args []string) error {
	selector, _ := cmd.Flags().GetString("selector")
	if selector == "" {
		selector = getSelector()
	}
	minSize, _ := cmd.Flags().GetInt64("min-size")
	if !cmd.Flags().Changed("min-size") {
		minSize = getMinSize()
	}

	backend, err := local.New(getStoreDir())
	if err != nil {
		return err
	}
	engine, err := offload.New(
		offload.WithStores(backend),
		offload.WithSelector(selector),
		offload.WithMinSize(minSize),
	)
	if err != nil {
		return err
	}

	p := pool.New().WithErrors().WithMaxGoroutines(getConcurrency())
	for _, path := range args {
		p.Go(func() error {
			out, err := rewriteFile(cmd.Context(), path, ".offloaded.json", engine.Offload)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(os.Stderr, "%s -> %s\n", path, out)
			return nil
		})
	}
	return p.Wait()
}

// rewriteFile runs one engine phase over a JSON file and writes the result
// next to it with the given suffix.
func rewriteFile(ctx context.Context, path, suffix string, phase func(context.Context, any) (any, error)) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}

	result, err := phase(ctx, payload)
	if err != nil {
		return "", err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}

	outPath := strings.TrimSuffix(path, ".json") + suffix
	if err := os.WriteFile(outPath, append(out, '\n'), 0o644); err != nil {
		return "", err
	}
	return outPath, nil
}
