package cmd

import (
	"fmt"
	"os"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/offloadkit/offload"
	"github.com/offloadkit/offload/stores/local"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <file.json>...",
	Short: "Resolve references in JSON files",
	Long:  "Replace every reference in each file with the payload loaded from the local store and write the result next to it as <name>.resolved.json.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().Bool("pass-through", false, "keep unresolvable references as raw tokens instead of failing")
	resolveCmd.Flags().Bool("delete", false, "delete stored payloads after a successful load")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	passThrough, _ := cmd.Flags().GetBool("pass-through")
	deleteAfter, _ := cmd.Flags().GetBool("delete")

	backend, err := local.New(getStoreDir())
	if err != nil {
		return err
	}
	engine, err := offload.New(
		offload.WithStores(backend),
		offload.WithLoadOptions(offload.LoadOptions{
			PassThrough:     passThrough,
			DeleteAfterLoad: deleteAfter,
		}),
	)
	if err != nil {
		return err
	}

	p := pool.New().WithErrors().WithMaxGoroutines(getConcurrency())
	for _, path := range args {
		p.Go(func() error {
			out, err := rewriteFile(cmd.Context(), path, ".resolved.json", engine.Resolve)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(os.Stderr, "%s -> %s\n", path, out)
			return nil
		})
	}
	return p.Wait()
}
