package main

import (
	"os"

	"github.com/function61/gokit/dynversion"
	"github.com/function61/gokit/osutil"
	"github.com/function61/liveedit/pkg/livepublish"
	"github.com/function61/liveedit/pkg/liveruntime"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     os.Args[0],
		Short:   "Live edit for Lambda: run your latest local edits without deploying",
		Version: dynversion.Version,
		// hide the default "completion" subcommand from polluting UX (it can still be used). https://github.com/spf13/cobra/issues/1507
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	}

	// publishing commands are at the root level, since they're what developers use
	for _, entrypoint := range livepublish.Entrypoints() {
		rootCmd.AddCommand(entrypoint)
	}

	rootCmd.AddCommand(liveruntime.Entrypoint())

	osutil.ExitIfError(rootCmd.Execute())
}
