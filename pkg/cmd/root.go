package cmd

import "github.com/spf13/cobra"

func NewRootCommand() *cobra.Command {
	serve := NewServeOptions()

	var rootCmd = &cobra.Command{
		Use:   "greeter [command]",
		Short: "Say hello from whatever container this is running in",
		Example: "  greeter\n" +
			"  greeter serve --port=8080",
		Run:  serve.Run,
		Args: cobra.NoArgs,
	}

	serve.AddFlags(rootCmd.Flags())
	rootCmd.AddCommand(serve.Command())
	rootCmd.AddCommand(NewVersionOptions().Command())

	return rootCmd
}
