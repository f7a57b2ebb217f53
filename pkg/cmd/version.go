package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericclioptions"
)

// Set at link time with -ldflags "-X github.com/tilt-dev/greeter/pkg/cmd.Version=..."
var Version string

type VersionOptions struct {
	genericclioptions.IOStreams
}

func NewVersionOptions() *VersionOptions {
	return &VersionOptions{
		IOStreams: genericclioptions.IOStreams{Out: os.Stdout, ErrOut: os.Stderr, In: os.Stdin},
	}
}

func (o *VersionOptions) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the greeter version",
		Run:   o.Run,
		Args:  cobra.NoArgs,
	}
}

func (o *VersionOptions) Run(cmd *cobra.Command, args []string) {
	_, _ = fmt.Fprintln(o.Out, versionString())
}

func versionString() string {
	v := Version
	if v == "" {
		v = "dev"
	}
	return fmt.Sprintf("greeter %s %s/%s", v, runtime.GOOS, runtime.GOARCH)
}
