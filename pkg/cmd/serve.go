package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	klog "k8s.io/klog/v2"

	"github.com/tilt-dev/greeter/pkg/greeter"
)

// PortEnv overrides the default port when set.
const PortEnv = "PORT"

type ServeOptions struct {
	genericclioptions.IOStreams

	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	hostname greeter.HostnameFunc
}

func NewServeOptions() *ServeOptions {
	return &ServeOptions{
		IOStreams:       genericclioptions.IOStreams{Out: os.Stdout, ErrOut: os.Stderr, In: os.Stdin},
		Host:            greeter.DefaultHost,
		Port:            defaultPort(),
		ReadTimeout:     greeter.DefaultReadTimeout,
		WriteTimeout:    greeter.DefaultWriteTimeout,
		ShutdownTimeout: greeter.DefaultShutdownTimeout,
	}
}

func defaultPort() int {
	v := os.Getenv(PortEnv)
	if v == "" {
		return greeter.DefaultPort
	}
	port, err := strconv.Atoi(v)
	if err != nil || port < 1 || port > 65535 {
		klog.Warningf("ignoring invalid %s=%q, using %d", PortEnv, v, greeter.DefaultPort)
		return greeter.DefaultPort
	}
	return port
}

func (o *ServeOptions) Command() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the hostname greeting over HTTP",
		Example: "  greeter serve\n" +
			"  PORT=8080 greeter serve\n" +
			"  greeter serve --host=127.0.0.1 --port=5001",
		Run:  o.Run,
		Args: cobra.NoArgs,
	}

	o.AddFlags(cmd.Flags())

	return cmd
}

func (o *ServeOptions) AddFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.Host, "host", o.Host, "The address to bind. Defaults to all interfaces.")
	flags.IntVar(&o.Port, "port", o.Port, fmt.Sprintf("The port to listen on. Defaults to $%s, or %d if unset.", PortEnv, greeter.DefaultPort))
	flags.DurationVar(&o.ReadTimeout, "read-timeout", o.ReadTimeout, "Maximum time to read a request, including the body.")
	flags.DurationVar(&o.WriteTimeout, "write-timeout", o.WriteTimeout, "Maximum time to write a response.")
	flags.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "How long to wait for in-flight requests on SIGINT/SIGTERM.")
}

func (o *ServeOptions) Run(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := o.run(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(o.ErrOut, "greeter: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func (o *ServeOptions) validate() error {
	if o.Port < 1 || o.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", o.Port)
	}
	if o.ReadTimeout <= 0 || o.WriteTimeout <= 0 || o.ShutdownTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

func (o *ServeOptions) serverOptions() greeter.ServerOptions {
	return greeter.ServerOptions{
		Host:            o.Host,
		Port:            o.Port,
		ReadTimeout:     o.ReadTimeout,
		WriteTimeout:    o.WriteTimeout,
		ShutdownTimeout: o.ShutdownTimeout,
		Hostname:        o.hostname,
	}
}

func (o *ServeOptions) run(ctx context.Context) error {
	err := o.validate()
	if err != nil {
		return errors.Wrap(err, "serve")
	}

	s := greeter.NewServer(o.serverOptions())
	l, err := s.Listen(ctx)
	if err != nil {
		return err
	}

	klog.V(2).Infof("Serving with read timeout %s, write timeout %s", s.ReadTimeout, s.WriteTimeout)
	_, _ = fmt.Fprintf(o.Out, "greeter listening on http://%s\n", l.Addr())

	err = s.Serve(ctx, l)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(o.Out, "greeter stopped")
	return nil
}
