package greeter

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	klog "k8s.io/klog/v2"
)

const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 5000
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
)

type ServerOptions struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Defaults to OSHostname.
	Hostname HostnameFunc
}

// Server binds one TCP listener and serves the greeting on it until its
// context is cancelled.
type Server struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Handler         http.Handler
}

// FillDefaults replaces zero values with the defaults, so a Server never runs
// without timeouts.
func FillDefaults(o *ServerOptions) {
	if o.Host == "" {
		o.Host = DefaultHost
	}
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	if o.Hostname == nil {
		o.Hostname = OSHostname
	}
}

func NewServer(o ServerOptions) *Server {
	FillDefaults(&o)
	return &Server{
		Addr:            net.JoinHostPort(o.Host, strconv.Itoa(o.Port)),
		ReadTimeout:     o.ReadTimeout,
		WriteTimeout:    o.WriteTimeout,
		ShutdownTimeout: o.ShutdownTimeout,
		Handler:         NewHandler(o.Hostname),
	}
}

// BindError means the listener could not be created. It is always fatal.
type BindError struct {
	Addr string
	Err  error

	// The process already listening on the port, if we could find it.
	Owner string
}

func (e *BindError) Error() string {
	msg := fmt.Sprintf("binding %s: %v", e.Addr, e.Err)
	if e.Owner != "" {
		msg += fmt.Sprintf(" (port held by %s)", e.Owner)
	}
	return msg
}

func (e *BindError) Unwrap() error { return e.Err }
func (e *BindError) Cause() error  { return e.Err }

func (s *Server) Listen(ctx context.Context) (net.Listener, error) {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		bindErr := &BindError{Addr: s.Addr, Err: err}
		if errors.Is(err, syscall.EADDRINUSE) {
			bindErr.Owner = s.portOwner(ctx)
		}
		return nil, bindErr
	}
	return l, nil
}

func (s *Server) portOwner(ctx context.Context) string {
	_, portStr, err := net.SplitHostPort(s.Addr)
	if err != nil {
		return ""
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return ""
	}
	owner, err := PortOwner(ctx, port)
	if err != nil {
		klog.V(4).Infof("looking up owner of port %d: %v", port, err)
		return ""
	}
	return owner
}

func (s *Server) httpServer() *http.Server {
	return &http.Server{
		Handler:           s.Handler,
		ReadTimeout:       s.ReadTimeout,
		ReadHeaderTimeout: s.ReadTimeout,
		WriteTimeout:      s.WriteTimeout,
		IdleTimeout:       2 * s.ReadTimeout,
	}
}

// Serve accepts connections on l until ctx is done, then stops accepting and
// waits up to ShutdownTimeout for in-flight requests. A graceful shutdown
// returns nil.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := s.httpServer()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := srv.Serve(l)
		if err == nil || err == http.ErrServerClosed {
			return nil
		}
		return errors.Wrapf(err, "serving on %s", l.Addr())
	})

	g.Go(func() error {
		<-gctx.Done()
		klog.Infof("Shutting down server on %s", l.Addr())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			return errors.Wrap(err, "draining connections")
		}
		return nil
	})

	return g.Wait()
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := s.Listen(ctx)
	if err != nil {
		return err
	}
	klog.Infof("Listening on %s", l.Addr())
	return s.Serve(ctx, l)
}
