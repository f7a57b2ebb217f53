package greeter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/phayes/freeport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type testServer struct {
	url    string
	cancel context.CancelFunc
	done   chan error
}

func startServer(t *testing.T, hostname HostnameFunc) *testServer {
	port, err := freeport.GetFreePort()
	require.NoError(t, err)

	s := NewServer(ServerOptions{Host: "127.0.0.1", Port: port, Hostname: hostname})
	ctx, cancel := context.WithCancel(context.Background())
	l, err := s.Listen(ctx)
	require.NoError(t, err)

	ts := &testServer{
		url:    fmt.Sprintf("http://127.0.0.1:%d", port),
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() {
		ts.done <- s.Serve(ctx, l)
	}()
	t.Cleanup(func() {
		ts.cancel()
		<-ts.done
	})
	return ts
}

func get(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestFillDefaults(t *testing.T) {
	o := ServerOptions{}
	FillDefaults(&o)
	assert.Equal(t, "0.0.0.0", o.Host)
	assert.Equal(t, 5000, o.Port)
	assert.Equal(t, 10*time.Second, o.ReadTimeout)
	assert.Equal(t, 10*time.Second, o.WriteTimeout)
	assert.Equal(t, 15*time.Second, o.ShutdownTimeout)
	assert.NotNil(t, o.Hostname)

	s := NewServer(ServerOptions{Host: "127.0.0.1", Port: 8080})
	assert.Equal(t, "127.0.0.1:8080", s.Addr)
	assert.Equal(t, 10*time.Second, s.httpServer().ReadHeaderTimeout)
}

func TestServeGreeting(t *testing.T) {
	ts := startServer(t, nil)

	expected, err := os.Hostname()
	require.NoError(t, err)

	code, body := get(t, ts.url+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Hello from Flask! Running on container hostname: "+expected, body)
}

func TestServeMissing(t *testing.T) {
	ts := startServer(t, fixedHostname("myhost"))

	code, _ := get(t, ts.url+"/missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServePost(t *testing.T) {
	ts := startServer(t, fixedHostname("myhost"))

	resp, err := http.Post(ts.url+"/", "text/plain", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServeConcurrent(t *testing.T) {
	ts := startServer(t, fixedHostname("myhost"))

	var g errgroup.Group
	for i := 0; i < 100; i++ {
		g.Go(func() error {
			resp, err := http.Get(ts.url + "/")
			if err != nil {
				return err
			}
			defer func() {
				_ = resp.Body.Close()
			}()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("status %d", resp.StatusCode)
			}
			if string(body) != Greeting("myhost") {
				return fmt.Errorf("unexpected body %q", body)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestSecondServerOnSamePortFails(t *testing.T) {
	port, err := freeport.GetFreePort()
	require.NoError(t, err)

	ctx := context.Background()
	opts := ServerOptions{Host: "127.0.0.1", Port: port}
	first, err := NewServer(opts).Listen(ctx)
	require.NoError(t, err)
	defer func() {
		_ = first.Close()
	}()

	_, err = NewServer(opts).Listen(ctx)
	var bindErr *BindError
	require.True(t, errors.As(err, &bindErr), "expected BindError, got %v", err)
	assert.Equal(t, fmt.Sprintf("127.0.0.1:%d", port), bindErr.Addr)
	assert.Contains(t, err.Error(), fmt.Sprintf("binding 127.0.0.1:%d", port))
}

func TestServeShutsDownGracefully(t *testing.T) {
	port, err := freeport.GetFreePort()
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	s := NewServer(ServerOptions{Host: "127.0.0.1", Port: port})
	s.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		_, _ = w.Write([]byte("drained"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	l, err := s.Listen(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx, l)
	}()

	bodies := make(chan string, 1)
	go func() {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/", port))
		if err != nil {
			bodies <- err.Error()
			return
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		body, _ := io.ReadAll(resp.Body)
		bodies <- string(body)
	}()

	<-started
	cancel()

	select {
	case err := <-done:
		t.Fatalf("server exited before in-flight request finished: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	assert.Equal(t, "drained", <-bodies)
	require.NoError(t, <-done)
}
