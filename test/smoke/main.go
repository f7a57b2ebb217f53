// Fires concurrent requests at a running greeter and checks that every
// response is the same 200 greeting.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

const greetingPrefix = "Hello from Flask! Running on container hostname: "

func main() {
	url := pflag.String("url", "http://localhost:5000/", "Greeter URL to hit")
	requests := pflag.Int("requests", 100, "Number of concurrent requests")
	timeout := pflag.Duration("timeout", 30*time.Second, "How long to wait for the greeter to come up")

	klog.InitFlags(nil)
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	ctx := context.Background()
	err := waitForReady(ctx, *url, *timeout)
	if err != nil {
		klog.Fatalf("greeter never became ready at %s: %v", *url, err)
	}

	body, err := hammer(ctx, *url, *requests)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "smoke: %v\n", err)
		os.Exit(1)
	}
	klog.Infof("%d requests OK: %q", *requests, body)
}

func waitForReady(ctx context.Context, url string, timeout time.Duration) error {
	return wait.PollUntilContextTimeout(ctx, 250*time.Millisecond, timeout, true,
		func(ctx context.Context) (bool, error) {
			_, _, err := fetch(ctx, url)
			return err == nil, nil
		})
}

func hammer(ctx context.Context, url string, n int) (string, error) {
	bodies := make([]string, n)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			code, body, err := fetch(ctx, url)
			if err != nil {
				return err
			}
			if code != http.StatusOK {
				return fmt.Errorf("request %d: status %d", i, code)
			}
			if !strings.HasPrefix(body, greetingPrefix) {
				return fmt.Errorf("request %d: unexpected body %q", i, body)
			}
			bodies[i] = body
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		return "", err
	}

	for i, b := range bodies {
		if b != bodies[0] {
			return "", fmt.Errorf("request %d: body %q differs from %q", i, b, bodies[0])
		}
	}
	return bodies[0], nil
}

func fetch(ctx context.Context, url string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(body), nil
}
