//go:build integration

package e2e

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

const (
	searchURL   = "http://localhost:9200"
	stompAddr   = "localhost:61613"
	kafkaBroker = "localhost:29092"
)

// ServiceHealthCheck polls probe until it succeeds or Timeout elapses.
type ServiceHealthCheck struct {
	Name    string
	Target  string
	Timeout time.Duration
	Probe   func(ctx context.Context, target string) error
}

func probeHTTP(ctx context.Context, target string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func probeStomp(_ context.Context, target string) error {
	conn, err := stomp.Dial("tcp", target)
	if err != nil {
		return err
	}
	return conn.Disconnect()
}

func probeKafka(ctx context.Context, target string) error {
	conn, err := kafka.DialContext(ctx, "tcp", target)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Brokers()
	return err
}

func CheckServiceHealth(ctx context.Context, check ServiceHealthCheck) error {
	fmt.Printf("  Checking %s at %s...\n", check.Name, check.Target)

	deadline := time.Now().Add(check.Timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = check.Probe(ctx, check.Target); lastErr == nil {
			fmt.Printf("  ✓ %s is ready\n", check.Name)
			return nil
		}
		time.Sleep(time.Second)
	}

	return fmt.Errorf("%s did not become ready in %v: %v", check.Name, check.Timeout, lastErr)
}

// CheckAllServices verifies the search backend and both brokers in parallel.
func CheckAllServices(ctx context.Context) error {
	checks := []ServiceHealthCheck{
		{Name: "Elasticsearch", Target: searchURL + "/_cluster/health", Timeout: 90 * time.Second, Probe: probeHTTP},
		{Name: "ActiveMQ STOMP", Target: stompAddr, Timeout: 60 * time.Second, Probe: probeStomp},
		{Name: "Kafka", Target: kafkaBroker, Timeout: 90 * time.Second, Probe: probeKafka},
	}

	var g errgroup.Group
	for _, check := range checks {
		g.Go(func() error {
			return CheckServiceHealth(ctx, check)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Println("✓ All infrastructure services are healthy")
	return nil
}
