package testutil

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// WaitForHTTPReady опрашивает url, пока сервер не ответит 200 OK или не
// истечёт timeout. Используется вместо time.Sleep в integration тестах.
//
// Пример:
//
//	go serveMetrics(ctx, addr)
//	if err := testutil.WaitForHTTPReady("http://"+addr+"/metrics", 5*time.Second); err != nil {
//	    t.Fatalf("metrics server failed to start: %v", err)
//	}
func WaitForHTTPReady(url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %s: %w", url, ctx.Err())
		case <-ticker.C:
			resp, err := client.Get(url)
			if err != nil {
				continue
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}
