// Command loadgen generates demo traffic against the gateway so the trace
// sink has something to show: concurrent user sessions with different
// credentials, a rate-limit burst, and a final stats readout.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lanternhq/lantern/internal/model"
)

var sampleQuestions = []string{
	"What is artificial intelligence and how does it work?",
	"Explain machine learning algorithms",
	"How do I get started with Python programming?",
	"What are the benefits of using Docker containers?",
	"How does Kubernetes help with container orchestration?",
	"What is the difference between supervised and unsupervised learning?",
	"How do neural networks process information?",
	"What are the best practices for API design?",
	"How do I implement authentication in web applications?",
	"What is the role of databases in modern applications?",
	"How do microservices communicate with each other?",
	"What are the advantages of using cloud computing?",
	"How do I optimize application performance?",
	"What is DevOps and why is it important?",
	"How do I secure my web application?",
}

// scenario describes one simulated user.
type scenario struct {
	token     string // bearer credential; empty means anonymous
	questions int
	minDelay  time.Duration
	maxDelay  time.Duration
}

var scenarios = []scenario{
	{token: "", questions: 3, minDelay: time.Second, maxDelay: 3 * time.Second},
	{token: "demo-token", questions: 5, minDelay: 500 * time.Millisecond, maxDelay: 2 * time.Second},
	{token: "user-alice", questions: 2, minDelay: 2 * time.Second, maxDelay: 5 * time.Second},
	{token: "user-bob", questions: 4, minDelay: time.Second, maxDelay: 4 * time.Second},
}

func main() {
	gatewayURL := flag.String("gateway", "http://localhost:8080", "gateway base URL")
	burst := flag.Int("burst", 120, "requests in the rate-limit burst (0 disables)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, *gatewayURL, *burst); err != nil {
		logger.Error("load generation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, gatewayURL string, burst int) error {
	client := &http.Client{Timeout: 30 * time.Second}

	if err := checkHealth(ctx, logger, client, gatewayURL); err != nil {
		return err
	}

	var total, successful atomic.Int64

	logger.Info("simulating user sessions", "sessions", len(scenarios))
	g, sessionCtx := errgroup.WithContext(ctx)
	for i, sc := range scenarios {
		session := i + 1
		g.Go(func() error {
			runSession(sessionCtx, logger, client, gatewayURL, session, sc, &total, &successful)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("sessions complete", "successful", successful.Load(), "total", total.Load())

	if burst > 0 {
		runBurst(ctx, logger, client, gatewayURL, burst)
	}

	// An invalid body, for an error trace.
	resp, err := post(ctx, client, gatewayURL+"/ask", "", map[string]any{"invalid": "request"})
	if err == nil {
		logger.Info("invalid request sent", "status", resp.StatusCode)
		drain(resp)
	}

	return printStats(ctx, logger, client, gatewayURL)
}

func runSession(ctx context.Context, logger *slog.Logger, client *http.Client, gatewayURL string, session int, sc scenario, total, successful *atomic.Int64) {
	for i := 0; i < sc.questions; i++ {
		question := sampleQuestions[rand.Intn(len(sampleQuestions))]
		body := model.AskRequest{
			Question:     question,
			ContextLimit: 3 + rand.Intn(5),
			Temperature:  0.3 + rand.Float64()*0.6,
		}

		start := time.Now()
		resp, err := post(ctx, client, gatewayURL+"/ask", sc.token, body)
		total.Add(1)
		if err != nil {
			logger.Warn("ask failed", "session", session, "error", err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			successful.Add(1)
			var answer struct {
				Confidence       float64 `json:"confidence"`
				ProcessingTimeMS int64   `json:"processing_time_ms"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&answer)
			logger.Info("answer received",
				"session", session,
				"confidence", fmt.Sprintf("%.2f", answer.Confidence),
				"processing_ms", answer.ProcessingTimeMS,
				"total_ms", time.Since(start).Milliseconds())
		} else {
			logger.Warn("ask rejected", "session", session, "status", resp.StatusCode)
		}
		drain(resp)

		if i < sc.questions-1 {
			delay := sc.minDelay + time.Duration(rand.Int63n(int64(sc.maxDelay-sc.minDelay)))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}
}

// runBurst fires requests from one client IP until the gateway pushes back.
func runBurst(ctx context.Context, logger *slog.Logger, client *http.Client, gatewayURL string, n int) {
	logger.Info("starting rate-limit burst", "requests", n)
	for i := 0; i < n; i++ {
		resp, err := post(ctx, client, gatewayURL+"/ask", "", model.AskRequest{
			Question: fmt.Sprintf("Rate limit test %d", i),
		})
		if err != nil {
			return
		}
		status := resp.StatusCode
		drain(resp)
		if status == http.StatusTooManyRequests {
			logger.Info("rate limiting triggered", "after", i+1)
			return
		}
	}
	logger.Warn("burst finished without a 429; raise -burst above the configured limit")
}

func checkHealth(ctx context.Context, logger *slog.Logger, client *http.Client, gatewayURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gatewayURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable at %s: %w", gatewayURL, err)
	}
	defer drain(resp)

	var health model.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	logger.Info("gateway health", "status", health.Status)
	return nil
}

func printStats(ctx context.Context, logger *slog.Logger, client *http.Client, gatewayURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gatewayURL+"/stats", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}
	defer drain(resp)

	var stats model.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("decode stats: %w", err)
	}
	logger.Info("gateway stats",
		"total_requests", stats.Gateway.TotalRequests,
		"active_clients", stats.Gateway.ActiveClients)
	for svc := range stats.Services {
		logger.Info("downstream stats available", "service", svc)
	}
	return nil
}

func post(ctx context.Context, client *http.Client, url, token string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return client.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}
