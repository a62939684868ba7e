// Package httpclient builds the shared outbound HTTP client every provider
// adapter uses: DNS caching (so a burst of concurrent provider calls does
// not hammer the resolver) plus bounded retry with backoff on transient
// failures, honoring Retry-After on 429/503. Built on rs/dnscache and
// hashicorp/go-retryablehttp's standard retry-policy shape (attempt cap,
// exponential backoff, Retry-After precedence).
package httpclient

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/dnscache"
	"github.com/rs/zerolog/log"
)

// Config shapes the shared client.
type Config struct {
	Timeout     time.Duration
	MaxRetries  int
	RetryWaitLo time.Duration
	RetryWaitHi time.Duration
}

// DefaultConfig is up to 3 retries with exponential backoff,
// Retry-After honored when present.
func DefaultConfig() Config {
	return Config{
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		RetryWaitLo: 500 * time.Millisecond,
		RetryWaitHi: 8 * time.Second,
	}
}

// New builds an *http.Client backed by a DNS-caching transport and a
// retryablehttp-driven retry policy. The returned client is a plain
// *http.Client (retryablehttp.Client.StandardClient()) so callers never
// need to know about the retry wrapper.
func New(cfg Config) *http.Client {
	resolver := &dnscache.Resolver{}
	refreshDNSCache(resolver)

	transport := &http.Transport{
		DialContext: dialWithCache(resolver),
		MaxIdleConnsPerHost: 16,
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Transport = transport
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = cfg.RetryWaitLo
	rc.RetryWaitMax = cfg.RetryWaitHi
	rc.Logger = nil
	rc.CheckRetry = checkRetry
	rc.Backoff = retryAfterAwareBackoff

	return rc.StandardClient()
}

// refreshDNSCache primes the resolver and starts a background refresh
// loop for the life of the process, matching rs/dnscache's documented
// usage pattern.
func refreshDNSCache(resolver *dnscache.Resolver) {
	resolver.Refresh(true)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()
}

func dialWithCache(resolver *dnscache.Resolver) func(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ips, err := resolver.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}
		var lastErr error
		for _, ip := range ips {
			conn, dialErr := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
			if dialErr == nil {
				return conn, nil
			}
			lastErr = dialErr
		}
		return nil, lastErr
	}
}

// checkRetry retries on connection errors and on 429/5xx responses, and
// stops retrying once the context is cancelled.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return true, nil
		}
		return false, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}
	if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented {
		return true, nil
	}
	return false, nil
}

// retryAfterAwareBackoff honors a numeric Retry-After header when present,
// falling back to exponential backoff (no jitter) otherwise.
func retryAfterAwareBackoff(minWait, maxWait time.Duration, attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				wait := time.Duration(secs) * time.Second
				if wait > maxWait {
					log.Debug().Dur("retry_after", wait).Dur("cap", maxWait).Msg("capping Retry-After to max backoff")
					return maxWait
				}
				return wait
			}
		}
	}
	mult := math.Pow(2, float64(attempt))
	wait := time.Duration(float64(minWait) * mult)
	if wait > maxWait {
		wait = maxWait
	}
	return wait
}
