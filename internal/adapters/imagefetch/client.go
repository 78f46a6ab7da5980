package imagefetch

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/time/rate"

	"hotelbook/internal/adapters/observability"
	"hotelbook/internal/domain"
)

const maxAttempts = 4

var (
	ErrNotFound  = errors.New("imagefetch: not found")
	ErrForbidden = errors.New("imagefetch: forbidden")
	ErrNotImage  = errors.New("imagefetch: not an image")
)

// Client downloads remote images for bulk imports.
type Client struct {
	hc *http.Client
	rl *rate.Limiter
}

func New(rps int) *Client {
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		hc: &http.Client{Timeout: 20 * time.Second},
		rl: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Fetch GETs url with client-side rate limiting and retries. Retries on 429
// and transient 5xx, honoring Retry-After when provided.
func (c *Client) Fetch(ctx context.Context, url string) (domain.Image, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return domain.Image{}, err
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return domain.Image{}, err
		}
		req.Header.Set("Accept", "image/*")
		req.Header.Set("User-Agent", "hotelbook-import/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return domain.Image{}, ctx.Err()
			}
			lastErr = err
			if i < maxAttempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return domain.Image{}, ctx.Err()
			}
			return domain.Image{}, lastErr
		}
		observability.ObserveExternal("imagefetch", "get", resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			img, err := readImage(url, resp)
			resp.Body.Close()
			return img, err

		case http.StatusNotFound, http.StatusGone:
			resp.Body.Close()
			return domain.Image{}, fmt.Errorf("%w: %s", ErrNotFound, url)

		case http.StatusUnauthorized, http.StatusForbidden:
			resp.Body.Close()
			return domain.Image{}, fmt.Errorf("%w: %s", ErrForbidden, url)

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < maxAttempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return domain.Image{}, ctx.Err()
			}
			return domain.Image{}, lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return domain.Image{}, fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return domain.Image{}, lastErr
}

func readImage(url string, resp *http.Response) (domain.Image, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, domain.MaxImageBytes+1))
	if err != nil {
		return domain.Image{}, fmt.Errorf("read %s: %w", url, err)
	}
	if len(data) > domain.MaxImageBytes {
		return domain.Image{}, fmt.Errorf("%s: %w", url, domain.ErrPayloadTooLarge)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return domain.Image{}, fmt.Errorf("%w: %s is %s", ErrNotImage, url, mt.String())
	}
	name := path.Base(resp.Request.URL.Path)
	return domain.Image{Name: name, ContentType: mt.String(), Data: data}, nil
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
