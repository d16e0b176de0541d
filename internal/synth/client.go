package synth

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/inkcast/inkcast-server/internal/errors"
	"github.com/inkcast/inkcast-server/internal/logger"
	"github.com/inkcast/inkcast-server/internal/ratelimit"
)

// durationHeader carries the clip length reported by the TTS service.
const durationHeader = "X-Duration-Ms"

// Client calls an HTTP TTS service. Each request posts one segment's text
// and receives raw audio bytes, which are spooled to workDir.
type Client struct {
	baseURL string
	voice   string
	workDir string
	retries int
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *logger.Logger
}

var _ Synthesizer = (*Client)(nil)

type ClientOptions struct {
	BaseURL string
	Voice   string
	WorkDir string
	Retries int
	Timeout time.Duration

	// RateRPS caps outbound synthesis calls per voice so workers respect
	// the backend's per-voice limits. Zero disables throttling.
	RateRPS   float64
	RateBurst int
}

func NewClient(opts ClientOptions, log *logger.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, apperrors.Validation("synth base url is required")
	}
	if opts.WorkDir == "" {
		return nil, apperrors.Validation("synth work dir is required")
	}
	if err := os.MkdirAll(opts.WorkDir, 0o755); err != nil {
		return nil, apperrors.Internal("create synth work dir").WithCause(err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	var limiter *ratelimit.KeyedRateLimiter
	if opts.RateRPS > 0 {
		if opts.RateBurst <= 0 {
			opts.RateBurst = 1
		}
		limiter = ratelimit.New(opts.RateRPS, opts.RateBurst)
	}
	return &Client{
		baseURL: opts.BaseURL,
		voice:   opts.Voice,
		workDir: opts.WorkDir,
		retries: opts.Retries,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: limiter,
		logger:  log,
	}, nil
}

// Close stops the outbound rate limiter, if one is configured.
func (c *Client) Close() {
	if c.limiter != nil {
		c.limiter.Stop()
	}
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

func (c *Client) Synthesize(ctx context.Context, text string) (Clip, error) {
	if text == "" {
		return Clip{}, apperrors.Validation("cannot synthesize empty text")
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Clip{}, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
			c.logger.Debug("retrying synthesis", "attempt", attempt)
		}

		// Every attempt counts against the per-voice budget, retries
		// included.
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, c.voice); err != nil {
				return Clip{}, err
			}
		}

		clip, err := c.synthesizeOnce(ctx, text)
		if err == nil {
			return clip, nil
		}
		if ctx.Err() != nil {
			return Clip{}, ctx.Err()
		}
		if !retryable(err) {
			return Clip{}, err
		}
		lastErr = err
	}
	return Clip{}, apperrors.Synthesisf("synthesis failed after %d attempts", c.retries+1).WithCause(lastErr)
}

func (c *Client) synthesizeOnce(ctx context.Context, text string) (Clip, error) {
	body, err := json.Marshal(synthesizeRequest{Text: text, Voice: c.voice})
	if err != nil {
		return Clip{}, apperrors.Internal("encode synthesis request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/synthesize", bytes.NewReader(body))
	if err != nil {
		return Clip{}, apperrors.Internal("build synthesis request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.http.Do(req)
	if err != nil {
		return Clip{}, &transientError{err: apperrors.Synthesisf("tts request failed").WithCause(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		synthErr := apperrors.Synthesisf("tts service returned %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return Clip{}, &transientError{err: synthErr}
		}
		return Clip{}, synthErr
	}

	durationMs, err := strconv.ParseInt(resp.Header.Get(durationHeader), 10, 64)
	if err != nil || durationMs <= 0 {
		return Clip{}, apperrors.Synthesisf("tts service returned no usable %s header", durationHeader)
	}

	path := filepath.Join(c.workDir, fmt.Sprintf("seg_%s.wav", uuid.NewString()))
	out, err := os.Create(path)
	if err != nil {
		return Clip{}, apperrors.Internal("create clip file").WithCause(err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return Clip{}, &transientError{err: apperrors.Synthesisf("read tts response").WithCause(err)}
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return Clip{}, apperrors.Internal("close clip file").WithCause(err)
	}

	return Clip{Path: path, DurationMs: durationMs}, nil
}

// transientError marks failures worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var te *transientError
	return apperrors.As(err, &te)
}

func backoff(attempt int) time.Duration {
	d := time.Duration(attempt) * 500 * time.Millisecond
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
