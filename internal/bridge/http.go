package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ziadkadry99/popup-studio/internal/config"
	"github.com/ziadkadry99/popup-studio/internal/logging"
	"github.com/ziadkadry99/popup-studio/internal/widgetstore"
)

// StatusError is a non-2xx response from the widget store. Message is the
// store's own explanation.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("widget store returned status %d", e.Code)
	}
	return fmt.Sprintf("widget store returned status %d: %s", e.Code, e.Message)
}

// HTTP saves widgets to a remote popup-studio server. Calls go through a
// circuit breaker so an unavailable store fails fast instead of hanging
// every save.
type HTTP struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
}

// NewHTTP creates a client for the server at baseURL.
func NewHTTP(baseURL string, timeout time.Duration, bc config.BreakerConfig) *HTTP {
	name := "widget-store"
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= bc.FailureThreshold
			if trip {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.ConsecutiveFailures).Msg("opening circuit")
			}
			return trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit state change")
		},
		// Client errors say nothing about store health.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < 500
			}
			return err == nil
		},
	})

	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		cb:      cb,
	}
}

// Save PUTs the widget. The bundle is verified against the target object
// before anything is sent.
func (h *HTTP) Save(ctx context.Context, req SaveRequest) error {
	if err := req.Bundle.Verify(req.TargetObject); err != nil {
		return err
	}
	body, err := json.Marshal(widgetstore.PutRequest{TemplateID: req.TemplateID, Config: req.Config, Bundle: req.Bundle})
	if err != nil {
		return fmt.Errorf("encoding widget %s: %w", req.TargetObject, err)
	}
	_, err = h.do(ctx, http.MethodPut, h.widgetURL(req.TargetObject), req.Credential, body)
	return err
}

// Load fetches the persisted widget for target. A missing widget is not an error.
func (h *HTTP) Load(ctx context.Context, target string) (LoadResult, error) {
	data, err := h.do(ctx, http.MethodGet, h.widgetURL(target), "", nil)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return LoadResult{}, nil
	}
	if err != nil {
		return LoadResult{}, err
	}
	var doc widgetstore.Widget
	if err := json.Unmarshal(data, &doc); err != nil {
		return LoadResult{}, fmt.Errorf("decoding widget %s: %w", target, err)
	}
	return LoadResult{Exists: true, TemplateID: doc.TemplateID, Config: doc.Config.Clone()}, nil
}

func (h *HTTP) widgetURL(object string) string {
	return h.baseURL + "/api/widgets/" + url.PathEscape(object)
}

func (h *HTTP) do(ctx context.Context, method, target, credential string, body []byte) ([]byte, error) {
	return h.cb.Execute(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if credential != "" {
			req.Header.Set("Authorization", "Bearer "+credential)
		}

		resp, err := h.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, target, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		if resp.StatusCode >= 300 {
			se := &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(data))}
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, fmt.Errorf("%w: %w", ErrUnauthorized, se)
			}
			return nil, se
		}
		return data, nil
	})
}
