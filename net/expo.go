package net

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"github.com/loyaltyapp/push-server/models"
	"k8s.io/klog/v2"
)

const (
	ExpoDefaultURL = "https://exp.host/--/api/v2"
	// Limits enforced by the Expo push service
	ExpoPushChunkLimit    = 100
	ExpoReceiptChunkLimit = 300

	expoDefaultAttempts = 3
)

var (
	expoTokenPattern = regexp.MustCompile(`^(ExponentPushToken|ExpoPushToken)\[.+\]$`)
	expoUUIDPattern  = regexp.MustCompile(`(?i)^[a-z\d]{8}-[a-z\d]{4}-[a-z\d]{4}-[a-z\d]{4}-[a-z\d]{12}$`)
)

// ExpoClient talks to the Expo push service
type ExpoClient struct {
	Url              string
	AccessToken      string
	PushChunkSize    int
	ReceiptChunkSize int
	// MaxAttempts bounds retries on HTTP 429
	MaxAttempts int
	// MinBackoff is the first wait after a 429
	MinBackoff time.Duration
}

func NewExpoClient(url string, accessToken string, pushChunkSize int, receiptChunkSize int) *ExpoClient {
	if url == "" {
		url = ExpoDefaultURL
	}
	if pushChunkSize <= 0 || pushChunkSize > ExpoPushChunkLimit {
		pushChunkSize = ExpoPushChunkLimit
	}
	if receiptChunkSize <= 0 || receiptChunkSize > ExpoReceiptChunkLimit {
		receiptChunkSize = ExpoReceiptChunkLimit
	}
	return &ExpoClient{
		Url:              strings.TrimRight(url, "/"),
		AccessToken:      accessToken,
		PushChunkSize:    pushChunkSize,
		ReceiptChunkSize: receiptChunkSize,
		MaxAttempts:      expoDefaultAttempts,
		MinBackoff:       time.Second,
	}
}

type expoRequestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type expoSendResponse struct {
	Data   []models.PushResult `json:"data"`
	Errors []expoRequestError  `json:"errors"`
}

type expoReceiptsRequest struct {
	IDs []string `json:"ids"`
}

type expoReceiptsResponse struct {
	Data   map[string]models.PushResult `json:"data"`
	Errors []expoRequestError           `json:"errors"`
}

func (client *ExpoClient) IsValidToken(token string) bool {
	return expoTokenPattern.MatchString(token) || expoUUIDPattern.MatchString(token)
}

func (client *ExpoClient) ChunkMessages(messages []models.PushMessage) [][]models.PushMessage {
	return chunk(messages, client.PushChunkSize)
}

func (client *ExpoClient) ChunkReceiptIDs(ids []string) [][]string {
	return chunk(ids, client.ReceiptChunkSize)
}

func (client *ExpoClient) SendBatch(ctx context.Context, batch []models.PushMessage) ([]models.PushResult, error) {
	var parsed expoSendResponse
	if err := client.post(ctx, "/push/send", batch, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Errors) > 0 && parsed.Data == nil {
		return nil, fmt.Errorf("expo push request failed: %s", describeExpoErrors(parsed.Errors))
	}
	if len(parsed.Data) != len(batch) {
		klog.Warningf("Expo returned %d tickets for %d messages", len(parsed.Data), len(batch))
	}
	return parsed.Data, nil
}

func (client *ExpoClient) GetReceipts(ctx context.Context, ids []string) (map[string]models.PushResult, error) {
	var parsed expoReceiptsResponse
	if err := client.post(ctx, "/push/getReceipts", expoReceiptsRequest{IDs: ids}, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Errors) > 0 && parsed.Data == nil {
		return nil, fmt.Errorf("expo receipts request failed: %s", describeExpoErrors(parsed.Errors))
	}
	if parsed.Data == nil {
		return map[string]models.PushResult{}, nil
	}
	return parsed.Data, nil
}

// post sends a JSON request, retrying only when Expo rate limits us
func (client *ExpoClient) post(ctx context.Context, path string, request interface{}, response interface{}) error {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return err
	}
	maxAttempts := client.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	b := &backoff.Backoff{Min: client.MinBackoff, Max: 30 * time.Second, Factor: 2, Jitter: true}
	for attempt := 1; ; attempt++ {
		httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, client.Url+path, bytes.NewReader(requestBody))
		if err != nil {
			klog.Errorf("Error building expo request %s", err)
			return err
		}
		httpRequest.Header.Add("Content-Type", "application/json")
		httpRequest.Header.Add("Accept", "application/json")
		if client.AccessToken != "" {
			httpRequest.Header.Add("Authorization", "Bearer "+client.AccessToken)
		}
		resp, err := Client.Do(httpRequest)
		if err != nil {
			return fmt.Errorf("expo request %s: %w", path, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("reading expo response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxAttempts {
			wait := b.Duration()
			klog.Warningf("Expo rate limited %s, retrying in %s (attempt %d/%d)", path, wait, attempt, maxAttempts)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			var parsed struct {
				Errors []expoRequestError `json:"errors"`
			}
			json.Unmarshal(body, &parsed)
			return fmt.Errorf("%w: %d %s", ErrGatewayStatus, resp.StatusCode, describeExpoErrors(parsed.Errors))
		}
		if err := json.Unmarshal(body, response); err != nil {
			return fmt.Errorf("decoding expo response: %w", err)
		}
		return nil
	}
}

func describeExpoErrors(errs []expoRequestError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Code, e.Message))
	}
	return strings.Join(parts, "; ")
}
