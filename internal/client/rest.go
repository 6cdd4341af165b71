package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/domain"
	"go.uber.org/zap"
)

// TokenSource supplies the bearer token sent on every collaborator call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// restClient holds what the patients and inventory adapters share: base URL,
// transport, credentials and the error mapping of collaborator responses.
type restClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger
}

func newRESTClient(baseURL string, httpClient *http.Client, tokens TokenSource, logger *zap.Logger) restClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return restClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
	}
}

// do issues the request and decodes a 2xx body into out. Non-2xx answers come
// back as *domain.RejectionError.
func (c restClient) do(ctx context.Context, method, path string, headers map[string]string, in, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Collaborator unreachable",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return &domain.RejectionError{Kind: domain.RejectionNetwork, Detail: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.RejectionError{Kind: domain.RejectionNetwork, StatusCode: resp.StatusCode, Detail: err.Error(), Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rej := rejectionFromResponse(resp.StatusCode, raw)
		c.logger.Debug("Collaborator rejected request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", rej.Detail))
		return rej
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.RejectionError{
			Kind:       domain.RejectionServer,
			StatusCode: resp.StatusCode,
			Detail:     "malformed response body",
			Cause:      err,
		}
	}
	return nil
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

func rejectionFromResponse(status int, raw []byte) *domain.RejectionError {
	detail := parseDetail(raw)
	if detail == "" {
		detail = http.StatusText(status)
	}

	rej := &domain.RejectionError{StatusCode: status, Detail: detail}
	switch {
	case status == http.StatusNotFound:
		rej.Kind = domain.RejectionNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		rej.Kind = domain.RejectionAuthorization
	case status == http.StatusConflict:
		rej.Kind = domain.RejectionInsufficientStock
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		rej.Kind = domain.RejectionValidation
		if strings.Contains(strings.ToLower(detail), "stock") {
			rej.Kind = domain.RejectionInsufficientStock
		}
	case status >= 500:
		rej.Kind = domain.RejectionServer
	default:
		rej.Kind = domain.RejectionValidation
	}
	return rej
}

// parseDetail reads the collaborator's {"detail": ...} body. detail is a
// string for handled errors and a list of field errors on 422.
func parseDetail(raw []byte) string {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil || len(eb.Detail) == 0 {
		return strings.TrimSpace(string(raw))
	}

	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Loc []interface{} `json:"loc"`
		Msg string        `json:"msg"`
	}
	if err := json.Unmarshal(eb.Detail, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if len(it.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", it.Loc[len(it.Loc)-1], it.Msg))
			} else {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return string(eb.Detail)
}

func isNotFound(err error) bool {
	var rej *domain.RejectionError
	return errors.As(err, &rej) && rej.Kind == domain.RejectionNotFound
}
