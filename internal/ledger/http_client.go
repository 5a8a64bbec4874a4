package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/taskchain/processor/internal/config"
	"github.com/taskchain/processor/internal/domain"
	"github.com/taskchain/processor/internal/platform/logger"
)

// serviceTokenIssuer identifies this service in the tokens it mints.
const serviceTokenIssuer = "task-processor"

// serviceTokenLifetime bounds how long a minted request token stays valid.
const serviceTokenLifetime = 2 * time.Minute

// HTTPClient talks to the ledger authority's REST interface. Every request
// carries a short-lived HS256 service token signed with the shared secret.
type HTTPClient struct {
	baseURL    string
	authSecret []byte
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)
var _ HealthChecker = (*HTTPClient)(nil)

// NewHTTPClient creates a ledger client from configuration.
func NewHTTPClient(cfg config.LedgerConfig) (*HTTPClient, error) {
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid ledger base URL: %w", err)
	}

	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		authSecret: []byte(cfg.AuthSecret),
		httpClient: &http.Client{
			// The timeout covers on-chain confirmation latency, not just
			// the HTTP round trip.
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// createRequest is the body of POST /ledger/tasks.
type createRequest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	UserID      string `json:"userId"`
	Status      string `json:"status"`
}

// updateRequest is the body of PUT /ledger/tasks/{id}.
type updateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// batchRequest is the body of POST /ledger/tasks/batch.
type batchRequest struct {
	IDs          []string `json:"ids"`
	Titles       []string `json:"titles"`
	Descriptions []string `json:"descriptions"`
	Statuses     []string `json:"statuses"`
}

// Create records a task on the ledger for the first time.
func (c *HTTPClient) Create(
	ctx context.Context,
	id uuid.UUID,
	title, description, userID string,
	status domain.TaskStatus,
) (*domain.Receipt, error) {
	body := createRequest{
		ID:          id.String(),
		Title:       title,
		Description: description,
		UserID:      userID,
		Status:      string(status),
	}
	return c.call(ctx, http.MethodPost, "/ledger/tasks", body)
}

// Update mutates a task already present on the ledger.
func (c *HTTPClient) Update(
	ctx context.Context,
	id uuid.UUID,
	title, description string,
	status domain.TaskStatus,
) (*domain.Receipt, error) {
	body := updateRequest{
		Title:       title,
		Description: description,
		Status:      string(status),
	}
	return c.call(ctx, http.MethodPut, "/ledger/tasks/"+id.String(), body)
}

// SoftDelete marks a task deleted on the ledger.
func (c *HTTPClient) SoftDelete(ctx context.Context, id uuid.UUID) (*domain.Receipt, error) {
	return c.call(ctx, http.MethodDelete, "/ledger/tasks/"+id.String(), nil)
}

// BatchUpdate applies parallel ordered field sequences to many tasks in a
// single ledger transaction.
func (c *HTTPClient) BatchUpdate(
	ctx context.Context,
	ids []uuid.UUID,
	titles, descriptions []string,
	statuses []domain.TaskStatus,
) (*domain.Receipt, error) {
	if len(ids) != len(titles) || len(ids) != len(descriptions) || len(ids) != len(statuses) {
		return nil, fmt.Errorf("%w: batch sequences must have equal length", ErrLedgerUnavailable)
	}

	body := batchRequest{
		IDs:          make([]string, len(ids)),
		Titles:       titles,
		Descriptions: descriptions,
		Statuses:     make([]string, len(statuses)),
	}
	for i, id := range ids {
		body.IDs[i] = id.String()
	}
	for i, status := range statuses {
		body.Statuses[i] = string(status)
	}

	return c.call(ctx, http.MethodPost, "/ledger/tasks/batch", body)
}

// Ping reports whether the ledger authority is reachable.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned status %d", ErrLedgerUnavailable, resp.StatusCode)
	}
	return nil
}

// call performs one authenticated request and decodes the receipt.
// All failures collapse into ErrLedgerUnavailable; the pipeline does not
// distinguish ledger error kinds.
func (c *HTTPClient) call(ctx context.Context, method, path string, body any) (*domain.Receipt, error) {
	log := logger.FromContext(ctx)

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding request: %v", ErrLedgerUnavailable, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.mintServiceToken()
	if err != nil {
		return nil, fmt.Errorf("%w: signing service token: %v", ErrLedgerUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("ledger call failed",
			"method", method,
			"path", path,
			"error", err)
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Warn("ledger call rejected",
			"method", method,
			"path", path,
			"status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrLedgerUnavailable, resp.StatusCode)
	}

	var receipt domain.Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("%w: decoding receipt: %v", ErrLedgerUnavailable, err)
	}
	if receipt.TxHash == "" {
		return nil, fmt.Errorf("%w: receipt carries no transaction hash", ErrLedgerUnavailable)
	}

	return &receipt, nil
}

// mintServiceToken signs a short-lived HS256 token identifying this service.
func (c *HTTPClient) mintServiceToken() (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    serviceTokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(serviceTokenLifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.authSecret)
}
