package ledger_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskchain/processor/internal/config"
	"github.com/taskchain/processor/internal/domain"
	"github.com/taskchain/processor/internal/ledger"
)

const testSecret = "thisisasecretkeythatis32charslong!!"

func newTestClient(t *testing.T, handler http.Handler) (*ledger.HTTPClient, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ledger.NewHTTPClient(config.LedgerConfig{
		BaseURL:        server.URL,
		AuthSecret:     testSecret,
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)

	return client, server
}

func receiptResponse(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.Receipt{
		TxHash:      "0xabc",
		BlockNumber: 42,
		GasUsed:     21000,
	})
}

// requireServiceToken verifies the bearer token is a valid HS256 token
// signed with the shared secret and issued by the processor.
func requireServiceToken(t *testing.T, r *http.Request) {
	t.Helper()

	header := r.Header.Get("Authorization")
	require.True(t, strings.HasPrefix(header, "Bearer "), "missing bearer token")

	raw := strings.TrimPrefix(header, "Bearer ")
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)
	assert.Equal(t, "task-processor", claims.Issuer)
}

func TestHTTPClientCreate(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	var gotBody map[string]any

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ledger/tasks", r.URL.Path)
		requireServiceToken(t, r)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		receiptResponse(w, http.StatusCreated)
	}))

	receipt, err := client.Create(context.Background(), id, "A", "B", "u1", domain.TaskStatusPending)
	require.NoError(t, err)

	assert.Equal(t, "0xabc", receipt.TxHash)
	assert.Equal(t, int64(42), receipt.BlockNumber)
	assert.Equal(t, id.String(), gotBody["id"])
	assert.Equal(t, "pending", gotBody["status"])
}

func TestHTTPClientUpdate(t *testing.T) {
	t.Parallel()

	id := uuid.New()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/ledger/tasks/"+id.String(), r.URL.Path)
		requireServiceToken(t, r)
		receiptResponse(w, http.StatusOK)
	}))

	receipt, err := client.Update(context.Background(), id, "A", "B", domain.TaskStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", receipt.TxHash)
}

func TestHTTPClientSoftDelete(t *testing.T) {
	t.Parallel()

	id := uuid.New()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/ledger/tasks/"+id.String(), r.URL.Path)
		receiptResponse(w, http.StatusOK)
	}))

	receipt, err := client.SoftDelete(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", receipt.TxHash)
}

func TestHTTPClientBatchUpdate(t *testing.T) {
	t.Parallel()

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	var gotBody struct {
		IDs      []string `json:"ids"`
		Statuses []string `json:"statuses"`
	}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ledger/tasks/batch", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		receiptResponse(w, http.StatusOK)
	}))

	receipt, err := client.BatchUpdate(
		context.Background(),
		ids,
		[]string{"A", "B"},
		[]string{"d1", "d2"},
		[]domain.TaskStatus{domain.TaskStatusCompleted, domain.TaskStatusCompleted},
	)
	require.NoError(t, err)

	assert.Equal(t, "0xabc", receipt.TxHash)
	assert.Equal(t, []string{ids[0].String(), ids[1].String()}, gotBody.IDs)
	assert.Equal(t, []string{"completed", "completed"}, gotBody.Statuses)
}

func TestHTTPClientBatchUpdateLengthMismatch(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called for mismatched batch input")
	}))

	_, err := client.BatchUpdate(
		context.Background(),
		[]uuid.UUID{uuid.New()},
		[]string{"A", "B"},
		[]string{"d"},
		[]domain.TaskStatus{domain.TaskStatusCompleted},
	)
	assert.ErrorIs(t, err, ledger.ErrLedgerUnavailable)
}

func TestHTTPClientErrorStatuses(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "contract reverted", http.StatusBadRequest)
	}))

	_, err := client.Create(
		context.Background(), uuid.New(), "A", "B", "u1", domain.TaskStatusPending)
	assert.ErrorIs(t, err, ledger.ErrLedgerUnavailable)
}

func TestHTTPClientRejectsEmptyReceipt(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := client.SoftDelete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ledger.ErrLedgerUnavailable)
}

func TestHTTPClientPing(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/health", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		assert.NoError(t, client.Ping(context.Background()))
	})

	t.Run("unavailable", func(t *testing.T) {
		t.Parallel()
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		assert.ErrorIs(t, client.Ping(context.Background()), ledger.ErrLedgerUnavailable)
	})
}
