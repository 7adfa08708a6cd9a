package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// unlockDevice walks a fresh account through enrollment so the device can
// reach the ledger routes.
func unlockDevice(t *testing.T, env *testEnv, email string) string {
	t.Helper()

	token, _ := registerAndLogin(t, env, email, "device-1")

	w := env.do(t, http.MethodPost, "/api/security/pin", token, gin.H{"pin": "482913"})
	require.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodPost, "/api/security/enroll/start", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	secret := decodeData(t, w)["secret"].(string)
	w = env.do(t, http.MethodPost, "/api/security/enroll/confirm", token, gin.H{
		"code": codeForSecret(t, secret, time.Now()),
	})
	require.Equal(t, http.StatusOK, w.Code)

	return token
}

func TestRecordTransactionOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token := unlockDevice(t, env, "ledger@example.com")

	w := env.do(t, http.MethodPost, "/api/transactions", token, gin.H{
		"flow_type":   "expense",
		"head":        "Food & Groceries",
		"account":     "Cash Wallet",
		"amount":      "2500.50",
		"occurred_at": "2025-04-10",
		"note":        "weekly bazaar",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	entry := decodeData(t, w)
	require.Contains(t, entry["code"], "TXN-2504-")
	require.Equal(t, "expense", entry["flow_type"])
}

func TestRecordRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	token := unlockDevice(t, env, "bad@example.com")

	w := env.do(t, http.MethodPost, "/api/transactions", token, gin.H{
		"flow_type":   "gift",
		"head":        "Misc",
		"account":     "Cash Wallet",
		"amount":      "100",
		"occurred_at": "2025-04-10",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/transactions", token, gin.H{
		"flow_type":   "expense",
		"head":        "Misc",
		"account":     "Cash Wallet",
		"amount":      "-5",
		"occurred_at": "2025-04-10",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTransactionsPaginates(t *testing.T) {
	env := newTestEnv(t)
	token := unlockDevice(t, env, "list@example.com")

	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodPost, "/api/transactions", token, gin.H{
			"flow_type":   "expense",
			"head":        "Food & Groceries",
			"account":     "Cash Wallet",
			"amount":      "100",
			"occurred_at": "2025-04-10",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/transactions?month=2025-04&per_page=2", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []map[string]interface{} `json:"data"`
		Meta struct {
			Total      int64 `json:"total"`
			TotalPages int   `json:"total_pages"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 2)
	require.EqualValues(t, 3, envelope.Meta.Total)
	require.Equal(t, 2, envelope.Meta.TotalPages)
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	env := newTestEnv(t)
	token := unlockDevice(t, env, "edit@example.com")

	w := env.do(t, http.MethodPost, "/api/transactions", token, gin.H{
		"flow_type":   "income",
		"head":        "Salary",
		"account":     "HBL Bank",
		"amount":      "90000",
		"occurred_at": "2025-04-01",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeData(t, w)["id"].(string)

	w = env.do(t, http.MethodPatch, "/api/transactions/"+id, token, gin.H{
		"amount":      "95000",
		"change_note": "bonus included",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodDelete, "/api/transactions/"+id, token, gin.H{"note": "duplicate entry"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/transactions/"+id, token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMonthlyReportAndExport(t *testing.T) {
	env := newTestEnv(t)
	token := unlockDevice(t, env, "report@example.com")

	w := env.do(t, http.MethodPost, "/api/transactions", token, gin.H{
		"flow_type":   "income",
		"head":        "Salary",
		"account":     "HBL Bank",
		"amount":      "120000",
		"occurred_at": "2025-04-01",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/reports/monthly?month=2025-04", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decodeData(t, w)
	require.EqualValues(t, 1, summary["count"])

	w = env.do(t, http.MethodGet, "/api/reports/export?month=2025-04", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Disposition"), "transactions-2025-04.csv")
	require.Contains(t, w.Body.String(), "TXN-2504-")
}

func TestCatalogIsPublic(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/catalog", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeData(t, w)
	require.NotEmpty(t, data["flow_types"])
	require.NotEmpty(t, data["accounts"])
}

func TestImportTransactionsOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token := unlockDevice(t, env, "bulk@example.com")

	w := env.do(t, http.MethodPost, "/api/transactions/import", token, gin.H{
		"rows": []gin.H{
			{"flow_type": "income", "head": "Salary", "account": "HBL Bank", "amount": "150000", "occurred_at": "2025-04-01"},
			{"flow_type": "expense", "head": "Rent", "account": "HBL Bank", "amount": "40000", "occurred_at": "2025-04-03"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	data := decodeData(t, w)
	require.EqualValues(t, 2, data["imported"])

	w = env.do(t, http.MethodGet, "/api/transactions?month=2025-04", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// A bad row rejects the whole batch.
	w = env.do(t, http.MethodPost, "/api/transactions/import", token, gin.H{
		"rows": []gin.H{
			{"flow_type": "gift", "head": "Eidi", "account": "Cash", "amount": "5000", "occurred_at": "2025-04-05"},
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}
