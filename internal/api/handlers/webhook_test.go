package handlers_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/referral-hub/internal/api/handlers"
	"github.com/hugh/referral-hub/internal/database/models"
	"github.com/hugh/referral-hub/internal/payouts"
	"github.com/hugh/referral-hub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

func stripeSignature(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func setupWebhookTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	service := payouts.NewService(tc.DB, &stubProcessor{}, testWebhookSecret, "https://hub.example.com", testutil.NewTestLogger())
	handler := handlers.NewWebhookHandler(service, testutil.NewTestLogger())

	r := chi.NewRouter()
	r.Post("/api/v1/webhooks/stripe", handler.HandleStripe)

	return r, tc
}

func accountUpdatedPayload(t *testing.T, userID, accountID string, currentlyDue []string) []byte {
	t.Helper()

	payload, err := json.Marshal(map[string]interface{}{
		"id":   "evt_test_1",
		"type": "account.updated",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       accountID,
				"object":   "account",
				"metadata": map[string]string{"user_id": userID},
				"requirements": map[string]interface{}{
					"currently_due":  currentlyDue,
					"eventually_due": []string{},
					"past_due":       []string{},
				},
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func postWebhook(router *chi.Mux, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestWebhookHandler_HandleStripe(t *testing.T) {
	t.Run("account.updated reconciles KYC status", func(t *testing.T) {
		router, tc := setupWebhookTestRouter(t)
		defer tc.Cleanup()

		require.NoError(t, tc.DB.Model(tc.User).Update("stripe_connect_id", "acct_wh_1").Error)

		payload := accountUpdatedPayload(t, tc.User.ID.String(), "acct_wh_1", []string{})
		rr := postWebhook(router, payload, stripeSignature(payload, testWebhookSecret))

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp map[string]bool
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.True(t, resp["received"])

		var stored models.User
		require.NoError(t, tc.DB.First(&stored, "id = ?", tc.User.ID).Error)
		assert.Equal(t, models.KYCVerified, stored.KYCStatus)
	})

	t.Run("missing signature gets 400", func(t *testing.T) {
		router, tc := setupWebhookTestRouter(t)
		defer tc.Cleanup()

		payload := accountUpdatedPayload(t, tc.User.ID.String(), "acct_wh_1", []string{})
		rr := postWebhook(router, payload, "")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("invalid signature gets 400 and changes nothing", func(t *testing.T) {
		router, tc := setupWebhookTestRouter(t)
		defer tc.Cleanup()

		payload := accountUpdatedPayload(t, tc.User.ID.String(), "acct_wh_1", []string{})
		rr := postWebhook(router, payload, stripeSignature(payload, "whsec_wrong_secret"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var stored models.User
		require.NoError(t, tc.DB.First(&stored, "id = ?", tc.User.ID).Error)
		assert.Equal(t, models.KYCNotStarted, stored.KYCStatus)
	})

	t.Run("unhandled event types are acknowledged", func(t *testing.T) {
		router, tc := setupWebhookTestRouter(t)
		defer tc.Cleanup()

		payload, err := json.Marshal(map[string]interface{}{
			"id":   "evt_test_2",
			"type": "payout.paid",
			"data": map[string]interface{}{"object": map[string]interface{}{}},
		})
		require.NoError(t, err)

		rr := postWebhook(router, payload, stripeSignature(payload, testWebhookSecret))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("event for an unknown user is acknowledged", func(t *testing.T) {
		router, tc := setupWebhookTestRouter(t)
		defer tc.Cleanup()

		payload := accountUpdatedPayload(t, "8e9db0a8-0b3b-4e71-9e6e-0f6f1f2a3b4c", "acct_wh_9", []string{})
		rr := postWebhook(router, payload, stripeSignature(payload, testWebhookSecret))

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
