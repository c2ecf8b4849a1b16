package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/referral-hub/internal/api/dto"
	"github.com/hugh/referral-hub/internal/api/handlers"
	"github.com/hugh/referral-hub/internal/api/middleware"
	"github.com/hugh/referral-hub/internal/database/models"
	"github.com/hugh/referral-hub/internal/referrals"
	"github.com/hugh/referral-hub/internal/tasks"
	"github.com/hugh/referral-hub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupReferralTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	notifier := tasks.NewDirectNotifier(tc.Directory, testutil.NewTestLogger())
	service := referrals.NewService(tc.DB, tc.Directory, notifier, testutil.NewTestLogger())
	handler := handlers.NewReferralHandler(service)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(tc.Sessions))
		r.Route("/api/v1/referrals", func(r chi.Router) {
			r.Get("/", handler.List)
			r.Post("/", handler.Create)
			r.Put("/{id}/stage", handler.UpdateStage)
		})
	})

	return r, tc
}

func createBody(receiverEmail string) map[string]interface{} {
	return map[string]interface{}{
		"receiver_email": receiverEmail,
		"lead_company":   "Acme Corp",
		"lead_email":     testutil.UniqueEmail("lead"),
		"deal_value":     5000,
	}
}

func TestReferralHandler_Create(t *testing.T) {
	router, tc := setupReferralTestRouter(t)
	defer tc.Cleanup()

	t.Run("creates a referral and notifies the receiver", func(t *testing.T) {
		tc.Directory.AddMember("receiver@example.com", "Rachel")

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/referrals", createBody("receiver@example.com"), tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var resp handlers.ReferralResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.NotEmpty(t, resp.ID)
		assert.Equal(t, "receiver@example.com", resp.ReceiverEmail)
		assert.Equal(t, "Rachel", resp.ReceiverName)
		assert.Equal(t, "Acme Corp", resp.LeadCompany)
		assert.Equal(t, float64(5000), resp.DealValue)
		assert.Equal(t, string(models.StageNew), resp.Stage)

		msg, ok := tc.Directory.LastMessage()
		require.True(t, ok, "expected a receiver DM")
		assert.Contains(t, msg.Body, "Acme Corp")
	})

	t.Run("receiver outside the community gets 404", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/referrals", createBody("nobody@example.com"), tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("duplicate lead within the window gets 409", func(t *testing.T) {
		tc.Directory.AddMember("receiver2@example.com", "Ron")

		body := createBody("receiver2@example.com")

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/referrals", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusCreated, rr.Code)

		req = testutil.AuthenticatedRequest(t, "POST", "/api/v1/referrals", body, tc.Token)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("self referral gets 400", func(t *testing.T) {
		tc.Directory.AddMember(tc.User.Email, tc.User.Name)

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/referrals", createBody(tc.User.Email), tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("validation failures get 400 with details", func(t *testing.T) {
		body := map[string]interface{}{
			"receiver_email": "bad-email",
			"lead_company":   "A",
			"lead_email":     "",
			"deal_value":     0,
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/referrals", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "receiver_email")
		assert.Contains(t, resp.Details, "lead_company")
		assert.Contains(t, resp.Details, "lead_email")
		assert.Contains(t, resp.Details, "deal_value")
	})

	t.Run("requires authentication", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/referrals", createBody("receiver@example.com"))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestReferralHandler_List(t *testing.T) {
	router, tc := setupReferralTestRouter(t)
	defer tc.Cleanup()

	other := testutil.CreateTestUser(t, tc.DB)
	receiver := testutil.CreateTestUser(t, tc.DB)

	mine := testutil.CreateTestReferral(t, tc.DB, tc.User.ID, receiver.ID, testutil.UniqueEmail("lead"), models.StageContacted)
	testutil.CreateTestReferral(t, tc.DB, other.ID, receiver.ID, testutil.UniqueEmail("lead"), models.StageNew)

	t.Run("returns only the introducer's referrals", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/referrals", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp []handlers.ReferralResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		require.Len(t, resp, 1)
		assert.Equal(t, mine.ID.String(), resp[0].ID)
		assert.Equal(t, receiver.Email, resp[0].ReceiverEmail)
	})

	t.Run("requires authentication", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "GET", "/api/v1/referrals", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestReferralHandler_UpdateStage(t *testing.T) {
	router, tc := setupReferralTestRouter(t)
	defer tc.Cleanup()

	receiver := testutil.CreateTestUser(t, tc.DB)

	t.Run("moves the referral to the target stage", func(t *testing.T) {
		referral := testutil.CreateTestReferral(t, tc.DB, tc.User.ID, receiver.ID, testutil.UniqueEmail("lead"), models.StageNew)

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/referrals/"+referral.ID.String()+"/stage",
			map[string]string{"stage": "contacted"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp handlers.ReferralResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, string(models.StageContacted), resp.Stage)
	})

	t.Run("another introducer's referral gets 404", func(t *testing.T) {
		other := testutil.CreateTestUser(t, tc.DB)
		referral := testutil.CreateTestReferral(t, tc.DB, other.ID, receiver.ID, testutil.UniqueEmail("lead"), models.StageNew)

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/referrals/"+referral.ID.String()+"/stage",
			map[string]string{"stage": "won"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)

		// Stored stage is untouched
		var stored models.Referral
		require.NoError(t, tc.DB.First(&stored, "id = ?", referral.ID).Error)
		assert.Equal(t, models.StageNew, stored.Stage)
	})

	t.Run("unknown referral gets 404", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/referrals/"+uuid.New().String()+"/stage",
			map[string]string{"stage": "won"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("malformed id gets 400", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/referrals/not-a-uuid/stage",
			map[string]string{"stage": "won"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown stage gets 400", func(t *testing.T) {
		referral := testutil.CreateTestReferral(t, tc.DB, tc.User.ID, receiver.ID, testutil.UniqueEmail("lead"), models.StageNew)

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/referrals/"+referral.ID.String()+"/stage",
			map[string]string{"stage": "closed"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
