package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"didauday/internal/config"
	"didauday/internal/database"
	"didauday/internal/export"
	"didauday/internal/models"
	"didauday/internal/payment"
	"didauday/internal/policy"
	"didauday/internal/repository"
	"didauday/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	mu       sync.Mutex
	sessions int
}

func (g *stubGateway) CreatePayment(ctx context.Context, total int64, currency, description string) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions++
	id := fmt.Sprintf("PAY-%d", g.sessions)
	return &payment.Session{
		ID:          id,
		PayerToken:  "EC-" + id,
		RedirectURL: "https://sandbox.processor.example/checkout/" + id,
	}, nil
}

func (g *stubGateway) ExecutePayment(ctx context.Context, sessionID, payerID string, total int64) (*payment.CaptureResult, error) {
	return &payment.CaptureResult{
		PayerEmail: "buyer@example.com",
		PayeeEmail: "platform@example.com",
		Amount:     total,
	}, nil
}

func (g *stubGateway) CreatePayoutBatch(ctx context.Context, batchID string, items []payment.PayoutItem) (*payment.PayoutResult, error) {
	accepted := make([]string, 0, len(items))
	for _, item := range items {
		accepted = append(accepted, item.Receiver)
	}
	return &payment.PayoutResult{BatchID: batchID, Accepted: accepted}, nil
}

type apiFixture struct {
	db      *database.DB
	handler http.Handler
	tour    *models.Tour
	hotel   *models.Hotel
}

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true, Port: 0},
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "traveller-key", Extra: "traveller-extra", Name: "storefront", Role: policy.RoleTraveller, ProfileID: 1},
				{Key: "partner-key", Extra: "partner-extra", Name: "partner portal", Role: policy.RolePartner, ProfileID: 2},
				{Key: "admin-key", Extra: "admin-extra", Name: "backoffice", Role: policy.RoleAdmin, ProfileID: 3},
			},
		},
	}
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, policy.Seed(ctx, db, 1, &logger))

	profiles := []*models.Profile{
		{Email: "buyer@example.com", FirstName: "An"},
		{Email: "tours@example.com", FirstName: "Binh", PayoutEmail: "tours-payout@example.com"},
		{Email: "admin@example.com", FirstName: "Chi"},
	}
	for _, p := range profiles {
		require.NoError(t, db.CreateProfile(ctx, p))
	}

	tour := &models.Tour{OwnerID: 2, Name: "Sapa trekking", Price: 3000, Available: 5}
	require.NoError(t, db.CreateTour(ctx, tour))
	hotel := &models.Hotel{OwnerID: 2, Name: "River City Hotel"}
	require.NoError(t, db.CreateHotel(ctx, hotel))
	room := &models.Room{HotelID: hotel.ID, Name: "Deluxe 201", Price: 2000}
	require.NoError(t, db.CreateRoom(ctx, room))

	gateway := &stubGateway{}
	locker := repository.NewMemoryLocker()
	bookings := service.NewBookingService(db, locker, gateway, nil, "USD", &logger)
	settlement := service.NewSettlementService(db, gateway, nil, nil, nil, nil,
		0.10, "platform@example.com", &logger)
	coupons := service.NewCouponService(db, &logger)
	exporter := export.NewLedgerExporter(t.TempDir())

	settlementCfg := config.SettlementConfig{
		CommissionRate: 0.10,
		SuccessURL:     "https://shop.example.com/booking/success",
		FailureURL:     "https://shop.example.com/booking/failure",
	}

	srv := NewHTTPServer(testAPIConfig(), settlementCfg, bookings, settlement, coupons,
		exporter, policy.NewChecker(db), &logger)

	return &apiFixture{db: db, handler: srv.Handler(), tour: tour, hotel: hotel}
}

func doRequest(t *testing.T, f *apiFixture, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if key != "" {
		req.Header.Set("x-api-key", key+"-key")
		req.Header.Set("x-api-extra", key+"-extra")
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	f := setupAPI(t)
	rec := doRequest(t, f, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingKeysRejected(t *testing.T) {
	f := setupAPI(t)
	rec := doRequest(t, f, http.MethodGet, "/api/v1/bookings/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/me", nil)
	req.Header.Set("x-api-key", "traveller-key")
	req.Header.Set("x-api-extra", "wrong-extra")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGrantDenials(t *testing.T) {
	f := setupAPI(t)

	// Travellers cannot create coupons or read the ledger.
	rec := doRequest(t, f, http.MethodPost, "/api/v1/coupon-codes", "traveller", map[string]any{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, f, http.MethodGet, "/api/v1/reports/ledger", "traveller", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Partners cannot list everyone's bookings.
	rec = doRequest(t, f, http.MethodGet, "/api/v1/bookings", "partner", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admins can.
	rec = doRequest(t, f, http.MethodGet, "/api/v1/bookings", "admin", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitCartEndpoint(t *testing.T) {
	f := setupAPI(t)

	body := map[string]any{
		"items": []map[string]any{{
			"type":     "tour",
			"tour_id":  f.tour.ID,
			"quantity": 2,
		}},
	}
	rec := doRequest(t, f, http.MethodPost, "/api/v1/bookings", "traveller", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var booking models.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &booking))
	assert.Equal(t, int64(1), booking.BuyerID)
	assert.Equal(t, int64(6000), booking.TotalPrice)
	assert.NotEmpty(t, booking.RedirectURL)

	// The hold shows up in the buyer's own listing.
	rec = doRequest(t, f, http.MethodGet, "/api/v1/bookings/me", "traveller", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Bookings []*models.Booking `json:"bookings"`
		Total    int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Total)
}

func TestSubmitCartBadRequests(t *testing.T) {
	f := setupAPI(t)

	rec := doRequest(t, f, http.MethodPost, "/api/v1/bookings", "traveller", map[string]any{
		"items": []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, f, http.MethodPost, "/api/v1/bookings", "traveller", map[string]any{
		"items": []map[string]any{{
			"type": "room", "room_id": 1, "date_start": "2026-10-10", "date_end": "2026-10-12",
		}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code) // dates must be DD/MM/YYYY

	// Availability failures come back as a per-type error map.
	rec = doRequest(t, f, http.MethodPost, "/api/v1/bookings", "traveller", map[string]any{
		"items": []map[string]any{{"type": "tour", "tour_id": f.tour.ID, "quantity": 99}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var failure struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failure))
	assert.Equal(t, map[string]string{"tour": "tour not available"}, failure.Errors)
}

func TestSuccessRedirectCaptures(t *testing.T) {
	f := setupAPI(t)

	rec := doRequest(t, f, http.MethodPost, "/api/v1/bookings", "traveller", map[string]any{
		"items": []map[string]any{{"type": "tour", "tour_id": f.tour.ID, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var booking models.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &booking))

	rec = doRequest(t, f, http.MethodGet,
		"/booking/success?paymentId="+booking.PaymentSessionID+"&PayerID=PAYER-1", "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "https://shop.example.com/booking/success?bookingId=")

	// A repeated redirect still lands on the success page.
	rec = doRequest(t, f, http.MethodGet,
		"/booking/success?paymentId="+booking.PaymentSessionID+"&PayerID=PAYER-1", "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://shop.example.com/booking/success", rec.Header().Get("Location"))

	entries, err := f.db.ListPaymentsBySession(context.Background(), booking.PaymentSessionID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCancelRedirectReleasesHold(t *testing.T) {
	f := setupAPI(t)
	ctx := context.Background()

	rec := doRequest(t, f, http.MethodPost, "/api/v1/bookings", "traveller", map[string]any{
		"items": []map[string]any{{"type": "tour", "tour_id": f.tour.ID, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var booking models.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &booking))

	rec = doRequest(t, f, http.MethodGet, "/booking/cancel?token="+booking.PayerToken, "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://shop.example.com/booking/failure", rec.Header().Get("Location"))

	tour, err := f.db.GetTour(ctx, f.tour.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), tour.Available)
}

func TestCouponEndpoints(t *testing.T) {
	f := setupAPI(t)

	start := time.Now().Format(models.WireDateLayout)
	end := time.Now().AddDate(0, 1, 0).Format(models.WireDateLayout)

	body := map[string]any{
		"code": "summer20", "type": "tour", "tour_id": f.tour.ID,
		"percent": 20, "date_start": start, "date_end": end, "quantity": 10,
	}
	rec := doRequest(t, f, http.MethodPost, "/api/v1/coupon-codes", "partner", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var coupon models.CouponCode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &coupon))
	assert.Equal(t, "SUMMER20", coupon.Code)
	assert.Equal(t, int64(2), coupon.CreatorID)

	// Duplicate code.
	rec = doRequest(t, f, http.MethodPost, "/api/v1/coupon-codes", "partner", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, f, http.MethodGet, "/api/v1/coupon-codes/SUMMER20", "partner", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// A traveller redeems the code against cart items; non-matching
	// items are omitted from the result.
	rec = doRequest(t, f, http.MethodPost, "/api/v1/coupon-codes/SUMMER20", "traveller", map[string]any{
		"items": []map[string]any{
			{"type": "tour", "id": f.tour.ID},
			{"type": "hotel", "id": f.hotel.ID},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var redeemed struct {
		CouponCodes []*models.CouponCode `json:"coupon_codes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &redeemed))
	require.Len(t, redeemed.CouponCodes, 1)
	assert.Equal(t, "SUMMER20", redeemed.CouponCodes[0].Code)
	assert.Equal(t, int64(9), redeemed.CouponCodes[0].Available)

	// Unknown codes redeem nothing but do not error.
	rec = doRequest(t, f, http.MethodPost, "/api/v1/coupon-codes/NOSUCH", "traveller", map[string]any{
		"items": []map[string]any{{"type": "tour", "id": f.tour.ID}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &redeemed))
	assert.Empty(t, redeemed.CouponCodes)

	rec = doRequest(t, f, http.MethodPatch, "/api/v1/coupon-codes/SUMMER20", "partner", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var closed models.CouponCode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &closed))
	assert.False(t, closed.Active)

	rec = doRequest(t, f, http.MethodGet, "/api/v1/coupon-codes/NOSUCH", "partner", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLedgerReportDownload(t *testing.T) {
	f := setupAPI(t)
	ctx := context.Background()

	require.NoError(t, f.db.AppendPayment(ctx, &models.PaymentRecord{
		SenderEmail: "buyer@example.com", ReceiverEmail: "platform@example.com",
		Kind: models.PaymentKindSale, Amount: 10000, PaymentSessionID: "PAY-1",
	}))

	rec := doRequest(t, f, http.MethodGet, "/api/v1/reports/ledger", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotZero(t, rec.Body.Len())

	rec = doRequest(t, f, http.MethodGet, "/api/v1/reports/ledger?from=bad-date", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
