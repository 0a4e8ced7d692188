package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"didauday/internal/database"
	"didauday/internal/models"
	"didauday/internal/service"
)

// cartItemRequest is one line of the incoming cart. Dates come in the
// DD/MM/YYYY form the storefront sends.
type cartItemRequest struct {
	Type       string            `json:"type"`
	TourID     int64             `json:"tour_id,omitempty"`
	RoomID     int64             `json:"room_id,omitempty"`
	FlightID   int64             `json:"flight_id,omitempty"`
	Quantity   int64             `json:"quantity,omitempty"`
	CouponCode string            `json:"coupon_code,omitempty"`
	DateStart  string            `json:"date_start,omitempty"`
	DateEnd    string            `json:"date_end,omitempty"`
	Customers  []models.Customer `json:"customers,omitempty"`
}

type cartRequest struct {
	Items []cartItemRequest `json:"items"`
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmitCart(w, r)
	case http.MethodGet:
		s.listBookings(w, r, 0)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	client, ok := ClientFromContext(r.Context())
	if !ok || client.ProfileID == 0 {
		writeError(w, http.StatusUnauthorized, "unknown profile")
		return
	}
	s.listBookings(w, r, client.ProfileID)
}

func (s *HTTPServer) listBookings(w http.ResponseWriter, r *http.Request, buyerID int64) {
	page, pageSize := pagination(r)
	bookings, total, err := s.bookings.ListBookings(r.Context(), buyerID, page, pageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bookings": bookings,
		"total":    total,
		"page":     page,
	})
}

func (s *HTTPServer) handleSubmitCart(w http.ResponseWriter, r *http.Request) {
	client, _ := ClientFromContext(r.Context())

	var body cartRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	items := make([]*models.BookingItem, 0, len(body.Items))
	for _, in := range body.Items {
		item := &models.BookingItem{
			Type:       strings.TrimSpace(in.Type),
			TourID:     in.TourID,
			RoomID:     in.RoomID,
			FlightID:   in.FlightID,
			Quantity:   in.Quantity,
			CouponCode: in.CouponCode,
			Customers:  in.Customers,
		}
		var err error
		if item.DateStart, err = parseWireDate(in.DateStart); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date_start; expected DD/MM/YYYY")
			return
		}
		if item.DateEnd, err = parseWireDate(in.DateEnd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date_end; expected DD/MM/YYYY")
			return
		}
		items = append(items, item)
	}

	booking, err := s.bookings.SubmitCart(r.Context(), client.ProfileID, items)
	if err != nil {
		s.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) writeBookingError(w http.ResponseWriter, err error) {
	var notAvailable *service.AvailabilityError
	switch {
	case errors.As(err, &notAvailable):
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": notAvailable.Reasons})
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidItem),
		errors.Is(err, service.ErrInvalidDates):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrNotAvailable), errors.Is(err, service.ErrLockBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "booking failed")
	}
}

// handleSuccess is where the processor redirects the buyer after
// approval. Capture runs here; the buyer lands on the storefront
// success or failure page.
func (s *HTTPServer) handleSuccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("paymentId"))
	payerID := strings.TrimSpace(r.URL.Query().Get("PayerID"))
	if sessionID == "" || payerID == "" {
		http.Redirect(w, r, s.failureURL, http.StatusFound)
		return
	}

	booking, err := s.settlement.Capture(r.Context(), sessionID, payerID)
	if err != nil {
		// A duplicate redirect after a completed capture is not a failure.
		if errors.Is(err, database.ErrAlreadyCaptured) {
			http.Redirect(w, r, s.successURL, http.StatusFound)
			return
		}
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("capture failed")
		http.Redirect(w, r, s.failureURL, http.StatusFound)
		return
	}

	http.Redirect(w, r, s.successURL+"?bookingId="+strconv.FormatInt(booking.ID, 10), http.StatusFound)
}

// handleCancel releases the hold when the buyer backs out at the
// processor. Hitting it twice is harmless.
func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		http.Redirect(w, r, s.failureURL, http.StatusFound)
		return
	}

	if _, err := s.bookings.Cancel(r.Context(), token); err != nil && !errors.Is(err, database.ErrNotFound) {
		s.logger.Warn().Err(err).Str("token", token).Msg("cancel failed")
	}
	http.Redirect(w, r, s.failureURL, http.StatusFound)
}

type couponRequest struct {
	Code      string `json:"code"`
	Type      string `json:"type"`
	TourID    int64  `json:"tour_id,omitempty"`
	HotelID   int64  `json:"hotel_id,omitempty"`
	Percent   int64  `json:"percent"`
	DateStart string `json:"date_start"`
	DateEnd   string `json:"date_end"`
	Quantity  int64  `json:"quantity"`
}

func (s *HTTPServer) handleCoupons(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createCoupon(w, r)
	case http.MethodGet:
		client, _ := ClientFromContext(r.Context())
		page, pageSize := pagination(r)
		coupons, total, err := s.coupons.List(r.Context(), client.ProfileID, page, pageSize)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list coupons")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"coupon_codes": coupons, "total": total, "page": page})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) createCoupon(w http.ResponseWriter, r *http.Request) {
	client, _ := ClientFromContext(r.Context())

	var body couponRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start, err := parseWireDate(body.DateStart)
	if err != nil || start == nil {
		writeError(w, http.StatusBadRequest, "invalid date_start; expected DD/MM/YYYY")
		return
	}
	end, err := parseWireDate(body.DateEnd)
	if err != nil || end == nil {
		writeError(w, http.StatusBadRequest, "invalid date_end; expected DD/MM/YYYY")
		return
	}

	coupon := &models.CouponCode{
		Code:      body.Code,
		Type:      body.Type,
		TourID:    body.TourID,
		HotelID:   body.HotelID,
		Percent:   body.Percent,
		CreatorID: client.ProfileID,
		DateStart: *start,
		DateEnd:   end.Add(24*time.Hour - time.Second),
		Quantity:  body.Quantity,
	}

	if err := s.coupons.Create(r.Context(), coupon); err != nil {
		switch {
		case errors.Is(err, database.ErrDuplicateCode):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrInvalidItem), errors.Is(err, service.ErrInvalidDates):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, database.ErrNotFound):
			writeError(w, http.StatusNotFound, "referenced tour or hotel not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create coupon")
		}
		return
	}
	writeJSON(w, http.StatusCreated, coupon)
}

func (s *HTTPServer) handleCouponByCode(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimPrefix(r.URL.Path, "/api/v1/coupon-codes/")
	code = strings.TrimSpace(code)
	if code == "" || strings.Contains(code, "/") {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		coupon, err := s.coupons.Get(r.Context(), code)
		if err != nil {
			writeError(w, http.StatusNotFound, "coupon not found")
			return
		}
		writeJSON(w, http.StatusOK, coupon)
	case http.MethodPost:
		s.redeemCoupon(w, r, code)
	case http.MethodPatch:
		coupon, err := s.coupons.Close(r.Context(), code)
		if err != nil {
			writeError(w, http.StatusNotFound, "coupon not found")
			return
		}
		writeJSON(w, http.StatusOK, coupon)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type redeemItemRequest struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

type redeemRequest struct {
	Items []redeemItemRequest `json:"items"`
}

// redeemCoupon tries the code against the submitted cart items and
// returns the records it applied to. Items the code does not match are
// left out of the response rather than failing the call.
func (s *HTTPServer) redeemCoupon(w http.ResponseWriter, r *http.Request, code string) {
	var body redeemRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	targets := make([]service.RedeemTarget, 0, len(body.Items))
	for _, in := range body.Items {
		targets = append(targets, service.RedeemTarget{Type: strings.TrimSpace(in.Type), ID: in.ID})
	}

	redeemed, err := s.coupons.Redeem(r.Context(), code, targets)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to redeem coupon")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coupon_codes": redeemed})
}

func (s *HTTPServer) handleLedgerReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	from, err := parseQueryDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date; expected YYYY-MM-DD")
		return
	}
	to, err := parseQueryDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date; expected YYYY-MM-DD")
		return
	}
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}

	entries, err := s.settlement.LedgerReport(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load ledger")
		return
	}

	filePath, err := s.exporter.Export(entries, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export ledger")
		return
	}
	http.ServeFile(w, r, filePath)
}

func pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize <= 0 || pageSize > 100 {
		pageSize = models.DefaultPageSize
	}
	return page, pageSize
}

func parseWireDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(models.WireDateLayout, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseQueryDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}
