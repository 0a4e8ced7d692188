package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"didauday/internal/config"
)

// Client talks to the payment processor's REST API. Amount fields are
// decimal strings in the processor's wire format; cents are converted
// at the boundary.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	currency     string
	payeeEmail   string
	httpClient   *http.Client
}

func NewClient(cfg config.PaymentConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		currency:     cfg.Currency,
		payeeEmail:   cfg.PayeeEmail,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type wireAmount struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type wireLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type createPaymentRequest struct {
	Intent       string `json:"intent"`
	Payer        struct {
		PaymentMethod string `json:"payment_method"`
	} `json:"payer"`
	RedirectURLs struct {
		ReturnURL string `json:"return_url"`
		CancelURL string `json:"cancel_url"`
	} `json:"redirect_urls"`
	Transactions []struct {
		Amount      wireAmount `json:"amount"`
		Description string     `json:"description"`
	} `json:"transactions"`
}

type createPaymentResponse struct {
	ID    string     `json:"id"`
	State string     `json:"state"`
	Links []wireLink `json:"links"`
}

// CreatePayment opens a payment session and returns the approval
// redirect. The payer token is carried in the redirect's token query
// parameter, which the cancel callback later echoes back.
func (c *Client) CreatePayment(ctx context.Context, total int64, currency, description string) (*Session, error) {
	if currency == "" {
		currency = c.currency
	}

	var body createPaymentRequest
	body.Intent = "sale"
	body.Payer.PaymentMethod = "paypal"
	body.Transactions = make([]struct {
		Amount      wireAmount `json:"amount"`
		Description string     `json:"description"`
	}, 1)
	body.Transactions[0].Amount = wireAmount{Total: centsToDecimal(total), Currency: currency}
	body.Transactions[0].Description = description

	var resp createPaymentResponse
	if err := c.doPost(ctx, c.baseURL+"/v1/payments/payment", body, &resp); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	redirect := ""
	for _, link := range resp.Links {
		if link.Rel == "approval_url" {
			redirect = link.Href
			break
		}
	}
	if resp.ID == "" || redirect == "" {
		return nil, fmt.Errorf("create payment: response missing id or approval url")
	}

	return &Session{
		ID:          resp.ID,
		PayerToken:  payerTokenFromURL(redirect),
		RedirectURL: redirect,
	}, nil
}

type executePaymentRequest struct {
	PayerID      string `json:"payer_id"`
	Transactions []struct {
		Amount wireAmount `json:"amount"`
	} `json:"transactions"`
}

type executePaymentResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Payer struct {
		PayerInfo struct {
			Email string `json:"email"`
		} `json:"payer_info"`
	} `json:"payer"`
	Transactions []struct {
		Amount wireAmount `json:"amount"`
		Payee  struct {
			Email string `json:"email"`
		} `json:"payee"`
	} `json:"transactions"`
}

// ExecutePayment captures a previously approved session for the stored
// total. The processor validates the amount against the session.
func (c *Client) ExecutePayment(ctx context.Context, sessionID, payerID string, total int64) (*CaptureResult, error) {
	var body executePaymentRequest
	body.PayerID = payerID
	body.Transactions = make([]struct {
		Amount wireAmount `json:"amount"`
	}, 1)
	body.Transactions[0].Amount = wireAmount{Total: centsToDecimal(total), Currency: c.currency}

	endpoint := fmt.Sprintf("%s/v1/payments/payment/%s/execute", c.baseURL, url.PathEscape(sessionID))
	var resp executePaymentResponse
	if err := c.doPost(ctx, endpoint, body, &resp); err != nil {
		return nil, fmt.Errorf("execute payment: %w", err)
	}
	if resp.State != "approved" {
		return nil, fmt.Errorf("execute payment: %w: state %q", ErrDeclined, resp.State)
	}

	result := &CaptureResult{
		PayerEmail: resp.Payer.PayerInfo.Email,
		Amount:     total,
		PayeeEmail: c.payeeEmail,
	}
	if len(resp.Transactions) > 0 && resp.Transactions[0].Payee.Email != "" {
		result.PayeeEmail = resp.Transactions[0].Payee.Email
	}
	return result, nil
}

type payoutBatchRequest struct {
	SenderBatchHeader struct {
		SenderBatchID string `json:"sender_batch_id"`
		EmailSubject  string `json:"email_subject"`
	} `json:"sender_batch_header"`
	Items []payoutBatchItem `json:"items"`
}

type payoutBatchItem struct {
	RecipientType string     `json:"recipient_type"`
	Amount        wireAmount `json:"amount"`
	Receiver      string     `json:"receiver"`
	Note          string     `json:"note"`
}

type payoutBatchResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
		BatchStatus   string `json:"batch_status"`
	} `json:"batch_header"`
	Items []struct {
		TransactionStatus string `json:"transaction_status"`
		PayoutItem        struct {
			Receiver string `json:"receiver"`
		} `json:"payout_item"`
	} `json:"items"`
}

// CreatePayoutBatch sends one payout line per partner. Receivers the
// processor did not explicitly report as failed count as accepted; an
// empty item list in the response means the whole batch was accepted
// asynchronously.
func (c *Client) CreatePayoutBatch(ctx context.Context, batchID string, items []PayoutItem) (*PayoutResult, error) {
	if len(items) == 0 {
		return &PayoutResult{BatchID: batchID}, nil
	}

	var body payoutBatchRequest
	body.SenderBatchHeader.SenderBatchID = batchID
	body.SenderBatchHeader.EmailSubject = "You have a new booking."
	for _, item := range items {
		body.Items = append(body.Items, payoutBatchItem{
			RecipientType: "EMAIL",
			Amount:        wireAmount{Total: centsToDecimal(item.Amount), Currency: c.currency},
			Receiver:      item.Receiver,
			Note:          item.Note,
		})
	}

	var resp payoutBatchResponse
	if err := c.doPost(ctx, c.baseURL+"/v1/payments/payouts", body, &resp); err != nil {
		return nil, fmt.Errorf("create payout batch: %w", err)
	}

	result := &PayoutResult{BatchID: resp.BatchHeader.PayoutBatchID}
	if result.BatchID == "" {
		result.BatchID = batchID
	}

	if len(resp.Items) == 0 {
		for _, item := range items {
			result.Accepted = append(result.Accepted, item.Receiver)
		}
		return result, nil
	}

	for _, item := range resp.Items {
		if item.TransactionStatus == "FAILED" || item.TransactionStatus == "RETURNED" {
			continue
		}
		result.Accepted = append(result.Accepted, item.PayoutItem.Receiver)
	}
	return result, nil
}

func (c *Client) doPost(ctx context.Context, endpoint string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func payerTokenFromURL(redirect string) string {
	parsed, err := url.Parse(redirect)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("token")
}

func centsToDecimal(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
