package google

import (
	"context"
	"fmt"
	"os"
	"time"

	"didauday/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const ledgerRange = "Ledger!A:F"

// SheetsLedger mirrors ledger entries into a Google spreadsheet so
// finance can reconcile payouts without database access. The database
// stays the source of truth; a failed append here is logged by the
// caller and never blocks settlement.
type SheetsLedger struct {
	service       *sheets.Service
	spreadsheetID string
}

func NewSheetsLedger(ctx context.Context, credentialsFile, spreadsheetID string) (*SheetsLedger, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return &SheetsLedger{service: srv, spreadsheetID: spreadsheetID}, nil
}

// TestConnection reads one cell to verify credentials and sharing.
func (s *SheetsLedger) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, "Ledger!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// AppendLedgerEntry appends one row: timestamp, kind, sender,
// receiver, amount in dollars, payment session id.
func (s *SheetsLedger) AppendLedgerEntry(ctx context.Context, rec *models.PaymentRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	values := &sheets.ValueRange{
		Values: [][]interface{}{{
			createdAt.Format("2006-01-02 15:04:05"),
			rec.Kind,
			rec.SenderEmail,
			rec.ReceiverEmail,
			fmt.Sprintf("%d.%02d", rec.Amount/100, rec.Amount%100),
			rec.PaymentSessionID,
		}},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, ledgerRange, values).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to append ledger row: %w", err)
	}
	return nil
}
