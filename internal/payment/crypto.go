package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"

	"github.com/shopspring/decimal"
)

const CryptoProviderName = "crypto-sim"

// CryptoSimulator は暗号資産の請求書を発行するふりをする。
// 為替換算はせず、注文合計をそのまま指定通貨の金額として扱う。
type CryptoSimulator struct {
	*simulator
	baseURL string
}

func NewCryptoSimulator(baseURL string) *CryptoSimulator {
	return &CryptoSimulator{
		simulator: newSimulator(),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

func (c *CryptoSimulator) Name() string            { return CryptoProviderName }
func (c *CryptoSimulator) Kind() model.PaymentKind { return model.PaymentKindCrypto }

func (c *CryptoSimulator) CreateInvoice(ctx context.Context, orderID string, amount decimal.Decimal, currency string) (Invoice, error) {
	if err := ctx.Err(); err != nil {
		return Invoice{}, err
	}
	now := c.clock()
	ref := newReference("inv", now)
	if err := c.record(ref, orderID, amount); err != nil {
		return Invoice{}, err
	}

	return Invoice{
		Reference:  ref,
		PayAddress: newPayAddress(),
		PaymentURL: c.baseURL + "/crypto/" + ref + "?currency=" + currency,
		Status:     model.SessionStatusPending,
		ExpiresAt:  now.Add(model.CryptoInvoiceTTL),
	}, nil
}

func (c *CryptoSimulator) VerifyInvoice(ctx context.Context, reference string) (InvoiceStatus, error) {
	if err := ctx.Err(); err != nil {
		return InvoiceStatus{}, err
	}
	return c.lookup(reference)
}

// 20バイトのランダムなアドレス
func newPayAddress() string {
	b := make([]byte, 20)
	_, _ = rand.Read(b)
	return "0x" + hex.EncodeToString(b)
}

// Confirm は確認数つきで入金を記録する（テスト/デバッグ用）。
func (c *CryptoSimulator) Confirm(reference, txID string, confirmations int) (InvoiceStatus, error) {
	st := model.SessionStatusPending
	if confirmations >= model.RequiredCryptoConfirmations {
		st = model.SessionStatusConfirmed
	}
	return c.settle(reference, InvoiceStatus{Status: st, Confirmations: confirmations, TxID: txID})
}

var _ Provider = (*CryptoSimulator)(nil)
