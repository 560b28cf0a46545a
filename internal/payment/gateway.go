package payment

import (
	"context"
	"strings"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"

	"github.com/shopspring/decimal"
)

const GatewayProviderName = "gateway-sim"

// GatewaySimulator は外部決済ゲートウェイのふり。
// リダイレクト先URLを返すだけで、完了は webhook（またはデバッグ用の強制完了）で届く。
type GatewaySimulator struct {
	*simulator
	baseURL string
}

func NewGatewaySimulator(baseURL string) *GatewaySimulator {
	return &GatewaySimulator{
		simulator: newSimulator(),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

func (g *GatewaySimulator) Name() string            { return GatewayProviderName }
func (g *GatewaySimulator) Kind() model.PaymentKind { return model.PaymentKindTraditional }

func (g *GatewaySimulator) CreateInvoice(ctx context.Context, orderID string, amount decimal.Decimal, currency string) (Invoice, error) {
	if err := ctx.Err(); err != nil {
		return Invoice{}, err
	}
	now := g.clock()
	ref := newReference("txn", now)
	if err := g.record(ref, orderID, amount); err != nil {
		return Invoice{}, err
	}

	return Invoice{
		Reference:  ref,
		PaymentURL: g.baseURL + "/checkout/" + ref,
		Status:     model.SessionStatusPending,
		ExpiresAt:  now.Add(model.TraditionalSessionTTL),
	}, nil
}

func (g *GatewaySimulator) VerifyInvoice(ctx context.Context, reference string) (InvoiceStatus, error) {
	if err := ctx.Err(); err != nil {
		return InvoiceStatus{}, err
	}
	return g.lookup(reference)
}

// Complete は支払い完了を記録する。受取額は請求額そのまま。
func (g *GatewaySimulator) Complete(reference, txID string) (InvoiceStatus, error) {
	return g.settle(reference, InvoiceStatus{Status: model.SessionStatusCompleted, TxID: txID})
}

var _ Provider = (*GatewaySimulator)(nil)
