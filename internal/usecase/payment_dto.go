package usecase

import (
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
)

type PaymentSessionOutput struct {
	ID                    string     `json:"id"`
	OrderID               string     `json:"order_id"`
	Kind                  string     `json:"kind"`
	Provider              string     `json:"provider"`
	Reference             string     `json:"reference"`
	Amount                string     `json:"amount"`
	Currency              string     `json:"currency"`
	Status                string     `json:"status"`
	PayAddress            string     `json:"pay_address,omitempty"`
	PaymentURL            string     `json:"payment_url,omitempty"`
	Confirmations         int        `json:"confirmations"`
	RequiredConfirmations int        `json:"required_confirmations,omitempty"`
	TxID                  string     `json:"txid,omitempty"`
	ReceivedAmount        *string    `json:"received_amount,omitempty"`
	FailureReason         string     `json:"failure_reason,omitempty"`
	ExpiresAt             time.Time  `json:"expires_at"`
	ExpiresInSeconds      int64      `json:"expires_in_seconds"`
	ConfirmedAt           *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	// 作成・状態取得のレスポンスでだけ埋める
	OrderStatus string `json:"order_status,omitempty"`
}

func toSessionOutput(s model.PaymentSession, now time.Time) PaymentSessionOutput {
	out := PaymentSessionOutput{
		ID:                    s.ID,
		OrderID:               s.OrderID,
		Kind:                  string(s.Kind),
		Provider:              s.Provider,
		Reference:             s.Reference,
		Amount:                money2(s.Amount),
		Currency:              s.Currency,
		Status:                string(s.Status),
		PayAddress:            s.PayAddress,
		PaymentURL:            s.PaymentURL,
		Confirmations:         s.Confirmations,
		RequiredConfirmations: s.RequiredConfirmations,
		TxID:                  s.TxID,
		FailureReason:         s.FailureReason,
		ExpiresAt:             s.ExpiresAt,
		ConfirmedAt:           s.ConfirmedAt,
		CreatedAt:             s.CreatedAt,
	}
	if s.IsLive() {
		out.ExpiresInSeconds = s.SecondsUntilExpiry(now)
	}
	if s.ReceivedAmount.Valid {
		v := money2(s.ReceivedAmount.Decimal)
		out.ReceivedAmount = &v
	}
	return out
}

func toSessionOutputs(list []model.PaymentSession, now time.Time) []PaymentSessionOutput {
	out := make([]PaymentSessionOutput, 0, len(list))
	for _, s := range list {
		out = append(out, toSessionOutput(s, now))
	}
	return out
}
