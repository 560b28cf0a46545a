package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 受け付けるイベント種別。status はここから決まる。
var webhookEventTypes = map[model.PaymentKind]map[string]model.PaymentSessionStatus{
	model.PaymentKindCrypto: {
		"invoice.pending":   model.SessionStatusPending,
		"invoice.partial":   model.SessionStatusPartial,
		"invoice.confirmed": model.SessionStatusConfirmed,
		"invoice.expired":   model.SessionStatusExpired,
		"invoice.failed":    model.SessionStatusFailed,
	},
	model.PaymentKindTraditional: {
		"payment.pending":   model.SessionStatusPending,
		"payment.completed": model.SessionStatusCompleted,
		"payment.expired":   model.SessionStatusExpired,
		"payment.failed":    model.SessionStatusFailed,
	},
}

// webhookEvent は検証済みのイベント。ここに来た時点で必須項目は揃っている。
type webhookEvent struct {
	ID        string
	Type      string
	Kind      model.PaymentKind
	Reference string
	Status    model.PaymentSessionStatus

	// 任意項目（nil/空なら更新しない）
	Confirmations  *int
	TxID           string
	ReceivedAmount decimal.NullDecimal
	FailureReason  string
}

// 配信されるJSONの形
type webhookEnvelope struct {
	ID   *string `json:"id"`
	Type *string `json:"type"`
	Data *struct {
		Object *webhookObject `json:"object"`
	} `json:"data"`
}

type webhookObject struct {
	Reference      *string          `json:"reference"`
	Status         *string          `json:"status,omitempty"`
	Confirmations  *int             `json:"confirmations,omitempty"`
	TxID           *string          `json:"txid,omitempty"`
	ReceivedAmount *decimal.Decimal `json:"received_amount,omitempty"`
	FailureReason  *string          `json:"failure_reason,omitempty"`
}

var errMalformed = errors.New("malformed webhook payload")

// parseWebhookEvent は生のボディを検証済みイベントに変換する。
// 必須項目の欠落・未知の種別・不正な値はすべて errMalformed。
func parseWebhookEvent(kind model.PaymentKind, raw []byte) (webhookEvent, error) {
	var env webhookEnvelope
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return webhookEvent{}, fmt.Errorf("%w: %v", errMalformed, err)
	}

	switch {
	case env.ID == nil || strings.TrimSpace(*env.ID) == "":
		return webhookEvent{}, fmt.Errorf("%w: id is required", errMalformed)
	case env.Type == nil || strings.TrimSpace(*env.Type) == "":
		return webhookEvent{}, fmt.Errorf("%w: type is required", errMalformed)
	case env.Data == nil || env.Data.Object == nil:
		return webhookEvent{}, fmt.Errorf("%w: data.object is required", errMalformed)
	}
	obj := env.Data.Object
	if obj.Reference == nil || strings.TrimSpace(*obj.Reference) == "" {
		return webhookEvent{}, fmt.Errorf("%w: data.object.reference is required", errMalformed)
	}

	status, ok := webhookEventTypes[kind][*env.Type]
	if !ok {
		return webhookEvent{}, fmt.Errorf("%w: unknown event type %q", errMalformed, *env.Type)
	}
	// status を送ってくる場合は種別と一致していること
	if obj.Status != nil && model.PaymentSessionStatus(*obj.Status) != status {
		return webhookEvent{}, fmt.Errorf("%w: status %q does not match type %q", errMalformed, *obj.Status, *env.Type)
	}

	ev := webhookEvent{
		ID:        strings.TrimSpace(*env.ID),
		Type:      *env.Type,
		Kind:      kind,
		Reference: strings.TrimSpace(*obj.Reference),
		Status:    status,
	}
	if obj.Confirmations != nil {
		if *obj.Confirmations < 0 {
			return webhookEvent{}, fmt.Errorf("%w: confirmations must be >= 0", errMalformed)
		}
		ev.Confirmations = obj.Confirmations
	}
	if obj.TxID != nil {
		ev.TxID = strings.TrimSpace(*obj.TxID)
	}
	if obj.ReceivedAmount != nil {
		if obj.ReceivedAmount.IsNegative() {
			return webhookEvent{}, fmt.Errorf("%w: received_amount must be >= 0", errMalformed)
		}
		ev.ReceivedAmount = decimal.NewNullDecimal(obj.ReceivedAmount.Round(2))
	}
	if obj.FailureReason != nil {
		ev.FailureReason = strings.TrimSpace(*obj.FailureReason)
	}
	return ev, nil
}

// reconcile は報告された状態を金額・確認数と突き合わせて、セッションの次の状態を決める。
func reconcile(s model.PaymentSession, ev webhookEvent) (model.PaymentSessionStatus, string) {
	confirmations := s.Confirmations
	if ev.Confirmations != nil {
		confirmations = *ev.Confirmations
	}
	received := s.ReceivedAmount
	if ev.ReceivedAmount.Valid {
		received = ev.ReceivedAmount
	}
	short := received.Valid && received.Decimal.LessThan(s.Amount)

	switch ev.Status {
	case model.SessionStatusConfirmed:
		if short {
			return model.SessionStatusPartial, ""
		}
		// 確認数が足りないうちは pending のまま
		if confirmations < s.RequiredConfirmations {
			return model.SessionStatusPending, ""
		}
		return model.SessionStatusConfirmed, ""
	case model.SessionStatusCompleted:
		if short {
			return model.SessionStatusFailed, "amount_mismatch"
		}
		return model.SessionStatusCompleted, ""
	case model.SessionStatusFailed:
		reason := ev.FailureReason
		if reason == "" {
			reason = "provider_reported"
		}
		return model.SessionStatusFailed, reason
	}
	return ev.Status, ""
}
