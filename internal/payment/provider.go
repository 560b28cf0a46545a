// Package payment は決済プロバイダとの境界。
// 実プロバイダは使わず、暗号資産請求と外部ゲートウェイのシミュレータを置く。
package payment

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownReference はプロバイダが参照番号を知らない。
	ErrUnknownReference = errors.New("payment: unknown reference")
	// ErrProviderUnavailable はプロバイダ呼び出しの失敗（シミュレータの障害注入を含む）。
	ErrProviderUnavailable = errors.New("payment: provider unavailable")
)

// Invoice は請求/セッション作成の結果。
type Invoice struct {
	Reference  string
	PayAddress string
	PaymentURL string
	Status     model.PaymentSessionStatus
	ExpiresAt  time.Time
}

// InvoiceStatus はプロバイダ側から見た現在の状態。
type InvoiceStatus struct {
	Status         model.PaymentSessionStatus
	Confirmations  int
	TxID           string
	ReceivedAmount decimal.NullDecimal
}

type Provider interface {
	Name() string
	Kind() model.PaymentKind
	CreateInvoice(ctx context.Context, orderID string, amount decimal.Decimal, currency string) (Invoice, error)
	VerifyInvoice(ctx context.Context, reference string) (InvoiceStatus, error)
}

// simulator は2種類のシミュレータの共通部分。
type simulator struct {
	mu       sync.Mutex
	invoices map[string]simulatedInvoice
	failWith error
	now      func() time.Time
}

type simulatedInvoice struct {
	orderID string
	amount  decimal.Decimal
	status  InvoiceStatus
}

func newSimulator() *simulator {
	return &simulator{
		invoices: map[string]simulatedInvoice{},
		now:      time.Now,
	}
}

// FailWith 以降の CreateInvoice を err で失敗させる（nil で解除）。
func (s *simulator) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// SetClock は期限計算に使う時計を差し替える。
func (s *simulator) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.now = now
	}
}

func (s *simulator) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().UTC()
}

func (s *simulator) record(ref, orderID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return errors.Join(ErrProviderUnavailable, s.failWith)
	}
	s.invoices[ref] = simulatedInvoice{
		orderID: orderID,
		amount:  amount,
		status:  InvoiceStatus{Status: model.SessionStatusPending},
	}
	return nil
}

func (s *simulator) lookup(ref string) (InvoiceStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[ref]
	if !ok {
		return InvoiceStatus{}, ErrUnknownReference
	}
	return inv.status, nil
}

func (s *simulator) settle(ref string, status InvoiceStatus) (InvoiceStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[ref]
	if !ok {
		return InvoiceStatus{}, ErrUnknownReference
	}
	if !status.ReceivedAmount.Valid {
		status.ReceivedAmount = decimal.NewNullDecimal(inv.amount)
	}
	inv.status = status
	s.invoices[ref] = inv
	return status, nil
}

// newReference は "<prefix>_<ULID>" 形式の参照番号を作る。
func newReference(prefix string, now time.Time) string {
	return prefix + "_" + ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}
