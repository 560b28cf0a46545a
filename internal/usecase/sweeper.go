package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/observability"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/payment"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"

	"go.uber.org/zap"
)

const sweepBatchSize = 100

// 1件ごとの結果
const (
	SweepOutcomeExpired = "expired"
	// プロバイダ側では入金済み。webhook の到着を待つ。
	SweepOutcomeSkippedPaid = "skipped_paid"
	// ロック後に見直したら既に期限切れでなかった
	SweepOutcomeSkippedChanged = "skipped_changed"
	SweepOutcomeError          = "error"
)

type SweptSession struct {
	SessionID string
	OrderID   string
	Reference string
	Kind      model.PaymentKind
	Outcome   string
	Err       error
}

type SweepReport struct {
	Examined      int
	Expired       int
	Skipped       int
	Failed        int
	MarkersPruned int64
	Sessions      []SweptSession
}

// ExpirySweeper は誰も参照しなくなった期限切れセッションを定期的に失効させる。
type ExpirySweeper struct {
	base
	tx        repo.TransactionManager
	providers map[model.PaymentKind]payment.Provider
}

func NewExpirySweeper(tx repo.TransactionManager, providers []payment.Provider, opts ...Option) *ExpirySweeper {
	m := make(map[model.PaymentKind]payment.Provider, len(providers))
	for _, p := range providers {
		if p != nil {
			m[p.Kind()] = p
		}
	}
	return &ExpirySweeper{
		base:      newBase(opts),
		tx:        tx,
		providers: m,
	}
}

// SweepOnce は期限切れ候補を1バッチ処理し、期限切れのwebhookマーカーも掃除する。
// 1件の失敗で全体は止めない。
func (s *ExpirySweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	var (
		report SweepReport
		stale  []model.PaymentSession
	)
	now := s.clock()
	if err := inTx(ctx, s.tx, func(r repo.TxRepos) error {
		var err error
		stale, err = r.PaymentSessions().ListStale(ctx, now, sweepBatchSize)
		return err
	}); err != nil {
		return report, err
	}

	for _, cand := range stale {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Examined++
		item := SweptSession{
			SessionID: cand.ID,
			OrderID:   cand.OrderID,
			Reference: cand.Reference,
			Kind:      cand.Kind,
		}
		item.Outcome, item.Err = s.sweepOne(ctx, cand)
		switch item.Outcome {
		case SweepOutcomeExpired:
			report.Expired++
		case SweepOutcomeError:
			report.Failed++
			s.logger.Error("sweep failed for session",
				zap.String("session_id", cand.ID),
				zap.String("reference", cand.Reference),
				zap.Error(item.Err),
			)
		default:
			report.Skipped++
		}
		report.Sessions = append(report.Sessions, item)
	}

	if err := inTx(ctx, s.tx, func(r repo.TxRepos) error {
		n, err := r.WebhookEvents().DeleteExpired(ctx, s.clock())
		report.MarkersPruned = n
		return err
	}); err != nil {
		return report, err
	}
	return report, nil
}

func (s *ExpirySweeper) sweepOne(ctx context.Context, cand model.PaymentSession) (string, error) {
	// 入金済みなのに webhook が遅れているだけなら失効させない
	if p, ok := s.providers[cand.Kind]; ok {
		st, err := p.VerifyInvoice(ctx, cand.Reference)
		switch {
		case err == nil && st.Status.IsSuccess():
			s.logger.Info("stale session is paid at provider, waiting for webhook",
				zap.String("session_id", cand.ID),
				zap.String("reference", cand.Reference),
			)
			return SweepOutcomeSkippedPaid, nil
		case err != nil && !errors.Is(err, payment.ErrUnknownReference):
			s.logger.Warn("provider verify failed, expiring anyway",
				zap.String("reference", cand.Reference),
				zap.Error(err),
			)
		}
	}

	var (
		expired bool
		fx      afterCommit
	)
	err := inTx(ctx, s.tx, func(r repo.TxRepos) error {
		fx = nil
		var err error
		_, _, expired, err = s.expireSession(ctx, r, &fx, cand, observability.ExpiryTriggerSweep, SweeperActor)
		return err
	})
	if err != nil {
		return SweepOutcomeError, err
	}
	fx.run()
	if !expired {
		return SweepOutcomeSkippedChanged, nil
	}
	return SweepOutcomeExpired, nil
}

// Run は interval ごとに SweepOnce を呼ぶ。ctx が終わるまで戻らない。
func (s *ExpirySweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("expiry sweeper started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			report, err := s.SweepOnce(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("expiry sweep failed", zap.Error(err))
				continue
			}
			if report.Examined > 0 || report.MarkersPruned > 0 {
				s.logger.Info("expiry sweep done",
					zap.Int("examined", report.Examined),
					zap.Int("expired", report.Expired),
					zap.Int("skipped", report.Skipped),
					zap.Int("failed", report.Failed),
					zap.Int64("markers_pruned", report.MarkersPruned),
				)
			}
		}
	}
}
