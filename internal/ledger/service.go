// Package ledger implements the two workflows that move points: consuming a
// QR code to credit a user, and redeeming a reward to debit one. Each
// workflow runs its checks and writes inside a single Store transaction.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/dukerupert/binpoints/internal/model"
	"github.com/dukerupert/binpoints/internal/points"
)

type ScanRequest struct {
	UserID    int64
	QRID      int64
	TrashType string
	ItemCount int
}

type ScanResult struct {
	DropID       int64 `json:"drop_id"`
	BinID        int64 `json:"bin_id"`
	PointsEarned int   `json:"points_earned"`
	Balance      int   `json:"total_points"`
}

type RedeemRequest struct {
	UserID   int64
	RewardID int64
}

type RedeemResult struct {
	RedemptionID   int64 `json:"redemption_id"`
	RewardID       int64 `json:"reward_id"`
	PointsDeducted int   `json:"points_deducted"`
	Balance        int   `json:"total_points"`
}

// Stats counts workflow outcomes. A lost race is a precondition that held at
// read time and failed at write time.
type Stats struct {
	Scans           int64 `json:"scans"`
	Redemptions     int64 `json:"redemptions"`
	ScanLostRaces   int64 `json:"scan_lost_races"`
	RedeemLostRaces int64 `json:"redeem_lost_races"`
}

type Service struct {
	store  Store
	logger *slog.Logger

	scans           atomic.Int64
	redemptions     atomic.Int64
	scanLostRaces   atomic.Int64
	redeemLostRaces atomic.Int64
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Stats returns a snapshot of the outcome counters.
func (s *Service) Stats() Stats {
	return Stats{
		Scans:           s.scans.Load(),
		Redemptions:     s.redemptions.Load(),
		ScanLostRaces:   s.scanLostRaces.Load(),
		RedeemLostRaces: s.redeemLostRaces.Load(),
	}
}

func (r ScanRequest) validate() error {
	if r.QRID <= 0 {
		return InvalidInput("valid qr_id is required")
	}
	if !points.Valid(r.TrashType) {
		return InvalidInput("invalid trash type")
	}
	if r.ItemCount <= 0 {
		return InvalidInput("item count must be greater than 0")
	}
	if r.UserID <= 0 {
		return InvalidInput("valid user_id is required")
	}
	return nil
}

// Scan consumes an unused QR code and credits the caller with the points for
// the declared drop. A missing code and an already used code are reported
// identically.
func (s *Service) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var res ScanResult
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		user, err := tx.GetUser(ctx, req.UserID)
		if err != nil {
			return unavailable(err)
		}
		if user == nil {
			return ErrUserNotFound
		}

		qr, err := tx.GetUnusedQRCode(ctx, req.QRID)
		if err != nil {
			return unavailable(err)
		}
		if qr == nil {
			return ErrQRInvalidOrUsed
		}

		bin, err := tx.GetBin(ctx, qr.BinID)
		if err != nil {
			return unavailable(err)
		}
		if bin == nil {
			return ErrBinNotFound
		}

		earned := points.Compute(req.TrashType, req.ItemCount)

		ok, err := tx.MarkQRCodeUsed(ctx, qr.ID)
		if err != nil {
			return unavailable(err)
		}
		if !ok {
			s.scanLostRaces.Add(1)
			s.logger.WarnContext(ctx, "lost race", "op", "scan", "qr_id", qr.ID, "user_id", user.ID)
			return ErrQRInvalidOrUsed
		}

		dropID, err := tx.InsertTrashDrop(ctx, model.TrashDrop{
			UserID:       user.ID,
			BinID:        bin.ID,
			QRID:         qr.ID,
			TrashType:    req.TrashType,
			ItemCount:    req.ItemCount,
			PointsEarned: earned,
		})
		if err != nil {
			return unavailable(err)
		}

		if err := tx.IncrementUserPoints(ctx, user.ID, earned); err != nil {
			return unavailable(err)
		}

		res = ScanResult{
			DropID:       dropID,
			BinID:        bin.ID,
			PointsEarned: earned,
			Balance:      user.TotalPoints + earned,
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "scan", err)
	}

	s.scans.Add(1)
	return &res, nil
}

// Redeem debits the reward's required points from the caller and records the
// redemption.
func (s *Service) Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error) {
	if req.RewardID <= 0 {
		return nil, InvalidInput("valid reward_id is required")
	}
	if req.UserID <= 0 {
		return nil, InvalidInput("valid user_id is required")
	}

	var res RedeemResult
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		user, err := tx.GetUser(ctx, req.UserID)
		if err != nil {
			return unavailable(err)
		}
		if user == nil {
			return ErrUserNotFound
		}

		reward, err := tx.GetRewardIfActive(ctx, req.RewardID)
		if err != nil {
			return unavailable(err)
		}
		if reward == nil {
			return ErrRewardNotFoundOrInactive
		}

		if user.TotalPoints < reward.RequiredPoints {
			return ErrInsufficientPoints
		}

		ok, err := tx.DecrementUserPoints(ctx, user.ID, reward.RequiredPoints)
		if err != nil {
			return unavailable(err)
		}
		if !ok {
			s.redeemLostRaces.Add(1)
			s.logger.WarnContext(ctx, "lost race", "op", "redeem", "reward_id", reward.ID, "user_id", user.ID)
			return ErrInsufficientPoints
		}

		id, err := tx.InsertRedemption(ctx, model.Redemption{
			UserID:      user.ID,
			RewardID:    reward.ID,
			PointsSpent: reward.RequiredPoints,
		})
		if err != nil {
			return unavailable(err)
		}

		res = RedeemResult{
			RedemptionID:   id,
			RewardID:       reward.ID,
			PointsDeducted: reward.RequiredPoints,
			Balance:        user.TotalPoints - reward.RequiredPoints,
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "redeem", err)
	}

	s.redemptions.Add(1)
	return &res, nil
}

// QRCodesForBin lists a bin's codes, newest first.
func (s *Service) QRCodesForBin(ctx context.Context, binID int64) ([]model.QRCode, error) {
	if binID <= 0 {
		return nil, InvalidInput("invalid bin_id")
	}
	codes, err := s.store.ListQRCodesByBin(ctx, binID)
	if err != nil {
		return nil, s.fail(ctx, "list qr codes", unavailable(err))
	}
	return codes, nil
}

// RedemptionHistory lists ownerID's redemptions, newest first. Only the owner
// may read it.
func (s *Service) RedemptionHistory(ctx context.Context, callerID, ownerID int64) ([]model.RedemptionEntry, error) {
	if ownerID <= 0 {
		return nil, InvalidInput("invalid user_id")
	}
	if callerID != ownerID {
		return nil, ErrAccessDenied
	}
	entries, err := s.store.ListRedemptionsByUser(ctx, ownerID)
	if err != nil {
		return nil, s.fail(ctx, "list redemptions", unavailable(err))
	}
	return entries, nil
}

// fail turns any non-ledger error (begin or commit failures, cancellation)
// into StoreUnavailable and logs the cause.
func (s *Service) fail(ctx context.Context, op string, err error) error {
	var le *Error
	if !errors.As(err, &le) {
		le = unavailable(err)
	}
	if le.Kind == KindStoreUnavailable {
		s.logger.ErrorContext(ctx, "ledger store failure", "op", op, "error", le.Err)
	}
	return le
}
