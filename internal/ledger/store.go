package ledger

import (
	"context"

	"github.com/dukerupert/binpoints/internal/model"
)

// Tx is the set of reads and writes a workflow may issue inside one atomic
// transaction. Getters return (nil, nil) when the row does not exist.
type Tx interface {
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	// GetUnusedQRCode returns the code only if it exists and is_used is false.
	GetUnusedQRCode(ctx context.Context, qrID int64) (*model.QRCode, error)
	GetBin(ctx context.Context, binID int64) (*model.Bin, error)
	GetRewardIfActive(ctx context.Context, rewardID int64) (*model.Reward, error)

	InsertTrashDrop(ctx context.Context, drop model.TrashDrop) (int64, error)
	IncrementUserPoints(ctx context.Context, userID int64, delta int) error
	// MarkQRCodeUsed flips is_used only if it is still false. It reports
	// false when no row changed.
	MarkQRCodeUsed(ctx context.Context, qrID int64) (bool, error)
	InsertRedemption(ctx context.Context, r model.Redemption) (int64, error)
	// DecrementUserPoints subtracts delta only if the balance still covers
	// it. It reports false when no row changed.
	DecrementUserPoints(ctx context.Context, userID int64, delta int) (bool, error)
}

// Store is the relational ledger. WithinTx runs fn in a single transaction,
// committing if fn returns nil and rolling back otherwise; fn's error is
// returned unchanged.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	ListQRCodesByBin(ctx context.Context, binID int64) ([]model.QRCode, error)
	ListRedemptionsByUser(ctx context.Context, userID int64) ([]model.RedemptionEntry, error)
}
