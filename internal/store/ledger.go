package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/binpoints/internal/database"
	"github.com/dukerupert/binpoints/internal/ledger"
	"github.com/dukerupert/binpoints/internal/model"
)

// LedgerStore implements ledger.Store on top of database/sql.
type LedgerStore struct {
	db *database.DB
}

func NewLedgerStore(db *database.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

var _ ledger.Store = (*LedgerStore)(nil)

// WithinTx runs fn in a single transaction. It commits when fn returns nil
// and rolls back otherwise.
func (s *LedgerStore) WithinTx(ctx context.Context, fn func(ledger.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{db: s.db, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *LedgerStore) ListQRCodesByBin(ctx context.Context, binID int64) ([]model.QRCode, error) {
	return listQRCodesByBin(ctx, s.db, binID)
}

func (s *LedgerStore) ListRedemptionsByUser(ctx context.Context, userID int64) ([]model.RedemptionEntry, error) {
	return listRedemptionsByUser(ctx, s.db, userID)
}

// sqlTx is the transaction-scoped view handed to ledger workflows. Every
// statement goes through tx; the SQLite pool has a single connection.
type sqlTx struct {
	db *database.DB
	tx *sql.Tx
}

func (t *sqlTx) q(query string) string {
	return t.db.Rebind(query)
}

func (t *sqlTx) GetUser(ctx context.Context, id int64) (*model.User, error) {
	row := t.tx.QueryRowContext(ctx, t.q(`SELECT `+userCols+` FROM users WHERE id = ?`+t.db.LockClause()), id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (t *sqlTx) GetUnusedQRCode(ctx context.Context, id int64) (*model.QRCode, error) {
	row := t.tx.QueryRowContext(ctx,
		t.q(`SELECT `+qrCodeCols+` FROM qr_codes WHERE id = ? AND is_used = FALSE`+t.db.LockClause()), id)
	qr, err := scanQRCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get unused qr code: %w", err)
	}
	return qr, nil
}

func (t *sqlTx) GetBin(ctx context.Context, id int64) (*model.Bin, error) {
	row := t.tx.QueryRowContext(ctx, t.q(`SELECT `+binCols+` FROM smart_bins WHERE id = ?`), id)
	b, err := scanBin(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bin: %w", err)
	}
	return b, nil
}

func (t *sqlTx) GetRewardIfActive(ctx context.Context, id int64) (*model.Reward, error) {
	row := t.tx.QueryRowContext(ctx, t.q(`SELECT `+rewardCols+` FROM rewards WHERE id = ? AND active = TRUE`), id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active reward: %w", err)
	}
	return r, nil
}

func (t *sqlTx) InsertTrashDrop(ctx context.Context, d model.TrashDrop) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx,
		t.q(`INSERT INTO trash_drops (user_id, bin_id, qr_id, trash_type, item_count, points_earned)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		d.UserID, d.BinID, d.QRID, d.TrashType, d.ItemCount, d.PointsEarned,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert trash drop: %w", err)
	}
	return id, nil
}

func (t *sqlTx) IncrementUserPoints(ctx context.Context, userID int64, delta int) error {
	result, err := t.tx.ExecContext(ctx,
		t.q(`UPDATE users SET total_points = total_points + ? WHERE id = ?`), delta, userID)
	if err != nil {
		return fmt.Errorf("increment user points: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("increment user points: user %d not updated", userID)
	}
	return nil
}

func (t *sqlTx) MarkQRCodeUsed(ctx context.Context, qrID int64) (bool, error) {
	result, err := t.tx.ExecContext(ctx,
		t.q(`UPDATE qr_codes SET is_used = TRUE, used_at = CURRENT_TIMESTAMP WHERE id = ? AND is_used = FALSE`), qrID)
	if err != nil {
		return false, fmt.Errorf("mark qr code used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (t *sqlTx) InsertRedemption(ctx context.Context, r model.Redemption) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx,
		t.q(`INSERT INTO redemptions (user_id, reward_id, points_spent) VALUES (?, ?, ?) RETURNING id`),
		r.UserID, r.RewardID, r.PointsSpent,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert redemption: %w", err)
	}
	return id, nil
}

func (t *sqlTx) DecrementUserPoints(ctx context.Context, userID int64, delta int) (bool, error) {
	result, err := t.tx.ExecContext(ctx,
		t.q(`UPDATE users SET total_points = total_points - ? WHERE id = ? AND total_points >= ?`),
		delta, userID, delta)
	if err != nil {
		return false, fmt.Errorf("decrement user points: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
