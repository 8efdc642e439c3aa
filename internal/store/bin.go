package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/binpoints/internal/database"
	"github.com/dukerupert/binpoints/internal/model"
)

type BinStore struct {
	db *database.DB
}

func NewBinStore(db *database.DB) *BinStore {
	return &BinStore{db: db}
}

// --- Bin methods ---

func scanBin(scanner interface{ Scan(...any) error }) (*model.Bin, error) {
	var b model.Bin
	err := scanner.Scan(&b.ID, &b.Location, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const binCols = `id, location, created_at`

func (s *BinStore) Create(ctx context.Context, location string) (*model.Bin, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind(`INSERT INTO smart_bins (location) VALUES (?) RETURNING id`), location,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert bin: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *BinStore) GetByID(ctx context.Context, id int64) (*model.Bin, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+binCols+` FROM smart_bins WHERE id = ?`), id)
	b, err := scanBin(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bin: %w", err)
	}
	return b, nil
}

func (s *BinStore) List(ctx context.Context) ([]model.Bin, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+binCols+` FROM smart_bins ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list bins: %w", err)
	}
	defer rows.Close()

	var bins []model.Bin
	for rows.Next() {
		b, err := scanBin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bin: %w", err)
		}
		bins = append(bins, *b)
	}
	return bins, rows.Err()
}

// --- QR code methods ---

func scanQRCode(scanner interface{ Scan(...any) error }) (*model.QRCode, error) {
	var q model.QRCode
	var usedAt sql.NullTime

	err := scanner.Scan(&q.ID, &q.BinID, &q.IsUsed, &q.CreatedAt, &usedAt)
	if err != nil {
		return nil, err
	}

	if usedAt.Valid {
		t := usedAt.Time
		q.UsedAt = &t
	}
	return &q, nil
}

const qrCodeCols = `id, bin_id, is_used, created_at, used_at`

// IssueQRCodes creates n unused codes for binID in one transaction.
func (s *BinStore) IssueQRCodes(ctx context.Context, binID int64, n int) ([]model.QRCode, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	insert := s.db.Rebind(`INSERT INTO qr_codes (bin_id) VALUES (?) RETURNING id`)
	get := s.db.Rebind(`SELECT ` + qrCodeCols + ` FROM qr_codes WHERE id = ?`)
	codes := make([]model.QRCode, 0, n)
	for i := 0; i < n; i++ {
		var id int64
		if err := tx.QueryRowContext(ctx, insert, binID).Scan(&id); err != nil {
			return nil, fmt.Errorf("insert qr code: %w", err)
		}
		q, err := scanQRCode(tx.QueryRowContext(ctx, get, id))
		if err != nil {
			return nil, fmt.Errorf("get qr code: %w", err)
		}
		codes = append(codes, *q)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return codes, nil
}

func (s *BinStore) GetQRCode(ctx context.Context, id int64) (*model.QRCode, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+qrCodeCols+` FROM qr_codes WHERE id = ?`), id)
	q, err := scanQRCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get qr code: %w", err)
	}
	return q, nil
}

// listQRCodesByBin returns the bin's codes, newest first.
func listQRCodesByBin(ctx context.Context, db *database.DB, binID int64) ([]model.QRCode, error) {
	rows, err := db.QueryContext(ctx,
		db.Rebind(`SELECT `+qrCodeCols+` FROM qr_codes WHERE bin_id = ? ORDER BY created_at DESC, id DESC`),
		binID,
	)
	if err != nil {
		return nil, fmt.Errorf("list qr codes by bin: %w", err)
	}
	defer rows.Close()

	codes := []model.QRCode{}
	for rows.Next() {
		q, err := scanQRCode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan qr code: %w", err)
		}
		codes = append(codes, *q)
	}
	return codes, rows.Err()
}

// --- Trash drop methods ---

func scanTrashDrop(scanner interface{ Scan(...any) error }) (*model.TrashDrop, error) {
	var d model.TrashDrop
	err := scanner.Scan(&d.ID, &d.UserID, &d.BinID, &d.QRID, &d.TrashType, &d.ItemCount, &d.PointsEarned, &d.DropTime)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const trashDropCols = `id, user_id, bin_id, qr_id, trash_type, item_count, points_earned, drop_time`

// ListDropsByUser returns a user's drops, newest first.
func (s *BinStore) ListDropsByUser(ctx context.Context, userID int64) ([]model.TrashDrop, error) {
	rows, err := s.db.QueryContext(ctx,
		s.db.Rebind(`SELECT `+trashDropCols+` FROM trash_drops WHERE user_id = ? ORDER BY drop_time DESC, id DESC`),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list drops by user: %w", err)
	}
	defer rows.Close()

	var drops []model.TrashDrop
	for rows.Next() {
		d, err := scanTrashDrop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trash drop: %w", err)
		}
		drops = append(drops, *d)
	}
	return drops, rows.Err()
}

// CountDropsForQRCode is mostly useful to tests asserting that a code was
// consumed at most once.
func (s *BinStore) CountDropsForQRCode(ctx context.Context, qrID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT COUNT(*) FROM trash_drops WHERE qr_id = ?`), qrID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count drops: %w", err)
	}
	return n, nil
}
