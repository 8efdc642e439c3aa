package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/binpoints/internal/database"
	"github.com/dukerupert/binpoints/internal/model"
)

type RewardStore struct {
	db *database.DB
}

func NewRewardStore(db *database.DB) *RewardStore {
	return &RewardStore{db: db}
}

// --- Reward methods ---

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	err := scanner.Scan(&r.ID, &r.Name, &r.Description, &r.RequiredPoints, &r.Active, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const rewardCols = `id, name, description, required_points, active, created_at`

func (s *RewardStore) Create(ctx context.Context, name, description string, requiredPoints int) (*model.Reward, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind(`INSERT INTO rewards (name, description, required_points) VALUES (?, ?, ?) RETURNING id`),
		name, description, requiredPoints,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RewardStore) GetByID(ctx context.Context, id int64) (*model.Reward, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`), id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// ListActive returns only active rewards, cheapest first.
func (s *RewardStore) ListActive(ctx context.Context) ([]model.Reward, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rewardCols+` FROM rewards WHERE active = TRUE ORDER BY required_points ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

// Update applies the non-nil fields of p. It returns nil when the reward does
// not exist.
func (s *RewardStore) Update(ctx context.Context, id int64, p model.RewardPatch) (*model.Reward, error) {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE rewards SET
			name = COALESCE(?, name),
			description = COALESCE(?, description),
			required_points = COALESCE(?, required_points),
			active = COALESCE(?, active)
		WHERE id = ?`),
		p.Name, p.Description, p.RequiredPoints, p.Active, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(ctx, id)
}

// --- Redemption methods ---

func scanRedemptionEntry(scanner interface{ Scan(...any) error }) (*model.RedemptionEntry, error) {
	var e model.RedemptionEntry
	err := scanner.Scan(&e.RedemptionID, &e.RewardName, &e.RequiredPoints, &e.PointsSpent, &e.RedeemedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// listRedemptionsByUser returns a user's redemptions joined with the reward,
// newest first.
func listRedemptionsByUser(ctx context.Context, db *database.DB, userID int64) ([]model.RedemptionEntry, error) {
	rows, err := db.QueryContext(ctx,
		db.Rebind(`SELECT r.id, w.name, w.required_points, r.points_spent, r.redeemed_at
		FROM redemptions r
		JOIN rewards w ON w.id = r.reward_id
		WHERE r.user_id = ?
		ORDER BY r.redeemed_at DESC, r.id DESC`),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions by user: %w", err)
	}
	defer rows.Close()

	entries := []model.RedemptionEntry{}
	for rows.Next() {
		e, err := scanRedemptionEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}
