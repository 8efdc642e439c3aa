package model

import "time"

type Reward struct {
	ID             int64     `json:"reward_id"`
	Name           string    `json:"reward_name"`
	Description    string    `json:"description"`
	RequiredPoints int       `json:"required_points"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// RewardPatch carries a partial reward update. Nil fields keep their value.
type RewardPatch struct {
	Name           *string `json:"reward_name"`
	Description    *string `json:"description"`
	RequiredPoints *int    `json:"required_points"`
	Active         *bool   `json:"active"`
}

type Redemption struct {
	ID          int64     `json:"redemption_id"`
	UserID      int64     `json:"user_id"`
	RewardID    int64     `json:"reward_id"`
	PointsSpent int       `json:"points_spent"`
	RedeemedAt  time.Time `json:"redeemed_at"`
}

// RedemptionEntry is a row of a user's redemption history.
type RedemptionEntry struct {
	RedemptionID   int64     `json:"redemption_id"`
	RewardName     string    `json:"reward_name"`
	RequiredPoints int       `json:"required_points"`
	PointsSpent    int       `json:"points_spent"`
	RedeemedAt     time.Time `json:"redeemed_at"`
}
