package model

import "time"

type Bin struct {
	ID        int64     `json:"bin_id"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

type QRCode struct {
	ID        int64      `json:"qr_id"`
	BinID     int64      `json:"bin_id"`
	IsUsed    bool       `json:"is_used"`
	CreatedAt time.Time  `json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// TrashDrop records one successful scan. Rows are never updated.
type TrashDrop struct {
	ID           int64     `json:"drop_id"`
	UserID       int64     `json:"user_id"`
	BinID        int64     `json:"bin_id"`
	QRID         int64     `json:"qr_id"`
	TrashType    string    `json:"trash_type"`
	ItemCount    int       `json:"item_count"`
	PointsEarned int       `json:"points_earned"`
	DropTime     time.Time `json:"drop_time"`
}
