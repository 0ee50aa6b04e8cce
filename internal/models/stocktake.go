package models

import "time"

type Stocktake struct {
	ID        int64            `json:"id"`
	Locked    bool             `json:"locked"`
	Chunks    []StocktakeChunk `json:"chunks,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// StocktakeChunk is a batch of products counted by one person. OwnerID
// is empty while the chunk is unassigned.
type StocktakeChunk struct {
	ID          int64           `json:"id"`
	StocktakeID int64           `json:"stocktake_id"`
	OwnerID     string          `json:"owner_id,omitempty"`
	Locked      bool            `json:"locked"`
	Items       []StocktakeItem `json:"items,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type StocktakeItem struct {
	ID        int64  `json:"id"`
	ChunkID   int64  `json:"chunk_id"`
	ProductID string `json:"product_id"`
	Qty       int64  `json:"qty"` // counted quantity
}
