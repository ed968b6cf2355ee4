package storage

import (
	"time"

	"gorm.io/datatypes"
)

// Direction is the kind of vote cast on an item.
type Direction string

const (
	DirectionLike    Direction = "like"
	DirectionDislike Direction = "dislike"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionLike || d == DirectionDislike
}

// NewsItem is a single aggregated news entry. ID is the external source
// identifier, which makes ingestion idempotent. Title, URL, Author and
// CreatedAt are frozen at first ingestion; only the counters mutate.
type NewsItem struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:512" json:"title"`
	URL       string    `gorm:"size:1024" json:"url"`
	Author    string    `gorm:"size:128" json:"author"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"` // submission time at the source

	Likes    int64 `gorm:"not null;default:0" json:"likes"`
	Dislikes int64 `gorm:"not null;default:0" json:"dislikes"`

	// Extra keeps raw source fields (score, descendants, text) for display.
	Extra datatypes.JSONMap `json:"extra,omitempty"`

	IngestedAt time.Time `json:"ingestedAt"`
}

func (NewsItem) TableName() string { return "news_item" }

// Score is the derived net vote count used for popularity ordering.
// It is computed, never persisted.
func (n NewsItem) Score() int64 { return n.Likes - n.Dislikes }

// User is the minimal account record the core needs: a stable identity to
// attribute votes to. Credentials live with the external gateway.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"size:128;not null" json:"username"`
	Email    string `gorm:"size:256;uniqueIndex;not null" json:"email"`
	Admin    bool   `gorm:"not null;default:false" json:"admin"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string { return "user" }

// Vote records one user's like/dislike on one item. The composite primary
// key enforces at most one vote per (user, item) pair.
type Vote struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	ItemID    int64     `gorm:"primaryKey;autoIncrement:false" json:"itemId"`
	Direction Direction `gorm:"size:8;not null" json:"direction"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Vote) TableName() string { return "vote" }
