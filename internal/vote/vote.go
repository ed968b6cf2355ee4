// Package vote applies like/dislike mutations to item counters under a
// single policy: one vote per identity per item unless duplicates are
// explicitly allowed.
package vote

import (
	"context"
	"errors"
	"fmt"

	"github.com/mtoman/newsfeed/internal/auth"
	"github.com/mtoman/newsfeed/internal/storage"
)

var (
	// ErrUnauthorized means the vote arrived without an authenticated
	// identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrDuplicateVote means the identity already voted this direction on
	// this item.
	ErrDuplicateVote = errors.New("duplicate vote")
	// ErrInvalidDirection means the direction was neither like nor dislike.
	ErrInvalidDirection = errors.New("invalid vote direction")
)

// Result reports an item's counters after a vote landed.
type Result struct {
	ItemID   int64             `json:"item_id"`
	Likes    int64             `json:"likes"`
	Dislikes int64             `json:"dislikes"`
	Applied  storage.Direction `json:"applied"`
}

// Coordinator serializes vote mutations through the store. All record and
// counter changes for one vote happen in one transaction.
type Coordinator struct {
	store           *storage.Store
	allowDuplicates bool
}

func New(store *storage.Store, allowDuplicates bool) *Coordinator {
	return &Coordinator{store: store, allowDuplicates: allowDuplicates}
}

// CastVote applies one like/dislike from ident to itemID.
//
// With duplicate prevention on (the default), the first vote inserts a
// record and bumps the counter; repeating the same direction is rejected
// with ErrDuplicateVote; the opposite direction switches the recorded vote
// and moves one count between counters. With prevention off, every call
// increments and no records are kept.
func (c *Coordinator) CastVote(ctx context.Context, ident auth.Identity, itemID int64, direction storage.Direction) (Result, error) {
	if ident.Anonymous() {
		return Result{}, ErrUnauthorized
	}
	if !direction.Valid() {
		return Result{}, fmt.Errorf("%q: %w", direction, ErrInvalidDirection)
	}

	if c.allowDuplicates {
		likes, dislikes, err := c.store.AdjustVote(ctx, itemID, direction)
		if err != nil {
			return Result{}, err
		}
		return Result{ItemID: itemID, Likes: likes, Dislikes: dislikes, Applied: direction}, nil
	}

	var res Result
	err := c.store.Transaction(ctx, func(tx *storage.Store) error {
		existing, err := tx.FindVote(ctx, ident.UserID, itemID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			if err := tx.CreateVote(ctx, &storage.Vote{
				UserID:    ident.UserID,
				ItemID:    itemID,
				Direction: direction,
			}); err != nil {
				// A concurrent vote from the same user won the insert race.
				if errors.Is(err, storage.ErrDuplicate) {
					return fmt.Errorf("user %d item %d: %w", ident.UserID, itemID, ErrDuplicateVote)
				}
				return err
			}
			likes, dislikes, err := tx.AdjustVote(ctx, itemID, direction)
			if err != nil {
				return err
			}
			res = Result{ItemID: itemID, Likes: likes, Dislikes: dislikes, Applied: direction}
			return nil

		case err != nil:
			return err

		case existing.Direction == direction:
			return fmt.Errorf("user %d item %d: %w", ident.UserID, itemID, ErrDuplicateVote)

		default:
			if err := tx.UpdateVoteDirection(ctx, ident.UserID, itemID, direction); err != nil {
				return err
			}
			likes, dislikes, err := tx.SwitchVote(ctx, itemID, existing.Direction, direction)
			if err != nil {
				return err
			}
			res = Result{ItemID: itemID, Likes: likes, Dislikes: dislikes, Applied: direction}
			return nil
		}
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
