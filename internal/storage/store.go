package storage

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Order selects the ranking strategy for paged reads.
type Order string

const (
	// OrderRecency sorts by source submission time, newest first.
	OrderRecency Order = "recency"
	// OrderPopularity sorts by net votes (likes - dislikes), highest first.
	OrderPopularity Order = "popularity"
)

// orderClause returns the SQL ordering for o. The trailing id tiebreak
// makes every ordering a strict total order, so pages stay stable across
// ties.
func (o Order) orderClause() string {
	switch o {
	case OrderPopularity:
		return "(likes - dislikes) DESC, id DESC"
	default:
		return "created_at DESC, id DESC"
	}
}

// Store is the durable item/user/vote store. The redis client is optional;
// when nil, paged reads go straight to the database.
type Store struct {
	db    *gorm.DB
	redis *redis.Client

	// pendingInvalidate is non-nil on transactional views. Mutations mark
	// it instead of bumping the cache version directly; Transaction bumps
	// once after the commit so a concurrent reader can never cache
	// pre-commit rows under the post-mutation version.
	pendingInvalidate *bool
}

// New opens the database selected by databaseURL (postgres:// or sqlite://
// prefix), migrates the schema and, when redisAddr is non-empty, attaches a
// page cache.
func New(databaseURL, redisAddr string) (*Store, error) {
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"):
		dialector = postgres.Open(databaseURL)
	case strings.HasPrefix(databaseURL, "sqlite://"):
		dialector = sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://"))
	default:
		return nil, fmt.Errorf("storage: unsupported DATABASE_URL prefix: %q", databaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w: %v", ErrStorage, err)
	}

	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: redisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("warn: redis ping failed: %v", err)
		}
	}

	s := &Store{db: db, redis: rdb}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an already-open gorm connection. Used by tests.
func NewWithDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

// NewWithRedis wraps an already-open gorm connection and redis client.
// Used by tests.
func NewWithRedis(db *gorm.DB, rdb *redis.Client) *Store {
	return &Store{db: db, redis: rdb}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&NewsItem{}, &User{}, &Vote{}); err != nil {
		return fmt.Errorf("migrate: %w: %v", ErrStorage, err)
	}
	return nil
}

// Transaction runs fn against a transactional view of the store. Cache
// invalidations requested inside fn are collected and fired once, after
// the commit succeeds; a rolled-back transaction invalidates nothing.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	var invalidate bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, redis: s.redis, pendingInvalidate: &invalidate})
	})
	if err != nil {
		return err
	}
	if invalidate {
		s.invalidatePages(ctx)
	}
	return nil
}

// UpsertItem inserts item if its external ID is unseen and reports whether
// a row was created. Existing rows are left untouched: immutable fields
// stay as first ingested and accumulated votes survive re-ingestion.
func (s *Store) UpsertItem(ctx context.Context, item *NewsItem) (bool, error) {
	if item.IngestedAt.IsZero() {
		item.IngestedAt = time.Now()
	}
	res := s.db.WithContext(ctx).Where("id = ?", item.ID).FirstOrCreate(item)
	if res.Error != nil {
		return false, wrapDB("upsert item", res.Error)
	}
	created := res.RowsAffected > 0
	if created {
		s.invalidatePages(ctx)
	}
	return created, nil
}

// ExistingIDs reports which of ids already have rows.
func (s *Store) ExistingIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	if len(ids) == 0 {
		return map[int64]struct{}{}, nil
	}
	var found []int64
	err := s.db.WithContext(ctx).Model(&NewsItem{}).
		Where("id IN ?", ids).Pluck("id", &found).Error
	if err != nil {
		return nil, wrapDB("existing ids", err)
	}
	set := make(map[int64]struct{}, len(found))
	for _, id := range found {
		set[id] = struct{}{}
	}
	return set, nil
}

// GetPage returns the 1-indexed page of items under order, plus the total
// row count. Input validation is the caller's job (internal/feed); this
// layer only slices. Results are served from the page cache when one is
// attached.
func (s *Store) GetPage(ctx context.Context, page, size int, order Order) ([]NewsItem, int64, error) {
	if items, total, ok := s.cachedPage(ctx, page, size, order); ok {
		return items, total, nil
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&NewsItem{}).Count(&total).Error; err != nil {
		return nil, 0, wrapDB("count items", err)
	}

	items := []NewsItem{}
	err := s.db.WithContext(ctx).Model(&NewsItem{}).
		Order(order.orderClause()).
		Offset((page - 1) * size).
		Limit(size).
		Find(&items).Error
	if err != nil {
		return nil, 0, wrapDB("get page", err)
	}

	s.storePage(ctx, page, size, order, items, total)
	return items, total, nil
}

// ListLatest returns the n most recently ingested items, newest external
// ID first.
func (s *Store) ListLatest(ctx context.Context, n int) ([]NewsItem, error) {
	if n <= 0 {
		n = 30
	}
	items := []NewsItem{}
	err := s.db.WithContext(ctx).Order("id DESC").Limit(n).Find(&items).Error
	if err != nil {
		return nil, wrapDB("list latest", err)
	}
	return items, nil
}

// GetItem fetches one item by external ID.
func (s *Store) GetItem(ctx context.Context, id int64) (*NewsItem, error) {
	var item NewsItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, wrapDB("get item", err)
	}
	return &item, nil
}

// AdjustVote atomically increments the counter matching direction. The
// increment happens SQL-side so concurrent votes never lose updates.
// Counters only ever grow here; moving a vote is SwitchVote's job.
func (s *Store) AdjustVote(ctx context.Context, itemID int64, direction Direction) (likes, dislikes int64, err error) {
	col := counterColumn(direction)
	res := s.db.WithContext(ctx).Model(&NewsItem{}).
		Where("id = ?", itemID).
		UpdateColumn(col, gorm.Expr(col+" + 1"))
	if res.Error != nil {
		return 0, 0, wrapDB("adjust vote", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, 0, fmt.Errorf("adjust vote: item %d: %w", itemID, ErrNotFound)
	}
	s.invalidatePages(ctx)
	return s.counters(ctx, itemID)
}

// SwitchVote moves one count from the `from` counter to the `to` counter
// in a single UPDATE, used when a user flips an existing vote.
func (s *Store) SwitchVote(ctx context.Context, itemID int64, from, to Direction) (likes, dislikes int64, err error) {
	fromCol, toCol := counterColumn(from), counterColumn(to)
	res := s.db.WithContext(ctx).Model(&NewsItem{}).
		Where("id = ? AND "+fromCol+" > 0", itemID).
		UpdateColumns(map[string]interface{}{
			fromCol: gorm.Expr(fromCol + " - 1"),
			toCol:   gorm.Expr(toCol + " + 1"),
		})
	if res.Error != nil {
		return 0, 0, wrapDB("switch vote", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, 0, fmt.Errorf("switch vote: item %d: %w", itemID, ErrNotFound)
	}
	s.invalidatePages(ctx)
	return s.counters(ctx, itemID)
}

func counterColumn(d Direction) string {
	if d == DirectionDislike {
		return "dislikes"
	}
	return "likes"
}

func (s *Store) counters(ctx context.Context, itemID int64) (int64, int64, error) {
	var item NewsItem
	if err := s.db.WithContext(ctx).Select("likes", "dislikes").First(&item, "id = ?", itemID).Error; err != nil {
		return 0, 0, wrapDB("read counters", err)
	}
	return item.Likes, item.Dislikes, nil
}

// DeleteItem removes the item and cascades to its vote records.
func (s *Store) DeleteItem(ctx context.Context, itemID int64) error {
	return s.Transaction(ctx, func(tx *Store) error {
		res := tx.db.Delete(&NewsItem{}, "id = ?", itemID)
		if res.Error != nil {
			return wrapDB("delete item", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("delete item %d: %w", itemID, ErrNotFound)
		}
		if err := tx.db.Delete(&Vote{}, "item_id = ?", itemID).Error; err != nil {
			return wrapDB("delete item votes", err)
		}
		tx.invalidatePages(ctx)
		return nil
	})
}

// FindVote returns the vote a user has cast on an item, if any.
func (s *Store) FindVote(ctx context.Context, userID uint, itemID int64) (*Vote, error) {
	var v Vote
	err := s.db.WithContext(ctx).
		First(&v, "user_id = ? AND item_id = ?", userID, itemID).Error
	if err != nil {
		return nil, wrapDB("find vote", err)
	}
	return &v, nil
}

// CreateVote records a new vote. Two concurrent first votes race on the
// (user, item) primary key; the loser gets ErrDuplicate rather than a
// generic storage failure.
func (s *Store) CreateVote(ctx context.Context, v *Vote) error {
	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("create vote: %w", ErrDuplicate)
		}
		return wrapDB("create vote", err)
	}
	return nil
}

// UpdateVoteDirection flips an existing vote record.
func (s *Store) UpdateVoteDirection(ctx context.Context, userID uint, itemID int64, direction Direction) error {
	res := s.db.WithContext(ctx).Model(&Vote{}).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Update("direction", direction)
	if res.Error != nil {
		return wrapDB("update vote", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update vote: %w", ErrNotFound)
	}
	return nil
}

// EnsureUser returns the user with the given email, creating it on first
// sight. The gateway calls this when a session identity arrives.
func (s *Store) EnsureUser(ctx context.Context, username, email string) (*User, error) {
	u := &User{}
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(u).Error; err == nil {
		return u, nil
	}
	u = &User{Username: username, Email: email}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, wrapDB("ensure user", err)
	}
	return u, nil
}

// ListUsers returns all users for the admin screen.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	users := []User{}
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, wrapDB("list users", err)
	}
	return users, nil
}

// DeleteUser removes a user and their vote records. Counters on items are
// left as they are; a deleted account does not rewrite vote history.
func (s *Store) DeleteUser(ctx context.Context, userID uint) error {
	return s.Transaction(ctx, func(tx *Store) error {
		if err := tx.db.Delete(&Vote{}, "user_id = ?", userID).Error; err != nil {
			return wrapDB("delete user votes", err)
		}
		res := tx.db.Delete(&User{}, "id = ?", userID)
		if res.Error != nil {
			return wrapDB("delete user", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("delete user %d: %w", userID, ErrNotFound)
		}
		return nil
	})
}

// SetAdmin grants or revokes the admin flag by email.
func (s *Store) SetAdmin(ctx context.Context, email string, admin bool) error {
	res := s.db.WithContext(ctx).Model(&User{}).
		Where("email = ?", email).
		Update("admin", admin)
	if res.Error != nil {
		return wrapDB("set admin", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("set admin %q: %w", email, ErrNotFound)
	}
	return nil
}
