package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/mtoman/newsfeed/internal/auth"
	"github.com/mtoman/newsfeed/internal/config"
	"github.com/mtoman/newsfeed/internal/feed"
	"github.com/mtoman/newsfeed/internal/storage"
	"github.com/mtoman/newsfeed/internal/vote"
)

const (
	latestFeedSize = 30

	voteRateRPS   = 1.0 / 3.0 // one vote every 3 seconds per IP
	voteRateBurst = 1
)

// Server wires the core components into HTTP handlers. It holds no
// business logic: validation and policy live in feed/vote/storage.
type Server struct {
	store   *storage.Store
	feed    *feed.Service
	votes   *vote.Coordinator
	gateway auth.Gateway
	cfg     *config.Config
}

func NewServer(store *storage.Store, feedSvc *feed.Service, votes *vote.Coordinator, gateway auth.Gateway, cfg *config.Config) *Server {
	return &Server{store: store, feed: feedSvc, votes: votes, gateway: gateway, cfg: cfg}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{s.cfg.CORSOrigin},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Admin-Token", "X-User-Email", "X-User-Name", "X-User-Avatar"},
		ExposeHeaders: []string{"Content-Length"},
	}))
	r.Use(IdentityMiddleware(s.gateway))

	r.GET("/health", s.health)
	r.GET("/newsfeed", s.latestFeed)

	voteLimiter := NewIPRateLimiter(rate.Limit(voteRateRPS), voteRateBurst)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/feed", s.getFeed)
		v1.POST("/items/:id/vote", RateLimitMiddleware(voteLimiter), s.castVote)

		admin := v1.Group("/admin", AdminAuthMiddleware(s.cfg.AdminToken))
		{
			admin.GET("/users", s.listUsers)
			admin.DELETE("/users/:id", s.deleteUser)
			admin.GET("/items", s.listItems)
			admin.DELETE("/items/:id", s.deleteItem)
			admin.POST("/users/admin", s.setAdmin)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// getFeed serves the paginated, rankable feed:
// GET /api/v1/feed?page=2&order=popularity
func (s *Server) getFeed(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		s.fail(c, feed.ErrInvalidArgument)
		return
	}
	order, err := feed.ParseOrder(c.Query("order"))
	if err != nil {
		s.fail(c, err)
		return
	}

	p, err := s.feed.RenderFeed(c.Request.Context(), page, order)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    p,
	})
}

// latestFeed returns the newest items as a bare JSON array, for external
// consumers that just want recent entries.
func (s *Server) latestFeed(c *gin.Context) {
	items, err := s.feed.Latest(c.Request.Context(), latestFeedSize)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type voteInput struct {
	Direction storage.Direction `json:"direction" binding:"required,oneof=like dislike"`
}

func (s *Server) castVote(c *gin.Context) {
	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.fail(c, feed.ErrInvalidArgument)
		return
	}
	var input voteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_argument",
			"message": "direction must be like or dislike",
		})
		return
	}

	res, err := s.votes.CastVote(c.Request.Context(), identityFrom(c), itemID, input.Direction)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    res,
	})
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.store.ListUsers(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    users,
	})
}

func (s *Server) deleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		s.fail(c, feed.ErrInvalidArgument)
		return
	}
	if err := s.store.DeleteUser(c.Request.Context(), uint(id)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": "ok", "message": "user deleted"})
}

const adminItemsPageSize = 50

// listItems pages through all items newest-first for the admin screen.
func (s *Server) listItems(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		s.fail(c, feed.ErrInvalidArgument)
		return
	}
	p, err := s.feed.Render(c.Request.Context(), page, adminItemsPageSize, storage.OrderRecency)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    p,
	})
}

func (s *Server) deleteItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.fail(c, feed.ErrInvalidArgument)
		return
	}
	if err := s.store.DeleteItem(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": "ok", "message": "item deleted"})
}

type setAdminInput struct {
	Email string `json:"email" binding:"required,email"`
	Admin *bool  `json:"admin" binding:"required"`
}

func (s *Server) setAdmin(c *gin.Context) {
	var input setAdminInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_argument",
			"message": "email and admin flag required",
		})
		return
	}
	if err := s.store.SetAdmin(c.Request.Context(), input.Email, *input.Admin); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": "ok", "message": "admin flag updated"})
}

// fail maps domain errors onto HTTP statuses and the JSON error envelope.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, feed.ErrInvalidArgument), errors.Is(err, vote.ErrInvalidDirection):
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid_argument", "message": "invalid request parameters"})
	case errors.Is(err, vote.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "sign in to vote"})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "no such record"})
	case errors.Is(err, vote.ErrDuplicateVote):
		c.JSON(http.StatusConflict, gin.H{"code": "duplicate_vote", "message": "already voted this way"})
	default:
		log.Printf("api: internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "internal_error", "message": "internal server error"})
	}
}
