// Package httpapi is the REST side surface: account management, chip
// bonuses, lobby listings, leaderboards, hand histories and the
// prometheus scrape endpoint. Gameplay itself happens over the
// websocket, authenticated with tokens minted here.
package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cardroom/cardroom/internal/auth"
	"github.com/cardroom/cardroom/internal/history"
	"github.com/cardroom/cardroom/internal/protocol"
	"github.com/cardroom/cardroom/internal/store"
)

// RoomLister supplies the lobby listing; the registry satisfies it.
type RoomLister interface {
	ListPublic() []protocol.RoomInfo
}

// Histories serves retained hand records; the archive satisfies it.
type Histories interface {
	ForUser(userID string) []history.Record
}

// Tokens issues and verifies bearer tokens.
type Tokens interface {
	Issue(userID, name string) (string, error)
	Verify(token string) (*auth.Claims, error)
}

// Config tunes the API's bonus and listing behavior.
type Config struct {
	DailyBonus      int
	BonusCooldown   time.Duration
	LeaderboardSize int
}

func (c Config) withDefaults() Config {
	if c.DailyBonus <= 0 {
		c.DailyBonus = store.DefaultDailyBonus
	}
	if c.BonusCooldown <= 0 {
		c.BonusCooldown = store.DefaultBonusCooldown
	}
	if c.LeaderboardSize <= 0 {
		c.LeaderboardSize = 10
	}
	return c
}

// API carries the handlers' collaborators.
type API struct {
	cfg       Config
	logger    *log.Logger
	store     store.Store
	tokens    Tokens
	rooms     RoomLister
	histories Histories
	gatherer  prometheus.Gatherer
}

// New builds the API. Histories and rooms may be nil; their endpoints
// then serve empty lists.
func New(cfg Config, logger *log.Logger, st store.Store, tokens Tokens, rooms RoomLister, histories Histories, gatherer prometheus.Gatherer) *API {
	return &API{
		cfg:       cfg.withDefaults(),
		logger:    logger.WithPrefix("http"),
		store:     st,
		tokens:    tokens,
		rooms:     rooms,
		histories: histories,
		gatherer:  gatherer,
	}
}

// Router assembles the gin engine with all routes mounted.
func (a *API) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/api/auth/register", a.register)
	r.POST("/api/auth/login", a.login)
	r.POST("/api/auth/guest", a.guest)

	user := r.Group("/api/user", a.requireAuth)
	user.GET("/profile", a.getProfile)
	user.PUT("/profile", a.putProfile)
	user.GET("/stats", a.getStats)
	user.GET("/history", a.getHistory)
	user.POST("/daily", a.claimDaily)

	r.GET("/api/rooms", a.listRooms)
	r.GET("/api/leaderboard", a.leaderboard)

	if a.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

type credentialsRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
}

type guestRequest struct {
	DisplayName string `json:"displayName"`
}

type profileRequest struct {
	DisplayName string `json:"displayName" binding:"required"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *store.User `json:"user"`
}

func (a *API) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}
	u, err := a.store.Register(c.Request.Context(), req.Username, req.Password, req.DisplayName)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.issue(c, http.StatusCreated, u)
}

func (a *API) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}
	u, err := a.store.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.issue(c, http.StatusOK, u)
}

func (a *API) guest(c *gin.Context) {
	var req guestRequest
	_ = c.ShouldBindJSON(&req)
	u, err := a.store.CreateGuest(c.Request.Context(), req.DisplayName)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.issue(c, http.StatusCreated, u)
}

func (a *API) issue(c *gin.Context, status int, u *store.User) {
	token, err := a.tokens.Issue(u.ID, u.DisplayName)
	if err != nil {
		a.logger.Error("token issue failed", "user", u.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(status, authResponse{Token: token, User: u})
}

// requireAuth verifies the bearer token and stashes the user id on the
// request context.
func (a *API) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	claims, err := a.tokens.Verify(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Set("userID", claims.Subject)
	c.Next()
}

func (a *API) userID(c *gin.Context) string {
	return c.GetString("userID")
}

func (a *API) getProfile(c *gin.Context) {
	u, err := a.store.Get(c.Request.Context(), a.userID(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (a *API) putProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "displayName required"})
		return
	}
	u, err := a.store.UpdateProfile(c.Request.Context(), a.userID(c), req.DisplayName)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (a *API) getStats(c *gin.Context) {
	u, err := a.store.Get(c.Request.Context(), a.userID(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u.Stats)
}

func (a *API) getHistory(c *gin.Context) {
	if a.histories == nil {
		c.JSON(http.StatusOK, []history.Record{})
		return
	}
	recs := a.histories.ForUser(a.userID(c))
	if recs == nil {
		recs = []history.Record{}
	}
	c.JSON(http.StatusOK, recs)
}

func (a *API) claimDaily(c *gin.Context) {
	balance, err := a.store.ClaimDailyBonus(c.Request.Context(), a.userID(c), a.cfg.DailyBonus, a.cfg.BonusCooldown)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chips": balance, "bonus": a.cfg.DailyBonus})
}

func (a *API) listRooms(c *gin.Context) {
	if a.rooms == nil {
		c.JSON(http.StatusOK, []protocol.RoomInfo{})
		return
	}
	infos := a.rooms.ListPublic()
	if infos == nil {
		infos = []protocol.RoomInfo{}
	}
	c.JSON(http.StatusOK, infos)
}

func (a *API) leaderboard(c *gin.Context) {
	users, err := a.store.Leaderboard(c.Request.Context(), a.cfg.LeaderboardSize)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// fail maps store errors to HTTP statuses.
func (a *API) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateUsername):
		status = http.StatusConflict
	case errors.Is(err, store.ErrWrongCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, store.ErrBonusNotReady):
		status = http.StatusTooManyRequests
	case errors.Is(err, store.ErrInsufficientChips):
		status = http.StatusPaymentRequired
	}
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
