package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "unicode/utf8"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/live-room-coordinator/internal/model"
    "github.com/iliyamo/live-room-coordinator/internal/repository"
    "github.com/iliyamo/live-room-coordinator/internal/utils"
)

// maxNameLen caps display names, matching the users.name column.
const maxNameLen = 64

// UserStore is satisfied by repository.UserRepo and memstore.UserStore.
type UserStore interface {
    Create(ctx context.Context, name string, leaderCardID uint64) (uint64, error)
    GetByID(ctx context.Context, id uint64) (model.User, error)
    Update(ctx context.Context, id uint64, name string, leaderCardID uint64) error
}

// UserHandler serves the user registry endpoints.
type UserHandler struct {
    Users     UserStore
    JWTSecret string
    TokenTTL  int
    Log       *zap.Logger
}

func NewUserHandler(users UserStore, secret string, ttlMin int, log *zap.Logger) *UserHandler {
    if users == nil {
        panic("nil user store passed to NewUserHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &UserHandler{Users: users, JWTSecret: secret, TokenTTL: ttlMin, Log: log}
}

type userReq struct {
    UserName     string `json:"user_name"`
    LeaderCardID uint64 `json:"leader_card_id"`
}

type userResp struct {
    ID           uint64 `json:"id"`
    Name         string `json:"name"`
    LeaderCardID uint64 `json:"leader_card_id"`
}

func (r *userReq) normalize() (string, bool) {
    r.UserName = strings.TrimSpace(r.UserName)
    if r.UserName == "" {
        return "user_name required", false
    }
    if utf8.RuneCountInString(r.UserName) > maxNameLen {
        return "user_name too long", false
    }
    return "", true
}

// Create registers a user and returns a token identifying them.
func (h *UserHandler) Create(c echo.Context) error {
    var req userReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if msg, ok := req.normalize(); !ok {
        return badRequest(c, msg)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    uid, err := h.Users.Create(ctx, req.UserName, req.LeaderCardID)
    if err != nil {
        return internalError(c, h.Log, "create user", err)
    }
    tok, err := utils.NewAccessToken(h.JWTSecret, uid, h.TokenTTL)
    if err != nil {
        return internalError(c, h.Log, "issue token", err)
    }
    return c.JSON(http.StatusOK, echo.Map{"user_token": tok.Token})
}

// Me returns the caller's profile.
func (h *UserHandler) Me(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    u, err := h.Users.GetByID(ctx, uid)
    if errors.Is(err, repository.ErrUserNotFound) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
    }
    if err != nil {
        return internalError(c, h.Log, "get user", err)
    }
    return c.JSON(http.StatusOK, userResp{ID: u.ID, Name: u.Name, LeaderCardID: u.LeaderCardID})
}

// Update replaces the caller's name and leader card.
func (h *UserHandler) Update(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    var req userReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if msg, ok := req.normalize(); !ok {
        return badRequest(c, msg)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    err = h.Users.Update(ctx, uid, req.UserName, req.LeaderCardID)
    if errors.Is(err, repository.ErrUserNotFound) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
    }
    if err != nil {
        return internalError(c, h.Log, "update user", err)
    }
    return c.JSON(http.StatusOK, echo.Map{})
}
