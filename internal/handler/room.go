package handler

import (
    "context"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/live-room-coordinator/internal/model"
    "github.com/iliyamo/live-room-coordinator/internal/room"
)

// RoomHandler exposes the coordinator over HTTP.  Every route is behind
// JWTAuth; the caller's id comes from the token.
type RoomHandler struct {
    Rooms *room.Service
    Log   *zap.Logger
}

func NewRoomHandler(rooms *room.Service, log *zap.Logger) *RoomHandler {
    if rooms == nil {
        panic("nil room service passed to NewRoomHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &RoomHandler{Rooms: rooms, Log: log}
}

type createRoomReq struct {
    LiveID           uint64           `json:"live_id"`
    SelectDifficulty model.Difficulty `json:"select_difficulty"`
}

type joinRoomReq struct {
    SelectDifficulty model.Difficulty `json:"select_difficulty"`
}

type endRoomReq struct {
    JudgeCountList []int `json:"judge_count_list"`
    Score          int64 `json:"score"`
}

type roomUser struct {
    UserID           uint64           `json:"user_id"`
    Name             string           `json:"name"`
    LeaderCardID     uint64           `json:"leader_card_id"`
    SelectDifficulty model.Difficulty `json:"select_difficulty"`
    IsMe             bool             `json:"is_me"`
    IsHost           bool             `json:"is_host"`
}

type resultUser struct {
    UserID         uint64 `json:"user_id"`
    JudgeCountList []int  `json:"judge_count_list"`
    Score          int64  `json:"score"`
}

// caller resolves the authenticated user and the :id room, writing the
// error response itself when either is missing.
func (h *RoomHandler) caller(c echo.Context) (userID, roomID uint64, ok bool, err error) {
    userID, uerr := getUserID(c)
    if uerr != nil {
        return 0, 0, false, unauthorized(c)
    }
    roomID, valid := roomIDParam(c)
    if !valid {
        return 0, 0, false, badRequest(c, "invalid room id")
    }
    return userID, roomID, true, nil
}

// Create opens a room for a live with the caller seated as host.
func (h *RoomHandler) Create(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    var req createRoomReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if req.LiveID == 0 {
        return badRequest(c, "live_id required")
    }
    if !req.SelectDifficulty.Valid() {
        return badRequest(c, "invalid select_difficulty")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    id, err := h.Rooms.CreateRoom(ctx, req.LiveID, uid, req.SelectDifficulty)
    if err != nil {
        return internalError(c, h.Log, "create room", err)
    }
    return c.JSON(http.StatusOK, echo.Map{"room_id": id})
}

// List returns joinable rooms, optionally restricted to ?live_id=.
func (h *RoomHandler) List(c echo.Context) error {
    var liveID uint64
    if raw := c.QueryParam("live_id"); raw != "" {
        n, err := strconv.ParseUint(raw, 10, 64)
        if err != nil {
            return badRequest(c, "invalid live_id")
        }
        liveID = n
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    rooms, err := h.Rooms.ListRooms(ctx, liveID)
    if err != nil {
        return internalError(c, h.Log, "list rooms", err)
    }
    return c.JSON(http.StatusOK, echo.Map{"room_info_list": rooms})
}

// Join seats the caller.  Refusals are reported in the body, not the status.
func (h *RoomHandler) Join(c echo.Context) error {
    uid, rid, ok, err := h.caller(c)
    if !ok {
        return err
    }
    var req joinRoomReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if !req.SelectDifficulty.Valid() {
        return badRequest(c, "invalid select_difficulty")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    res, err := h.Rooms.Join(ctx, rid, uid, req.SelectDifficulty)
    if err != nil {
        return internalError(c, h.Log, "join room", err)
    }
    return c.JSON(http.StatusOK, echo.Map{"join_room_result": int(res)})
}

// Wait is the member poll: room status plus the current seat list.
func (h *RoomHandler) Wait(c echo.Context) error {
    uid, rid, ok, err := h.caller(c)
    if !ok {
        return err
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    status, seats, err := h.Rooms.Poll(ctx, rid, uid)
    if err != nil {
        return internalError(c, h.Log, "poll room", err)
    }
    users := make([]roomUser, 0, len(seats))
    for _, sv := range seats {
        users = append(users, roomUser{
            UserID:           sv.UserID,
            Name:             sv.Name,
            LeaderCardID:     sv.LeaderCardID,
            SelectDifficulty: sv.Difficulty,
            IsMe:             sv.IsRequester,
            IsHost:           sv.IsHost,
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"status": int(status), "room_user_list": users})
}

// Start moves the room to LiveStarted; only the host may do this.
func (h *RoomHandler) Start(c echo.Context) error {
    uid, rid, ok, err := h.caller(c)
    if !ok {
        return err
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    res, err := h.Rooms.Start(ctx, rid, uid)
    if err != nil {
        return internalError(c, h.Log, "start room", err)
    }
    switch res {
    case room.StartOK:
        return c.JSON(http.StatusOK, echo.Map{})
    case room.StartNotFound:
        return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
    default:
        return c.JSON(http.StatusForbidden, echo.Map{"error": "only the host can start the live"})
    }
}

// End records the caller's result for the finished live.
func (h *RoomHandler) End(c echo.Context) error {
    uid, rid, ok, err := h.caller(c)
    if !ok {
        return err
    }
    var req endRoomReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if req.Score < 0 {
        return badRequest(c, "score must not be negative")
    }
    for _, n := range req.JudgeCountList {
        if n < 0 {
            return badRequest(c, "judge counts must not be negative")
        }
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    res, err := h.Rooms.Submit(ctx, rid, uid, req.Score, req.JudgeCountList)
    if err != nil {
        return internalError(c, h.Log, "submit result", err)
    }
    switch res {
    case room.SubmitOK:
        return c.JSON(http.StatusOK, echo.Map{})
    case room.SubmitAlreadySubmitted:
        return c.JSON(http.StatusConflict, echo.Map{"error": "result already submitted"})
    default:
        return c.JSON(http.StatusForbidden, echo.Map{"error": "not in room"})
    }
}

// Result returns every member's result once all have submitted; until
// then the list is empty.
func (h *RoomHandler) Result(c echo.Context) error {
    _, rid, ok, err := h.caller(c)
    if !ok {
        return err
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    views, err := h.Rooms.Collect(ctx, rid)
    if err != nil {
        return internalError(c, h.Log, "collect results", err)
    }
    out := make([]resultUser, 0, len(views))
    for _, v := range views {
        jc := v.JudgeCounts
        if jc == nil {
            jc = []int{}
        }
        out = append(out, resultUser{UserID: v.UserID, JudgeCountList: jc, Score: v.Score})
    }
    return c.JSON(http.StatusOK, echo.Map{"result_user_list": out})
}

// Leave releases the caller's seat.  Leaving a room one is not in succeeds.
func (h *RoomHandler) Leave(c echo.Context) error {
    uid, rid, ok, err := h.caller(c)
    if !ok {
        return err
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    if err := h.Rooms.Leave(ctx, rid, uid); err != nil {
        return internalError(c, h.Log, "leave room", err)
    }
    return c.JSON(http.StatusOK, echo.Map{})
}
