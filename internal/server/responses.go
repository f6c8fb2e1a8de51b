package server

import (
	"time"

	"github.com/chessticulate/chessticulate-api/internal/models"
	"github.com/chessticulate/chessticulate-api/internal/store"
)

type userResponse struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	DateJoined time.Time `json:"date_joined"`
	Wins       int       `json:"wins"`
	Draws      int       `json:"draws"`
	Losses     int       `json:"losses"`
}

type ownUserResponse struct {
	userResponse
	Email string `json:"email"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Name:       u.Name,
		DateJoined: u.DateJoined,
		Wins:       u.Wins,
		Draws:      u.Draws,
		Losses:     u.Losses,
	}
}

func toOwnUserResponse(u *models.User) ownUserResponse {
	return ownUserResponse{userResponse: toUserResponse(u), Email: u.Email}
}

type loginResponse struct {
	JWT string `json:"jwt"`
}

type existsResponse struct {
	Exists bool   `json:"exists"`
	Detail string `json:"detail"`
}

type invitationResponse struct {
	ID           int64      `json:"id"`
	FromID       int64      `json:"from_id"`
	ToID         int64      `json:"to_id"`
	GameType     string     `json:"game_type"`
	Status       string     `json:"status"`
	DateSent     time.Time  `json:"date_sent"`
	DateAnswered *time.Time `json:"date_answered"`
}

func toInvitationResponse(inv *models.Invitation) invitationResponse {
	return invitationResponse{
		ID:           inv.ID,
		FromID:       inv.FromID,
		ToID:         inv.ToID,
		GameType:     string(inv.GameType),
		Status:       string(inv.Status),
		DateSent:     inv.DateSent,
		DateAnswered: inv.DateAnswered,
	}
}

type challengeResponse struct {
	ID            int64     `json:"id"`
	RequesterID   int64     `json:"requester_id"`
	GameType      string    `json:"game_type"`
	Status        string    `json:"status"`
	FulfilledBy   *int64    `json:"fulfilled_by"`
	GameID        *int64    `json:"game_id"`
	DateRequested time.Time `json:"date_requested"`
}

func toChallengeResponse(c *models.Challenge) challengeResponse {
	return challengeResponse{
		ID:            c.ID,
		RequesterID:   c.RequesterID,
		GameType:      string(c.GameType),
		Status:        string(c.Status),
		FulfilledBy:   c.FulfilledBy,
		GameID:        c.GameID,
		DateRequested: c.DateRequested,
	}
}

type gameResponse struct {
	ID            int64      `json:"id"`
	GameType      string     `json:"game_type"`
	InvitationID  *int64     `json:"invitation_id"`
	White         int64      `json:"white"`
	Black         int64      `json:"black"`
	WhiteUsername string     `json:"white_username,omitempty"`
	BlackUsername string     `json:"black_username,omitempty"`
	Whomst        int64      `json:"whomst"`
	Winner        *int64     `json:"winner"`
	IsActive      bool       `json:"is_active"`
	Result        *string    `json:"result"`
	FEN           string     `json:"fen"`
	MoveHist      []string   `json:"move_hist,omitempty"`
	DateStarted   time.Time  `json:"date_started"`
	LastActive    *time.Time `json:"last_active"`
}

func toGameResponse(g *models.Game) gameResponse {
	resp := gameResponse{
		ID:           g.ID,
		GameType:     string(g.GameType),
		InvitationID: g.InvitationID,
		White:        g.White,
		Black:        g.Black,
		Whomst:       g.Whomst,
		Winner:       g.Winner,
		IsActive:     g.IsActive,
		FEN:          g.FEN,
		DateStarted:  g.DateStarted,
	}
	if g.Result != nil {
		result := string(*g.Result)
		resp.Result = &result
	}
	if !g.LastActive.IsZero() {
		t := g.LastActive
		resp.LastActive = &t
	}
	return resp
}

func toGameViewResponse(v *store.GameView, moveHist []string) gameResponse {
	resp := toGameResponse(&v.Game)
	resp.WhiteUsername = v.WhiteName
	resp.BlackUsername = v.BlackName
	resp.MoveHist = moveHist
	return resp
}

type moveResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	GameID    int64     `json:"game_id"`
	MoveStr   string    `json:"movestr"`
	FEN       string    `json:"fen"`
	Timestamp time.Time `json:"timestamp"`
}

func toMoveResponse(m *models.Move) moveResponse {
	return moveResponse{
		ID:        m.ID,
		UserID:    m.UserID,
		GameID:    m.GameID,
		MoveStr:   m.MoveStr,
		FEN:       m.FEN,
		Timestamp: m.Timestamp,
	}
}

type gameIDResponse struct {
	GameID int64 `json:"game_id"`
}
