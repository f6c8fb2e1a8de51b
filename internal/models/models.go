// Package models defines the persistent entities of the chessticulate API:
// users, invitations, games, moves and open challenges.
package models

import "time"

// StartingFEN is the initial board position assigned to every new game.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// GameType enumerates the supported game types.
type GameType string

const (
	GameTypeChess GameType = "CHESS"
)

// Valid reports whether the game type is supported.
func (t GameType) Valid() bool {
	return t == GameTypeChess
}

// InvitationStatus enumerates invitation lifecycle states.
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "PENDING"
	InvitationAccepted  InvitationStatus = "ACCEPTED"
	InvitationDeclined  InvitationStatus = "DECLINED"
	InvitationCancelled InvitationStatus = "CANCELLED"
)

// Valid reports whether the status is a known invitation state.
func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationDeclined, InvitationCancelled:
		return true
	}
	return false
}

// ChallengeStatus enumerates open-challenge lifecycle states.
type ChallengeStatus string

const (
	ChallengePending   ChallengeStatus = "PENDING"
	ChallengeAccepted  ChallengeStatus = "ACCEPTED"
	ChallengeDeclined  ChallengeStatus = "DECLINED"
	ChallengeCancelled ChallengeStatus = "CANCELLED"
)

// Valid reports whether the status is a known challenge state.
func (s ChallengeStatus) Valid() bool {
	switch s {
	case ChallengePending, ChallengeAccepted, ChallengeDeclined, ChallengeCancelled:
		return true
	}
	return false
}

// GameResult enumerates how a finished game ended.
type GameResult string

const (
	ResultCheckmate            GameResult = "CHECKMATE"
	ResultStalemate            GameResult = "STALEMATE"
	ResultInsufficientMaterial GameResult = "INSUFFICIENTMATERIAL"
	ResultThreefoldRepetition  GameResult = "THREEFOLDREPETITION"
	ResultFiftyMoveRule        GameResult = "FIFTYMOVERULE"

	// not produced by the move validator
	ResultDrawByAgreement GameResult = "DRAWBYAGREEMENT"
	ResultResignation     GameResult = "RESIGNATION"
	ResultTimeout         GameResult = "TIMEOUT"
)

// IsDraw reports whether the result counts as a draw for both players.
func (r GameResult) IsDraw() bool {
	switch r {
	case ResultStalemate, ResultInsufficientMaterial, ResultThreefoldRepetition,
		ResultFiftyMoveRule, ResultDrawByAgreement:
		return true
	}
	return false
}

// User is a registered account. Deletion is soft: the row survives with
// Deleted set and Email/PasswordHash cleared so game history stays intact.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Deleted      bool
	DateJoined   time.Time
	Wins         int
	Draws        int
	Losses       int
}

// Invitation is a direct game offer from one user to another.
type Invitation struct {
	ID           int64
	FromID       int64
	ToID         int64
	GameType     GameType
	Status       InvitationStatus
	DateSent     time.Time
	DateAnswered *time.Time
}

// Challenge is an open game offer any other user may accept.
type Challenge struct {
	ID            int64
	RequesterID   int64
	GameType      GameType
	Status        ChallengeStatus
	FulfilledBy   *int64
	GameID        *int64
	DateRequested time.Time
}

// Game is a running or finished chess game. Whomst is the user whose turn
// it is; States carries the validator's repetition bookkeeping as JSON.
type Game struct {
	ID           int64
	GameType     GameType
	InvitationID *int64
	White        int64
	Black        int64
	Whomst       int64
	Winner       *int64
	IsActive     bool
	Result       *GameResult
	FEN          string
	States       string
	DateStarted  time.Time
	LastActive   time.Time
}

// Opponent returns the other player of the game, or false when userID is
// not a player at all.
func (g *Game) Opponent(userID int64) (int64, bool) {
	switch userID {
	case g.White:
		return g.Black, true
	case g.Black:
		return g.White, true
	}
	return 0, false
}

// HasPlayer reports whether userID plays in this game.
func (g *Game) HasPlayer(userID int64) bool {
	return userID == g.White || userID == g.Black
}

// Move is one accepted move of a game, recorded with the position it
// produced.
type Move struct {
	ID        int64
	UserID    int64
	GameID    int64
	MoveStr   string
	FEN       string
	Timestamp time.Time
}
