package entity

import (
	"fmt"
	"time"

	"github.com/boardhall/morris-backend/internal/apperror"
)

const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"

	PhasePlacement = "placement"
	PhaseMovement  = "movement"
	PhaseFlying    = "flying"

	ColorWhite = "white"
	ColorBlack = "black"

	EmptyPos = ""

	BoardSize       = 24
	PiecesPerPlayer = 9
	MaxPlayers      = 2
)

const (
	ActionPlacement = "placement"
	ActionMovement  = "movement"
	ActionRemoval   = "removal"
)

const (
	ReasonInsufficientPieces = "insufficient_pieces"
	ReasonNoLegalMoves       = "no_legal_moves"
)

// Action is a tagged record of the most recent placement, movement or removal.
type Action struct {
	Type     string `json:"type"`
	Position int    `json:"position,omitempty"`
	From     int    `json:"from,omitempty"`
	To       int    `json:"to,omitempty"`
	PlayerID string `json:"player_id"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	PlayerID  string    `json:"player_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type GameResult struct {
	Winner string `json:"winner"`
	Reason string `json:"reason"`
}

// Game is the authoritative state of one session. Board slots hold the
// owning player's ID or EmptyPos.
type Game struct {
	ID          string             `json:"id"`
	Board       [BoardSize]string  `json:"board"`
	Players     map[string]*Player `json:"players,omitempty"`
	Turn        string             `json:"current_turn,omitempty"`
	Phase       string             `json:"phase"`
	Status      string             `json:"status"`
	LastAction  *Action            `json:"last_action,omitempty"`
	MillPending bool               `json:"mill_pending"`
	Chat        []*ChatMessage     `json:"chat,omitempty"`
	Result      *GameResult        `json:"result,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

func NewGame(id string, creator *Player) *Game {
	creator.Color = ColorWhite
	creator.GameID = id
	creator.Unplaced = PiecesPerPlayer
	creator.InPlay = 0

	return &Game{
		ID:        id,
		Players:   map[string]*Player{creator.ID: creator},
		Turn:      creator.ID,
		Phase:     PhasePlacement,
		Status:    StatusWaiting,
		CreatedAt: time.Now(),
	}
}

// AddPlayer seats the second participant and starts the game.
func (that *Game) AddPlayer(player *Player) error {
	if !that.IsWaiting() || len(that.Players) >= MaxPlayers {
		return fmt.Errorf("%w: game id %s", apperror.ErrGameFull, that.ID)
	}

	// The creator cannot take the black seat of their own game.
	if _, ok := that.Players[player.ID]; ok {
		return fmt.Errorf("%w: player %s is already seated", apperror.ErrGameFull, player.ID)
	}

	player.Color = ColorBlack
	player.GameID = that.ID
	player.Unplaced = PiecesPerPlayer
	player.InPlay = 0

	that.Players[player.ID] = player
	that.Status = StatusPlaying

	return nil
}

// Opponent returns the other participant, or nil while the game is waiting.
func (that *Game) Opponent(playerID string) *Player {
	for id, player := range that.Players {
		if id != playerID {
			return player
		}
	}
	return nil
}

func (that *Game) AddChatMessage(message *ChatMessage) {
	that.Chat = append(that.Chat, message)
}

// Snapshot returns a deep copy safe to marshal and broadcast while the
// live game keeps mutating under its session lock.
func (that *Game) Snapshot() *Game {
	snapshot := *that

	snapshot.Players = make(map[string]*Player, len(that.Players))
	for id, player := range that.Players {
		copied := *player
		snapshot.Players[id] = &copied
	}

	if that.LastAction != nil {
		action := *that.LastAction
		snapshot.LastAction = &action
	}

	if that.Result != nil {
		result := *that.Result
		snapshot.Result = &result
	}

	snapshot.Chat = make([]*ChatMessage, len(that.Chat))
	copy(snapshot.Chat, that.Chat)

	return &snapshot
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Game) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaiting
}
