package morris

import (
	"fmt"
	"sort"

	"github.com/boardhall/morris-backend/internal/apperror"
	"github.com/boardhall/morris-backend/internal/entity"
)

// PlacePiece puts an unplaced piece of the acting player on an empty
// position during the placement phase.
func PlacePiece(gameInstance *entity.Game, playerID string, position int) error {
	if err := validatePlacement(gameInstance, playerID, position); err != nil {
		return err
	}

	player := gameInstance.Players[playerID]

	gameInstance.Board[position] = playerID
	player.Unplaced--
	player.InPlay++
	gameInstance.LastAction = &entity.Action{Type: entity.ActionPlacement, Position: position, PlayerID: playerID}
	gameInstance.MillPending = CheckMill(gameInstance, position, playerID)

	opponent := gameInstance.Opponent(playerID)
	if player.Unplaced == 0 && opponent != nil && opponent.Unplaced == 0 {
		gameInstance.Phase = entity.PhaseMovement

		// The flying flag is game-wide once any player is down to three
		// pieces. During placement a count of three just means a third
		// piece went down, so it only counts once both allotments are spent.
		if player.InPlay == 3 || opponent.InPlay == 3 {
			gameInstance.Phase = entity.PhaseFlying
		}
	}

	return nil
}

func validatePlacement(gameInstance *entity.Game, playerID string, position int) error {
	if !ValidPosition(position) {
		return fmt.Errorf("%w: position %d out of range", apperror.ErrInvalidPlacement, position)
	}

	if gameInstance.Phase != entity.PhasePlacement {
		return fmt.Errorf("%w: phase is %s", apperror.ErrInvalidPlacement, gameInstance.Phase)
	}

	if gameInstance.Board[position] != entity.EmptyPos {
		return fmt.Errorf("%w: position %d is occupied", apperror.ErrInvalidPlacement, position)
	}

	player, ok := gameInstance.Players[playerID]
	if !ok || player.Unplaced <= 0 {
		return fmt.Errorf("%w: no unplaced pieces left", apperror.ErrInvalidPlacement)
	}

	return nil
}

// MovePiece slides a piece to an adjacent empty position, or to any empty
// position when the acting player is down to three pieces (flying).
func MovePiece(gameInstance *entity.Game, playerID string, from, to int) error {
	if err := validateMove(gameInstance, playerID, from, to); err != nil {
		return err
	}

	gameInstance.Board[from] = entity.EmptyPos
	gameInstance.Board[to] = playerID
	gameInstance.LastAction = &entity.Action{Type: entity.ActionMovement, From: from, To: to, PlayerID: playerID}
	gameInstance.MillPending = CheckMill(gameInstance, to, playerID)

	return nil
}

func validateMove(gameInstance *entity.Game, playerID string, from, to int) error {
	if !ValidPosition(from) || !ValidPosition(to) {
		return fmt.Errorf("%w: positions %d -> %d out of range", apperror.ErrInvalidMove, from, to)
	}

	if gameInstance.Phase == entity.PhasePlacement {
		return fmt.Errorf("%w: still in placement phase", apperror.ErrInvalidMove)
	}

	if gameInstance.Board[from] != playerID {
		return fmt.Errorf("%w: position %d is not yours", apperror.ErrInvalidMove, from)
	}

	if gameInstance.Board[to] != entity.EmptyPos {
		return fmt.Errorf("%w: position %d is occupied", apperror.ErrInvalidMove, to)
	}

	player := gameInstance.Players[playerID]
	if player.InPlay == 3 {
		return nil // flying: any empty destination
	}

	if !AreAdjacent(from, to) {
		return fmt.Errorf("%w: %d is not adjacent to %d", apperror.ErrInvalidMove, to, from)
	}

	return nil
}

// RemovePiece takes an opponent piece after a mill was formed. A piece inside
// a mill may only be taken when every opponent piece is inside a mill.
func RemovePiece(gameInstance *entity.Game, playerID string, position int) error {
	if !ValidPosition(position) {
		return fmt.Errorf("%w: position %d out of range", apperror.ErrInvalidRemoval, position)
	}

	opponent := gameInstance.Opponent(playerID)
	if opponent == nil || gameInstance.Board[position] != opponent.ID {
		return fmt.Errorf("%w: position %d holds no opponent piece", apperror.ErrInvalidRemoval, position)
	}

	if CheckMill(gameInstance, position, opponent.ID) && !allPiecesInMills(gameInstance, opponent.ID) {
		return fmt.Errorf("%w: position %d is part of a mill", apperror.ErrInvalidRemoval, position)
	}

	gameInstance.Board[position] = entity.EmptyPos
	opponent.InPlay--
	gameInstance.LastAction = &entity.Action{Type: entity.ActionRemoval, Position: position, PlayerID: playerID}
	gameInstance.MillPending = false

	if gameInstance.Phase != entity.PhasePlacement && opponent.InPlay == 3 {
		gameInstance.Phase = entity.PhaseFlying
	}

	return nil
}

// CheckMill reports whether some mill line through the position is fully
// occupied by the player. Evaluated fresh each ply: breaking and re-forming
// a mill by moving back and forth is legal and must be re-detected.
func CheckMill(gameInstance *entity.Game, position int, playerID string) bool {
	for _, combo := range MillCombos {
		if combo[0] != position && combo[1] != position && combo[2] != position {
			continue
		}
		if gameInstance.Board[combo[0]] == playerID &&
			gameInstance.Board[combo[1]] == playerID &&
			gameInstance.Board[combo[2]] == playerID {
			return true
		}
	}
	return false
}

func allPiecesInMills(gameInstance *entity.Game, playerID string) bool {
	for position, owner := range gameInstance.Board {
		if owner == playerID && !CheckMill(gameInstance, position, playerID) {
			return false
		}
	}
	return true
}

// SwitchTurn passes the turn to the opponent unless a removal is still owed.
func SwitchTurn(gameInstance *entity.Game) {
	if gameInstance.MillPending {
		return
	}

	if opponent := gameInstance.Opponent(gameInstance.Turn); opponent != nil {
		gameInstance.Turn = opponent.ID
	}
}

// EvaluateWinner checks the terminal conditions and returns the winning
// player with a reason, or nil while the game continues. There is no draw.
// Players are checked in a fixed order so the outcome is deterministic even
// when both sides are stuck at once.
func EvaluateWinner(gameInstance *entity.Game) *entity.GameResult {
	playerIDs := make([]string, 0, len(gameInstance.Players))
	for playerID := range gameInstance.Players {
		playerIDs = append(playerIDs, playerID)
	}
	sort.Strings(playerIDs)

	for _, playerID := range playerIDs {
		player := gameInstance.Players[playerID]

		opponent := gameInstance.Opponent(playerID)
		if opponent == nil {
			return nil
		}

		if player.Unplaced == 0 && player.InPlay < 3 {
			return &entity.GameResult{Winner: opponent.ID, Reason: entity.ReasonInsufficientPieces}
		}

		if gameInstance.Phase != entity.PhasePlacement && !HasLegalMoves(gameInstance, playerID) {
			return &entity.GameResult{Winner: opponent.ID, Reason: entity.ReasonNoLegalMoves}
		}
	}

	return nil
}

// HasLegalMoves reports whether the player can move at all: a flying player
// needs any empty position, anyone else a piece next to an empty position.
func HasLegalMoves(gameInstance *entity.Game, playerID string) bool {
	player, ok := gameInstance.Players[playerID]
	if !ok {
		return false
	}

	if player.InPlay == 3 {
		for _, owner := range gameInstance.Board {
			if owner == entity.EmptyPos {
				return true
			}
		}
		return false
	}

	for position, owner := range gameInstance.Board {
		if owner != playerID {
			continue
		}
		for _, neighbor := range Adjacent(position) {
			if gameInstance.Board[neighbor] == entity.EmptyPos {
				return true
			}
		}
	}

	return false
}
