package morris

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardhall/morris-backend/internal/apperror"
	"github.com/boardhall/morris-backend/internal/entity"
)

const (
	whiteID = "white-player"
	blackID = "black-player"
)

// newPlayingGame returns a game with both players seated, white to move.
func newPlayingGame(t *testing.T) *entity.Game {
	t.Helper()

	gameInstance := entity.NewGame("game-1", &entity.Player{ID: whiteID})
	require.NoError(t, gameInstance.AddPlayer(&entity.Player{ID: blackID}))

	return gameInstance
}

// newMovementGame returns a game already past placement: both allotments
// spent, piece counts set by the caller via the board layout.
func newMovementGame(t *testing.T, whitePositions, blackPositions []int) *entity.Game {
	t.Helper()

	gameInstance := newPlayingGame(t)
	gameInstance.Phase = entity.PhaseMovement

	for _, position := range whitePositions {
		gameInstance.Board[position] = whiteID
	}
	for _, position := range blackPositions {
		gameInstance.Board[position] = blackID
	}

	white := gameInstance.Players[whiteID]
	white.Unplaced = 0
	white.InPlay = len(whitePositions)

	black := gameInstance.Players[blackID]
	black.Unplaced = 0
	black.InPlay = len(blackPositions)

	return gameInstance
}

func occupiedCount(gameInstance *entity.Game) int {
	count := 0
	for _, owner := range gameInstance.Board {
		if owner != entity.EmptyPos {
			count++
		}
	}
	return count
}

func TestPlacePiece(t *testing.T) {
	t.Run("Successful placement occupies the slot and moves a piece into play", func(t *testing.T) {
		// Given: a fresh game in the placement phase
		gameInstance := newPlayingGame(t)

		// When: white places at position 0
		err := PlacePiece(gameInstance, whiteID, 0)

		// Then: the slot is taken and the counters moved
		require.NoError(t, err)
		assert.Equal(t, whiteID, gameInstance.Board[0])
		assert.Equal(t, 8, gameInstance.Players[whiteID].Unplaced)
		assert.Equal(t, 1, gameInstance.Players[whiteID].InPlay)
		assert.False(t, gameInstance.MillPending)
		assert.Equal(t, &entity.Action{Type: entity.ActionPlacement, Position: 0, PlayerID: whiteID}, gameInstance.LastAction)
	})

	t.Run("Placement on an occupied position fails and never mutates the board", func(t *testing.T) {
		// Given: white already holds position 0
		gameInstance := newPlayingGame(t)
		require.NoError(t, PlacePiece(gameInstance, whiteID, 0))

		// When: black tries the same position
		err := PlacePiece(gameInstance, blackID, 0)

		// Then: the placement is rejected and nothing changed
		require.ErrorIs(t, err, apperror.ErrInvalidPlacement)
		assert.Equal(t, whiteID, gameInstance.Board[0])
		assert.Equal(t, 9, gameInstance.Players[blackID].Unplaced)
		assert.Equal(t, 0, gameInstance.Players[blackID].InPlay)
	})

	t.Run("Placement out of range fails", func(t *testing.T) {
		gameInstance := newPlayingGame(t)

		assert.ErrorIs(t, PlacePiece(gameInstance, whiteID, -1), apperror.ErrInvalidPlacement)
		assert.ErrorIs(t, PlacePiece(gameInstance, whiteID, 24), apperror.ErrInvalidPlacement)
	})

	t.Run("Placement outside the placement phase fails", func(t *testing.T) {
		gameInstance := newMovementGame(t, []int{0}, []int{3})

		err := PlacePiece(gameInstance, whiteID, 5)

		assert.ErrorIs(t, err, apperror.ErrInvalidPlacement)
	})

	t.Run("Placing a third piece on a line sets the mill pending flag", func(t *testing.T) {
		// Given: white holds two of the three positions of a mill line
		gameInstance := newPlayingGame(t)
		require.NoError(t, PlacePiece(gameInstance, whiteID, 0))
		require.NoError(t, PlacePiece(gameInstance, whiteID, 1))

		// When: white completes the line
		require.NoError(t, PlacePiece(gameInstance, whiteID, 2))

		// Then: a capture is owed
		assert.True(t, gameInstance.MillPending)
	})

	t.Run("Phase switches to movement once both allotments are spent", func(t *testing.T) {
		// Given: each player has a single unplaced piece left
		gameInstance := newPlayingGame(t)
		gameInstance.Players[whiteID].Unplaced = 1
		gameInstance.Players[whiteID].InPlay = 8
		gameInstance.Players[blackID].Unplaced = 1
		gameInstance.Players[blackID].InPlay = 8

		// When: both place their last piece
		require.NoError(t, PlacePiece(gameInstance, whiteID, 0))
		assert.Equal(t, entity.PhasePlacement, gameInstance.Phase)
		require.NoError(t, PlacePiece(gameInstance, blackID, 3))

		// Then: the game enters the movement phase
		assert.Equal(t, entity.PhaseMovement, gameInstance.Phase)
	})

	t.Run("Phase stays placement after a third placed piece", func(t *testing.T) {
		// Given: white has placed two pieces already
		gameInstance := newPlayingGame(t)
		require.NoError(t, PlacePiece(gameInstance, whiteID, 0))
		require.NoError(t, PlacePiece(gameInstance, whiteID, 9))

		// When: the third piece goes down
		require.NoError(t, PlacePiece(gameInstance, whiteID, 4))

		// Then: three in play during placement is no flying trigger
		assert.Equal(t, entity.PhasePlacement, gameInstance.Phase)
		assert.NoError(t, PlacePiece(gameInstance, blackID, 3))
	})

	t.Run("Phase switches to flying for the whole game when placement ends with a player on three", func(t *testing.T) {
		// Given: white lost six pieces to captures during placement
		gameInstance := newPlayingGame(t)
		gameInstance.Players[whiteID].Unplaced = 1
		gameInstance.Players[whiteID].InPlay = 2
		gameInstance.Players[blackID].Unplaced = 0
		gameInstance.Players[blackID].InPlay = 9

		// When: white spends the last allotted piece
		require.NoError(t, PlacePiece(gameInstance, whiteID, 0))

		assert.Equal(t, entity.PhaseFlying, gameInstance.Phase)
	})
}

func TestCheckMill(t *testing.T) {
	t.Run("A completed line is a mill from each of its three positions", func(t *testing.T) {
		// Given: white occupies the full line {0,1,2}
		gameInstance := newMovementGame(t, []int{0, 1, 2}, []int{5})

		// Then: the mill is detected from every member position independently
		assert.True(t, CheckMill(gameInstance, 0, whiteID))
		assert.True(t, CheckMill(gameInstance, 1, whiteID))
		assert.True(t, CheckMill(gameInstance, 2, whiteID))
	})

	t.Run("A line owned by the opponent is no mill for the player", func(t *testing.T) {
		gameInstance := newMovementGame(t, []int{0, 1, 2}, []int{5})

		assert.False(t, CheckMill(gameInstance, 0, blackID))
	})

	t.Run("An incomplete line is no mill", func(t *testing.T) {
		gameInstance := newMovementGame(t, []int{0, 1}, []int{2})

		assert.False(t, CheckMill(gameInstance, 0, whiteID))
	})
}

func TestMovePiece(t *testing.T) {
	t.Run("Moves to adjacent empty positions succeed", func(t *testing.T) {
		// Given: white on position 0 with 1 and 9 empty
		gameInstance := newMovementGame(t, []int{0, 4, 5, 6}, []int{3, 7, 8})

		// When/Then: both graph neighbors are legal destinations
		require.NoError(t, MovePiece(gameInstance, whiteID, 0, 1))
		require.NoError(t, MovePiece(gameInstance, whiteID, 1, 0))
		require.NoError(t, MovePiece(gameInstance, whiteID, 0, 9))
		assert.Equal(t, whiteID, gameInstance.Board[9])
		assert.Equal(t, entity.EmptyPos, gameInstance.Board[0])
	})

	t.Run("Move to a non-adjacent position fails in the movement phase", func(t *testing.T) {
		gameInstance := newMovementGame(t, []int{0, 4, 5, 6}, []int{3, 7, 8})

		err := MovePiece(gameInstance, whiteID, 0, 14)

		assert.ErrorIs(t, err, apperror.ErrInvalidMove)
	})

	t.Run("A player down to three pieces may fly to any empty position", func(t *testing.T) {
		// Given: white has exactly three pieces in play
		gameInstance := newMovementGame(t, []int{0, 4, 5}, []int{3, 7, 8})

		// When: white jumps across the board
		err := MovePiece(gameInstance, whiteID, 0, 14)

		// Then: adjacency is ignored
		require.NoError(t, err)
		assert.Equal(t, whiteID, gameInstance.Board[14])
	})

	t.Run("Moving a piece that is not yours fails", func(t *testing.T) {
		gameInstance := newMovementGame(t, []int{0}, []int{3})

		assert.ErrorIs(t, MovePiece(gameInstance, whiteID, 3, 4), apperror.ErrInvalidMove)
		assert.ErrorIs(t, MovePiece(gameInstance, whiteID, 5, 4), apperror.ErrInvalidMove)
	})

	t.Run("Moving onto an occupied position fails", func(t *testing.T) {
		gameInstance := newMovementGame(t, []int{0, 1}, []int{3})

		assert.ErrorIs(t, MovePiece(gameInstance, whiteID, 0, 1), apperror.ErrInvalidMove)
	})

	t.Run("Moving during the placement phase fails", func(t *testing.T) {
		gameInstance := newPlayingGame(t)
		require.NoError(t, PlacePiece(gameInstance, whiteID, 0))

		assert.ErrorIs(t, MovePiece(gameInstance, whiteID, 0, 1), apperror.ErrInvalidMove)
	})

	t.Run("Breaking and re-forming a mill is detected each time", func(t *testing.T) {
		// Given: white holds the mill {0,1,2}
		gameInstance := newMovementGame(t, []int{0, 1, 2, 5}, []int{3, 7, 8})

		// When: white breaks the mill
		require.NoError(t, MovePiece(gameInstance, whiteID, 2, 14))
		assert.False(t, gameInstance.MillPending)

		// And: moves straight back
		require.NoError(t, MovePiece(gameInstance, whiteID, 14, 2))

		// Then: the re-formed mill owes a fresh capture
		assert.True(t, gameInstance.MillPending)
	})
}

func TestRemovePiece(t *testing.T) {
	t.Run("Removing a loose opponent piece clears the pending mill", func(t *testing.T) {
		// Given: white formed a mill, black has a piece outside any mill
		gameInstance := newMovementGame(t, []int{0, 1, 2, 5}, []int{3, 7, 8})
		gameInstance.MillPending = true

		// When: white removes the loose piece
		err := RemovePiece(gameInstance, whiteID, 3)

		// Then: the slot is cleared and no capture is owed any more
		require.NoError(t, err)
		assert.Equal(t, entity.EmptyPos, gameInstance.Board[3])
		assert.Equal(t, 2, gameInstance.Players[blackID].InPlay)
		assert.False(t, gameInstance.MillPending)
	})

	t.Run("Removing from an empty or own position fails", func(t *testing.T) {
		gameInstance := newMovementGame(t, []int{0, 1}, []int{3})
		gameInstance.MillPending = true

		assert.ErrorIs(t, RemovePiece(gameInstance, whiteID, 10), apperror.ErrInvalidRemoval)
		assert.ErrorIs(t, RemovePiece(gameInstance, whiteID, 0), apperror.ErrInvalidRemoval)
		assert.Equal(t, 1, gameInstance.Players[blackID].InPlay)
	})

	t.Run("A piece inside a mill is protected while loose pieces exist", func(t *testing.T) {
		// Given: black holds the mill {3,4,5} plus a loose piece at 7
		gameInstance := newMovementGame(t, []int{0, 1}, []int{3, 4, 5, 7})
		gameInstance.MillPending = true

		// When: white targets a mill member
		err := RemovePiece(gameInstance, whiteID, 4)

		// Then: the removal is rejected
		assert.ErrorIs(t, err, apperror.ErrInvalidRemoval)
		assert.Equal(t, blackID, gameInstance.Board[4])
	})

	t.Run("Mill membership is ignored once every opponent piece is in a mill", func(t *testing.T) {
		// Given: all of black's pieces form the mill {3,4,5}
		gameInstance := newMovementGame(t, []int{0, 1}, []int{3, 4, 5})
		gameInstance.MillPending = true

		// When: white targets a mill member
		err := RemovePiece(gameInstance, whiteID, 4)

		// Then: the removal succeeds anyway
		require.NoError(t, err)
		assert.Equal(t, 2, gameInstance.Players[blackID].InPlay)
	})

	t.Run("A capture dropping a player to three sets the flying phase", func(t *testing.T) {
		// Given: black holds four pieces in the movement phase
		gameInstance := newMovementGame(t, []int{0, 1, 2}, []int{3, 7, 8, 10})
		gameInstance.MillPending = true

		// When: white captures one of them
		require.NoError(t, RemovePiece(gameInstance, whiteID, 7))

		// Then: the whole game switches to flying
		assert.Equal(t, 3, gameInstance.Players[blackID].InPlay)
		assert.Equal(t, entity.PhaseFlying, gameInstance.Phase)
	})

	t.Run("Removal out of range fails", func(t *testing.T) {
		gameInstance := newMovementGame(t, []int{0}, []int{3})
		gameInstance.MillPending = true

		assert.ErrorIs(t, RemovePiece(gameInstance, whiteID, 30), apperror.ErrInvalidRemoval)
	})
}

func TestSwitchTurn(t *testing.T) {
	t.Run("The turn passes to the opponent after a quiet ply", func(t *testing.T) {
		gameInstance := newPlayingGame(t)
		require.Equal(t, whiteID, gameInstance.Turn)

		SwitchTurn(gameInstance)

		assert.Equal(t, blackID, gameInstance.Turn)
	})

	t.Run("The turn is held while a removal is owed", func(t *testing.T) {
		gameInstance := newPlayingGame(t)
		gameInstance.MillPending = true

		SwitchTurn(gameInstance)

		assert.Equal(t, whiteID, gameInstance.Turn)
	})
}

func TestEvaluateWinner(t *testing.T) {
	t.Run("No winner while the game continues", func(t *testing.T) {
		gameInstance := newPlayingGame(t)
		require.NoError(t, PlacePiece(gameInstance, whiteID, 0))

		assert.Nil(t, EvaluateWinner(gameInstance))
	})

	t.Run("A player who finished placing with fewer than three pieces loses", func(t *testing.T) {
		// Given: black is down to two pieces after placement
		gameInstance := newMovementGame(t, []int{0, 1, 4}, []int{3, 7})

		// When: the winner is evaluated
		result := EvaluateWinner(gameInstance)

		// Then: white wins for insufficient pieces
		require.NotNil(t, result)
		assert.Equal(t, whiteID, result.Winner)
		assert.Equal(t, entity.ReasonInsufficientPieces, result.Reason)
	})

	t.Run("Low piece count during placement does not end the game", func(t *testing.T) {
		// Given: white has placed a single piece so far
		gameInstance := newPlayingGame(t)
		require.NoError(t, PlacePiece(gameInstance, whiteID, 0))
		require.NoError(t, PlacePiece(gameInstance, blackID, 3))

		// Then: nobody has lost yet
		assert.Nil(t, EvaluateWinner(gameInstance))
	})

	t.Run("A player with no legal destination loses", func(t *testing.T) {
		// Given: every black piece is boxed in by white
		gameInstance := newMovementGame(t, []int{1, 7, 9, 11, 12, 14}, []int{0, 2, 6, 8})

		// When: the winner is evaluated
		result := EvaluateWinner(gameInstance)

		// Then: white wins because black cannot move
		require.NotNil(t, result)
		assert.Equal(t, whiteID, result.Winner)
		assert.Equal(t, entity.ReasonNoLegalMoves, result.Reason)
	})

	t.Run("The winner is deterministic when both players are stuck", func(t *testing.T) {
		// Given: a full board, so neither player has a destination
		whitePositions := make([]int, 0, 12)
		blackPositions := make([]int, 0, 12)
		for position := 0; position < 12; position++ {
			whitePositions = append(whitePositions, position)
			blackPositions = append(blackPositions, position+12)
		}

		// Then: every evaluation picks the same loser
		for i := 0; i < 20; i++ {
			gameInstance := newMovementGame(t, whitePositions, blackPositions)

			result := EvaluateWinner(gameInstance)

			require.NotNil(t, result)
			assert.Equal(t, whiteID, result.Winner, "run %d", i)
			assert.Equal(t, entity.ReasonNoLegalMoves, result.Reason, "run %d", i)
		}
	})

	t.Run("A flying player can always move while the board has space", func(t *testing.T) {
		// Given: black is down to three pieces, all boxed in
		gameInstance := newMovementGame(t, []int{1, 9, 14, 7, 11}, []int{0, 2, 6})

		// Then: flying keeps black alive
		assert.True(t, HasLegalMoves(gameInstance, blackID))
		assert.Nil(t, EvaluateWinner(gameInstance))
	})
}

func TestBoardInvariant(t *testing.T) {
	t.Run("Occupied slots always equal the sum of pieces in play", func(t *testing.T) {
		// Given: a scripted opening with a mill and a capture
		gameInstance := newPlayingGame(t)

		steps := []func() error{
			func() error { return PlacePiece(gameInstance, whiteID, 0) },
			func() error { return PlacePiece(gameInstance, blackID, 3) },
			func() error { return PlacePiece(gameInstance, whiteID, 1) },
			func() error { return PlacePiece(gameInstance, blackID, 4) },
			func() error { return PlacePiece(gameInstance, whiteID, 2) }, // forms {0,1,2}
			func() error { return RemovePiece(gameInstance, whiteID, 3) },
		}

		// When/Then: the invariant holds after every step
		for i, step := range steps {
			require.NoError(t, step(), "step %d", i)

			inPlay := gameInstance.Players[whiteID].InPlay + gameInstance.Players[blackID].InPlay
			assert.Equal(t, inPlay, occupiedCount(gameInstance), "after step %d", i)
		}
	})
}
