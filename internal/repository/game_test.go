package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardhall/morris-backend/internal/entity"
	"github.com/boardhall/morris-backend/internal/repository"
	"github.com/boardhall/morris-backend/testing/suite"
)

func TestGameArchive(t *testing.T) {
	ctx, s := suite.New(t)

	archive := repository.NewGameArchive(s.Storage)

	t.Run("stores and reads back a finished game", func(t *testing.T) {
		// Given: a finished game with a recorded result
		white := &entity.Player{ID: "white-player"}
		finished := entity.NewGame("game-1", white)
		require.NoError(t, finished.AddPlayer(&entity.Player{ID: "black-player"}))

		finished.Board[0] = "white-player"
		finished.Board[3] = "black-player"
		finished.Status = entity.StatusFinished
		finished.Turn = ""
		finished.Result = &entity.GameResult{
			Winner: "white-player",
			Reason: entity.ReasonInsufficientPieces,
		}

		// When: the game is archived and fetched back
		require.NoError(t, archive.Archive(ctx, finished, time.Hour))

		stored, err := archive.GetByID(ctx, "game-1")

		// Then: the final position and result survive the round trip
		require.NoError(t, err)
		assert.Equal(t, finished.ID, stored.ID)
		assert.Equal(t, entity.StatusFinished, stored.Status)
		assert.Equal(t, finished.Board, stored.Board)
		require.NotNil(t, stored.Result)
		assert.Equal(t, "white-player", stored.Result.Winner)
		assert.Equal(t, entity.ReasonInsufficientPieces, stored.Result.Reason)
		require.Len(t, stored.Players, 2)
		assert.Equal(t, entity.ColorBlack, stored.Players["black-player"].Color)
	})

	t.Run("applies the retention TTL", func(t *testing.T) {
		expiring := entity.NewGame("game-2", &entity.Player{ID: "white-player"})

		require.NoError(t, archive.Archive(ctx, expiring, time.Hour))

		ttl, err := s.Storage.TTL(ctx, "archive:game-2").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})

	t.Run("reports a game that was never archived", func(t *testing.T) {
		_, err := archive.GetByID(ctx, "no-such-game")

		assert.ErrorIs(t, err, repository.ErrGameNotArchived)
	})
}
