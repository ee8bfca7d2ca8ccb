package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardhall/morris-backend/internal/entity"
	"github.com/boardhall/morris-backend/internal/repository"
	"github.com/boardhall/morris-backend/testing/suite"
)

func TestPlayerRepository(t *testing.T) {
	ctx, s := suite.New(t)

	repo := repository.NewPlayerRepository(s.Storage)

	t.Run("stores and reads back a player", func(t *testing.T) {
		// Given: a seated player
		player := &entity.Player{
			ID:       "player-1",
			Color:    entity.ColorWhite,
			GameID:   "game-1",
			Unplaced: 7,
			InPlay:   2,
		}

		// When: the record is written and read back
		require.NoError(t, repo.CreateOrUpdate(ctx, player))

		stored, err := repo.GetByID(ctx, "player-1")

		// Then: every field survives the round trip
		require.NoError(t, err)
		assert.Equal(t, player, stored)
	})

	t.Run("overwrites an existing record", func(t *testing.T) {
		player := &entity.Player{ID: "player-2", GameID: "game-1"}
		require.NoError(t, repo.CreateOrUpdate(ctx, player))

		// When: the player leaves the game
		player.GameID = ""
		require.NoError(t, repo.CreateOrUpdate(ctx, player))

		stored, err := repo.GetByID(ctx, "player-2")
		require.NoError(t, err)
		assert.Empty(t, stored.GameID)
	})

	t.Run("reports a missing player", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "nobody")

		assert.ErrorIs(t, err, repository.ErrPlayerNotFound)
	})

	t.Run("deletes a player", func(t *testing.T) {
		player := &entity.Player{ID: "player-3"}
		require.NoError(t, repo.CreateOrUpdate(ctx, player))

		require.NoError(t, repo.DeleteByID(ctx, "player-3"))

		_, err := repo.GetByID(ctx, "player-3")
		assert.ErrorIs(t, err, repository.ErrPlayerNotFound)
	})
}
