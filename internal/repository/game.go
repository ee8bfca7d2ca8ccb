package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/boardhall/morris-backend/internal/entity"
)

var ErrGameNotArchived = errors.New("game not archived")

// GameArchive keeps finished games around for a while so a client can still
// fetch the final position after the session itself has been retired.
type GameArchive interface {
	Archive(ctx context.Context, game *entity.Game, ttl time.Duration) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
}

type dbGameArchive struct {
	client *redis.Client
}

func NewGameArchive(client *redis.Client) GameArchive {
	return &dbGameArchive{
		client: client,
	}
}

func (that *dbGameArchive) Archive(ctx context.Context, game *entity.Game, ttl time.Duration) error {
	gameJSON, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	gameKey := "archive:" + game.ID
	if err = that.client.Set(ctx, gameKey, gameJSON, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set game: %w", err)
	}

	return nil
}

func (that *dbGameArchive) GetByID(ctx context.Context, id string) (*entity.Game, error) {
	gameKey := "archive:" + id

	response, err := that.client.Get(ctx, gameKey).Result()

	if errors.Is(err, redis.Nil) {
		return nil, ErrGameNotArchived
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get game by ID: %w", err)
	}

	var archivedGame entity.Game
	if err = json.Unmarshal([]byte(response), &archivedGame); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %w", err)
	}

	return &archivedGame, nil
}
