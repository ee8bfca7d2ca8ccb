package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/boardhall/morris-backend/internal/apperror"
	"github.com/boardhall/morris-backend/internal/config"
	"github.com/boardhall/morris-backend/internal/entity"
	"github.com/boardhall/morris-backend/internal/morris"
	"github.com/boardhall/morris-backend/internal/pkg"
	"github.com/boardhall/morris-backend/internal/repository"
)

type playerRepo interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
}

type gameArchive interface {
	Archive(ctx context.Context, game *entity.Game, ttl time.Duration) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
}

// session owns one game's state. Every mutation of the game goes through
// the session mutex, so validation and mutation are a single atomic step.
type session struct {
	mu         sync.Mutex
	game       *entity.Game
	lastChatAt map[string]time.Time
}

// GameManager is the session registry and turn coordinator: it maps game IDs
// to live sessions, serializes all access to each game, and retires games
// once they outlive the retention window.
type GameManager struct {
	logger     *slog.Logger
	playerRepo playerRepo
	archive    gameArchive
	conf       config.Game

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewGameManager(logger *slog.Logger, playerRepo playerRepo, archive gameArchive, conf config.Game) *GameManager {
	return &GameManager{
		logger:     logger,
		playerRepo: playerRepo,
		archive:    archive,
		conf:       conf,

		sessions: make(map[string]*session),
	}
}

// GetOrCreatePlayer resolves a session ID to a player record, registering a
// new one on first contact.
func (that *GameManager) GetOrCreatePlayer(ctx context.Context, id string) (*entity.Player, error) {
	if id == "" {
		id = pkg.GenerateNewSessionID()
	}

	player, err := that.playerRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrPlayerNotFound) {
		player = &entity.Player{ID: id}
		if err = that.playerRepo.CreateOrUpdate(ctx, player); err != nil {
			return nil, fmt.Errorf("failed to create player: %w", err)
		}

		return player, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get player by id: %w", err)
	}

	return player, nil
}

// CreateGame allocates a new waiting game with the requesting player seated
// as white.
func (that *GameManager) CreateGame(ctx context.Context, playerID string) (*entity.Game, error) {
	player, err := that.getPlayerByID(ctx, playerID)
	if err != nil {
		return nil, err
	}

	gameID := pkg.GenerateGameID()
	newGame := entity.NewGame(gameID, player)

	if err = that.playerRepo.CreateOrUpdate(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to update player: %w", err)
	}

	that.mu.Lock()
	that.sessions[gameID] = &session{
		game:       newGame,
		lastChatAt: make(map[string]time.Time),
	}
	that.mu.Unlock()

	that.logger.Info("game created", "gameID", gameID, "playerID", playerID)

	return newGame.Snapshot(), nil
}

// JoinGame seats the player as black and starts the game.
func (that *GameManager) JoinGame(ctx context.Context, gameID, playerID string) (*entity.Game, error) {
	player, err := that.getPlayerByID(ctx, playerID)
	if err != nil {
		return nil, err
	}

	sess, ok := that.getSession(gameID)
	if !ok {
		return nil, fmt.Errorf("%w: game id %s", apperror.ErrGameNotFound, gameID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err = sess.game.AddPlayer(player); err != nil {
		return nil, err
	}

	if err = that.playerRepo.CreateOrUpdate(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to update player: %w", err)
	}

	that.logger.Info("player joined game", "gameID", gameID, "playerID", playerID)

	return sess.game.Snapshot(), nil
}

// LeaveGame removes the player's membership before the game has started.
// Once a game is playing, leaving is a connection-level event and the game
// stays alive for the remaining participant.
func (that *GameManager) LeaveGame(ctx context.Context, playerID string) error {
	player, err := that.getPlayerByID(ctx, playerID)
	if err != nil || player.GameID == "" {
		return nil
	}

	sess, ok := that.getSession(player.GameID)
	if !ok {
		return nil
	}

	sess.mu.Lock()
	if !sess.game.IsWaiting() {
		sess.mu.Unlock()
		return nil
	}

	gameID := sess.game.ID

	// Tombstone before releasing the session lock: a join racing this leave
	// may already hold the session pointer, and must not be able to seat
	// into the freed game.
	sess.game.Status = entity.StatusFinished

	that.mu.Lock()
	delete(that.sessions, gameID)
	that.mu.Unlock()

	sess.mu.Unlock()

	player.GameID = ""
	player.Color = ""
	if err = that.playerRepo.CreateOrUpdate(ctx, player); err != nil {
		return fmt.Errorf("failed to update player: %w", err)
	}

	that.logger.Info("player left game before start", "gameID", gameID, "playerID", playerID)

	return nil
}

// PlacePiece places a piece for the player, then runs the end-of-ply steps.
func (that *GameManager) PlacePiece(ctx context.Context, playerID string, position int) (*entity.Game, *entity.GameResult, error) {
	return that.applyAction(ctx, playerID, entity.ActionPlacement, func(gameInstance *entity.Game) error {
		return morris.PlacePiece(gameInstance, playerID, position)
	})
}

// MovePiece moves a piece for the player, then runs the end-of-ply steps.
func (that *GameManager) MovePiece(ctx context.Context, playerID string, from, to int) (*entity.Game, *entity.GameResult, error) {
	return that.applyAction(ctx, playerID, entity.ActionMovement, func(gameInstance *entity.Game) error {
		return morris.MovePiece(gameInstance, playerID, from, to)
	})
}

// RemovePiece performs the capture owed after a mill.
func (that *GameManager) RemovePiece(ctx context.Context, playerID string, position int) (*entity.Game, *entity.GameResult, error) {
	return that.applyAction(ctx, playerID, entity.ActionRemoval, func(gameInstance *entity.Game) error {
		return morris.RemovePiece(gameInstance, playerID, position)
	})
}

// applyAction is the outer protocol shared by every mutating action:
// resolve the game, check turn ownership and capture gating, delegate to the
// rule engine, evaluate the winner and advance the turn. The session mutex
// is held across the whole sequence.
func (that *GameManager) applyAction(ctx context.Context, playerID, actionType string, mutate func(*entity.Game) error) (*entity.Game, *entity.GameResult, error) {
	sess, err := that.sessionByPlayerID(ctx, playerID)
	if err != nil {
		return nil, nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	gameInstance := sess.game

	if !gameInstance.IsPlaying() || gameInstance.Turn != playerID {
		return nil, nil, apperror.ErrNotYourTurn
	}

	if err = checkCaptureGate(gameInstance, actionType); err != nil {
		return nil, nil, err
	}

	if err = mutate(gameInstance); err != nil {
		return nil, nil, err
	}

	if result := morris.EvaluateWinner(gameInstance); result != nil {
		that.finishGame(ctx, gameInstance, result)
		return gameInstance.Snapshot(), result, nil
	}

	morris.SwitchTurn(gameInstance)

	return gameInstance.Snapshot(), nil, nil
}

// checkCaptureGate rejects any non-removal action while a removal is owed,
// and any removal while none is.
func checkCaptureGate(gameInstance *entity.Game, actionType string) error {
	if gameInstance.MillPending {
		switch actionType {
		case entity.ActionRemoval:
			return nil
		case entity.ActionPlacement:
			return fmt.Errorf("%w: a removal is owed first", apperror.ErrInvalidPlacement)
		default:
			return fmt.Errorf("%w: a removal is owed first", apperror.ErrInvalidMove)
		}
	}

	if actionType == entity.ActionRemoval {
		return fmt.Errorf("%w: no mill was formed", apperror.ErrInvalidRemoval)
	}

	return nil
}

// SendMessage appends a chat message, enforcing the per-sender cooldown.
func (that *GameManager) SendMessage(ctx context.Context, playerID, text string) (*entity.ChatMessage, *entity.Game, error) {
	sess, err := that.sessionByPlayerID(ctx, playerID)
	if err != nil {
		return nil, nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	now := time.Now()
	if last, ok := sess.lastChatAt[playerID]; ok && now.Sub(last) < that.conf.ChatCooldown {
		return nil, nil, apperror.ErrRateLimitExceeded
	}

	message := &entity.ChatMessage{
		ID:        pkg.GenerateMessageID(),
		PlayerID:  playerID,
		Text:      text,
		Timestamp: now,
	}

	sess.game.AddChatMessage(message)
	sess.lastChatAt[playerID] = now

	return message, sess.game.Snapshot(), nil
}

// GameState returns the current snapshot for the player's game, falling back
// to the archive for games already retired from the session table.
func (that *GameManager) GameState(ctx context.Context, playerID string) (*entity.Game, error) {
	player, err := that.getPlayerByID(ctx, playerID)
	if err != nil || player.GameID == "" {
		return nil, apperror.ErrNotInGame
	}

	sess, ok := that.getSession(player.GameID)
	if !ok {
		archivedGame, archiveErr := that.archive.GetByID(ctx, player.GameID)
		if archiveErr != nil {
			return nil, fmt.Errorf("%w: game id %s", apperror.ErrGameNotFound, player.GameID)
		}

		return archivedGame, nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	return sess.game.Snapshot(), nil
}

// GameByPlayerID resolves the player's current game, if any.
func (that *GameManager) GameByPlayerID(ctx context.Context, playerID string) (*entity.Game, error) {
	sess, err := that.sessionByPlayerID(ctx, playerID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	return sess.game.Snapshot(), nil
}

// StartCleanup runs the age-based retirement sweep until the context is done.
func (that *GameManager) StartCleanup(ctx context.Context) {
	log := that.logger.With("component", "cleanup")

	go func() {
		ticker := time.NewTicker(that.conf.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				that.sweep(ctx, log)
			}
		}
	}()
}

// sweep retires every game older than the retention window, regardless of
// activity. A session is never freed while a mutation on it is in flight:
// the session mutex is taken before the session leaves the table.
func (that *GameManager) sweep(ctx context.Context, log *slog.Logger) {
	cutoff := time.Now().Add(-that.conf.Retention)

	that.mu.RLock()
	expired := make([]*session, 0)
	for _, sess := range that.sessions {
		expired = append(expired, sess)
	}
	that.mu.RUnlock()

	for _, sess := range expired {
		sess.mu.Lock()
		gameInstance := sess.game
		if gameInstance.CreatedAt.After(cutoff) {
			sess.mu.Unlock()
			continue
		}

		that.mu.Lock()
		delete(that.sessions, gameInstance.ID)
		that.mu.Unlock()

		if !gameInstance.IsFinished() {
			gameInstance.Status = entity.StatusFinished
			gameInstance.Turn = ""
		}

		that.archiveGame(ctx, gameInstance)
		sess.mu.Unlock()

		log.Info("retired expired game", "gameID", gameInstance.ID)
	}
}

// finishGame marks the game terminal and archives it. Caller holds the
// session mutex.
func (that *GameManager) finishGame(ctx context.Context, gameInstance *entity.Game, result *entity.GameResult) {
	gameInstance.Status = entity.StatusFinished
	gameInstance.Turn = ""
	gameInstance.MillPending = false
	gameInstance.Result = result

	that.archiveGame(ctx, gameInstance)

	that.logger.Info("game finished", "gameID", gameInstance.ID, "winner", result.Winner, "reason", result.Reason)
}

// archiveGame stores the final state with the retention TTL. Membership
// records are left in place: a player's game pointer is superseded by the
// next create or join, and until then GameState can still serve the
// archived final position.
func (that *GameManager) archiveGame(ctx context.Context, gameInstance *entity.Game) {
	if err := that.archive.Archive(ctx, gameInstance, that.conf.Retention); err != nil {
		that.logger.Error("failed to archive game", "gameID", gameInstance.ID, "error", err)
	}
}

func (that *GameManager) sessionByPlayerID(ctx context.Context, playerID string) (*session, error) {
	player, err := that.getPlayerByID(ctx, playerID)
	if err != nil || player.GameID == "" {
		return nil, apperror.ErrNotInGame
	}

	sess, ok := that.getSession(player.GameID)
	if !ok {
		return nil, apperror.ErrNotInGame
	}

	return sess, nil
}

func (that *GameManager) getSession(gameID string) (*session, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	sess, ok := that.sessions[gameID]

	return sess, ok
}

func (that *GameManager) getPlayerByID(ctx context.Context, id string) (*entity.Player, error) {
	player, err := that.playerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	return player, nil
}
