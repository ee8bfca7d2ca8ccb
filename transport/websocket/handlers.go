package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/boardhall/morris-backend/internal/entity"
)

// Server-initiated events broadcast to both participants of a game.
const (
	actionGameStarted        = "game:started"
	actionGameUpdated        = "game:updated"
	actionGameEnded          = "game:ended"
	actionChatNew            = "chat:new"
	actionPlayerDisconnected = "player:disconnected"
)

func (that *Server) handleConnect(ctx context.Context, msg *Message, conn *connection) error {
	log := that.logger.With("method", "handleConnect")

	var payloadReq Payload
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	var playerID string
	if payloadReq.Player != nil {
		playerID = payloadReq.Player.ID
	}

	player, err := that.uGame.GetOrCreatePlayer(ctx, playerID)
	if err != nil {
		log.Error("failed to get or create player", "error", err)
		return that.sendErrorResponse(conn, msg.Action, "failed to create a new player")
	}

	that.bindConnection(player.ID, conn)

	payloadResp := Payload{Player: player}

	// A reconnecting player gets the current snapshot straight away.
	if player.GameID != "" {
		if gameInstance, stateErr := that.uGame.GameState(ctx, player.ID); stateErr == nil {
			payloadResp.Game = gameInstance
		}
	}

	if err = that.sendMessage(conn, msg.Action, payloadResp); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	log.Info("player connected", "playerID", player.ID)

	return nil
}

func (that *Server) handleCreateGame(ctx context.Context, msg *Message, conn *connection) error {
	log := that.logger.With("method", "handleCreateGame")

	payloadReq, err := that.requirePlayer(msg, conn)
	if err != nil || payloadReq == nil {
		return err
	}

	that.bindConnection(payloadReq.Player.ID, conn)

	gameInstance, err := that.uGame.CreateGame(ctx, payloadReq.Player.ID)
	if err != nil {
		log.Error("failed to create game", "error", err)
		return that.sendErrorResponse(conn, msg.Action, "failed to create a new game")
	}

	payloadResp := Payload{
		Player: gameInstance.Players[payloadReq.Player.ID],
		Game:   gameInstance,
		GameID: gameInstance.ID,
	}

	if err = that.sendMessage(conn, msg.Action, payloadResp); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	log.Info("game created", "gameID", gameInstance.ID, "playerID", payloadReq.Player.ID)

	return nil
}

func (that *Server) handleJoinGame(ctx context.Context, msg *Message, conn *connection) error {
	log := that.logger.With("method", "handleJoinGame")

	payloadReq, err := that.requirePlayer(msg, conn)
	if err != nil || payloadReq == nil {
		return err
	}

	if payloadReq.GameID == "" {
		return that.sendErrorResponse(conn, msg.Action, "game id is required")
	}

	that.bindConnection(payloadReq.Player.ID, conn)

	gameInstance, err := that.uGame.JoinGame(ctx, payloadReq.GameID, payloadReq.Player.ID)
	if err != nil {
		log.Error("failed to join game", "gameID", payloadReq.GameID, "error", err)
		return that.sendErrorResponse(conn, msg.Action, err.Error())
	}

	payloadResp := Payload{
		Player: gameInstance.Players[payloadReq.Player.ID],
		Game:   gameInstance,
		GameID: gameInstance.ID,
	}

	if err = that.sendMessage(conn, msg.Action, payloadResp); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	// Both participants learn the game is on.
	that.broadcastToGame(gameInstance, actionGameStarted, Payload{Game: gameInstance})

	log.Info("player joined game", "gameID", gameInstance.ID, "playerID", payloadReq.Player.ID)

	return nil
}

// handleLeaveGame tears down a not-yet-started game. No acknowledgement is
// sent for this action.
func (that *Server) handleLeaveGame(ctx context.Context, msg *Message, _ *connection) error {
	log := that.logger.With("method", "handleLeaveGame")

	var payloadReq Payload
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payloadReq.Player == nil {
		return nil
	}

	if err := that.uGame.LeaveGame(ctx, payloadReq.Player.ID); err != nil {
		log.Error("failed to leave game", "playerID", payloadReq.Player.ID, "error", err)
	}

	return nil
}

func (that *Server) handlePlacePiece(ctx context.Context, msg *Message, conn *connection) error {
	payloadReq, err := that.requirePlayer(msg, conn)
	if err != nil || payloadReq == nil {
		return err
	}

	if payloadReq.Position == nil {
		return that.sendErrorResponse(conn, msg.Action, "position is required")
	}

	that.bindConnection(payloadReq.Player.ID, conn)

	gameInstance, result, err := that.uGame.PlacePiece(ctx, payloadReq.Player.ID, *payloadReq.Position)

	return that.respondToAction(msg, conn, gameInstance, result, err)
}

func (that *Server) handleMovePiece(ctx context.Context, msg *Message, conn *connection) error {
	payloadReq, err := that.requirePlayer(msg, conn)
	if err != nil || payloadReq == nil {
		return err
	}

	if payloadReq.From == nil || payloadReq.To == nil {
		return that.sendErrorResponse(conn, msg.Action, "from and to positions are required")
	}

	that.bindConnection(payloadReq.Player.ID, conn)

	gameInstance, result, err := that.uGame.MovePiece(ctx, payloadReq.Player.ID, *payloadReq.From, *payloadReq.To)

	return that.respondToAction(msg, conn, gameInstance, result, err)
}

func (that *Server) handleRemovePiece(ctx context.Context, msg *Message, conn *connection) error {
	payloadReq, err := that.requirePlayer(msg, conn)
	if err != nil || payloadReq == nil {
		return err
	}

	if payloadReq.Position == nil {
		return that.sendErrorResponse(conn, msg.Action, "position is required")
	}

	that.bindConnection(payloadReq.Player.ID, conn)

	gameInstance, result, err := that.uGame.RemovePiece(ctx, payloadReq.Player.ID, *payloadReq.Position)

	return that.respondToAction(msg, conn, gameInstance, result, err)
}

// respondToAction finishes the outer protocol for a mutating action: a
// failure is acknowledged to the caller only, a success is acknowledged and
// then broadcast to both participants as either an update or a terminal
// event.
func (that *Server) respondToAction(msg *Message, conn *connection, gameInstance *entity.Game, result *entity.GameResult, err error) error {
	if err != nil {
		return that.sendErrorResponse(conn, msg.Action, err.Error())
	}

	if ackErr := that.sendMessage(conn, msg.Action, Payload{}); ackErr != nil {
		return fmt.Errorf("failed to send response: %w", ackErr)
	}

	if result != nil {
		that.broadcastToGame(gameInstance, actionGameEnded, Payload{Winner: result.Winner, Reason: result.Reason})
		return nil
	}

	that.broadcastToGame(gameInstance, actionGameUpdated, Payload{Game: gameInstance})

	return nil
}

func (that *Server) handleGameState(ctx context.Context, msg *Message, conn *connection) error {
	payloadReq, err := that.requirePlayer(msg, conn)
	if err != nil || payloadReq == nil {
		return err
	}

	that.bindConnection(payloadReq.Player.ID, conn)

	gameInstance, err := that.uGame.GameState(ctx, payloadReq.Player.ID)
	if err != nil {
		return that.sendErrorResponse(conn, msg.Action, err.Error())
	}

	if err = that.sendMessage(conn, msg.Action, Payload{Game: gameInstance}); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	return nil
}

func (that *Server) handleChatMessage(ctx context.Context, msg *Message, conn *connection) error {
	payloadReq, err := that.requirePlayer(msg, conn)
	if err != nil || payloadReq == nil {
		return err
	}

	if payloadReq.Text == "" {
		return that.sendErrorResponse(conn, msg.Action, "text is required")
	}

	that.bindConnection(payloadReq.Player.ID, conn)

	chatMessage, gameInstance, err := that.uGame.SendMessage(ctx, payloadReq.Player.ID, payloadReq.Text)
	if err != nil {
		return that.sendErrorResponse(conn, msg.Action, err.Error())
	}

	if err = that.sendMessage(conn, msg.Action, Payload{}); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	that.broadcastToGame(gameInstance, actionChatNew, Payload{Message: chatMessage})

	return nil
}

// requirePlayer unmarshals the request payload and rejects it when the
// player is missing. A nil payload with nil error means the rejection was
// already acknowledged.
func (that *Server) requirePlayer(msg *Message, conn *connection) (*Payload, error) {
	var payloadReq Payload
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payloadReq.Player == nil || payloadReq.Player.ID == "" {
		return nil, that.sendErrorResponse(conn, msg.Action, "player is required")
	}

	return &payloadReq, nil
}

// broadcastToGame fans an event out to every participant with a live
// connection. Best effort: a missing or failing connection never fails the
// action that triggered the broadcast.
func (that *Server) broadcastToGame(gameInstance *entity.Game, action string, payload Payload) {
	log := that.logger.With("method", "broadcastToGame", "gameID", gameInstance.ID)

	for _, player := range gameInstance.Players {
		conn, ok := that.connectionByPlayerID(player.ID)
		if !ok {
			log.Warn("connection not found for player", "playerID", player.ID)
			continue
		}

		if err := that.sendMessage(conn, action, payload); err != nil {
			log.Error("failed to send game update", "playerID", player.ID, "error", err)
		}
	}
}
