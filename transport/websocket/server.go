package websocket

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/boardhall/morris-backend/internal/entity"
	"github.com/boardhall/morris-backend/internal/pkg"
)

type gameManager interface {
	GetOrCreatePlayer(ctx context.Context, id string) (*entity.Player, error)

	CreateGame(ctx context.Context, playerID string) (*entity.Game, error)
	JoinGame(ctx context.Context, gameID, playerID string) (*entity.Game, error)
	LeaveGame(ctx context.Context, playerID string) error

	PlacePiece(ctx context.Context, playerID string, position int) (*entity.Game, *entity.GameResult, error)
	MovePiece(ctx context.Context, playerID string, from, to int) (*entity.Game, *entity.GameResult, error)
	RemovePiece(ctx context.Context, playerID string, position int) (*entity.Game, *entity.GameResult, error)

	SendMessage(ctx context.Context, playerID, text string) (*entity.ChatMessage, *entity.Game, error)
	GameState(ctx context.Context, playerID string) (*entity.Game, error)
	GameByPlayerID(ctx context.Context, playerID string) (*entity.Game, error)
}

// connection wraps one hijacked client socket. The mutex serializes writes:
// acknowledgements come from this connection's read loop while broadcasts
// arrive from the opponent's.
type connection struct {
	mu    sync.Mutex
	bufrw *bufio.ReadWriter
}

type Server struct {
	logger *slog.Logger
	uGame  gameManager

	handlers map[string]func(ctx context.Context, message *Message, conn *connection) error

	connectionsMutex sync.RWMutex
	connections      map[string]*connection
}

func New(logger *slog.Logger, uGame gameManager) *Server {
	server := &Server{
		logger: logger,
		uGame:  uGame,

		handlers:    make(map[string]func(context.Context, *Message, *connection) error),
		connections: make(map[string]*connection),
	}

	server.handlers["connect"] = server.handleConnect
	server.handlers["game:create"] = server.handleCreateGame
	server.handlers["game:join"] = server.handleJoinGame
	server.handlers["game:leave"] = server.handleLeaveGame
	server.handlers["game:place"] = server.handlePlacePiece
	server.handlers["game:move"] = server.handleMovePiece
	server.handlers["game:remove"] = server.handleRemovePiece
	server.handlers["game:state"] = server.handleGameState
	server.handlers["chat:message"] = server.handleChatMessage

	return server
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection to WebSocket.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeConnection")

	if req.Header.Get("Upgrade") != "websocket" {
		http.Error(writer, "not a websocket upgrade", http.StatusBadRequest)
		return
	}

	that.setSessionCookie(writer, req)

	key := req.Header.Get("Sec-WebSocket-Key")
	acceptKey := pkg.GenerateAcceptKey(key)

	writer.Header().Set("Upgrade", "websocket")
	writer.Header().Set("Connection", "Upgrade")
	writer.Header().Set("Sec-WebSocket-Accept", acceptKey)
	writer.WriteHeader(http.StatusSwitchingProtocols)

	hijacker, ok := writer.(http.Hijacker)
	if !ok {
		log.Error("web server does not support hijacking", "error", http.StatusText(http.StatusInternalServerError))
		return
	}

	rawConn, bufrw, err := hijacker.Hijack()
	if err != nil {
		log.Error("failed to hijack connection", "error", err)
		return
	}

	defer rawConn.Close()

	log.Info("WebSocket connection established")

	conn := &connection{bufrw: bufrw}

	if err = that.handleMessages(ctx, conn); err != nil && !errors.Is(err, io.EOF) {
		log.Error("error handling messages", "error", err)
	}

	that.handleDisconnect(ctx, conn)
}

// handleMessages - processes messages from the client until the socket
// closes or the context is canceled.
func (that *Server) handleMessages(ctx context.Context, conn *connection) error {
	log := that.logger.With("method", "handleMessages")

	for {
		if ctx.Err() != nil {
			return nil
		}

		reqBody, err := readRequest(conn.bufrw)
		if err != nil {
			return fmt.Errorf("error reading message: %w", err)
		}

		var message Message
		if err = json.Unmarshal(reqBody, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Error("unknown action", "action", message.Action)
			continue
		}

		if err = handler(ctx, &message, conn); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

// setSessionCookie - set user session.
func (that *Server) setSessionCookie(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "setSessionCookie")

	cookie, err := req.Cookie("user_session")
	if err != nil {
		cookie = &http.Cookie{
			Name:    "user_session",
			Value:   pkg.GenerateNewSessionID(),
			Expires: time.Now().Add(24 * time.Hour),
			Path:    "/ws",
		}
		http.SetCookie(writer, cookie)
		log.Info("session cookie not found, new one created", "cookie", cookie.Value)
		return
	}

	log.Info("session cookie found", "cookie", cookie.Value)
}

// bindConnection remembers which socket speaks for a player so broadcasts
// can reach both participants of a game.
func (that *Server) bindConnection(playerID string, conn *connection) {
	that.connectionsMutex.Lock()
	that.connections[playerID] = conn
	that.connectionsMutex.Unlock()
}

func (that *Server) connectionByPlayerID(playerID string) (*connection, bool) {
	that.connectionsMutex.RLock()
	defer that.connectionsMutex.RUnlock()

	conn, ok := that.connections[playerID]

	return conn, ok
}

// handleDisconnect deregisters the connection and tells the remaining
// participant. The game itself stays alive; a drop is a notification,
// not a termination.
func (that *Server) handleDisconnect(ctx context.Context, conn *connection) {
	log := that.logger.With("method", "handleDisconnect")

	that.connectionsMutex.Lock()
	var disconnectedPlayerID string
	for playerID, registered := range that.connections {
		if registered == conn {
			disconnectedPlayerID = playerID
			break
		}
	}

	if disconnectedPlayerID == "" {
		that.connectionsMutex.Unlock()
		return
	}

	delete(that.connections, disconnectedPlayerID)
	that.connectionsMutex.Unlock()

	log.Info("player disconnected", "playerID", disconnectedPlayerID)

	gameInstance, err := that.uGame.GameByPlayerID(ctx, disconnectedPlayerID)
	if err != nil {
		return
	}

	payload := Payload{Player: &entity.Player{ID: disconnectedPlayerID}}

	for _, player := range gameInstance.Players {
		if player.ID == disconnectedPlayerID {
			continue
		}

		opponentConn, ok := that.connectionByPlayerID(player.ID)
		if !ok {
			continue
		}

		if err = that.sendMessage(opponentConn, actionPlayerDisconnected, payload); err != nil {
			log.Error("failed to send disconnect notice", "playerID", player.ID, "error", err)
		}
	}
}
