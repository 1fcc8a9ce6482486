package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tasksync/internal/auth"
	"tasksync/internal/realtime"
	"tasksync/internal/services"
)

// The credential cookie forwarded by the browser during the websocket
// handshake.
const accessTokenCookie = "access_token"

// Inbound event names.
const (
	eventCreateTask = "create_task"
	eventUpdateTask = "update_task"
	eventDeleteTask = "delete_task"
)

type Handler interface {
	HandleSocket(c *gin.Context)
}

type handlerImpl struct {
	logger     zerolog.Logger
	upgrader   websocket.Upgrader
	verifier   auth.Verifier
	registry   realtime.Registry
	dispatcher *realtime.Dispatcher
	tasks      services.TaskService
	sendBuffer int
}

func New(
	logger zerolog.Logger,
	verifier auth.Verifier,
	registry realtime.Registry,
	dispatcher *realtime.Dispatcher,
	taskService services.TaskService,
	readBufferSize int,
	writeBufferSize int,
	sendBuffer int,
) Handler {
	return &handlerImpl{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
			// The credential cookie, not the origin, is what gates
			// admission.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		verifier:   verifier,
		registry:   registry,
		dispatcher: dispatcher,
		tasks:      taskService,
		sendBuffer: sendBuffer,
	}
}

// HandleSocket upgrades the request, authenticates the connection from
// the handshake cookie and, on success, admits it to its owner's group
// and serves mutation events until disconnect. The handler blocks for
// the whole connection lifetime.
func (h *handlerImpl) HandleSocket(c *gin.Context) {
	token, _ := c.Cookie(accessTokenCookie)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to upgrade connection")
		return
	}

	userID, err := h.verifier.Verify(token)
	if err != nil {
		// One unauthorized notification, then the connection dies.
		// No session is ever registered for it.
		_ = conn.WriteJSON(realtime.Event{Event: realtime.EventUnauthorized})
		_ = conn.Close()
		return
	}

	client := newClient(h.logger, conn, userID, h.sendBuffer)
	go client.writePump()

	h.registry.Admit(userID, client)
	defer func() {
		h.registry.Remove(client)
		client.Close()
	}()

	// Fresh connections immediately receive their current view.
	h.sendTaskView(client)

	h.readPump(client)
}

func (h *handlerImpl) readPump(client *client) {
	conn := client.conn
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			client.logger.Debug().
				Err(err).
				Msg("connection closed")
			return
		}
		h.dispatchEvent(client, data)
	}
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (h *handlerImpl) dispatchEvent(client *client, data []byte) {
	var env envelope
	err := json.Unmarshal(data, &env)
	if err != nil {
		client.logger.Warn().
			Err(err).
			Msg("failed to decode event envelope")
		_ = client.Send(realtime.NewErrorEvent("malformed event"))
		return
	}

	// A disconnect must not cancel a store mutation already in
	// flight, so event handling never inherits the request context.
	ctx := context.Background()

	switch env.Event {
	case eventCreateTask:
		h.handleCreateTask(ctx, client, env.Data)
	case eventUpdateTask:
		h.handleUpdateTask(ctx, client, env.Data)
	case eventDeleteTask:
		h.handleDeleteTask(ctx, client, env.Data)
	default:
		client.logger.Warn().
			Str("event", env.Event).
			Msg("unknown event")
		_ = client.Send(realtime.NewErrorEvent("unknown event: " + env.Event))
	}
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	DueDate     string `json:"dueDate"`
}

func (h *handlerImpl) handleCreateTask(ctx context.Context, client *client, data []byte) {
	var req createTaskRequest
	err := json.Unmarshal(data, &req)
	if err != nil {
		_ = client.Send(realtime.NewErrorEvent("malformed create_task payload"))
		return
	}

	_, err = h.tasks.CreateTask(ctx, client.userID, services.CreateTaskParams{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	if err != nil {
		_ = client.Send(realtime.NewErrorEvent(err.Error()))
		return
	}

	h.dispatcher.Broadcast(ctx, client.userID)
}

type updateTaskRequest struct {
	ID          string  `json:"id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	DueDate     *string `json:"dueDate"`
}

func (h *handlerImpl) handleUpdateTask(ctx context.Context, client *client, data []byte) {
	var req updateTaskRequest
	err := json.Unmarshal(data, &req)
	if err != nil || req.ID == "" {
		_ = client.Send(realtime.NewErrorEvent("malformed update_task payload"))
		return
	}

	_, err = h.tasks.PatchTask(ctx, services.PatchTaskParams{
		ID:          req.ID,
		UserID:      client.userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	if err != nil {
		_ = client.Send(realtime.NewErrorEvent(err.Error()))
		return
	}

	h.dispatcher.Broadcast(ctx, client.userID)
}

type deleteTaskRequest struct {
	ID string `json:"id"`
}

func (h *handlerImpl) handleDeleteTask(ctx context.Context, client *client, data []byte) {
	var req deleteTaskRequest
	err := json.Unmarshal(data, &req)
	if err != nil || req.ID == "" {
		_ = client.Send(realtime.NewErrorEvent("malformed delete_task payload"))
		return
	}

	err = h.tasks.DeleteTask(ctx, services.DeleteTaskParams{
		ID:     req.ID,
		UserID: client.userID,
	})
	if err != nil {
		_ = client.Send(realtime.NewErrorEvent(err.Error()))
		return
	}

	h.dispatcher.Broadcast(ctx, client.userID)
}

func (h *handlerImpl) sendTaskView(client *client) {
	tasks, err := h.tasks.TasksByUserID(context.Background(), client.userID)
	if err != nil {
		client.logger.Error().
			Err(err).
			Msg("failed to load initial task view")
		_ = client.Send(realtime.NewErrorEvent("failed to load tasks"))
		return
	}
	_ = client.Send(realtime.Event{
		Event: realtime.EventTasksUpdated,
		Data:  tasks,
	})
}
