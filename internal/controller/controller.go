package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/selfcinema/server/internal/repository/connection"
	"github.com/selfcinema/server/internal/service/room"
	"github.com/selfcinema/server/pkg/validator"
)

type iRoomService interface {
	SetPlayback(context.Context, *room.SetPlaybackParams) (room.SetPlaybackResponse, error)
	GetPlayback(context.Context, *room.GetPlaybackParams) (room.GetPlaybackResponse, error)
	PostMessage(context.Context, *room.PostMessageParams) (room.PostMessageResponse, error)
	GetMessages(context.Context, *room.GetMessagesParams) (room.GetMessagesResponse, error)
	OnlineMembers(context.Context, *room.OnlineMembersParams) (room.OnlineMembersResponse, error)
}

type iConnRepo interface {
	Add(*connection.Conn, string) error
	RemoveByConn(*connection.Conn) error
	GetConnsByRoomID(string) []*connection.Conn
}

type controller struct {
	roomService iRoomService
	connRepo    iConnRepo
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	logger      *slog.Logger
}

func NewController(roomService iRoomService, connRepo iConnRepo, logger *slog.Logger) *controller {
	return &controller{
		roomService: roomService,
		connRepo:    connRepo,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate: validator.NewValidator(),
		logger:   logger,
	}
}
