package http

import (
	"encoding/json"
	"strings"

	"github.com/meakaliaG/cocanvas-server/internal/core"
	"github.com/meakaliaG/cocanvas-server/internal/proto"
	"github.com/meakaliaG/cocanvas-server/internal/store"
)

// inboundToCommand decodes a wire envelope into a core command. A protocol
// violation yields a proto error for the sender; a decode failure of the
// envelope itself is returned as err and drops the payload.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.RoomErrorEvent, error) {
	switch inbound.Type {
	case proto.InboundTypeJoinRoom:
		var join proto.JoinRoomData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, nil, err
		}
		if join.RoomCode == "" {
			return nil, protoError(core.ErrCodeBadRequest, "room code is required"), nil
		}
		return &core.Command{
			Kind:     core.CommandJoinRoom,
			Room:     store.NormalizeRoomCode(join.RoomCode),
			Password: join.Password,
		}, nil, nil
	case proto.InboundTypeLeaveRoom:
		var leave proto.LeaveRoomData
		if err := json.Unmarshal(inbound.Data, &leave); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind: core.CommandLeaveRoom,
			Room: store.NormalizeRoomCode(leave.RoomCode),
		}, nil, nil
	case proto.InboundTypeDrawStart:
		var start proto.DrawStartData
		if err := json.Unmarshal(inbound.Data, &start); err != nil {
			return nil, nil, err
		}
		if start.RoomCode == "" {
			return nil, protoError(core.ErrCodeBadRequest, "room code is required"), nil
		}
		return &core.Command{
			Kind: core.CommandDrawStart,
			Room: store.NormalizeRoomCode(start.RoomCode),
			Point: &core.DrawPoint{
				X:         start.X,
				Y:         start.Y,
				Color:     start.Color,
				LineWidth: start.LineWidth,
				Tool:      start.Tool,
			},
		}, nil, nil
	case proto.InboundTypeDrawMove:
		var move proto.DrawMoveData
		if err := json.Unmarshal(inbound.Data, &move); err != nil {
			return nil, nil, err
		}
		if move.RoomCode == "" {
			return nil, protoError(core.ErrCodeBadRequest, "room code is required"), nil
		}
		return &core.Command{
			Kind: core.CommandDrawMove,
			Room: store.NormalizeRoomCode(move.RoomCode),
			Segment: &core.DrawSegment{
				X0:        move.X0,
				Y0:        move.Y0,
				X1:        move.X1,
				Y1:        move.Y1,
				Color:     move.Color,
				LineWidth: move.LineWidth,
				Tool:      move.Tool,
			},
		}, nil, nil
	case proto.InboundTypeDrawEnd:
		var end proto.DrawEndData
		if err := json.Unmarshal(inbound.Data, &end); err != nil {
			return nil, nil, err
		}
		if end.RoomCode == "" {
			return nil, protoError(core.ErrCodeBadRequest, "room code is required"), nil
		}
		return &core.Command{
			Kind: core.CommandDrawEnd,
			Room: store.NormalizeRoomCode(end.RoomCode),
		}, nil, nil
	case proto.InboundTypeClearCanvas:
		var clear proto.ClearCanvasData
		if err := json.Unmarshal(inbound.Data, &clear); err != nil {
			return nil, nil, err
		}
		if clear.RoomCode == "" {
			return nil, protoError(core.ErrCodeBadRequest, "room code is required"), nil
		}
		return &core.Command{
			Kind: core.CommandClearCanvas,
			Room: store.NormalizeRoomCode(clear.RoomCode),
		}, nil, nil
	case proto.InboundTypeChatMessage:
		var chat proto.ChatMessageData
		if err := json.Unmarshal(inbound.Data, &chat); err != nil {
			return nil, nil, err
		}
		if chat.RoomCode == "" {
			return nil, protoError(core.ErrCodeBadRequest, "room code is required"), nil
		}
		return &core.Command{
			Kind: core.CommandChatMessage,
			Room: store.NormalizeRoomCode(chat.RoomCode),
			Text: trimChatText(chat.Text),
		}, nil, nil
	case proto.InboundTypeCursorMove:
		var cursor proto.CursorMoveData
		if err := json.Unmarshal(inbound.Data, &cursor); err != nil {
			return nil, nil, err
		}
		if cursor.RoomCode == "" {
			return nil, protoError(core.ErrCodeBadRequest, "room code is required"), nil
		}
		return &core.Command{
			Kind:   core.CommandCursorMove,
			Room:   store.NormalizeRoomCode(cursor.RoomCode),
			Cursor: &core.CursorPosition{X: cursor.X, Y: cursor.Y},
		}, nil, nil
	default:
		return nil, protoError(core.ErrCodeBadRequest, "unknown message type"), nil
	}
}

// outboundFromEvent encodes a core event into its wire envelope.
func outboundFromEvent(event core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRoomJoined:
		return proto.Outbound{
			Type: proto.OutboundTypeRoomJoined,
			Data: proto.RoomJoinedEvent{
				RoomCode: event.Room,
				Message:  "Successfully joined room",
			},
		}
	case core.EventRoomError:
		if event.Error == nil {
			return proto.Outbound{
				Type: proto.OutboundTypeRoomError,
				Data: proto.RoomErrorEvent{Error: "unknown error", Code: core.ErrCodeInternal},
			}
		}
		return proto.Outbound{
			Type: proto.OutboundTypeRoomError,
			Data: proto.RoomErrorEvent{Error: event.Error.Message, Code: event.Error.Code},
		}
	case core.EventParticipants:
		participants := event.Participants
		if participants == nil {
			participants = []string{}
		}
		return proto.Outbound{
			Type: proto.OutboundTypeParticipants,
			Data: proto.ParticipantsEvent{Participants: participants},
		}
	case core.EventParticipantJoined:
		return proto.Outbound{
			Type: proto.OutboundTypeParticipantJoined,
			Data: proto.ParticipantJoinedEvent{
				Username:         event.User,
				ParticipantCount: event.Count,
			},
		}
	case core.EventParticipantLeft:
		return proto.Outbound{
			Type: proto.OutboundTypeParticipantLeft,
			Data: proto.ParticipantLeftEvent{
				Username:         event.User,
				ParticipantCount: event.Count,
			},
		}
	case core.EventDrawStart:
		data := proto.DrawStartEvent{UserID: event.SenderID}
		if event.Point != nil {
			data.X = event.Point.X
			data.Y = event.Point.Y
			data.Color = event.Point.Color
			data.LineWidth = event.Point.LineWidth
			data.Tool = event.Point.Tool
		}
		return proto.Outbound{Type: proto.OutboundTypeDrawStart, Data: data}
	case core.EventDrawSegment:
		data := proto.DrawDataEvent{UserID: event.SenderID}
		if event.Segment != nil {
			data.X0 = event.Segment.X0
			data.Y0 = event.Segment.Y0
			data.X1 = event.Segment.X1
			data.Y1 = event.Segment.Y1
			data.Color = event.Segment.Color
			data.LineWidth = event.Segment.LineWidth
			data.Tool = event.Segment.Tool
		}
		return proto.Outbound{Type: proto.OutboundTypeDrawData, Data: data}
	case core.EventDrawEnd:
		return proto.Outbound{
			Type: proto.OutboundTypeDrawEnd,
			Data: proto.DrawEndEvent{UserID: event.SenderID},
		}
	case core.EventCanvasCleared:
		return proto.Outbound{
			Type: proto.OutboundTypeCanvasCleared,
			Data: proto.CanvasClearedEvent{ClearedBy: event.User},
		}
	case core.EventChatMessage:
		data := proto.ChatMessageEvent{}
		if event.Chat != nil {
			data.Username = event.Chat.Username
			data.Text = event.Chat.Text
			data.Timestamp = event.Chat.Timestamp
		}
		return proto.Outbound{Type: proto.OutboundTypeChatMessage, Data: data}
	case core.EventCursorPosition:
		data := proto.CursorPositionEvent{UserID: event.SenderID, Username: event.User}
		if event.Cursor != nil {
			data.X = event.Cursor.X
			data.Y = event.Cursor.Y
		}
		return proto.Outbound{Type: proto.OutboundTypeCursorPosition, Data: data}
	default:
		return proto.Outbound{Type: proto.OutboundTypeRoomError,
			Data: proto.RoomErrorEvent{Error: "unknown event", Code: core.ErrCodeInternal}}
	}
}

func protoError(code, msg string) *proto.RoomErrorEvent {
	return &proto.RoomErrorEvent{Error: msg, Code: code}
}

func trimChatText(text string) string {
	return strings.TrimSpace(text)
}
