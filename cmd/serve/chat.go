package serve

import (
	"fmt"
	cmdUtil "github.com/ValentinKolb/dNet/cmd/util"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/serializer"
	"github.com/ValentinKolb/dNet/rpc/server"
)

// chatRoom implements the demo protocol on top of a server:
// ping is answered with pong, chat messages are broadcast to everyone with the sender address
// as From, and joins and leaves are announced to all connections.
type chatRoom struct {
	server.NopListener
	serializer serializer.IMessageSerializer
	server     *server.Server
}

func newChatRoom(s serializer.IMessageSerializer) *chatRoom {
	return &chatRoom{serializer: s}
}

// attach registers the room as listener of s
func (r *chatRoom) attach(s *server.Server) {
	r.server = s
	s.RegisterListener(r)
}

// handle is the frame handler of the server
func (r *chatRoom) handle(conn *server.Connection, payload []byte) {
	var msg common.Message
	if err := r.serializer.Deserialize(payload, &msg); err != nil {
		r.reply(conn, common.NewErrorMessage(err))
		return
	}

	switch msg.MsgType {
	case common.MsgTPing:
		r.reply(conn, common.NewPongMessage(&msg))
	case common.MsgTChat:
		r.broadcast(common.NewChatMessage(conn.Address(), msg.Body))
	default:
		r.reply(conn, common.NewErrorMessage(fmt.Errorf("unsupported message type %s", msg.MsgType)))
	}
}

func (r *chatRoom) OnAccept(conn *server.Connection) {
	r.broadcast(common.NewJoinMessage(conn.Address()))
}

func (r *chatRoom) OnConnectionCloseEnd(conn *server.Connection) {
	r.broadcast(common.NewLeaveMessage(conn.Address()))
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (r *chatRoom) reply(conn *server.Connection, msg *common.Message) {
	b, err := r.serializer.Serialize(*msg)
	if err != nil {
		cmdUtil.Logger.Warningf("failed to serialize %s message: %v", msg.MsgType, err)
		return
	}
	if err = conn.Send(b); err != nil {
		cmdUtil.Logger.Debugf("failed to reply to %s: %v", conn.Address(), err)
	}
}

func (r *chatRoom) broadcast(msg *common.Message) {
	if r.server == nil {
		return
	}
	b, err := r.serializer.Serialize(*msg)
	if err != nil {
		cmdUtil.Logger.Warningf("failed to serialize %s message: %v", msg.MsgType, err)
		return
	}
	if err = r.server.Broadcast(b); err != nil {
		cmdUtil.Logger.Debugf("failed to broadcast %s message: %v", msg.MsgType, err)
	}
}
