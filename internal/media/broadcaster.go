//////////////////////////////////////////////////////////////////////////////
//
// Relay access units to websocket clients.
//
// Every stream opened through a Broadcaster is announced with a text message
// carrying its description, followed by one binary message per buffer. A
// binary message is a fixed header followed by the buffer payload:
//
//     0                   1                   2                   3
//     0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//    +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//    |                             SSRC                              |
//    +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//    |  payload type |     flags     |     track     |   reserved    |
//    +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//    |                    PTS (microseconds, 64 bits)                |
//    |                                                               |
//    +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//    |                    DTS (microseconds, 64 bits)                |
//    |                                                               |
//    +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// Slow clients lose the oldest messages first.
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package media

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lanikai/rtprx/internal/packet"
)

const (
	frameHeaderLength = 24

	// Internal message tags, stripped before sending.
	tagBinary = 0
	tagText   = 1

	writeWait = 5 * time.Second
)

// Broadcaster is both an http.Handler serving websocket clients and a
// SinkFactory feeding them.
type Broadcaster struct {
	// Per-client queue length, in messages.
	Backlog int

	flow     Flow
	upgrader websocket.Upgrader
}

func NewBroadcaster(backlog int) *Broadcaster {
	if backlog <= 0 {
		backlog = 64
	}
	return &Broadcaster{
		Backlog: backlog,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and streams messages until the client goes
// away or the broadcaster is closed.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade: %v", err)
		return
	}
	defer ws.Close()

	messages := b.flow.Subscribe(b.Backlog)
	log.Info("Websocket client %s connected", r.RemoteAddr)

	// Discard anything the client sends; notice when it disconnects.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	defer func() {
		missed, _ := b.flow.Unsubscribe(messages)
		log.Info("Websocket client %s disconnected (%d messages dropped)", r.RemoteAddr, missed)
	}()

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(writeWait))
				return
			}
			typ := websocket.BinaryMessage
			if msg[0] == tagText {
				typ = websocket.TextMessage
			}
			msg = msg[1:]
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(typ, msg); err != nil {
				log.Debug("write to %s: %v", r.RemoteAddr, err)
				return
			}
		case <-gone:
			return
		}
	}
}

// Open is a SinkFactory.
func (b *Broadcaster) Open(info StreamInfo) (Sink, error) {
	b.flow.Write(append([]byte{tagText}, info.String()...))
	return &broadcastSink{b: b, info: info}, nil
}

// Close disconnects every client.
func (b *Broadcaster) Close() error {
	return b.flow.Close()
}

type broadcastSink struct {
	b      *Broadcaster
	info   StreamInfo
	closed bool
}

func (s *broadcastSink) WriteBuffer(buf *Buffer) error {
	if s.closed {
		return errClosed
	}
	// Skip encoding when nobody is listening.
	if s.b.flow.Subscribers() == 0 {
		return nil
	}
	s.b.flow.Write(encodeFrame(s.info, buf))
	return nil
}

func (s *broadcastSink) Close() error {
	s.closed = true
	return nil
}

func encodeFrame(info StreamInfo, buf *Buffer) []byte {
	msg := make([]byte, 1+frameHeaderLength+len(buf.Data))
	w := packet.NewWriter(msg)
	w.WriteUint8(tagBinary)
	w.WriteUint32(info.SSRC)
	w.WriteUint8(info.PayloadType)
	w.WriteUint8(uint8(buf.Flags))
	w.WriteUint8(uint8(buf.Track))
	w.WriteUint8(0)
	w.WriteUint64(uint64(microseconds(buf.PTS)))
	w.WriteUint64(uint64(microseconds(buf.DTS)))
	w.WriteSlice(buf.Data)
	return msg
}

func microseconds(t time.Duration) int64 {
	if t == NoTimestamp {
		return -1
	}
	return t.Microseconds()
}
