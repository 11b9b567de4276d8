// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

package relay

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakya-app/sakya/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size accepted from a peer. Anything larger must arrive
	// as fragments.
	maxMessageSize = 2 * protocol.FragmentThreshold

	// Outbound buffer depth per connection. A full buffer drops the oldest
	// queued frame; slow readers recover missed updates through sync_request.
	sendBuffer = 256
)

// client is one live relay connection and its protocol state. All state
// transitions happen on the readPump goroutine; only the send channel is
// touched concurrently.
type client struct {
	relay *Relay
	conn  *websocket.Conn

	// send is the buffered channel of outbound encoded frames.
	send chan []byte

	reasm *protocol.Reassembler

	authenticated bool
	accountID     string
	deviceID      string

	// joined maps project id to the room this connection is a member of.
	joined map[string]*Room
}

func newClient(r *Relay, conn *websocket.Conn) *client {
	return &client{
		relay:  r,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		reasm:  protocol.NewReassembler(),
		joined: make(map[string]*Room),
	}
}

// enqueue queues an encoded frame for delivery. When the buffer is full
// the oldest queued frame is dropped to make room, so a stalled reader
// never blocks the rest of its rooms.
func (c *client) enqueue(data []byte) {
	for {
		select {
		case c.send <- data:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

// sendMessage encodes and queues a protocol message, splitting it into
// fragments when it exceeds the fragmentation threshold.
func (c *client) sendMessage(m protocol.Message) {
	encoded, err := protocol.Encode(m)
	if err != nil {
		c.relay.logger.Err(err).Str("type", string(m.MessageType())).Msg("message encode failed")
		return
	}

	if !protocol.NeedsFragmentation(encoded) {
		c.enqueue(encoded)
		return
	}

	for _, frag := range protocol.Split(encoded) {
		fragEncoded, err := protocol.Encode(frag)
		if err != nil {
			c.relay.logger.Err(err).Msg("fragment encode failed")
			return
		}
		c.enqueue(fragEncoded)
	}
}

func (c *client) sendError(code, message string) {
	c.sendMessage(&protocol.ErrorMessage{Code: code, Message: message})
}

// readPump pumps frames from the websocket into the protocol handler.
func (c *client) readPump() {
	defer func() {
		c.leaveAll()
		close(c.send)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.relay.logger.Err(err).Str("device_id", c.deviceID).Msg("websocket read failed")
			}
			return
		}
		c.handleFrame(data)
	}
}

// writePump pumps queued frames to the websocket and keeps the connection
// alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// leaveAll removes the connection from every room it joined.
func (c *client) leaveAll() {
	for projectID, room := range c.joined {
		room.leave(c)
		delete(c.joined, projectID)
	}
}
