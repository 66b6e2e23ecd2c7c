package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/golang/glog"
	websocket "github.com/gorilla/websocket"

	"github.com/brunopacheco1/gnucobol-debug/api"
)

// WebsocketServer serves the bridge to one UI connection over websockets.
type WebsocketServer struct {
	ListenAddr string
	ListenPort int
	Bridge     *Bridge
}

func (s *WebsocketServer) URL() string {
	return fmt.Sprintf("ws://%s:%d/", s.ListenAddr, s.ListenPort)
}

func (s *WebsocketServer) Run() error {
	http.HandleFunc("/", s.handleSocket)
	glog.Infof("websocket server listening at %s", s.URL())
	return http.ListenAndServe(fmt.Sprintf("%s:%d", s.ListenAddr, s.ListenPort), nil)
}

func (s *WebsocketServer) handleSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Errorf("upgrading connection: %v", err)
		return
	}
	go s.readCommands(conn)
	go s.writeEvents(conn)
}

func (s *WebsocketServer) readCommands(conn *websocket.Conn) {
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			glog.V(1).Infof("command reader closing: %v", err)
			return
		}
		if messageType != websocket.TextMessage {
			glog.Errorf("discarding non-text message type %d", messageType)
			continue
		}

		var command *api.Command
		if err := json.Unmarshal(message, &command); err != nil {
			glog.Errorf("decoding command: %v", err)
			continue
		}
		s.Bridge.Dispatch(command)
	}
}

func (s *WebsocketServer) writeEvents(conn *websocket.Conn) {
	for event := range s.Bridge.debugger.Events {
		payload, err := json.Marshal(event)
		if err != nil {
			glog.Errorf("marshalling event: %v", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			glog.Errorf("writing event: %v", err)
			return
		}
	}
}
