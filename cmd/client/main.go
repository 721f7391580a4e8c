package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"chatrelay/pkg/protocol"
)

func main() {
	server := flag.String("server", "localhost:8765", "Server address (host:port)")
	flag.Parse()

	wsURL := url.URL{Scheme: "ws", Host: *server, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *server, err)
	}
	defer conn.Close()

	p := tea.NewProgram(newModel(conn, *server), tea.WithAltScreen())

	// Forward server frames into the program until the connection drops.
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				p.Send(connClosedMsg{err: err})
				return
			}
			msg, err := protocol.Decode(raw)
			if err != nil {
				// Skip frames we don't understand; the server is the
				// authority on the protocol.
				continue
			}
			p.Send(serverMsg{payload: msg})
		}
	}()

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}
