package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type frame map[string]interface{}

func send(c *websocket.Conn, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

// parse turns one stdin line into a frame:
//
//	start <player> [player...]   start_game at the configured table
//	bots                         start a bot table from the seated players
//	roll <value>                 roll_dice for the configured player
//	leave                        disconnect
func parse(line, player, salon, table string) (frame, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, false
	}
	base := frame{"player_id": player, "salon_id": salon, "table_id": table}

	switch fields[0] {
	case "start":
		base["action"] = "start_game"
		base["players"] = fields[1:]
	case "bots":
		base["action"] = "start_game"
		base["bots"] = true
	case "roll":
		if len(fields) < 2 {
			return nil, false
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, false
		}
		base["action"] = "roll_dice"
		base["roll"] = v
	case "leave":
		base["action"] = "disconnect"
	default:
		return nil, false
	}
	return base, true
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	player := flag.String("player", "1", "player id")
	salon := flag.String("salon", "1", "salon id")
	table := flag.String("table", "1", "table id")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- RECV: %s", message)
		}
	}()

	// Identify before anything else so broadcasts reach this connection.
	if err := send(c, frame{"player_id": *player, "salon_id": *salon, "table_id": *table}); err != nil {
		log.Println("Write error:", err)
		return
	}
	log.Println("Client started. Commands: start <ids...>, bots, roll <1-6>, leave.")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			f, valid := parse(line, *player, *salon, *table)
			if !valid {
				log.Printf("Unrecognised command %q", line)
				continue
			}
			if err := send(c, f); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT: %s", f["action"])
		}
	}
}
