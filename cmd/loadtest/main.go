package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func main() {
	baseURL := flag.String("base", "http://localhost:5000", "http base url")
	wsURL := flag.String("ws", "ws://localhost:5000/ws", "websocket url")
	pairs := flag.Int("pairs", 50, "number of user pairs") // Start small. The document store rewrites history on every message.
	msgCount := flag.Int("messages", 20, "messages per user")
	flag.Parse()

	log.Printf("🔥 STARTING STRESS TEST: %d Users, %d Messages each...", *pairs*2, *msgCount)
	var wg sync.WaitGroup

	// We will create pairs: User 0 talks to User 1, User 2 talks to User 3...
	for i := 0; i < *pairs; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(*baseURL, *wsURL, pairID, *msgCount)
		}(i)
	}

	wg.Wait()
	log.Println("✅ LOAD TEST COMPLETE")
}

func runPair(baseURL, wsURL string, pairID, msgCount int) {
	userA := fmt.Sprintf("lt-%d-a", pairID)
	userB := fmt.Sprintf("lt-%d-b", pairID)
	pass := "password123"

	// Register (Ignore error, might already exist)
	postJSON(baseURL+"/api/register", map[string]string{"username": userA, "password": pass})
	postJSON(baseURL+"/api/register", map[string]string{"username": userB, "password": pass})

	room := "private_" + userA + "_" + userB

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go spamChat(&wsWg, wsURL, userA, pass, room, msgCount)
	go spamChat(&wsWg, wsURL, userB, pass, room, msgCount)
	wsWg.Wait()
}

func spamChat(wg *sync.WaitGroup, wsURL, user, pass, room string, msgCount int) {
	defer wg.Done()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Printf("❌ WS Connect Fail [%s]: %v", user, err)
		return
	}
	defer conn.Close()

	if err := send(conn, "login", map[string]string{"username": user, "password": pass}); err != nil {
		log.Printf("❌ Login Send Fail [%s]: %v", user, err)
		return
	}
	if err := await(conn, "login_success", "login_error"); err != nil {
		log.Printf("❌ Login Failed [%s]: %v", user, err)
		return
	}
	if err := send(conn, "join_room", map[string]string{"room": room}); err != nil {
		return
	}

	// Drain whatever the server pushes so the hub never sees a full buffer.
	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var env envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			if env.Event == "message" {
				received++
			}
		}
	}()

	for i := 0; i < msgCount; i++ {
		err := send(conn, "message", map[string]string{
			"room": room,
			"msg":  fmt.Sprintf("LoadTest Msg %d from %s", i, user),
		})
		if err != nil {
			log.Printf("❌ Send Fail [%s]: %v", user, err)
			break
		}
		// Small sleep to prevent instant localhost bottleneck (simulate real network)
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(500 * time.Millisecond)
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	<-done
	log.Printf("✅ %s finished sending %d msgs, received %d", user, msgCount, received)
}

func send(conn *websocket.Conn, event string, data interface{}) error {
	return conn.WriteJSON(map[string]interface{}{"event": event, "data": data})
}

// await reads frames until ok or fail arrives.
func await(conn *websocket.Conn, ok, fail string) error {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}
		switch env.Event {
		case ok:
			return nil
		case fail:
			return fmt.Errorf("%s: %s", fail, env.Data)
		}
	}
}

func postJSON(url string, data interface{}) {
	jsonData, _ := json.Marshal(data)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		log.Printf("❌ POST %s: %v", url, err)
		return
	}
	resp.Body.Close()
}
