package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json jsoniter.API = jsoniter.ConfigCompatibleWithStandardLibrary

const writeWait = time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 2048,
	CheckOrigin:     checkOrigin,
}

func checkOrigin(r *http.Request) bool {
	return true
}

// Feed pushes JSON snapshots to every connected websocket client.
type Feed struct {
	address string

	lock    sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewFeed(address string) *Feed {
	return &Feed{
		address: address,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %s\n", err.Error())
		return
	}
	log.Printf("telemetry client connected: %s\n", r.RemoteAddr)

	f.lock.Lock()
	f.clients[conn] = struct{}{}
	f.lock.Unlock()

	// clients only listen; a read error means they went away
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
	f.remove(conn)
	log.Printf("telemetry client disconnected: %s\n", r.RemoteAddr)
}

func (f *Feed) remove(conn *websocket.Conn) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if _, ok := f.clients[conn]; ok {
		delete(f.clients, conn)
		conn.Close()
	}
}

func (f *Feed) Clients() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.clients)
}

func (f *Feed) Send(t models.Telemetry) error {
	msg, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed marshalling telemetry: %w", err)
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	for conn := range f.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = conn.WriteMessage(websocket.TextMessage, msg)
		if err != nil {
			log.Printf("dropping telemetry client: %s\n", err.Error())
			delete(f.clients, conn)
			conn.Close()
		}
	}
	return nil
}

// Start serves /ws until ctx is done.
func (f *Feed) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", f)
	server := &http.Server{
		Addr:    f.address,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("starting telemetry feed on %s\n", f.address)
	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("telemetry feed failed: %w", err)
	}
	log.Printf("stopping telemetry feed: %s\n", ctx.Err())
	return ctx.Err()
}
