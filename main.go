package main

import (
	"fmt"
	"log"

	"github.com/Speshl/gorrc_bot/internal/app"
	"github.com/Speshl/gorrc_bot/internal/config"
	socketio "github.com/googollee/go-socket.io"
)

func main() {
	cfg := config.GetConfig()

	logFile := app.SetupLogging(cfg.LogCfg)
	defer logFile.Close()

	var client *socketio.Client
	if cfg.ServerCfg.Server != "" {
		socketURI := fmt.Sprintf("http://%s", cfg.ServerCfg.Server)
		var err error
		client, err = socketio.NewClient(socketURI, nil)
		if err != nil {
			log.Printf("error creating client, running standalone - %s\n", err.Error())
			client = nil
		}
	}

	robot := app.NewApp(cfg, client)

	err := robot.Start()
	if err != nil {
		log.Printf("robot shutdown with error: %s", err.Error())
	} else {
		log.Println("robot shutdown successfully")
	}
}
