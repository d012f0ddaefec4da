// Package gpio shares the go-rpio memory mapping between the components that drive pins.
// rpio.Open/rpio.Close map and unmap global state, so users go through Open/Close here.
package gpio

import (
	"fmt"
	"log"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

var (
	lock  sync.Mutex
	users int
)

func Open() error {
	lock.Lock()
	defer lock.Unlock()

	if users == 0 {
		err := rpio.Open()
		if err != nil {
			return fmt.Errorf("failed opening rpio: %w", err)
		}
		log.Println("rpio opened")
	}
	users++
	return nil
}

func Close() error {
	lock.Lock()
	defer lock.Unlock()

	if users == 0 {
		return nil
	}
	users--
	if users > 0 {
		return nil
	}

	err := rpio.Close()
	if err != nil {
		return fmt.Errorf("failed closing rpio: %w", err)
	}
	log.Println("rpio closed")
	return nil
}
