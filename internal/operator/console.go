package operator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Speshl/gorrc_bot/internal/config"
	"github.com/Speshl/gorrc_bot/internal/models"
	"go.bug.st/serial"
)

const (
	prompt          = "$ "
	readTimeout     = 100 * time.Millisecond
	consoleReadSize = 64
)

// Console is the line based operator interface on a serial port, or stdin/stdout when no
// port is configured.
type Console struct {
	cfg       config.ConsoleConfig
	processor *Processor

	reader io.Reader
	writer io.Writer
	closer io.Closer

	writeLock sync.Mutex
	line      *LineBuffer
	lastCR    bool
}

func NewConsole(cfg config.ConsoleConfig, processor *Processor) *Console {
	return &Console{
		cfg:       cfg,
		processor: processor,
		line:      NewLineBuffer(),
	}
}

// NewConsoleWithIO builds a console over an existing reader and writer.
func NewConsoleWithIO(processor *Processor, reader io.Reader, writer io.Writer) *Console {
	return &Console{
		processor: processor,
		reader:    reader,
		writer:    writer,
		line:      NewLineBuffer(),
	}
}

func (c *Console) Init() error {
	if c.reader != nil {
		return nil
	}

	if c.cfg.Port == "" {
		log.Println("console using stdin/stdout")
		c.reader = os.Stdin
		c.writer = os.Stdout
		return nil
	}

	port, err := serial.Open(c.cfg.Port, &serial.Mode{
		BaudRate: c.cfg.BaudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("failed opening console port %s: %w", c.cfg.Port, err)
	}

	err = port.SetReadTimeout(readTimeout)
	if err != nil {
		port.Close()
		return fmt.Errorf("failed setting console read timeout: %w", err)
	}

	log.Printf("console listening on %s at %d baud\n", c.cfg.Port, c.cfg.BaudRate)
	c.reader = port
	c.writer = port
	c.closer = port
	return nil
}

func (c *Console) Stop() error {
	if c.closer == nil {
		return nil
	}
	log.Println("stopping console")
	return c.closer.Close()
}

func (c *Console) Start(ctx context.Context) error {
	log.Println("starting console")
	defer c.Stop()

	chunks := make(chan []byte)
	readErrs := make(chan error, 1)
	go func() {
		buf := make([]byte, consoleReadSize)
		for {
			n, err := c.reader.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErrs <- err
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.write(prompt)
	for {
		select {
		case <-ctx.Done():
			log.Printf("stopping console: %s\n", ctx.Err().Error())
			return ctx.Err()
		case err := <-readErrs:
			if errors.Is(err, io.EOF) {
				log.Println("console input closed")
				<-ctx.Done()
				return ctx.Err()
			}
			return fmt.Errorf("failed reading console: %w", err)
		case chunk := <-chunks:
			for _, b := range chunk {
				c.handleByte(b)
			}
		}
	}
}

func (c *Console) handleByte(b byte) {
	// terminals sending \r\n end one line, not two
	if b == '\n' && c.lastCR {
		c.lastCR = false
		return
	}
	c.lastCR = b == '\r'

	line, done, err := c.line.Feed(b)
	if !done {
		if b == '\b' || b == 0x7f {
			c.write("\r" + prompt + c.line.String() + " \b")
		} else {
			c.write(string(b))
		}
		return
	}

	c.write("\r\n")
	if err == nil && strings.TrimSpace(line) == "" {
		c.write(prompt)
		return
	}
	if err == nil {
		_, err = c.processor.SubmitLine(line, "console", c.reply)
	}
	if err != nil {
		if errors.Is(err, ErrQueueFull) {
			c.write("Command queue full!\r\n")
		} else {
			c.write(ParseErrorLine(err) + "\r\n")
		}
		c.write(prompt)
	}
}

func (c *Console) reply(result models.CommandResult) {
	var sb strings.Builder
	for _, line := range result.Lines {
		sb.WriteString("\r")
		sb.WriteString(line)
		sb.WriteString("\r\n")
	}
	sb.WriteString(prompt)
	c.write(sb.String())
}

func (c *Console) write(text string) {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	_, err := io.WriteString(c.writer, text)
	if err != nil {
		log.Printf("failed writing console: %s\n", err.Error())
	}
}
