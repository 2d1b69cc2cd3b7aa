// Package main connects to the live content feed, prints events and can hold
// many concurrent connections to load test the hub.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"cozytiny/internal/notifications"

	"github.com/gorilla/websocket"
)

// Metrics tracks the run results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	EventsReceived       int64
	Errors               int64
}

var metrics Metrics

func main() {
	host := flag.String("host", "localhost:3000", "API server host")
	secure := flag.Bool("tls", false, "Use wss://")
	clients := flag.Int("clients", 1, "Number of concurrent connections")
	duration := flag.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	quiet := flag.Bool("quiet", false, "Do not print individual events")
	flag.Parse()

	scheme := "ws"
	if *secure {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: *host, Path: "/api/ws/posts"}

	log.Printf("Watching %s with %d client(s)", u.String(), *clients)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	// Only the first client prints, the rest just count.
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(u.String(), i == 0 && !*quiet, stopChan, &wg)
		if *clients > 1 {
			time.Sleep(20 * time.Millisecond)
		}
	}

	var timeout <-chan time.Time
	if *duration > 0 {
		timeout = time.After(*duration)
	}
	select {
	case <-timeout:
		log.Println("Duration reached")
	case <-interrupt:
		log.Println("Interrupted")
	}

	close(stopChan)
	wg.Wait()

	printMetrics()
}

func runClient(target string, verbose bool, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	c, resp, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		if verbose {
			log.Printf("dial failed: %v", err)
		}
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					atomic.AddInt64(&metrics.Errors, 1)
				}
				return
			}
			atomic.AddInt64(&metrics.EventsReceived, 1)
			if verbose {
				printEvent(msg)
			}
		}
	}()

	select {
	case <-stopChan:
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-readDone:
		case <-time.After(time.Second):
		}
	case <-readDone:
	}
}

func printEvent(msg []byte) {
	var ev notifications.ContentEvent
	if err := json.Unmarshal(msg, &ev); err != nil || ev.PostID == 0 {
		log.Printf("<- %s", msg)
		return
	}
	log.Printf("<- %-15s post=%d slug=%s category=%q at=%s",
		ev.Type, ev.PostID, ev.Slug, ev.Category, ev.At.Format(time.RFC3339))
}

func printMetrics() {
	log.Println("Results")
	log.Println("=======")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Events Received: %d", atomic.LoadInt64(&metrics.EventsReceived))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
