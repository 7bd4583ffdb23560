package database

import (
	"log"
	"sync"
)

// LogWriter decouples the relay path from the store: AppendMessageLog
// runs on a dedicated goroutine fed by a buffered channel, so fan-out
// completion never waits behind admin queries for a connection.
type LogWriter struct {
	log     *log.Logger
	db      RelayRepository
	entries chan MessageLogEntry
	done    chan struct{}
	once    sync.Once
}

func NewLogWriter(logger *log.Logger, db RelayRepository) *LogWriter {
	return &LogWriter{
		log:     logger,
		db:      db,
		entries: make(chan MessageLogEntry, 512),
		done:    make(chan struct{}),
	}
}

func (w *LogWriter) Run() {
	go func() {
		defer close(w.done)
		for entry := range w.entries {
			if _, err := w.db.AppendMessageLog(entry); err != nil {
				w.log.Println("append message log:", err)
			}
		}
	}()
}

// Append enqueues a log entry without blocking. If the queue is full
// the entry is dropped; the log is telemetry, not the source of truth
// for delivery.
func (w *LogWriter) Append(entry MessageLogEntry) bool {
	select {
	case w.entries <- entry:
		return true
	default:
		w.log.Println("log writer queue full, dropping entry for room", entry.RoomId)
		return false
	}
}

// Stop flushes queued entries and waits for the writer to exit.
func (w *LogWriter) Stop() {
	w.once.Do(func() {
		close(w.entries)
	})
	<-w.done
}
