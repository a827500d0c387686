package observability

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Fields is the structured payload attached to a log line. Never put
// credentials or password hashes in here.
type Fields map[string]any

type Logger struct {
	base *log.Logger
}

func NewLogger() *Logger {
	return &Logger{base: log.New(os.Stdout, "", 0)}
}

func (l *Logger) Info(message string, fields Fields)  { l.log("info", message, fields) }
func (l *Logger) Warn(message string, fields Fields)  { l.log("warn", message, fields) }
func (l *Logger) Error(message string, fields Fields) { l.log("error", message, fields) }

func (l *Logger) log(level, message string, fields Fields) {
	payload := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level,
		"message":   message,
	}
	for k, v := range fields {
		payload[k] = v
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		l.base.Println(`{"level":"error","message":"failed to encode log"}`)
		return
	}

	l.base.Println(string(encoded))
}
