package task

import (
	"encoding/json"
	"time"
)

// Task is a record batch published to a stream named after TaskType.
type Task interface {
	TaskType() string
	TaskValue() ([]byte, error)
}

// Meta ties a batch to the crawl run that produced it.
type Meta struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
}

func NewMeta(runID string) Meta {
	return Meta{RunID: runID, CreatedAt: time.Now().UTC()}
}

func DefaultTaskValue(task any) ([]byte, error) {
	return json.Marshal(task)
}

func UnmarshalTask[T Task](task []byte) (T, error) {
	var t T
	err := json.Unmarshal(task, &t)
	return t, err
}
