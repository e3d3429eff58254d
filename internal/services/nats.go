package services

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

const SubjectUploadCompleted = "uploads.completed"

// ConnectNATS initializes the NATS connection with endless reconnects.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	log.Println("Connected to NATS at", url)
	return nc, nil
}

// UploadCompletedEvent is published after every successful upload.
type UploadCompletedEvent struct {
	UserID      int64     `json:"user_id"`
	ObjectName  string    `json:"object_name"`
	FileName    string    `json:"file_name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	UploadType  string    `json:"upload_type"`
	CompletedAt time.Time `json:"completed_at"`
}

// EventPublisher publishes bot events. A nil connection turns publishing
// into a no-op so the bot keeps working when NATS is down.
type EventPublisher struct {
	nc *nats.Conn
}

func NewEventPublisher(nc *nats.Conn) *EventPublisher {
	return &EventPublisher{nc: nc}
}

func (p *EventPublisher) PublishUploadCompleted(evt UploadCompletedEvent) error {
	if p == nil || p.nc == nil || !p.nc.IsConnected() {
		return nil
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.nc.Publish(SubjectUploadCompleted, data)
}
