// Package live pushes freshly written records to the owner's open browser
// sessions. Delivery is best effort: no replay, no acknowledgment.
package live

import (
	"encoding/json"

	"vizintel/api/internal/model"
)

const (
	EventJoin       = "join"
	EventJoined     = "joined"
	EventError      = "error"
	EventDataUpdate = "dataUpdate"
)

// Event is the frame exchanged on the live channel.
type Event struct {
	Name string `json:"event"`
	Room string `json:"room,omitempty"`
	Data any    `json:"data,omitempty"`
}

type RecordUpdate struct {
	UserID   string        `json:"userId"`
	Data     []model.Entry `json:"data"`
	FileName string        `json:"fileName"`
	ID       string        `json:"_id"`
}

func DataUpdate(record model.Record) Event {
	entries := record.Entries
	if entries == nil {
		entries = []model.Entry{}
	}
	return Event{
		Name: EventDataUpdate,
		Data: RecordUpdate{
			UserID:   record.OwnerID,
			Data:     entries,
			FileName: record.FileName,
			ID:       record.ID,
		},
	}
}

func encode(event Event) ([]byte, error) {
	return json.Marshal(event)
}
