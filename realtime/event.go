package realtime

import (
	"github.com/invopop/jsonschema"

	"github.com/habiliai/lodgechat/entity"
)

const (
	EventTypeInsert = "INSERT"
	TableMessages   = "messages"
)

// Event is the frame pushed to websocket subscribers for every appended message.
type Event struct {
	Type   string         `json:"type" jsonschema:"enum=INSERT"`
	Table  string         `json:"table" jsonschema:"enum=messages"`
	Record entity.Message `json:"record"`
}

func NewInsertEvent(msg entity.Message) Event {
	return Event{
		Type:   EventTypeInsert,
		Table:  TableMessages,
		Record: msg,
	}
}

func Schema() *jsonschema.Schema {
	return jsonschema.Reflect(&Event{})
}
