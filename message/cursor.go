package message

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
)

// Cursor is the position of a message in thread order. Listing from a cursor
// returns the messages strictly after it.
type Cursor struct {
	CreatedAt time.Time
	ID        uint
}

func CursorOf(msg *entity.Message) Cursor {
	return Cursor{
		CreatedAt: msg.CreatedAt.UTC(),
		ID:        msg.ID,
	}
}

func (c Cursor) String() string {
	return fmt.Sprintf("%d:%d", c.CreatedAt.UnixMicro(), c.ID)
}

func ParseCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}

	micros, id, ok := strings.Cut(s, ":")
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "malformed cursor %q", s)
	}
	at, err := strconv.ParseInt(micros, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "malformed cursor %q", s)
	}
	n, err := strconv.ParseUint(id, 10, 0)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "malformed cursor %q", s)
	}

	return &Cursor{
		CreatedAt: time.UnixMicro(at).UTC(),
		ID:        uint(n),
	}, nil
}
