// Package events publishes room lifecycle notifications for operators.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"snackrun/internal/logging"
)

// Kind names a room lifecycle transition.
type Kind string

const (
	RoomCreated Kind = "created"
	RoomJoined  Kind = "joined"
	RoomClosed  Kind = "closed"
)

// SubjectPrefix is prepended to the kind to build the NATS subject.
const SubjectPrefix = "snackrun.rooms."

type Event struct {
	ID   string    `json:"id"`
	Kind Kind      `json:"kind"`
	Code string    `json:"code"`
	At   time.Time `json:"at"`
}

func NewEvent(kind Kind, code string) Event {
	return Event{ID: uuid.NewString(), Kind: kind, Code: code, At: time.Now().UTC()}
}

// Publisher must not block the caller for long; the relay calls it inline.
type Publisher interface {
	Publish(e Event)
	Close()
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}
func (Nop) Close()        {}

// NATSPublisher sends events as JSON on SubjectPrefix+kind.
type NATSPublisher struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// ConnectNATS dials the NATS server at url.
func ConnectNATS(url string) (*NATSPublisher, error) {
	log := logging.Component("events")
	nc, err := nats.Connect(url,
		nats.Name("snackrun-relay"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc, log: log}, nil
}

func (p *NATSPublisher) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		p.log.Error().Err(err).Msg("encoding event")
		return
	}
	if err := p.conn.Publish(SubjectPrefix+string(e.Kind), data); err != nil {
		p.log.Warn().Err(err).Str("kind", string(e.Kind)).Str("code", e.Code).Msg("publish failed")
	}
}

// Healthy reports an error unless the connection is up. Used by the health aggregator.
func (p *NATSPublisher) Healthy() error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats status: %s", p.conn.Status())
	}
	return nil
}

func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
