package solana

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/near/borsh-go"
)

// programDataPrefix marks log lines that carry a Borsh-encoded program event.
const programDataPrefix = "Program data: "

// Event is a decoded program event. Payloads carry only addresses and
// identifiers; handlers re-fetch full account state.
type Event interface {
	// EventName returns the program's name for the event.
	EventName() string
}

// eventDiscriminator returns the 8-byte prefix Anchor derives from the event
// struct name.
func eventDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("event:" + name))
	return sum[:discriminatorLen]
}

// PoolCreatedEvent is emitted when a new pool is initialized.
type PoolCreatedEvent struct {
	Pool     PublicKey
	PoolID   uint64
	PoolName string
}

func (PoolCreatedEvent) EventName() string { return "PoolCreated" }

// BetPlacedEvent is emitted when a bet is first placed.
type BetPlacedEvent struct {
	BetAddress PublicKey
}

func (BetPlacedEvent) EventName() string { return "BetPlaced" }

// BetUpdatedEvent is emitted when an existing bet changes.
type BetUpdatedEvent struct {
	BetAddress PublicKey
}

func (BetUpdatedEvent) EventName() string { return "BetUpdated" }

// BetDelegatedEvent is emitted when a bet is delegated to another wallet.
type BetDelegatedEvent struct {
	BetAddress PublicKey
}

func (BetDelegatedEvent) EventName() string { return "BetDelegated" }

// PoolResolvedEvent is emitted when a pool's outcome is recorded.
type PoolResolvedEvent struct {
	Pool PublicKey
}

func (PoolResolvedEvent) EventName() string { return "PoolResolved" }

// WeightsFinalizedEvent is emitted when a pool's weights are finalized and
// claims open.
type WeightsFinalizedEvent struct {
	Pool PublicKey
}

func (WeightsFinalizedEvent) EventName() string { return "WeightsFinalized" }

// RewardClaimedEvent is emitted when a user claims winnings. Amount is in
// 6-decimal token base units.
type RewardClaimedEvent struct {
	User       PublicKey
	BetAddress PublicKey
	Amount     uint64
}

func (RewardClaimedEvent) EventName() string { return "RewardClaimed" }

// ConfigUpdatedEvent is emitted when protocol parameters change.
type ConfigUpdatedEvent struct{}

func (ConfigUpdatedEvent) EventName() string { return "ConfigUpdated" }

// PauseChangedEvent is emitted when the protocol pause flag flips.
type PauseChangedEvent struct {
	IsPaused bool
}

func (PauseChangedEvent) EventName() string { return "PauseChanged" }

// eventDecoder decodes one event payload.
type eventDecoder struct {
	discriminator []byte
	decode        func(payload []byte) (Event, error)
}

func decoderFor[T Event](name string) eventDecoder {
	return eventDecoder{
		discriminator: eventDiscriminator(name),
		decode: func(payload []byte) (Event, error) {
			var ev T
			if err := borsh.Deserialize(&ev, payload); err != nil {
				return nil, fmt.Errorf("solana: decode %s event: %w", name, err)
			}
			return ev, nil
		},
	}
}

var eventDecoders = []eventDecoder{
	decoderFor[PoolCreatedEvent]("PoolCreated"),
	decoderFor[BetPlacedEvent]("BetPlaced"),
	decoderFor[BetUpdatedEvent]("BetUpdated"),
	decoderFor[BetDelegatedEvent]("BetDelegated"),
	decoderFor[PoolResolvedEvent]("PoolResolved"),
	decoderFor[WeightsFinalizedEvent]("WeightsFinalized"),
	decoderFor[RewardClaimedEvent]("RewardClaimed"),
	decoderFor[ConfigUpdatedEvent]("ConfigUpdated"),
	decoderFor[PauseChangedEvent]("PauseChanged"),
}

// ParseEventLogs scans transaction log lines for program event payloads and
// decodes every recognized event. Unknown discriminators and undecodable
// payloads are skipped: the subscription must keep running even when the
// program emits events this backend does not know about.
func ParseEventLogs(logs []string) []Event {
	var events []Event
	for _, line := range logs {
		payload, ok := strings.CutPrefix(line, programDataPrefix)
		if !ok {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil || len(raw) < discriminatorLen {
			continue
		}
		for _, dec := range eventDecoders {
			if !bytes.Equal(raw[:discriminatorLen], dec.discriminator) {
				continue
			}
			ev, err := dec.decode(raw[discriminatorLen:])
			if err == nil {
				events = append(events, ev)
			}
			break
		}
	}
	return events
}

// EncodeEventLog renders an event as the "Program data:" log line the node
// would emit for it. Used by tests and local tooling.
func EncodeEventLog(ev Event) (string, error) {
	payload, err := borsh.Serialize(ev)
	if err != nil {
		return "", fmt.Errorf("solana: encode %s event: %w", ev.EventName(), err)
	}
	raw := append(eventDiscriminator(ev.EventName()), payload...)
	return programDataPrefix + base64.StdEncoding.EncodeToString(raw), nil
}
