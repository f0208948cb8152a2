package stake

import (
	"strconv"

	"hagglex/native/token"
)

// Event represents a typed state change emitted by the staking module.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Emitter broadcasts events to downstream subscribers (gateway, indexers).
type Emitter interface {
	Emit(*Event)
}

// NoopEmitter satisfies Emitter while discarding all events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(*Event) {}

const (
	EventTypeStaked    = "stake.created"
	EventTypeClaimed   = "stake.claimed"
	EventTypeClosed    = "stake.closed"
	EventTypeDeposited = "stake.deposited"
	EventTypeWithdrawn = "stake.withdrawn"
	EventTypeRewound   = "stake.rewound"
	EventTypePaused    = "stake.paused"
	EventTypeActivated = "stake.activated"
)

func newStakedEvent(p *Position) *Event {
	return &Event{
		Type: EventTypeStaked,
		Attributes: map[string]string{
			"id":        strconv.FormatUint(p.ID, 10),
			"owner":     p.Owner,
			"staked":    p.Staked.String(),
			"rateBps":   strconv.FormatUint(p.RateBps, 10),
			"stakedAt":  strconv.FormatInt(p.StakedAt, 10),
			"expiresAt": strconv.FormatInt(p.ExpiresAt, 10),
		},
	}
}

func newClaimedEvent(p *Position, paid token.Asset) *Event {
	return &Event{
		Type: EventTypeClaimed,
		Attributes: map[string]string{
			"id":         strconv.FormatUint(p.ID, 10),
			"owner":      p.Owner,
			"paid":       paid.String(),
			"totalPaid":  p.InterestPaid.String(),
			"lastPaidAt": strconv.FormatInt(p.LastPaidAt, 10),
		},
	}
}

func newClosedEvent(p *Position) *Event {
	return &Event{
		Type: EventTypeClosed,
		Attributes: map[string]string{
			"id":        strconv.FormatUint(p.ID, 10),
			"owner":     p.Owner,
			"staked":    p.Staked.String(),
			"totalPaid": p.InterestPaid.String(),
		},
	}
}

func newDepositedEvent(owner string, quantity, funds token.Asset) *Event {
	return &Event{
		Type: EventTypeDeposited,
		Attributes: map[string]string{
			"owner":     owner,
			"deposited": quantity.String(),
			"funds":     funds.String(),
		},
	}
}

func newWithdrawnEvent(owner string, quantity token.Asset) *Event {
	return &Event{
		Type: EventTypeWithdrawn,
		Attributes: map[string]string{
			"owner":     owner,
			"withdrawn": quantity.String(),
		},
	}
}

func newRewoundEvent(p *Position, days uint32) *Event {
	return &Event{
		Type: EventTypeRewound,
		Attributes: map[string]string{
			"id":       strconv.FormatUint(p.ID, 10),
			"days":     strconv.FormatUint(uint64(days), 10),
			"stakedAt": strconv.FormatInt(p.StakedAt, 10),
		},
	}
}

func newPauseEvent(active bool) *Event {
	eventType := EventTypePaused
	if active {
		eventType = EventTypeActivated
	}
	return &Event{Type: eventType, Attributes: map[string]string{}}
}
