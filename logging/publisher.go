package logging

import (
	"context"
	"maps"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

type EntityKind string

const (
	EntityKindUnknown   EntityKind = "unknown"
	EntityKindCombatant EntityKind = "combatant"
	EntityKindBot       EntityKind = "bot"
	EntityKindScheduler EntityKind = "scheduler"
	EntityKindMatch     EntityKind = "match"
)

// Event is one structured record routed to every sink. Turn is the match
// turn counter at publish time.
type Event struct {
	Type     EventType      `json:"type"`
	Turn     uint64         `json:"turn"`
	Time     time.Time      `json:"time"`
	Actor    EntityRef      `json:"actor"`
	Targets  []EntityRef    `json:"targets,omitempty"`
	Severity Severity       `json:"severity"`
	Category string         `json:"category,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
	TraceID  string         `json:"traceId,omitempty"`
}

type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

const (
	CategoryCombat    = "combat"
	CategoryTurns     = "turns"
	CategoryStatus    = "status_effects"
	CategoryLifecycle = "lifecycle"
	CategoryNetwork   = "network"
	CategorySystem    = "system"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

func NopPublisher() Publisher {
	return nopPublisher{}
}

// Clone copies the slices and maps an event shares with its publisher so a
// sink may hold on to it.
func (e Event) Clone() Event {
	cloned := e
	if len(e.Targets) > 0 {
		cloned.Targets = append([]EntityRef(nil), e.Targets...)
	}
	if e.Extra != nil {
		cloned.Extra = maps.Clone(e.Extra)
	}
	return cloned
}

// withFields returns a copy of the event carrying fields in Extra. Keys the
// event already sets win.
func (e Event) withFields(fields map[string]any) Event {
	if len(fields) == 0 {
		return e
	}
	e = e.Clone()
	if e.Extra == nil {
		e.Extra = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		if _, exists := e.Extra[k]; !exists {
			e.Extra[k] = v
		}
	}
	return e
}

func (e Event) WithExtra(key string, value any) Event {
	if e.Extra == nil {
		e.Extra = make(map[string]any, 1)
	}
	e.Extra[key] = value
	return e
}

type fieldPublisher struct {
	next   Publisher
	fields map[string]any
}

func (p *fieldPublisher) Publish(ctx context.Context, event Event) {
	if p.next == nil {
		return
	}
	p.next.Publish(ctx, event.withFields(p.fields))
}

// WithFields decorates p so every event carries fields, e.g. the match id.
func WithFields(p Publisher, fields map[string]any) Publisher {
	if p == nil {
		return NopPublisher()
	}
	if len(fields) == 0 {
		return p
	}
	return &fieldPublisher{next: p, fields: maps.Clone(fields)}
}
