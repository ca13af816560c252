// Package feed defines the event-source boundary between the strategy
// pipeline and whatever produces market data: a live broker websocket or
// a historical replay reader. Both emit the same Event stream; timing is
// the producer's concern and never leaks into the pipeline.
package feed

import (
	"context"
	"sort"
	"time"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"
)

// Event is one element of the merged market stream: exactly one of Tick
// or Candle is set.
type Event struct {
	Timestamp time.Time
	Tick      *model.Tick
	Candle    *model.Candle
}

// EventSource supplies an ordered event stream. Producers close out when
// the stream is exhausted (replay) and must stop when ctx is cancelled.
type EventSource interface {
	Run(ctx context.Context, out chan<- Event) error
}

// Merge combines tick and candle histories into one timestamp-ordered
// stream. The sort is stable and ticks are placed before candles, so
// ties preserve the producers' relative order.
func Merge(ticks []model.Tick, candles []model.Candle) []Event {
	events := make([]Event, 0, len(ticks)+len(candles))
	for i := range ticks {
		events = append(events, Event{Timestamp: ticks[i].Timestamp, Tick: &ticks[i]})
	}
	for i := range candles {
		events = append(events, Event{Timestamp: candles[i].Timestamp, Candle: &candles[i]})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

// ReplayFeed serves a pre-loaded historical event set. It is the
// deterministic EventSource: no delays, no wall clock.
type ReplayFeed struct {
	events []Event
}

func NewReplayFeed(ticks []model.Tick, candles []model.Candle) *ReplayFeed {
	return &ReplayFeed{events: Merge(ticks, candles)}
}

func (f *ReplayFeed) Events() []Event { return f.events }

func (f *ReplayFeed) Run(ctx context.Context, out chan<- Event) error {
	defer close(out)
	for _, ev := range f.events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- ev:
		}
	}
	return nil
}
