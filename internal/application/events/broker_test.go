package events

import (
	"testing"

	"appdeck/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(s *Subscription) []model.Event {
	var out []model.Event
	for {
		select {
		case e, ok := <-s.C:
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestEmitAssignsSequenceAndTime(t *testing.T) {
	b := NewBroker(10)
	b.Emit(model.Event{AppID: "a", Message: "one"})
	b.Emit(model.Event{AppID: "b", Message: "two"})
	b.Emit(model.Event{AppID: "a", Message: "three"})

	h := b.History("a")
	require.Len(t, h, 2)
	assert.Equal(t, uint64(1), h[0].Seq)
	assert.Equal(t, uint64(3), h[1].Seq)
	assert.False(t, h[0].Time.IsZero())
}

func TestHistoryIsBounded(t *testing.T) {
	b := NewBroker(3)
	for i := 0; i < 5; i++ {
		b.Emit(model.Event{AppID: "a"})
	}
	h := b.History("a")
	require.Len(t, h, 3)
	assert.Equal(t, uint64(3), h[0].Seq)
	assert.Equal(t, uint64(5), h[2].Seq)
}

func TestSubscribeReceivesHistoryThenLiveEvents(t *testing.T) {
	b := NewBroker(10)
	b.Emit(model.Event{AppID: "a", Message: "before"})

	s := b.Subscribe("a")
	defer s.Close()
	require.Len(t, s.History, 1)
	assert.Equal(t, "before", s.History[0].Message)

	b.Emit(model.Event{AppID: "b", Message: "other"})
	b.Emit(model.Event{AppID: "a", Message: "after"})

	got := drain(s)
	require.Len(t, got, 1)
	assert.Equal(t, "after", got[0].Message)
}

func TestSubscribeAll(t *testing.T) {
	b := NewBroker(10)
	b.Emit(model.Event{AppID: "a"})
	s := b.Subscribe("")
	defer s.Close()
	assert.Empty(t, s.History)

	b.Emit(model.Event{AppID: "a"})
	b.Emit(model.Event{AppID: "b"})
	assert.Len(t, drain(s), 2)
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	b := NewBroker(10)
	s := b.Subscribe("a")

	for i := 0; i < subscriberBuffer+1; i++ {
		b.Emit(model.Event{AppID: "a"})
	}

	n := 0
	for range s.C {
		n++
	}
	assert.Equal(t, subscriberBuffer, n)
	s.Close()
}

func TestForget(t *testing.T) {
	b := NewBroker(10)
	b.Emit(model.Event{AppID: "a"})
	s := b.Subscribe("a")

	b.Forget("a")
	assert.Empty(t, b.History("a"))
	_, ok := <-s.C
	assert.False(t, ok)
	s.Close()
}
