// Package pubsub implements the publish/subscribe bus of spec.md §4.6:
// topics with a minimum publish level, subscriptions matched by
// literal name, glob, or regex pattern, future-filters for topics
// created after a wildcard subscription is registered, and a trigger
// tag pending-queue for deferred delivery.
package pubsub

import (
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/scpid/scpid/internal/access"
)

// Message is one published event (spec.md §3).
type Message struct {
	Topic     string
	Parts     map[string]string
	Timestamp int64
	Level     int
}

// Callback receives a dispatched Message. Returning false stops
// further delivery of that message to subsequent subscribers
// (spec.md §4.6's "StopIteration-equivalent").
type Callback func(msg Message, args any) bool

// Subscription is one registered (pattern, level, callback, args)
// record (spec.md §3).
type Subscription struct {
	ID      uint64
	Pattern string
	Regex   bool
	Level   access.Level
	// SessionID ties this subscription to a session for teardown and
	// includeSession filtering; empty for a process-level subscriber.
	SessionID string
	// IncludeSelf: false suppresses delivery of messages published by
	// SessionID itself (spec.md §4.6).
	IncludeSelf bool
	Callback    Callback
	Args        any

	re *regexp.Regexp
}

func (s *Subscription) matches(topic string) bool {
	if s.Regex {
		if s.re == nil {
			s.re = regexp.MustCompile(s.Pattern)
		}
		return s.re.MatchString(topic)
	}
	if !strings.ContainsAny(s.Pattern, "*?[") {
		return strings.EqualFold(s.Pattern, topic)
	}
	ok, _ := path.Match(strings.ToLower(s.Pattern), strings.ToLower(topic))
	return ok
}

func (s *Subscription) isWildcard() bool {
	return s.Regex || strings.ContainsAny(s.Pattern, "*?[")
}

type topic struct {
	name        string
	minLevel    access.Level
	subscribers []*Subscription
}

// Bus owns the topic table, the future-filter list, and the trigger
// tag pending queues.
type Bus struct {
	mu      sync.RWMutex
	topics  map[string]*topic // lowercased name -> topic
	future  []*Subscription   // wildcard subs checked against new topics
	pending map[string][]Message

	nextID uint64
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{
		topics:  map[string]*topic{},
		pending: map[string][]Message{},
	}
}

// AddTopic explicitly creates a topic with the given minimum publish
// level, wiring in any future-filter subscription already registered
// whose pattern matches it.
func (b *Bus) AddTopic(name string, minLevel access.Level) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureTopicLocked(name, minLevel)
}

func (b *Bus) ensureTopicLocked(name string, minLevel access.Level) *topic {
	key := strings.ToLower(name)
	t, ok := b.topics[key]
	if ok {
		return t
	}
	t = &topic{name: name, minLevel: minLevel}
	b.topics[key] = t
	for _, sub := range b.future {
		if sub.matches(name) {
			t.subscribers = append(t.subscribers, sub)
		}
	}
	return t
}

// Subscribe registers sub, attaching it to every existing matching
// topic and, if sub is a wildcard pattern, to the future-filter list
// so topics created later also pick it up.
func (b *Bus) Subscribe(sub *Subscription) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub.ID = b.nextID
	for _, t := range b.topics {
		if sub.matches(t.name) {
			t.subscribers = append(t.subscribers, sub)
		}
	}
	if sub.isWildcard() {
		b.future = append(b.future, sub)
	}
	return sub
}

// Unsubscribe removes sub from every topic and the future-filter
// list.
func (b *Bus) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.topics {
		t.subscribers = removeByID(t.subscribers, id)
	}
	b.future = removeByID(b.future, id)
}

// UnsubscribeSession removes every subscription owned by sessionID,
// called on session teardown (spec.md §4.6).
func (b *Bus) UnsubscribeSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.topics {
		t.subscribers = filterSession(t.subscribers, sessionID)
	}
	b.future = filterSession(b.future, sessionID)
}

func removeByID(subs []*Subscription, id uint64) []*Subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

func filterSession(subs []*Subscription, sessionID string) []*Subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.SessionID != sessionID {
			out = append(out, s)
		}
	}
	return out
}

// Publish builds a Message and dispatches it to matching subscribers
// in subscriber-list order, implicitly creating the topic at Guest
// level if it does not exist and allowImplicit is true. A message
// below the topic's minimum publish level is dropped. If triggerTag is
// non-empty, the message is queued instead of dispatched immediately;
// call PublishPending(triggerTag) to flush it later.
func (b *Bus) Publish(topicName string, parts map[string]string, timestamp int64, level int, allowImplicit bool, triggerTag, fromSession string) {
	b.mu.Lock()
	key := strings.ToLower(topicName)
	t, ok := b.topics[key]
	if !ok {
		if !allowImplicit {
			b.mu.Unlock()
			return
		}
		t = b.ensureTopicLocked(topicName, access.Guest)
	}
	if access.Level(level) < t.minLevel {
		b.mu.Unlock()
		return
	}
	msg := Message{Topic: t.name, Parts: parts, Timestamp: timestamp, Level: level}

	if triggerTag != "" {
		b.pending[triggerTag] = append(b.pending[triggerTag], msg)
		b.mu.Unlock()
		return
	}

	subs := make([]*Subscription, len(t.subscribers))
	copy(subs, t.subscribers)
	b.mu.Unlock()

	dispatch(subs, msg, fromSession)
}

// PublishPending flushes and delivers every message queued under tag,
// in publish order.
func (b *Bus) PublishPending(tag string) {
	b.mu.Lock()
	msgs := b.pending[tag]
	delete(b.pending, tag)
	b.mu.Unlock()

	for _, msg := range msgs {
		b.mu.RLock()
		t, ok := b.topics[strings.ToLower(msg.Topic)]
		var subs []*Subscription
		if ok {
			subs = make([]*Subscription, len(t.subscribers))
			copy(subs, t.subscribers)
		}
		b.mu.RUnlock()
		dispatch(subs, msg, "")
	}
}

func dispatch(subs []*Subscription, msg Message, fromSession string) {
	for _, sub := range subs {
		if !sub.IncludeSelf && fromSession != "" && sub.SessionID == fromSession {
			continue
		}
		if !sub.Callback(msg, sub.Args) {
			return
		}
	}
}

// Topics returns the sorted names of every explicitly or implicitly
// created topic, for enumeration commands.
func (b *Bus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.topics))
	for _, t := range b.topics {
		names = append(names, t.name)
	}
	sort.Strings(names)
	return names
}
