// Package bus is an in-process topic trie used to fan touch reports, pointer
// events and device metadata out to any number of readers.
package bus

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Wildcards accepted in subscription topics. Published topics must be concrete.
const (
	SingleLevel = "+"
	MultiLevel  = "#"
)

// Topic is a sequence of path levels, e.g. {"touch", "panel0", "contacts"}.
type Topic []string

func (t Topic) String() string { return strings.Join(t, "/") }

// Parse splits a slash separated topic.
func Parse(s string) Topic {
	if s == "" {
		return nil
	}
	return Topic(strings.Split(s, "/"))
}

// Match reports whether the concrete topic t is selected by pattern.
func Match(pattern, t Topic) bool {
	for i, p := range pattern {
		if p == MultiLevel {
			return true
		}
		if i >= len(t) {
			return false
		}
		if p != SingleLevel && p != t[i] {
			return false
		}
	}
	return len(pattern) == len(t)
}

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

type node struct {
	children map[string]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(tok string, create bool) *node {
	if c, ok := n.children[tok]; ok || !create {
		return c
	}
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	c := &node{}
	n.children[tok] = c
	return c
}

func (n *node) empty() bool {
	return len(n.subs) == 0 && len(n.children) == 0 && n.retained == nil
}

type Bus struct {
	mu      sync.Mutex
	root    *node
	qLen    int
	replyID atomic.Uint64
	drops   atomic.Uint64
}

// NewBus creates a bus whose subscriptions buffer queueLen messages.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{root: &node{}, qLen: queueLen}
}

// Drops counts messages evicted from full subscriber queues.
func (b *Bus) Drops() uint64 { return b.drops.Load() }

func (b *Bus) NewMessage(t Topic, payload any, retained bool) *Message {
	return &Message{Topic: t, Payload: payload, Retained: retained}
}

func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range sub.topic {
		n = n.child(tok, true)
	}
	n.subs = append(n.subs, sub)

	var path Topic
	b.collectRetained(b.root, path, sub)
}

// collectRetained hands every retained message under n matching sub's
// pattern to sub. Wildcard nodes never hold retained messages.
func (b *Bus) collectRetained(n *node, path Topic, sub *Subscription) {
	if n.retained != nil && Match(sub.topic, path) {
		b.deliver(sub, n.retained)
	}
	for tok, c := range n.children {
		if tok == SingleLevel || tok == MultiLevel {
			continue
		}
		next := append(path[:len(path):len(path)], tok)
		if !prefixCompatible(sub.topic, next) {
			continue
		}
		b.collectRetained(c, next, sub)
	}
}

// prefixCompatible reports whether some extension of prefix could match pattern.
func prefixCompatible(pattern, prefix Topic) bool {
	for i, tok := range prefix {
		if i >= len(pattern) {
			return false
		}
		p := pattern[i]
		if p == MultiLevel {
			return true
		}
		if p != SingleLevel && p != tok {
			return false
		}
	}
	return true
}

// deliver queues msg without blocking, evicting the oldest entry when full.
// Called with b.mu held.
func (b *Bus) deliver(sub *Subscription, msg *Message) {
	select {
	case sub.ch <- msg:
		return
	default:
	}
	select {
	case <-sub.ch:
		b.drops.Add(1)
	default:
	}
	select {
	case sub.ch <- msg:
	default:
		b.drops.Add(1)
	}
}

// Publish delivers msg to all matching subscribers. A retained message with
// a nil payload clears the retained value for its topic.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.match(b.root, msg.Topic, msg)

	if !msg.Retained {
		return
	}
	if msg.Payload == nil {
		b.clearRetained(msg.Topic)
		return
	}
	n := b.root
	for _, tok := range msg.Topic {
		n = n.child(tok, true)
	}
	n.retained = msg
}

func (b *Bus) match(n *node, rest Topic, msg *Message) {
	if h := n.child(MultiLevel, false); h != nil {
		for _, s := range h.subs {
			b.deliver(s, msg)
		}
	}
	if len(rest) == 0 {
		for _, s := range n.subs {
			b.deliver(s, msg)
		}
		return
	}
	if c := n.child(rest[0], false); c != nil {
		b.match(c, rest[1:], msg)
	}
	if rest[0] != SingleLevel {
		if c := n.child(SingleLevel, false); c != nil {
			b.match(c, rest[1:], msg)
		}
	}
}

func (b *Bus) clearRetained(t Topic) {
	stack := []*node{b.root}
	n := b.root
	for _, tok := range t {
		if n = n.child(tok, false); n == nil {
			return
		}
		stack = append(stack, n)
	}
	n.retained = nil
	b.prune(stack, t)
}

// prune removes empty trailing nodes along t. stack[i] is the node at depth i.
func (b *Bus) prune(stack []*node, t Topic) {
	for i := len(t) - 1; i >= 0; i-- {
		if !stack[i+1].empty() {
			return
		}
		delete(stack[i].children, t[i])
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stack := []*node{b.root}
	n := b.root
	for _, tok := range sub.topic {
		if n = n.child(tok, false); n == nil {
			return
		}
		stack = append(stack, n)
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
	b.prune(stack, sub.topic)
}

// Connection groups subscriptions belonging to one component.
type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

func (c *Connection) Subscribe(t Topic) *Subscription {
	sub := &Subscription{
		topic: append(Topic(nil), t...),
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	found := false
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return
	}
	c.bus.unsubscribe(sub)
	close(sub.ch)
}

// Disconnect closes every subscription owned by c.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub)
		close(sub.ch)
	}
}

// Request subscribes to a fresh reply topic, stamps it into msg.ReplyTo and
// publishes msg. The caller owns the returned subscription.
func (c *Connection) Request(msg *Message) *Subscription {
	id := c.bus.replyID.Add(1)
	msg.ReplyTo = Topic{"_reply", c.id, strconv.FormatUint(id, 10)}
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait publishes msg and waits for the first reply or ctx expiry.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case m, ok := <-sub.Channel():
		if !ok {
			return nil, context.Canceled
		}
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reply answers req on its ReplyTo topic. Requests without one are ignored.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if len(req.ReplyTo) == 0 {
		return
	}
	c.Publish(&Message{Topic: req.ReplyTo, Payload: payload, Retained: retained})
}

func (c *Connection) NewMessage(t Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(t, payload, retained)
}
