package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	smqcodec "github.com/sptk/smq/codec/smq"
	"github.com/sptk/smq/config"
	"github.com/sptk/smq/framer"
	"github.com/sptk/smq/hook"
	"github.com/sptk/smq/network"
	"github.com/sptk/smq/persist"
	"github.com/sptk/smq/pkg/logger"
	"github.com/sptk/smq/qos"
	"github.com/sptk/smq/session"
	"github.com/sptk/smq/topic"
	"github.com/sptk/smq/types/message"
)

// retainedListName maps a queue destination to the persistent list
// name holding its retained, as-yet-undelivered messages.
func retainedListName(destination string) string {
	return "retained:" + destination
}

// deliveryTask is one unit of send-side work: deliver payload to conn
// for destination, tracking the ack if qos calls for it.
type deliveryTask struct {
	conn        *Connection
	destination string
	kind        topic.Kind
	qos         byte
	msg         *message.Message
}

// Broker wires the Transport, Framer, SubscriptionTable, QoS tracker,
// session registry, and PersistentStore into the single delivery
// pipeline described in spec §4.5. Grounded on the teacher's listener
// + pool wiring, generalized from a raw byte relay into
// protocol-framed pub/sub fan-out.
type Broker struct {
	cfg      *config.Config
	protocol framer.Protocol

	table    *topic.Table
	registry *Registry
	hooks    *hook.Manager
	acks     *qos.AckTracker
	sessions *session.Manager
	store    *persist.Store
	metrics  *Metrics
	log      *logger.SlogLogger

	listener *network.Listener
	pool     *network.Pool

	tasks   chan deliveryTask
	workers int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	closed atomic.Bool
}

// Option configures optional Broker dependencies that have no sane
// zero value wiring (an auth hook, a session manager, a durable
// store).
type Option func(*Broker)

func WithHook(h hook.Hook) Option {
	return func(b *Broker) { _ = b.hooks.Add(h) }
}

func WithSessions(m *session.Manager) Option {
	return func(b *Broker) { b.sessions = m }
}

func WithStore(s *persist.Store) Option {
	return func(b *Broker) { b.store = s }
}

func WithLogger(l *logger.SlogLogger) Option {
	return func(b *Broker) { b.log = l }
}

// New builds a Broker from cfg but does not start listening; call
// Start to do that.
func New(cfg *config.Config, opts ...Option) (*Broker, error) {
	proto := framer.Protocol(cfg.Protocol)

	pool, err := network.NewPool(network.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("broker: new pool: %w", err)
	}

	listenerCfg := network.DefaultListenerConfig(fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port))
	listener, err := network.NewListener(listenerCfg, pool)
	if err != nil {
		return nil, fmt.Errorf("broker: new listener: %w", err)
	}

	b := &Broker{
		cfg:      cfg,
		protocol: proto,
		table:    topic.NewTable(),
		registry: NewRegistry(),
		hooks:    hook.NewManager(),
		metrics:  NewMetrics(),
		log:      logger.NewSlogLogger(0, nil),
		listener: listener,
		pool:     pool,
		workers:  int(cfg.Delivery.Workers),
		stopCh:   make(chan struct{}),
	}
	if b.workers <= 0 {
		b.workers = 8
	}
	b.tasks = make(chan deliveryTask, int(cfg.Delivery.QueueWatermark))

	for _, opt := range opts {
		opt(b)
	}

	qosCfg := &qos.Config{
		AckTimeout:    time.Duration(cfg.Delivery.AckTimeoutMS) * time.Millisecond,
		MaxAckMisses:  int(cfg.Delivery.MaxAckMisses),
		SweepInterval: qos.DefaultConfig().SweepInterval,
	}
	b.acks = qos.NewAckTracker(qosCfg, b.onAckMiss, b.onUnresponsive)

	if cfg.Auth.Username != "" {
		_ = b.hooks.Add(hook.NewSharedCredentialAuthHook(cfg.Auth.Username, cfg.Auth.Password))
	}

	listener.OnConnection(b.handleConnection)

	return b, nil
}

// Start begins accepting connections and runs the send-side worker
// pool. It returns once the listener is bound; the accept loop and
// workers run in background goroutines until Stop.
func (b *Broker) Start() error {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.deliveryWorker()
	}
	if err := b.listener.Start(); err != nil {
		return Wrap(KindIO, err, "broker: start listener")
	}
	b.log.Info("broker started", "address", b.listener.Addr())
	return nil
}

// Stop closes the listener, drains in-flight connections, and stops
// the delivery workers and ack tracker.
func (b *Broker) Stop(ctx context.Context) error {
	var stopErr error
	b.stopOnce.Do(func() {
		b.closed.Store(true)
		close(b.stopCh)

		if err := b.listener.Close(); err != nil {
			stopErr = err
		}
		for _, conn := range b.registry.Snapshot() {
			_ = conn.Close()
		}
		if err := b.pool.Close(); err != nil && stopErr == nil {
			stopErr = err
		}

		close(b.tasks)
		b.wg.Wait()

		if err := b.acks.Close(); err != nil && stopErr == nil {
			stopErr = err
		}
		if b.sessions != nil {
			_ = b.sessions.Close()
		}
		if b.store != nil {
			if err := b.store.Close(); err != nil && stopErr == nil {
				stopErr = err
			}
		}
	})
	return stopErr
}

// Resume restores clientID's prior subscriptions from the session
// registry, re-subscribing conn to each and draining any retained
// messages waiting on those destinations.
func (b *Broker) Resume(ctx context.Context, clientID string, conn *Connection) (bool, error) {
	if b.sessions == nil {
		return false, nil
	}
	subs, err := b.sessions.Resume(ctx, clientID)
	if err != nil {
		return false, err
	}
	resumed := len(subs) > 0
	for destination, sub := range subs {
		b.table.Subscribe(conn, destination, sub.QoS)
		conn.trackDestination(destination)
		b.drainRetained(destination)
	}
	return resumed, nil
}

// handleConnection is registered as the Listener's ConnectionHandler:
// it runs synchronously inside the Listener's per-connection
// goroutine (spec §4.1's one-goroutine-per-connection transport
// model), owning that connection's entire lifecycle until it returns.
func (b *Broker) handleConnection(nc *network.Connection) error {
	f, err := framer.New(b.protocol, b.cfg.Frame.MaxBytes)
	if err != nil {
		b.metrics.connectionsRejected.Inc()
		return err
	}
	conn := NewConnection(nc, f)
	b.metrics.connectionsAccepted.Inc()

	active := false
	defer func() {
		b.onConnectionClosed(conn)
		if active {
			b.metrics.connectionsActive.Dec()
		}
	}()

	if !b.authenticate(conn) {
		b.metrics.connectionsRejected.Inc()
		return conn.Close()
	}
	b.metrics.connectionsActive.Inc()
	active = true

	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := b.dispatch(conn, msg); err != nil {
			if errors.Is(err, ErrNotActive) {
				continue
			}
			return err
		}
		if msg.Type == message.Disconnect {
			return nil
		}
	}
}

// authenticate drives NEW -> AUTHENTICATING -> ACTIVE: it reads the
// CONNECT frame, runs the auth hook chain, resolves a client id
// (generating one through the session manager, when one is configured,
// if the client didn't supply one), registers it, and replies with
// CONNACK.
func (b *Broker) authenticate(conn *Connection) bool {
	if !conn.TransitionAuthenticating() {
		return false
	}

	msg, err := conn.ReadMessage()
	if err != nil || msg.Type != message.Connect {
		return false
	}

	clientID := msg.Destination
	if clientID == "" && b.sessions != nil {
		clientID, _ = b.sessions.GenerateClientID(context.Background())
	}
	username, _ := msg.Headers.Get("username")
	conn.SetUsername(username)

	hc := &hook.Client{ID: clientID, RemoteAddr: remoteAddrOf(conn), Username: username}
	hp := &hook.ConnectPacket{ClientID: clientID, Username: username, Password: msg.Body}
	if !b.hooks.OnConnectAuthenticate(hc, hp) {
		_ = conn.SendMessage(&message.Message{Type: message.Connack, Body: []byte{5}})
		return false
	}

	if !b.registry.Register(clientID, conn) {
		_ = conn.SendMessage(&message.Message{Type: message.Connack, Body: []byte{2}})
		return false
	}
	conn.SetClientID(clientID)

	if !conn.TransitionActive() {
		b.registry.Unregister(clientID, conn)
		return false
	}

	resumed := false
	if b.sessions != nil {
		if _, _, err := b.sessions.CreateSession(context.Background(), clientID, 0); err == nil {
			resumed, _ = b.Resume(context.Background(), clientID, conn)
		}
	}

	ack := &message.Message{Type: message.Connack}
	if resumed {
		ack.Headers = ack.Headers.Set("session-present", "true")
	}
	return conn.SendMessage(ack) == nil
}

func remoteAddrOf(conn *Connection) net.Addr {
	return conn.transport.RemoteAddr()
}

// dispatch routes one decoded Message from an ACTIVE connection to the
// appropriate broker operation.
func (b *Broker) dispatch(conn *Connection, msg *message.Message) error {
	if !conn.IsActive() {
		return ErrNotActive
	}
	switch msg.Type {
	case message.Publish:
		return b.handlePublish(conn, msg)
	case message.Subscribe:
		return b.handleSubscribe(conn, msg)
	case message.Unsubscribe:
		return b.handleUnsubscribe(conn, msg)
	case message.Ack:
		return b.acks.Ack(msg.ID)
	case message.Ping:
		return conn.SendMessage(&message.Message{Type: message.Ping})
	case message.Disconnect:
		return nil
	default:
		return nil
	}
}

func (b *Broker) handlePublish(conn *Connection, msg *message.Message) error {
	hp := &hook.PublishPacket{Topic: msg.Destination, Payload: msg.Body, QoS: byte(msg.QoS)}
	hc := &hook.Client{ID: conn.ClientID(), Username: conn.Username()}
	if err := b.hooks.OnPublish(hc, hp); err != nil {
		// A rejecting hook (e.g. RateLimitHook) is message-fatal, never
		// connection-fatal: a queue publish still gets a chance at
		// retention, a topic publish is simply dropped.
		b.metrics.messagesDropped.WithLabelValues("hook_rejected").Inc()
		if topic.ClassifyDestination(msg.Destination) == topic.Queue {
			b.retain(msg)
		}
		return nil
	}
	b.metrics.messagesPublished.Inc()
	if msg.ID == (uuidZero) {
		msg.ID = uuid.New()
	}
	b.distribute(msg)
	return nil
}

var uuidZero uuid.UUID

// distribute implements spec §4.5 points 1-4: queues deliver to
// exactly one subscriber round robin, retaining on no subscriber;
// topics fan out to every subscriber, dropping silently when there are
// none.
func (b *Broker) distribute(msg *message.Message) {
	kind := topic.ClassifyDestination(msg.Destination)
	sub, ok := b.table.Resolve(msg.Destination)
	if !ok || sub.Size() == 0 {
		if kind == topic.Queue {
			b.retain(msg)
		} else {
			b.metrics.messagesDropped.WithLabelValues("no_subscriber").Inc()
		}
		return
	}

	if kind == topic.Topic {
		for _, target := range sub.Snapshot() {
			conn, ok := target.(*Connection)
			if !ok {
				continue
			}
			b.enqueue(deliveryTask{conn: conn, destination: msg.Destination, kind: kind, qos: byte(msg.QoS), msg: msg})
		}
		return
	}

	// Queue: round-robin to one live subscriber, retaining the message
	// if every subscriber in one full pass fails to accept it.
	delivered := sub.RoundRobinDeliver(func(s topic.Subscriber) bool {
		conn, ok := s.(*Connection)
		if !ok {
			return false
		}
		if err := conn.Send(msg.Destination, byte(msg.QoS), msg.Body); err != nil {
			return false
		}
		b.trackAckIfNeeded(conn, msg)
		b.metrics.messagesDelivered.Inc()
		return true
	})
	if !delivered {
		b.retain(msg)
	}
}

func (b *Broker) trackAckIfNeeded(conn *Connection, msg *message.Message) {
	if msg.QoS == 0 {
		return
	}
	b.acks.Track(msg, msg.Destination, conn.ID())
}

// retain pushes msg onto the persistent retained-message list for its
// destination, if a store is configured; otherwise the message is
// dropped (no durable retention without a store, spec §9 open
// question resolved in favor of "best effort" when unconfigured).
func (b *Broker) retain(msg *message.Message) {
	if b.store == nil {
		b.metrics.messagesDropped.WithLabelValues("no_store").Inc()
		return
	}
	list, err := b.store.List(retainedListName(msg.Destination))
	if err != nil {
		b.log.Error("retain: open list", "destination", msg.Destination, "err", err)
		return
	}
	payload := encodeRetained(msg)
	if _, err := list.PushBack(payload); err != nil {
		b.log.Error("retain: push", "destination", msg.Destination, "err", err)
		return
	}
	// A queue published to before anyone has subscribed has no
	// Subscription yet; spec §3 creates a destination lazily on first
	// SUBSCRIBE *or* MESSAGE, so give it a table entry now rather than
	// only on the eventual first Subscribe.
	b.table.EnsureRetainTarget(msg.Destination, byte(msg.QoS))
	b.metrics.messagesRetained.Inc()
}

// drainRetained delivers every retained message for destination to
// conn, in FIFO order, on subscribe/resume.
func (b *Broker) drainRetained(destination string) {
	if b.store == nil {
		return
	}
	list, err := b.store.List(retainedListName(destination))
	if err != nil {
		return
	}
	for !list.Empty() {
		data, ok, err := list.PopFront()
		if err != nil || !ok {
			return
		}
		msg, err := decodeRetained(data)
		if err != nil {
			continue
		}
		b.metrics.messagesRetained.Dec()
		b.distribute(msg)
	}
}

func (b *Broker) handleSubscribe(conn *Connection, msg *message.Message) error {
	hc := &hook.Client{ID: conn.ClientID(), Username: conn.Username()}
	hsub := &hook.Subscription{ClientID: conn.ClientID(), TopicFilter: msg.Destination, QoS: byte(msg.QoS)}
	if err := b.hooks.OnSubscribe(hc, hsub); err != nil {
		return conn.SendMessage(&message.Message{Type: message.Ack, ID: msg.ID, Headers: message.Headers{}.Set("ack-kind", "suback"), Body: []byte{0x80}})
	}

	b.table.Subscribe(conn, msg.Destination, byte(msg.QoS))
	conn.trackDestination(msg.Destination)
	if b.sessions != nil {
		_ = b.sessions.RecordSubscription(context.Background(), conn.ClientID(), msg.Destination, byte(msg.QoS))
	}
	b.drainRetained(msg.Destination)

	return conn.SendMessage(&message.Message{Type: message.Ack, ID: msg.ID, Headers: message.Headers{}.Set("ack-kind", "suback"), Body: []byte{byte(msg.QoS)}})
}

func (b *Broker) handleUnsubscribe(conn *Connection, msg *message.Message) error {
	_, remaining := b.table.Unsubscribe(conn.ID(), msg.Destination)
	conn.untrackDestination(msg.Destination)
	if b.sessions != nil {
		_ = b.sessions.RecordUnsubscription(context.Background(), conn.ClientID(), msg.Destination)
	}
	b.maybeDropDestination(msg.Destination, remaining)
	return conn.SendMessage(&message.Message{Type: message.Ack, ID: msg.ID, Headers: message.Headers{}.Set("ack-kind", "unsuback")})
}

func (b *Broker) onConnectionClosed(conn *Connection) {
	conn.TransitionClosing()
	for dest, remaining := range b.table.Remove(conn.ID()) {
		b.maybeDropDestination(dest, remaining)
	}
	if clientID := conn.ClientID(); clientID != "" {
		b.registry.Unregister(clientID, conn)
		if b.sessions != nil {
			_ = b.sessions.DisconnectSession(context.Background(), clientID)
		}
	}
	b.acks.Forget(conn.ID())
	conn.TransitionClosed()
}

// maybeDropDestination implements spec §3's destination-destruction
// invariant: a destination is removed from the table once it has no
// subscribers left and, for a queue, no retained backlog either (a
// topic never retains, so an empty subscriber set is sufficient).
func (b *Broker) maybeDropDestination(destination string, remaining int) {
	if remaining > 0 {
		return
	}
	if topic.ClassifyDestination(destination) == topic.Queue && b.hasRetained(destination) {
		return
	}
	b.table.Drop(destination)
}

func (b *Broker) hasRetained(destination string) bool {
	if b.store == nil {
		return false
	}
	list, err := b.store.List(retainedListName(destination))
	if err != nil {
		return false
	}
	return !list.Empty()
}

// enqueue submits a delivery task to the send-side worker pool,
// applying backpressure per spec §4.5: a full queue means the caller
// (the connection's own read-loop goroutine processing a PUBLISH)
// blocks rather than the broker dropping the message.
func (b *Broker) enqueue(t deliveryTask) {
	select {
	case b.tasks <- t:
	case <-b.stopCh:
	}
	b.metrics.deliveryQueueDepth.Set(float64(len(b.tasks)))
}

func (b *Broker) deliveryWorker() {
	defer b.wg.Done()
	for t := range b.tasks {
		if err := t.conn.Send(t.destination, t.qos, t.msg.Body); err != nil {
			if t.kind == topic.Queue {
				b.retain(t.msg)
			}
			continue
		}
		b.trackAckIfNeeded(t.conn, t.msg)
		b.metrics.messagesDelivered.Inc()
	}
}

func (b *Broker) onAckMiss(msg *message.Message, destination string) {
	b.metrics.ackMisses.Inc()
	b.distribute(msg)
}

func (b *Broker) onUnresponsive(connID string) {
	b.metrics.ackUnresponsive.Inc()
	if conn, ok := b.pool.Get(connID); ok {
		_ = conn.Close()
	}
}

// retainedCodec serializes retained messages for the PersistentStore
// using the native SMQ wire format, independent of the protocol the
// broker is actually listening with — retention is an internal
// storage concern, not wire traffic.
var retainedCodec = smqcodec.New(0)

func encodeRetained(msg *message.Message) []byte {
	out, _ := retainedCodec.Encode(nil, msg)
	return out
}

func decodeRetained(data []byte) (*message.Message, error) {
	msg, _, err := retainedCodec.Decode(data)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrCorruptRetained
	}
	return msg, nil
}
