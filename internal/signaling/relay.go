package signaling

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/junsooki/camview/internal/log"
)

// Relay is a minimal signaling server: clients register under an id and
// every addressed message is forwarded to its target with From filled in.
type Relay struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	peers map[string]*relayPeer
}

type relayPeer struct {
	id   string
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (p *relayPeer) write(msg Message) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.conn.WriteJSON(msg)
}

// NewRelay returns an empty relay.
func NewRelay() *Relay {
	return &Relay{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: log.Component("relay"),
		peers:  map[string]*relayPeer{},
	}
}

// ServeHTTP upgrades the request and serves one client until it disconnects.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	p := &relayPeer{conn: conn}
	defer r.drop(p)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case TypeRegister:
			if msg.ID == "" {
				_ = p.write(Message{Type: TypeError, Msg: "register without id"})
				continue
			}
			if !r.register(msg.ID, p) {
				_ = p.write(Message{Type: TypeError, Msg: "id already registered: " + msg.ID})
				continue
			}
			r.logger.Info("peer registered", "id", msg.ID, "type", msg.ClientType)
			_ = p.write(Message{Type: TypeRegistered, ID: msg.ID})
		case TypePing:
			_ = p.write(Message{Type: TypePong})
		case TypeOffer, TypeAnswer, TypeICECandidate:
			r.forward(p, msg)
		default:
			_ = p.write(Message{Type: TypeError, Msg: "unknown message type: " + msg.Type})
		}
	}
}

func (r *Relay) register(id string, p *relayPeer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.peers[id]; taken || p.id != "" {
		return false
	}
	p.id = id
	r.peers[id] = p
	return true
}

func (r *Relay) forward(from *relayPeer, msg Message) {
	if from.id == "" {
		_ = from.write(Message{Type: TypeError, Msg: "register first"})
		return
	}
	r.mu.Lock()
	to := r.peers[msg.Target]
	r.mu.Unlock()
	if to == nil {
		_ = from.write(Message{Type: TypeError, Msg: "unknown target: " + msg.Target})
		return
	}
	msg.From = from.id
	msg.Target = ""
	if err := to.write(msg); err != nil {
		r.logger.Warn("forward failed", "to", to.id, "error", err)
	}
}

func (r *Relay) drop(p *relayPeer) {
	if p.id == "" {
		return
	}
	r.mu.Lock()
	if r.peers[p.id] == p {
		delete(r.peers, p.id)
	}
	others := make([]*relayPeer, 0, len(r.peers))
	for _, o := range r.peers {
		others = append(others, o)
	}
	r.mu.Unlock()

	r.logger.Info("peer left", "id", p.id)
	for _, o := range others {
		_ = o.write(Message{Type: TypePeerDisconnected, PeerID: p.id})
	}
}
