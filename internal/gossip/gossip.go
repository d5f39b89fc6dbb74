// Package gossip implements the libp2p-based networking layer the bridge
// daemon uses to propagate two things between peers: stealth announcements
// so recipients anywhere can scan for deposits, and signed operation
// submissions so any peer can relay a client's claim/split/spend request
// toward whichever node is about to apply it. It wires together a libp2p
// host, GossipSub, and a Kademlia DHT over the bridge's own two topics.
package gossip

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	"github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
)

// Protocol and topic identifiers.
const (
	ProtocolID        = "/shieldbridge/1.0.0"
	AnnouncementTopic = "shieldbridge/announcements"
	OperationTopic    = "shieldbridge/operations"
	rendezvous        = "shieldbridge-network"
)

// MessageHandler processes one raw gossip message.
type MessageHandler func(ctx context.Context, msg *pubsub.Message) error

// Config holds node configuration.
type Config struct {
	ListenAddrs    []string
	BootstrapPeers []string
	PrivateKey     crypto.PrivKey
	MaxPeers       int
	EnableMDNS     bool
}

// DefaultConfig returns default node configuration.
func DefaultConfig() *Config {
	return &Config{
		ListenAddrs: []string{"/ip4/0.0.0.0/tcp/9000"},
		MaxPeers:    50,
		EnableMDNS:  true,
	}
}

// PeerInfo holds information about a connected peer.
type PeerInfo struct {
	ID          peer.ID
	Addrs       []multiaddr.Multiaddr
	ConnectedAt time.Time
	LastSeen    time.Time
}

// Node is a gossip network participant.
type Node struct {
	mu sync.RWMutex

	host      host.Host
	dht       *dht.IpfsDHT
	pubsub    *pubsub.PubSub
	discovery *drouting.RoutingDiscovery

	announceTopic *pubsub.Topic
	operationTopic *pubsub.Topic
	announceSub   *pubsub.Subscription
	operationSub  *pubsub.Subscription

	announceHandler MessageHandler
	operationHandler MessageHandler

	peers    map[peer.ID]*PeerInfo
	maxPeers int

	log *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewNode creates and starts a libp2p host joined to both gossip topics.
func NewNode(ctx context.Context, cfg *Config, log *zap.Logger) (*Node, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}

	nodeCtx, cancel := context.WithCancel(ctx)

	privKey := cfg.PrivateKey
	if privKey == nil {
		var err error
		privKey, _, err = crypto.GenerateKeyPairWithReader(crypto.Ed25519, -1, rand.Reader)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("gossip: generate key: %w", err)
		}
	}

	listenAddrs := make([]multiaddr.Multiaddr, len(cfg.ListenAddrs))
	for i, addr := range cfg.ListenAddrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("gossip: invalid listen address: %w", err)
		}
		listenAddrs[i] = ma
	}

	h, err := libp2p.New(
		libp2p.Identity(privKey),
		libp2p.ListenAddrs(listenAddrs...),
		libp2p.EnableNATService(),
		libp2p.EnableRelay(),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("gossip: create host: %w", err)
	}

	kadDHT, err := dht.New(nodeCtx, h, dht.Mode(dht.ModeAuto))
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("gossip: create dht: %w", err)
	}

	ps, err := pubsub.NewGossipSub(nodeCtx, h)
	if err != nil {
		kadDHT.Close()
		h.Close()
		cancel()
		return nil, fmt.Errorf("gossip: create pubsub: %w", err)
	}

	n := &Node{
		host:     h,
		dht:      kadDHT,
		pubsub:   ps,
		peers:    make(map[peer.ID]*PeerInfo),
		maxPeers: cfg.MaxPeers,
		log:      log,
		ctx:      nodeCtx,
		cancel:   cancel,
	}

	h.Network().Notify(&network.NotifyBundle{
		ConnectedF:    n.onPeerConnected,
		DisconnectedF: n.onPeerDisconnected,
	})

	if err := kadDHT.Bootstrap(nodeCtx); err != nil {
		n.Close()
		return nil, fmt.Errorf("gossip: bootstrap dht: %w", err)
	}

	for _, addr := range cfg.BootstrapPeers {
		if err := n.connectToPeer(addr); err != nil {
			n.log.Warn("bootstrap peer connect failed", zap.String("addr", addr), zap.Error(err))
		}
	}

	if cfg.EnableMDNS {
		if err := n.setupMDNS(); err != nil {
			n.log.Warn("mdns setup failed", zap.Error(err))
		}
	}

	n.discovery = drouting.NewRoutingDiscovery(kadDHT)

	if err := n.joinTopics(); err != nil {
		n.Close()
		return nil, fmt.Errorf("gossip: join topics: %w", err)
	}

	return n, nil
}

func (n *Node) joinTopics() error {
	var err error

	n.announceTopic, err = n.pubsub.Join(AnnouncementTopic)
	if err != nil {
		return fmt.Errorf("join announcement topic: %w", err)
	}
	n.announceSub, err = n.announceTopic.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribe announcements: %w", err)
	}

	n.operationTopic, err = n.pubsub.Join(OperationTopic)
	if err != nil {
		return fmt.Errorf("join operation topic: %w", err)
	}
	n.operationSub, err = n.operationTopic.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribe operations: %w", err)
	}

	return nil
}

// Start begins processing incoming messages and background peer maintenance.
func (n *Node) Start() {
	go n.processMessages(n.announceSub, func() MessageHandler { return n.announceHandler })
	go n.processMessages(n.operationSub, func() MessageHandler { return n.operationHandler })
	go n.maintainPeers()
}

func (n *Node) processMessages(sub *pubsub.Subscription, handler func() MessageHandler) {
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			if n.ctx.Err() != nil {
				return
			}
			continue
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}

		n.mu.Lock()
		if p, exists := n.peers[msg.ReceivedFrom]; exists {
			p.LastSeen = time.Now()
		}
		n.mu.Unlock()

		if h := handler(); h != nil {
			if err := h(n.ctx, msg); err != nil {
				n.log.Warn("gossip handler error", zap.Error(err))
			}
		}
	}
}

func (n *Node) maintainPeers() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.discoverPeers()
			n.pruneStale()
		}
	}
}

func (n *Node) discoverPeers() {
	n.mu.RLock()
	current := len(n.peers)
	n.mu.RUnlock()
	if current >= n.maxPeers {
		return
	}

	ctx, cancel := context.WithTimeout(n.ctx, 10*time.Second)
	defer cancel()

	peerChan, err := n.discovery.FindPeers(ctx, rendezvous)
	if err != nil {
		return
	}
	for p := range peerChan {
		if p.ID == n.host.ID() || len(p.Addrs) == 0 {
			continue
		}
		n.mu.RLock()
		_, exists := n.peers[p.ID]
		n.mu.RUnlock()
		if !exists && len(n.peers) < n.maxPeers {
			if err := n.host.Connect(ctx, p); err == nil {
				n.addPeer(p.ID, p.Addrs)
			}
		}
	}
}

func (n *Node) pruneStale() {
	n.mu.Lock()
	defer n.mu.Unlock()
	threshold := time.Now().Add(-5 * time.Minute)
	for id, p := range n.peers {
		if p.LastSeen.Before(threshold) {
			n.host.Network().ClosePeer(id)
			delete(n.peers, id)
		}
	}
}

// SetAnnouncementHandler sets the handler invoked for incoming stealth
// announcements.
func (n *Node) SetAnnouncementHandler(h MessageHandler) { n.announceHandler = h }

// SetOperationHandler sets the handler invoked for incoming operation
// submissions.
func (n *Node) SetOperationHandler(h MessageHandler) { n.operationHandler = h }

// PublishAnnouncement broadcasts a stealth announcement's wire encoding.
func (n *Node) PublishAnnouncement(data []byte) error {
	return n.announceTopic.Publish(n.ctx, data)
}

// PublishOperation broadcasts an operation submission's wire encoding.
func (n *Node) PublishOperation(data []byte) error {
	return n.operationTopic.Publish(n.ctx, data)
}

func (n *Node) connectToPeer(addr string) error {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(ma)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(n.ctx, 10*time.Second)
	defer cancel()
	if err := n.host.Connect(ctx, *info); err != nil {
		return err
	}
	n.addPeer(info.ID, info.Addrs)
	return nil
}

func (n *Node) addPeer(id peer.ID, addrs []multiaddr.Multiaddr) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers[id] = &PeerInfo{ID: id, Addrs: addrs, ConnectedAt: time.Now(), LastSeen: time.Now()}
}

func (n *Node) onPeerConnected(_ network.Network, conn network.Conn) {
	n.addPeer(conn.RemotePeer(), []multiaddr.Multiaddr{conn.RemoteMultiaddr()})
}

func (n *Node) onPeerDisconnected(_ network.Network, conn network.Conn) {
	n.mu.Lock()
	delete(n.peers, conn.RemotePeer())
	n.mu.Unlock()
}

func (n *Node) setupMDNS() error {
	service := mdns.NewMdnsService(n.host, "shieldbridge-local", &mdnsNotifee{node: n})
	return service.Start()
}

type mdnsNotifee struct {
	node *Node
}

func (m *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == m.node.host.ID() {
		return
	}
	ctx, cancel := context.WithTimeout(m.node.ctx, 5*time.Second)
	defer cancel()
	m.node.host.Connect(ctx, pi)
}

// ID returns the node's peer ID.
func (n *Node) ID() peer.ID { return n.host.ID() }

// Addrs returns the node's listen addresses.
func (n *Node) Addrs() []multiaddr.Multiaddr { return n.host.Addrs() }

// PeerCount returns the number of connected peers.
func (n *Node) PeerCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.peers)
}

// Close shuts down the node.
func (n *Node) Close() error {
	n.cancel()
	if n.announceSub != nil {
		n.announceSub.Cancel()
	}
	if n.operationSub != nil {
		n.operationSub.Cancel()
	}
	if n.dht != nil {
		n.dht.Close()
	}
	return n.host.Close()
}
