package mockserver

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"nrtstress/internal/chaos"
	"nrtstress/internal/protocol"
	"nrtstress/pkg/tcp"
)

const (
	readBufferSize     = 1024
	unknownCommandText = "Unknown command"
	unknownViewText    = "Unknown VIEW option"
)

type peer struct {
	conn    net.Conn
	writeMu sync.Mutex
}

func (p *peer) write(s string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err := p.conn.Write([]byte(s))
	return err
}

// Server is an in-process trading server speaking the line protocol. Client
// ids are assigned 1..N in accept order.
type Server struct {
	listener *tcp.Server
	chaos    *chaos.Engine

	mu         sync.Mutex
	closed     bool
	nextID     int
	peers      map[int]*peer
	books      map[string]*Book
	portfolios map[int]*Portfolio

	wg sync.WaitGroup
}

// New creates a server bound to addr once Start is called.
func New(addr string) (*Server, error) {
	ln, err := tcp.NewServer(addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener:   ln,
		nextID:     1,
		peers:      make(map[int]*peer),
		books:      make(map[string]*Book),
		portfolios: make(map[int]*Portfolio),
	}, nil
}

// WithChaos injects faults into every direct response. Call before Start.
func (s *Server) WithChaos(e *chaos.Engine) *Server {
	s.chaos = e
	return s
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	return s.listener.Addr()
}

// Start listens and serves connections in the background.
func (s *Server) Start() error {
	if err := s.listener.Listen(); err != nil {
		return err
	}
	logs.Infof("Server listening on %s...", s.listener.Addr())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()
	return nil
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Close()
}

// Close stops accepting, disconnects every client and waits for handlers.
func (s *Server) Close() error {
	err := s.listener.Close()
	s.mu.Lock()
	s.closed = true
	for _, p := range s.peers {
		_ = p.conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

// Depth returns the resting quantity on each side of symbol.
func (s *Server) Depth(symbol string) (bids, asks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.books[symbol]; ok {
		return b.Depth()
	}
	return 0, 0
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || errors.Is(err, tcp.ErrNotListening) {
				return
			}
			logs.Errorf("accept error: %+v", err)
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		id := s.nextID
		s.nextID++
		p := &peer{conn: conn}
		s.peers[id] = p
		s.portfolios[id] = newPortfolio()
		s.mu.Unlock()

		logs.Infof("Client %d connected!", id)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(id, p)
		}()
	}
}

func (s *Server) handleConn(id int, p *peer) {
	defer func() {
		s.mu.Lock()
		delete(s.peers, id)
		s.mu.Unlock()
		_ = p.conn.Close()
		logs.Infof("Client %d disconnected", id)
	}()

	buf := make([]byte, readBufferSize)
	for {
		n, err := p.conn.Read(buf)
		if err != nil {
			return
		}
		text := strings.TrimSpace(string(buf[:n]))
		cmd, perr := protocol.ParseCommand(text)
		if perr == nil {
			if _, ok := cmd.(protocol.Terminate); ok {
				return
			}
		}
		out, delay, ok := s.chaos.Apply([]byte(s.respond(id, text, cmd, perr)))
		if !ok {
			continue
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		if err := p.write(string(out)); err != nil {
			return
		}
	}
}

func (s *Server) respond(id int, text string, cmd protocol.Command, perr error) string {
	if perr != nil {
		if strings.HasPrefix(text, "VIEW") {
			return unknownViewText
		}
		return unknownCommandText
	}
	switch c := cmd.(type) {
	case protocol.PlaceOrder:
		s.place(id, c)
		return protocol.FormatOrderAnnouncement(id, []byte(text))
	case protocol.ViewPortfolio:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.portfolios[id].View()
	case protocol.ViewMarket:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.book(c.Symbol).View()
	default:
		return unknownCommandText
	}
}

type notice struct {
	to   []*peer
	text string
}

// place matches the order and notifies both parties of every fill.
func (s *Server) place(id int, o protocol.PlaceOrder) {
	s.mu.Lock()
	fills := s.book(o.Symbol).Submit(id, o.Side, o.Quantity, o.Price)
	notices := make([]notice, 0, len(fills))
	for _, f := range fills {
		s.portfolio(f.BuyerID).buy(o.Symbol, f.Quantity, f.Price)
		s.portfolio(f.SellerID).sell(o.Symbol, f.Quantity, f.Price)
		text := protocol.FormatTradeAnnouncement(protocol.TradeEvent{
			BuyerID:  f.BuyerID,
			Quantity: f.Quantity,
			Symbol:   o.Symbol,
			SellerID: f.SellerID,
			Price:    f.Price,
		}) + "\n"
		var to []*peer
		if p, ok := s.peers[f.BuyerID]; ok {
			to = append(to, p)
		}
		if p, ok := s.peers[f.SellerID]; ok && f.SellerID != f.BuyerID {
			to = append(to, p)
		}
		notices = append(notices, notice{to: to, text: text})
	}
	s.mu.Unlock()

	for _, n := range notices {
		logs.Info(strings.TrimSpace(n.text))
		for _, p := range n.to {
			_ = p.write(n.text)
		}
	}
}

func (s *Server) book(symbol string) *Book {
	b, ok := s.books[symbol]
	if !ok {
		b = NewBook(symbol)
		s.books[symbol] = b
	}
	return b
}

func (s *Server) portfolio(id int) *Portfolio {
	p, ok := s.portfolios[id]
	if !ok {
		p = newPortfolio()
		s.portfolios[id] = p
	}
	return p
}
