package overlay

import "context"

const clientBuffer = 32

type hubMsg interface{ isHubMsg() }

type joinMsg struct {
	id  string
	out chan []byte
}

type leaveMsg struct{ id string }

type broadcastMsg struct{ payload []byte }

type countMsg struct{ reply chan int }

func (joinMsg) isHubMsg()      {}
func (leaveMsg) isHubMsg()     {}
func (broadcastMsg) isHubMsg() {}
func (countMsg) isHubMsg()     {}

// Hub fans frames out to websocket clients. Its client map is owned by one loop
// goroutine; everything else talks to it through the inbox.
type Hub struct {
	inbox   chan hubMsg
	clients map[string]chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan hubMsg, 256),
		clients: make(map[string]chan []byte),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			for id, out := range h.clients {
				close(out)
				delete(h.clients, id)
			}
			return
		case m := <-h.inbox:
			switch msg := m.(type) {
			case joinMsg:
				h.clients[msg.id] = msg.out
			case leaveMsg:
				if out, ok := h.clients[msg.id]; ok {
					close(out)
					delete(h.clients, msg.id)
				}
			case broadcastMsg:
				for _, out := range h.clients {
					// a slow client misses frames; the next state frame resyncs it
					select {
					case out <- msg.payload:
					default:
					}
				}
			case countMsg:
				msg.reply <- len(h.clients)
			}
		}
	}
}

// Join registers a client. The returned channel closes on Leave or Close.
func (h *Hub) Join(id string) <-chan []byte {
	out := make(chan []byte, clientBuffer)
	select {
	case h.inbox <- joinMsg{id: id, out: out}:
	case <-h.ctx.Done():
		close(out)
	}
	return out
}

func (h *Hub) Leave(id string) {
	select {
	case h.inbox <- leaveMsg{id: id}:
	case <-h.ctx.Done():
	}
}

// Broadcast never blocks; a full inbox drops the frame.
func (h *Hub) Broadcast(payload []byte) bool {
	select {
	case h.inbox <- broadcastMsg{payload: payload}:
		return true
	default:
		return false
	}
}

func (h *Hub) Clients() int {
	reply := make(chan int, 1)
	select {
	case h.inbox <- countMsg{reply: reply}:
	case <-h.ctx.Done():
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-h.done:
		return 0
	}
}

func (h *Hub) Close() {
	h.cancel()
	<-h.done
}
