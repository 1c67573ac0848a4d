package network

import (
	"sync"
	"sync/atomic"

	"waypoint-server/pkg/api"
)

// subscriberBuffer - сколько снимков может ждать медленный клиент,
// дальше новые снимки для него отбрасываются.
const subscriberBuffer = 64

// Broadcaster занимается только рассылкой сообщений подписчикам (сессиям).
type Broadcaster struct {
	mu sync.RWMutex
	// Мапа: SessionID -> Личный канал
	subscribers map[string]chan api.ServerResponse

	dropped atomic.Uint64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]chan api.ServerResponse),
	}
}

// Register создает личный канал для сессии.
// Повторная регистрация закрывает старый канал: старое соединение завершится само.
func (b *Broadcaster) Register(session string) chan api.ServerResponse {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.subscribers[session]; ok {
		close(old)
	}

	ch := make(chan api.ServerResponse, subscriberBuffer)
	b.subscribers[session] = ch
	return ch
}

// Unregister удаляет подписчика, если канал всё ещё его.
func (b *Broadcaster) Unregister(session string, ch chan api.ServerResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cur, ok := b.subscribers[session]; ok && cur == ch {
		close(cur)
		delete(b.subscribers, session)
	}
}

// SendTo отправляет сообщение одной сессии (Unicast). false - нет такой сессии или очередь полна.
func (b *Broadcaster) SendTo(session string, msg api.ServerResponse) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ch, ok := b.subscribers[session]
	if !ok {
		return false
	}
	return b.offer(ch, msg)
}

// Broadcast отправляет всем. Возвращает число доставленных.
func (b *Broadcaster) Broadcast(msg api.ServerResponse) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, ch := range b.subscribers {
		if b.offer(ch, msg) {
			delivered++
		}
	}
	return delivered
}

func (b *Broadcaster) offer(ch chan api.ServerResponse, msg api.ServerResponse) bool {
	select {
	case ch <- msg:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// HasSubscriber проверяет, подключена ли сессия
func (b *Broadcaster) HasSubscriber(session string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.subscribers[session]
	return ok
}

// SubscriberCount возвращает количество активных подписчиков.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped - сколько сообщений отброшено из-за переполненных очередей
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}
