package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"sync"
)

// GenerateID создает случайный идентификатор сессии (16 символов hex)
func GenerateID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate random ID: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// Namer выдает последовательные имена: "agent-1", "agent-2", "visitor-1"...
// Счетчик свой для каждого префикса.
type Namer struct {
	mu       sync.Mutex
	counters map[string]int
}

func NewNamer() *Namer {
	return &Namer{counters: make(map[string]int)}
}

// Next возвращает следующее имя для префикса
func (n *Namer) Next(prefix string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counters[prefix]++
	return prefix + "-" + strconv.Itoa(n.counters[prefix])
}
