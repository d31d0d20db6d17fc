// Package livequery は所有者単位のタスク変更通知を購読者に配信する。
package livequery

import "sync"

// Hub は所有者IDごとの変更シグナルを購読者へファンアウトする。
// 各購読者は容量1のチャネルを持ち、連続した変更は1回のシグナルにまとめられる。
// 受信側は毎回全件を再取得する前提で、シグナルに内容は含まない。
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]chan struct{}
}

// NewHub はHubを生成する。
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]chan struct{})}
}

// Listener はHubへの1件の購読を表す。
type Listener struct {
	hub     *Hub
	ownerID string
	id      uint64
	ch      chan struct{}
	once    sync.Once
}

// C は変更シグナルを受け取るチャネルを返す。Closeでクローズされる。
func (l *Listener) C() <-chan struct{} {
	return l.ch
}

// Close は購読を解除する。複数回呼んでも安全。
func (l *Listener) Close() {
	l.once.Do(func() {
		l.hub.remove(l)
	})
}

// Subscribe はownerIDの変更シグナルを購読する。
func (h *Hub) Subscribe(ownerID string) *Listener {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	l := &Listener{
		hub:     h,
		ownerID: ownerID,
		id:      h.nextID,
		ch:      make(chan struct{}, 1),
	}
	owners, ok := h.subs[ownerID]
	if !ok {
		owners = make(map[uint64]chan struct{})
		h.subs[ownerID] = owners
	}
	owners[l.id] = l.ch
	return l
}

// Publish はownerIDの全購読者に変更を通知する。ブロックしない。
func (h *Hub) Publish(ownerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[ownerID] {
		signal(ch)
	}
}

// PublishAll は全購読者に変更を通知する。
// 通知の取りこぼしが起こり得た場合（LISTEN接続の再確立など）に使用する。
func (h *Hub) PublishAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, owners := range h.subs {
		for _, ch := range owners {
			signal(ch)
		}
	}
}

// Count は現在の購読数を返す。
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, owners := range h.subs {
		n += len(owners)
	}
	return n
}

func (h *Hub) remove(l *Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()

	owners := h.subs[l.ownerID]
	delete(owners, l.id)
	if len(owners) == 0 {
		delete(h.subs, l.ownerID)
	}
	close(l.ch)
}

// signal は容量1のチャネルへ非ブロッキングで送信する。
// 未読のシグナルが残っていれば何もしない。
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
