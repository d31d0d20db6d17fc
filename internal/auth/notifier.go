package auth

import (
	"sync"

	"github.com/hitoshi/tablero/internal/model"
)

// AuthChange はセッションの遷移（サインインまたはサインアウト）を表す。
// サインアウトの場合Userはnil。
type AuthChange struct {
	SessionID string
	User      *model.User
}

// SignedIn はサインインの遷移かどうかを返す。
func (c AuthChange) SignedIn() bool {
	return c.User != nil
}

// changeBroker は認証状態変化のリスナーを管理する。
type changeBroker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(AuthChange)
}

func newChangeBroker() *changeBroker {
	return &changeBroker{subs: make(map[int]func(AuthChange))}
}

// subscribe はリスナーを登録し、登録解除関数を返す。
// 登録解除関数は複数回呼んでも安全。
func (b *changeBroker) subscribe(cb func(AuthChange)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = cb
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// publish は登録済みの全リスナーに遷移を1回ずつ通知する。
// リスナーはロック外で呼び出すため、リスナー内から登録解除してよい。
func (b *changeBroker) publish(change AuthChange) {
	b.mu.Lock()
	cbs := make([]func(AuthChange), 0, len(b.subs))
	for _, cb := range b.subs {
		cbs = append(cbs, cb)
	}
	b.mu.Unlock()

	for _, cb := range cbs {
		cb(change)
	}
}

// count は登録中のリスナー数を返す。
func (b *changeBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
