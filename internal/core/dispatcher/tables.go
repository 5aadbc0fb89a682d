package dispatcher

import (
	"sort"
	"sync"

	"github.com/Tagentacle/go-sdk/pkg/interfaces"
)

// ============================================================================
//                              订阅表
// ============================================================================

// subscription 订阅句柄
type subscription struct {
	table   *subscriptionTable
	id      uint64
	topic   string
	handler interfaces.MessageHandler
}

// Topic 实现 interfaces.Subscription
func (s *subscription) Topic() string { return s.topic }

var _ interfaces.Subscription = (*subscription)(nil)

type subscriptionTable struct {
	mu     sync.RWMutex
	nextID uint64
	topics map[string][]*subscription
}

func newSubscriptionTable() *subscriptionTable {
	return &subscriptionTable{topics: make(map[string][]*subscription)}
}

// add 追加回调，first 表示这是该主题的第一个回调
func (t *subscriptionTable) add(topic string, h interfaces.MessageHandler) (sub *subscription, first bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	sub = &subscription{table: t, id: t.nextID, topic: topic, handler: h}
	first = len(t.topics[topic]) == 0
	t.topics[topic] = append(t.topics[topic], sub)
	return sub, first
}

// remove 移除回调，last 表示该主题已经没有回调
//
// 其他表签发的句柄不会被移除。
func (t *subscriptionTable) remove(sub *subscription) (removed, last bool) {
	if sub.table != t {
		return false, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	subs := t.topics[sub.topic]
	for i, s := range subs {
		if s != sub {
			continue
		}
		subs = append(subs[:i:i], subs[i+1:]...)
		if len(subs) == 0 {
			delete(t.topics, sub.topic)
			return true, true
		}
		t.topics[sub.topic] = subs
		return true, false
	}
	return false, false
}

// snapshot 返回主题回调的副本，投递期间的注册变化不影响本次投递
func (t *subscriptionTable) snapshot(topic string) []*subscription {
	t.mu.RLock()
	defer t.mu.RUnlock()

	subs := t.topics[topic]
	if len(subs) == 0 {
		return nil
	}
	out := make([]*subscription, len(subs))
	copy(out, subs)
	return out
}

func (t *subscriptionTable) topicNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.topics))
	for name := range t.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ============================================================================
//                              服务表
// ============================================================================

type serviceTable struct {
	mu       sync.RWMutex
	handlers map[string]interfaces.ServiceHandler
}

func newServiceTable() *serviceTable {
	return &serviceTable{handlers: make(map[string]interfaces.ServiceHandler)}
}

func (t *serviceTable) add(name string, h interfaces.ServiceHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.handlers[name]; ok {
		return ErrServiceExists
	}
	t.handlers[name] = h
	return nil
}

func (t *serviceTable) remove(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.handlers[name]; !ok {
		return ErrServiceNotFound
	}
	delete(t.handlers, name)
	return nil
}

func (t *serviceTable) lookup(name string) (interfaces.ServiceHandler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.handlers[name]
	return h, ok
}

func (t *serviceTable) names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
