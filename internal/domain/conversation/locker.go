package conversation

import "sync"

// keyedMutex — набор мьютексов по идентификатору пользователя.
// Записи удаляются, когда ни одна горутина их не удерживает и не ждёт.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int64]*refMutex)}
}

// Lock захватывает мьютекс пользователя и возвращает функцию освобождения.
func (k *keyedMutex) Lock(userID int64) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[userID]
	if !ok {
		m = &refMutex{}
		k.locks[userID] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, userID)
		}
		k.mu.Unlock()
	}
}

// size возвращает количество активных записей.
func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
