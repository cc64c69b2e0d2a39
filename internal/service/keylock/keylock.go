// Package keylock предоставляет внутрипроцессную блокировку по ключу.
// Используется как единая точка сериализации check-then-act операций над удалённым хранилищем.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker выдаёт мьютекс на ключ; неиспользуемые ключи удаляются из карты.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New создаёт пустой Locker.
func New() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

// Lock захватывает блокировку ключа и возвращает функцию освобождения.
// Блокировка не реентерабельна.
func (l *Locker) Lock(key string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// Len возвращает число ключей, которые сейчас удерживаются или ожидаются.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
