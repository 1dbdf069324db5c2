package rfc

import (
	"strings"
	"sync"
)

// cacheKey — описание зависит от системы: один и тот же модуль в разных
// инсталляциях может иметь разный интерфейс.
type cacheKey struct {
	system   string
	function string
}

// DescriptorCache хранит описания функциональных модулей по (система, функция).
// Чтение конкурентное; при гонке первого заполнения побеждает последний писатель.
// Время жизни кэша равно времени жизни пула или сессии, которые его создали.
type DescriptorCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*FunctionDescriptor
}

// NewDescriptorCache создаёт пустой кэш.
func NewDescriptorCache() *DescriptorCache {
	return &DescriptorCache{entries: make(map[cacheKey]*FunctionDescriptor)}
}

func key(system, function string) cacheKey {
	return cacheKey{system: system, function: strings.ToUpper(function)}
}

// Get возвращает описание из кэша.
func (c *DescriptorCache) Get(system, function string) (*FunctionDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[key(system, function)]
	return d, ok
}

// Put сохраняет описание.
func (c *DescriptorCache) Put(system string, d *FunctionDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(system, d.Name)] = d
}

// Invalidate удаляет описание, например после смены интерфейса модуля на сервере.
func (c *DescriptorCache) Invalidate(system, function string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key(system, function))
}

// Len возвращает количество описаний в кэше.
func (c *DescriptorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
