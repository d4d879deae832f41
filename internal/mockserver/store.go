package mockserver

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

type record = map[string]any

// collection хранит записи одного ресурса в порядке создания.
type collection struct {
	mu     sync.RWMutex
	nextID int
	items  []record
}

func newCollection(seed ...record) *collection {
	c := &collection{nextID: 1}
	for _, rec := range seed {
		c.create(rec)
	}
	return c
}

func idOf(rec record) string {
	return fmt.Sprint(rec["id"])
}

func clone(rec record) record {
	out := make(record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// list фильтрует по точному совпадению полей из filters и по подстроке keyword в title.
func (c *collection) list(q url.Values, filters ...string) []record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := []record{}
	keyword := q.Get("keyword")
	for _, rec := range c.items {
		if keyword != "" && !strings.Contains(fmt.Sprint(rec["title"]), keyword) {
			continue
		}
		match := true
		for _, f := range filters {
			if want := q.Get(f); want != "" && fmt.Sprint(rec[f]) != want {
				match = false
				break
			}
		}
		if match {
			out = append(out, clone(rec))
		}
	}
	return out
}

func (c *collection) get(id string) (record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, rec := range c.items {
		if idOf(rec) == id {
			return clone(rec), true
		}
	}
	return nil, false
}

func (c *collection) create(rec record) record {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec = clone(rec)
	rec["id"] = c.nextID
	c.nextID++
	c.items = append(c.items, rec)
	return clone(rec)
}

func (c *collection) update(id string, patch record) (record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range c.items {
		if idOf(rec) != id {
			continue
		}
		for k, v := range patch {
			if k != "id" {
				rec[k] = v
			}
		}
		return clone(rec), true
	}
	return nil, false
}

func (c *collection) remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, rec := range c.items {
		if idOf(rec) == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *collection) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
