package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateItem = errors.New("duplicate catalog item")
	ErrNegativeStock = errors.New("negative total stock")
)

type Item struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	TotalStock int    `json:"total_stock"`
}

// Catalog is the fixed, read-only set of items for the lifetime of the process.
type Catalog struct {
	items []Item
	index map[int]int
}

func New(items []Item) (*Catalog, error) {
	c := &Catalog{
		items: make([]Item, 0, len(items)),
		index: make(map[int]int, len(items)),
	}
	for _, it := range items {
		if _, dup := c.index[it.ID]; dup {
			return nil, fmt.Errorf("%w: id=%d", ErrDuplicateItem, it.ID)
		}
		if it.TotalStock < 0 {
			return nil, fmt.Errorf("%w: id=%d stock=%d", ErrNegativeStock, it.ID, it.TotalStock)
		}
		c.index[it.ID] = len(c.items)
		c.items = append(c.items, it)
	}
	return c, nil
}

// Default is the demo catalog the service ships with.
func Default() *Catalog {
	c, err := New([]Item{
		{ID: 1, Name: "iPhone", TotalStock: 5},
		{ID: 2, Name: "MacBook", TotalStock: 3},
		{ID: 3, Name: "AirPods", TotalStock: 8},
		{ID: 4, Name: "iPad", TotalStock: 4},
	})
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) List() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Catalog) Lookup(id int) (Item, bool) {
	i, ok := c.index[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

func (c *Catalog) Len() int { return len(c.items) }
