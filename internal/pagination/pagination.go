// Package pagination splits ordered sequences into 1-based pages.
package pagination

import (
	"time"

	"gorm.io/gorm"
)

const (
	// DefaultSize is used when a request does not name a page size.
	DefaultSize = 20
	// MaxSize bounds client-chosen page sizes.
	MaxSize = 100
)

// Page is one window of an ordered sequence.
type Page[T any] struct {
	Items   []T   `json:"items"`
	Number  int   `json:"page_number"`
	Size    int   `json:"page_size"`
	HasMore bool  `json:"has_more"`
	Total   int64 `json:"total"`
}

// Anchor pins offset paging to the newest item seen on the first page.
// Items newer than the anchor are excluded, so molts posted while a reader
// pages through a feed neither repeat nor push items past a page boundary.
type Anchor struct {
	At time.Time `json:"at"`
	ID uint      `json:"id"`
}

// Request names the page to fetch.
type Request struct {
	Number int
	Size   int
	Anchor *Anchor
}

// NewRequest normalises a size, falling back to DefaultSize and capping at MaxSize.
// The page number is kept as given; out-of-range numbers yield empty pages.
func NewRequest(number, size int) Request {
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	return Request{Number: number, Size: size}
}

// Offset is the number of items before this page.
func (r Request) Offset() int {
	return (r.Number - 1) * r.Size
}

func (r Request) valid() bool {
	return r.Number >= 1 && r.Size >= 1
}

// Empty returns a page with no items and HasMore false.
func Empty[T any](r Request, total int64) Page[T] {
	return Page[T]{Items: []T{}, Number: r.Number, Size: r.Size, Total: total}
}

// Slice pages an in-memory sequence.
func Slice[T any](seq []T, r Request) Page[T] {
	total := int64(len(seq))
	if !r.valid() || r.Offset() >= len(seq) {
		return Empty[T](r, total)
	}
	end := r.Offset() + r.Size
	if end > len(seq) {
		end = len(seq)
	}
	items := make([]T, end-r.Offset())
	copy(items, seq[r.Offset():end])
	return Page[T]{
		Items:   items,
		Number:  r.Number,
		Size:    r.Size,
		HasMore: end < len(seq),
		Total:   total,
	}
}

// Find pages a filtered query. base carries the model and filters; finalize
// adds ordering, column selection and preloads for the item fetch only, so
// the count runs against the bare filtered set.
func Find[T any](base *gorm.DB, r Request, finalize func(*gorm.DB) *gorm.DB) (Page[T], error) {
	if !r.valid() {
		return Empty[T](r, 0), nil
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Page[T]{}, err
	}
	if int64(r.Offset()) >= total {
		return Empty[T](r, total), nil
	}

	var items []T
	q := base.Session(&gorm.Session{})
	if finalize != nil {
		q = finalize(q)
	}
	if err := q.Limit(r.Size).Offset(r.Offset()).Find(&items).Error; err != nil {
		return Page[T]{}, err
	}
	if items == nil {
		items = []T{}
	}

	return Page[T]{
		Items:   items,
		Number:  r.Number,
		Size:    r.Size,
		HasMore: int64(r.Offset()+len(items)) < total,
		Total:   total,
	}, nil
}
