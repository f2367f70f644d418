package publisher

import (
	"context"
	"fmt"

	"github.com/c360/semevents/event"
)

// Publisher delivers one record. It must be safe for concurrent use: the
// scheduler fans out from several worker goroutines.
type Publisher interface {
	Publish(ctx context.Context, rec *event.Record) error
}

// Namer is implemented by publishers that report a stable name for logs
// and metric labels.
type Namer interface {
	Name() string
}

// Name returns the name of p, falling back to its dynamic type.
func Name(p Publisher) string {
	if n, ok := p.(Namer); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", p)
}

// Func adapts a function to Publisher.
type Func func(ctx context.Context, rec *event.Record) error

// Publish calls f(ctx, rec).
func (f Func) Publish(ctx context.Context, rec *event.Record) error {
	return f(ctx, rec)
}

// Named attaches a name to p.
func Named(name string, p Publisher) Publisher {
	return named{name: name, Publisher: p}
}

type named struct {
	name string
	Publisher
}

func (n named) Name() string { return n.name }
