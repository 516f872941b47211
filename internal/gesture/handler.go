package gesture

import "fmt"

// Handler receives emitted events. Implementations are supplied by the host
// application; an error is returned to whoever drives the frame loop.
type Handler interface {
	OnOpen(ts float64) error
	OnClose(ts float64) error
}

// HandlerFuncs adapts two functions to a Handler. Nil functions are no-ops.
type HandlerFuncs struct {
	Open  func(ts float64) error
	Close func(ts float64) error
}

// OnOpen calls h.Open.
func (h HandlerFuncs) OnOpen(ts float64) error {
	if h.Open == nil {
		return nil
	}
	return h.Open(ts)
}

// OnClose calls h.Close.
func (h HandlerFuncs) OnClose(ts float64) error {
	if h.Close == nil {
		return nil
	}
	return h.Close(ts)
}

// Handlers calls each handler in order and stops at the first error.
type Handlers []Handler

// OnOpen fans out to every handler.
func (hs Handlers) OnOpen(ts float64) error {
	for _, h := range hs {
		if err := h.OnOpen(ts); err != nil {
			return err
		}
	}
	return nil
}

// OnClose fans out to every handler.
func (hs Handlers) OnClose(ts float64) error {
	for _, h := range hs {
		if err := h.OnClose(ts); err != nil {
			return err
		}
	}
	return nil
}

// Dispatch invokes the handler method matching the event kind.
func Dispatch(h Handler, ev Event) error {
	var err error
	switch ev.Kind {
	case Open:
		err = h.OnOpen(ev.Timestamp)
	case Closed:
		err = h.OnClose(ev.Timestamp)
	default:
		return fmt.Errorf("cannot dispatch %q event", ev.Kind)
	}
	if err != nil {
		return &HandlerError{Event: ev, Err: err}
	}
	return nil
}
