package plugin

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ayusman/handswitch/internal/store"
)

// BindingSource resolves the binding for a gesture kind. *store.BindingRepository satisfies it.
type BindingSource interface {
	GetByKind(kind store.Kind) (*store.Binding, error)
}

// Dispatcher runs the plugin action bound to each emitted gesture.
// It implements gesture.Handler.
type Dispatcher struct {
	bindings BindingSource
	manager  *Manager
	executor *Executor
	logger   *zap.SugaredLogger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(bindings BindingSource, manager *Manager, executor *Executor, logger *zap.SugaredLogger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Dispatcher{
		bindings: bindings,
		manager:  manager,
		executor: executor,
		logger:   logger,
	}
}

// OnOpen runs the action bound to the open kind.
func (d *Dispatcher) OnOpen(ts float64) error {
	return d.run(store.KindOpen, ts)
}

// OnClose runs the action bound to the closed kind.
func (d *Dispatcher) OnClose(ts float64) error {
	return d.run(store.KindClosed, ts)
}

func (d *Dispatcher) run(kind store.Kind, ts float64) error {
	b, err := d.bindings.GetByKind(kind)
	if err != nil {
		return fmt.Errorf("look up %s binding: %w", kind, err)
	}
	if b == nil || !b.Enabled {
		d.logger.Debugw("no active binding", "kind", kind)
		return nil
	}

	p, err := d.manager.Get(b.PluginName)
	if err != nil {
		return fmt.Errorf("%s binding: %s: %w", kind, b.PluginName, err)
	}
	if !p.Supports(b.ActionName) {
		return fmt.Errorf("plugin %s does not provide action %q", p.Manifest.Name, b.ActionName)
	}

	params, err := json.Marshal(map[string]float64{"timestamp": ts})
	if err != nil {
		return err
	}

	resp, err := d.executor.Execute(context.Background(), p, &Request{
		Action:  b.ActionName,
		Gesture: string(kind),
		Config:  b.Config,
		Params:  params,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("plugin %s action %s: %s", p.Manifest.Name, b.ActionName, resp.Error)
	}

	d.logger.Infow("plugin action executed", "kind", kind, "plugin", p.Manifest.Name, "action", b.ActionName)
	return nil
}
