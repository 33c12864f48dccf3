package control

import (
	"context"
	"fmt"

	"github.com/rmaker/homectl/pkg/clusters"
	"github.com/rmaker/homectl/pkg/clusters/onoff"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
	"github.com/rmaker/homectl/pkg/state"
	"github.com/rmaker/homectl/pkg/ui"
)

// SliderBinding keeps a Slider in sync with one numeric attribute.
type SliderBinding struct {
	binding
	param  SliderParam
	slider ui.Slider

	// OnLevelSet runs on the UI queue when a write switched a light that
	// was cached as off.
	OnLevelSet func()

	// shown is the last reconciled display value.
	shown float64
}

// NewSliderBinding binds slider to param on the configured node.
func NewSliderBinding(cfg BindingConfig, param SliderParam, slider ui.Slider) *SliderBinding {
	b := &SliderBinding{
		param:  param,
		slider: slider,
		shown:  param.Default,
	}
	b.init(cfg, param.Cluster, param.Attribute)
	return b
}

// Param returns the bound parameter.
func (b *SliderBinding) Param() SliderParam { return b.param }

// Slider returns the bound control.
func (b *SliderBinding) Slider() ui.Slider { return b.slider }

// Shown returns the last reconciled display value.
func (b *SliderBinding) Shown() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shown
}

func (b *SliderBinding) show(display float64) {
	b.mu.Lock()
	b.shown = display
	b.mu.Unlock()
	b.post(func() { b.slider.SetValue(display) })
}

// SetupInitial draws the offline UI: default bounds and the cached value,
// or the default when nothing is cached.
func (b *SliderBinding) SetupInitial() {
	display := b.param.Default
	if v, ok := b.cache.Get(b.key); ok {
		display = b.param.ToDisplay(v)
	}
	p := b.param

	b.mu.Lock()
	b.shown = display
	b.mu.Unlock()
	b.post(func() {
		b.slider.SetTitle(p.Title)
		b.slider.SetBounds(p.DisplayMin, p.DisplayMax)
		b.slider.SetLabels(label(p.DisplayMin), label(p.DisplayMax))
		b.slider.SetValue(display)
	})
}

// Refresh resolves the cluster handle and reads min, max and current value
// in sequence. The first failure stops the chain; the cache is left
// untouched and the binding returns to Idle.
func (b *SliderBinding) Refresh(ctx context.Context) error {
	b.op.Lock()
	defer b.op.Unlock()

	b.setState(StateResolving)
	b.post(func() { b.slider.SetLoading(true) })

	cc, err := b.resolve(ctx)
	if err != nil {
		return b.readFailed(err)
	}

	b.setState(StateReading)
	lo, hi := b.param.DisplayMin, b.param.DisplayMax
	if b.param.HasBounds {
		mn, err := cc.ReadNumber(ctx, b.param.MinAttribute)
		if err != nil {
			return b.readFailed(err)
		}
		mx, err := cc.ReadNumber(ctx, b.param.MaxAttribute)
		if err != nil {
			return b.readFailed(err)
		}
		lo, hi = b.param.ToDisplay(mn), b.param.ToDisplay(mx)
	}
	cur, err := cc.ReadNumber(ctx, b.param.Attribute)
	if err != nil {
		return b.readFailed(err)
	}

	b.cache.Set(b.key, cur, state.SourceRead)
	display := b.param.ToDisplay(cur)
	b.mu.Lock()
	b.shown = display
	b.mu.Unlock()
	b.post(func() {
		b.slider.SetBounds(lo, hi)
		b.slider.SetLabels(label(lo), label(hi))
		b.slider.SetValue(display)
		b.slider.SetLoading(false)
	})
	b.setState(StateReady)
	return nil
}

func (b *SliderBinding) readFailed(err error) error {
	b.log.Debugf("%s: refresh: %v", b.key, err)
	b.post(func() { b.slider.SetLoading(false) })
	b.setState(StateIdle)
	return err
}

// Change dispatches a user change. The slider shows display while the
// command is in flight. On success the device value is committed to the
// cache; on failure the slider returns to the last known-good value. There
// is no retry.
func (b *SliderBinding) Change(ctx context.Context, display float64) error {
	b.op.Lock()
	defer b.op.Unlock()

	settled := b.State()
	b.setState(StateWriting)
	b.post(func() { b.slider.SetValue(display) })

	v := b.param.ToDevice(display)
	tok := b.cache.BeginWrite(b.key)

	cc, err := b.resolve(ctx)
	if err == nil {
		err = b.param.Send(ctx, cc, v)
	}
	if err != nil {
		b.rollback(settled)
		return fmt.Errorf("%s %s: %w", b.param.ID, b.node, err)
	}

	if b.cache.CommitWrite(tok, v) {
		b.show(b.param.ToDisplay(v))
	} else {
		b.log.Debugf("%s: write of %d superseded by report", b.key, v)
	}
	if b.param.CouplesOnOff {
		b.markOn()
	}
	b.setState(StateCommitted)
	b.setState(StateReady)
	return nil
}

func (b *SliderBinding) rollback(settled State) {
	b.setState(StateRolledBack)

	display := b.Shown()
	if v, ok := b.cache.Get(b.key); ok {
		display = b.param.ToDisplay(v)
	}
	b.show(display)

	if settled == StateIdle {
		b.setState(StateIdle)
	} else {
		b.setState(StateReady)
	}
}

// markOn records that a level command switched the light on.
func (b *SliderBinding) markOn() {
	key := state.Key{Node: b.key.Node, Endpoint: b.key.Endpoint, Cluster: onoff.ClusterID, Attribute: onoff.AttrOnOff}
	on, ok := b.cache.Get(key)
	if !ok || on != 0 {
		return
	}
	b.cache.Set(key, 1, state.SourceWrite)
	if b.OnLevelSet != nil {
		b.post(b.OnLevelSet)
	}
}

// Subscribe registers the attribute subscription. Every report updates the
// cache and the slider, whatever the slider showed before.
func (b *SliderBinding) Subscribe(ctx context.Context) error {
	cc, err := b.resolve(ctx)
	if err != nil {
		return err
	}
	_, err = b.registry.Subscribe(ctx, b.key,
		func(ctx context.Context, fn device.ReportFunc) (device.Subscription, error) {
			return cc.Subscribe(ctx, b.param.Attribute, b.params, fn)
		},
		func(path datamodel.AttributePath, data []byte) {
			v, err := clusters.DecodeNumber(data)
			if err != nil {
				b.log.Warnf("%s: bad report: %v", b.key, err)
				return
			}
			b.cache.Set(b.key, v, state.SourceReport)
			b.show(b.param.ToDisplay(v))
		})
	return err
}

func label(v float64) string {
	return fmt.Sprintf("%.0f", v)
}
