package control

import (
	"context"
	"fmt"

	"github.com/rmaker/homectl/pkg/clusters"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
	"github.com/rmaker/homectl/pkg/state"
	"github.com/rmaker/homectl/pkg/ui"
)

// ModeBinding keeps a Dropdown in sync with an enumerated attribute. Unlike
// sliders the dropdown is not updated optimistically: the selection changes
// only once the device accepted the write.
type ModeBinding struct {
	binding
	param    ModeParam
	dropdown ui.Dropdown

	// OnModeSet runs on the UI queue after a successful write.
	OnModeSet func(label string)
}

// NewModeBinding binds dropdown to param on the configured node.
func NewModeBinding(cfg BindingConfig, param ModeParam, dropdown ui.Dropdown) *ModeBinding {
	b := &ModeBinding{param: param, dropdown: dropdown}
	b.init(cfg, param.Cluster, param.Attribute)
	return b
}

// Param returns the bound parameter.
func (b *ModeBinding) Param() ModeParam { return b.param }

// Dropdown returns the bound control.
func (b *ModeBinding) Dropdown() ui.Dropdown { return b.dropdown }

// SetupInitial shows the cached selection, if any.
func (b *ModeBinding) SetupInitial() {
	title := b.param.Title
	v, ok := b.cache.Get(b.key)
	b.post(func() {
		b.dropdown.SetTitle(title)
		if ok {
			b.dropdown.SetSelected(b.param.Decode(v))
		}
	})
}

// Refresh reads the attribute and selects the matching option.
func (b *ModeBinding) Refresh(ctx context.Context) error {
	b.op.Lock()
	defer b.op.Unlock()

	b.setState(StateResolving)
	cc, err := b.resolve(ctx)
	if err != nil {
		return b.readFailed(err)
	}
	b.setState(StateReading)
	v, err := cc.ReadNumber(ctx, b.param.Attribute)
	if err != nil {
		return b.readFailed(err)
	}

	b.cache.Set(b.key, v, state.SourceRead)
	sel := b.param.Decode(v)
	b.post(func() { b.dropdown.SetSelected(sel) })
	b.setState(StateReady)
	return nil
}

func (b *ModeBinding) readFailed(err error) error {
	b.log.Debugf("%s: refresh: %v", b.key, err)
	b.setState(StateIdle)
	return err
}

// Select writes the device value of option.
func (b *ModeBinding) Select(ctx context.Context, option string) error {
	v, ok := b.param.Encode(option)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOption, option)
	}

	b.op.Lock()
	defer b.op.Unlock()

	settled := b.State()
	b.setState(StateWriting)
	b.post(func() { b.dropdown.SetLoading(true) })
	tok := b.cache.BeginWrite(b.key)

	cc, err := b.resolve(ctx)
	if err == nil {
		err = b.param.Send(ctx, cc, v)
	}
	b.post(func() { b.dropdown.SetLoading(false) })

	if err != nil {
		b.setState(StateRolledBack)
		if settled == StateIdle {
			b.setState(StateIdle)
		} else {
			b.setState(StateReady)
		}
		return fmt.Errorf("%s %s: %w", b.param.ID, b.node, err)
	}

	if b.cache.CommitWrite(tok, v) {
		b.post(func() { b.dropdown.SetSelected(option) })
	}
	if b.OnModeSet != nil {
		b.post(func() { b.OnModeSet(option) })
	}
	b.setState(StateCommitted)
	b.setState(StateReady)
	return nil
}

// Subscribe registers the attribute subscription.
func (b *ModeBinding) Subscribe(ctx context.Context) error {
	cc, err := b.resolve(ctx)
	if err != nil {
		return err
	}
	_, err = b.registry.Subscribe(ctx, b.key,
		func(ctx context.Context, fn device.ReportFunc) (device.Subscription, error) {
			return cc.Subscribe(ctx, b.param.Attribute, b.params, fn)
		},
		func(_ datamodel.AttributePath, data []byte) {
			v, err := clusters.DecodeNumber(data)
			if err != nil {
				b.log.Warnf("%s: bad report: %v", b.key, err)
				return
			}
			b.cache.Set(b.key, v, state.SourceReport)
			sel := b.param.Decode(v)
			b.post(func() { b.dropdown.SetSelected(sel) })
		})
	return err
}
