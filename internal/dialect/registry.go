package dialect

import (
	"reflect"

	"github.com/pkg/errors"

	"dialectkit/internal/schema"
)

// RegisterConverter makes c the converter of t, replacing and detaching any
// previous one. c leaves the provider it was registered with before.
func (p *Provider) RegisterConverter(t reflect.Type, c Converter) error {
	if c == nil {
		return errors.Wrapf(ErrConfiguration, "nil converter for %s", t)
	}
	if t == nil {
		return errors.Wrap(ErrConfiguration, "converter registered without a type")
	}
	p.own(c)

	p.mu.Lock()
	old, had := p.converters[t]
	p.converters[t] = newRegistration(c)
	p.mu.Unlock()

	if had && old.conv != c && !p.owns(old.conv) {
		old.conv.attach(nil)
	}
	return nil
}

// Register is RegisterConverter keyed by T.
func Register[T any](p *Provider, c Converter) error {
	return p.RegisterConverter(reflect.TypeFor[T](), c)
}

// RemoveConverter drops the converter of t and detaches it.
func (p *Provider) RemoveConverter(t reflect.Type) {
	p.mu.Lock()
	old, had := p.converters[t]
	delete(p.converters, t)
	p.mu.Unlock()
	if had && !p.owns(old.conv) {
		old.conv.attach(nil)
	}
}

func (p *Provider) SetEnumConverter(c Converter)       { p.setFallback(&p.enumConv, c) }
func (p *Provider) SetReferenceConverter(c Converter)  { p.setFallback(&p.refConv, c) }
func (p *Provider) SetValueConverter(c Converter)      { p.setFallback(&p.valueConv, c) }
func (p *Provider) SetRowVersionConverter(c Converter) { p.setFallback(&p.rowVerConv, c) }

func (p *Provider) setFallback(slot *registration, c Converter) {
	if c != nil {
		p.own(c)
	}
	p.mu.Lock()
	old := slot.conv
	if c == nil {
		*slot = registration{}
	} else {
		*slot = newRegistration(c)
	}
	p.mu.Unlock()
	if old != nil && old != c && !p.owns(old) {
		old.attach(nil)
	}
}

// own moves c to p, releasing it from any previous provider.
func (p *Provider) own(c Converter) {
	if prev := c.Provider(); prev != nil && prev != p {
		prev.release(c)
	}
	c.attach(p)
}

func (p *Provider) release(c Converter) {
	p.mu.Lock()
	for t, r := range p.converters {
		if r.conv == c {
			delete(p.converters, t)
		}
	}
	for _, slot := range []*registration{&p.enumConv, &p.refConv, &p.valueConv, &p.rowVerConv} {
		if slot.conv == c {
			*slot = registration{}
		}
	}
	p.mu.Unlock()
}

func (p *Provider) owns(c Converter) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, r := range p.converters {
		if r.conv == c {
			return true
		}
	}
	for _, r := range []registration{p.enumConv, p.refConv, p.valueConv, p.rowVerConv} {
		if r.conv == c {
			return true
		}
	}
	return false
}

func (p *Provider) lookup(t reflect.Type) (registration, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.converters[underlying(t)]
	return r, ok
}

// GetConverter returns the converter registered for t, looking through
// pointers, or nil.
func (p *Provider) GetConverter(t reflect.Type) Converter {
	if r, ok := p.lookup(t); ok {
		return r.conv
	}
	return nil
}

// StringConverter returns the registered string converter when it is a
// *StringConverter.
func (p *Provider) StringConverter() *StringConverter {
	sc, _ := p.GetConverter(reflect.TypeFor[string]()).(*StringConverter)
	return sc
}

func (p *Provider) fallback(t reflect.Type) registration {
	t = underlying(t)
	p.mu.RLock()
	defer p.mu.RUnlock()
	switch {
	case isEnum(t):
		return p.enumConv
	case isReferenceKind(t):
		return p.refConv
	}
	return p.valueConv
}

// GetConverterBestMatch returns the exact converter of t or the enum,
// reference or value fallback.
func (p *Provider) GetConverterBestMatch(t reflect.Type) Converter {
	if r, ok := p.lookup(t); ok {
		return r.conv
	}
	return p.fallback(t).conv
}

// GetFieldConverter is GetConverterBestMatch with row-version fields served
// by the row-version converter.
func (p *Provider) GetFieldConverter(f *schema.FieldDefinition) Converter {
	if f.IsRowVersion {
		p.mu.RLock()
		c := p.rowVerConv.conv
		p.mu.RUnlock()
		if c != nil {
			return c
		}
	}
	return p.GetConverterBestMatch(f.ColumnType())
}

// ColumnTypeDefinition resolves the column type of t. Length doubles as the
// precision of precision-aware converters.
func (p *Provider) ColumnTypeDefinition(t reflect.Type, length, scale *int) (string, error) {
	base := underlying(t)
	if r, ok := p.lookup(base); ok {
		def := r.definition(base, length, scale)
		if def == "" {
			return "", errors.Wrapf(ErrConfiguration, "%s requires a column definition", converterName(r.conv))
		}
		return def, nil
	}
	r := p.fallback(base)
	if r.conv == nil {
		return "", errors.Wrapf(ErrConfiguration, "no converter for %s", base)
	}
	if def := r.definition(base, length, scale); def != "" {
		return def, nil
	}
	return "", errors.Wrapf(ErrConfiguration, "%s requires a column definition", converterName(r.conv))
}

// isEnum reports whether t is a defined string or integer type.
func isEnum(t reflect.Type) bool {
	if t.Name() == "" || t.PkgPath() == "" {
		return false
	}
	return t.Kind() == reflect.String || isIntKind(t.Kind())
}

func isReferenceKind(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Map, reflect.Slice, reflect.Interface:
		return true
	}
	return false
}
