// Package model implements the in-memory object/property/node model (spec
// §4.B/§4.C): nodes, their objects, and properties with values,
// capabilities, and change notification.
package model

import el "github.com/koizuka/echonet-lite-core/echonet_lite"

// PropertySpec describes one EPC's static capabilities and size bounds, as
// supplied by the external object-spec catalog (spec §6).
type PropertySpec struct {
	EPC         el.EPC
	MinSize     int
	MaxSize     int
	CanGet      bool
	CanSet      bool
	CanAnnounce bool
	AcceptValue func(edt []byte) bool
}

// WithinBounds reports whether edt's length satisfies the spec's [min,max]
// bound (spec §3 invariant) and, if present, its AcceptValue predicate.
// A MinSize or MaxSize of 0 leaves that side unbounded, so a zero-value
// PropertySpec (unknown EPC) accepts any EDT.
func (p PropertySpec) WithinBounds(edt []byte) bool {
	n := len(edt)
	if p.MinSize > 0 && n < p.MinSize {
		return false
	}
	if p.MaxSize > 0 && n > p.MaxSize {
		return false
	}
	if p.AcceptValue != nil {
		return p.AcceptValue(edt)
	}
	return true
}

// ClassSpec is the static property catalog for one EOJ class (spec §6).
type ClassSpec struct {
	Properties []PropertySpec
}

// Find looks up a single EPC's spec within the class.
func (c ClassSpec) Find(epc el.EPC) (PropertySpec, bool) {
	for _, p := range c.Properties {
		if p.EPC == epc {
			return p, true
		}
	}
	return PropertySpec{}, false
}

// ObjectSpecSource is the external static object/property specification
// catalog the core consumes (spec §6). An unknown class must yield a
// synthetic, empty ClassSpec rather than an error.
type ObjectSpecSource interface {
	FindClass(group el.ClassGroupCode, class el.ClassCode) ClassSpec
}

// EmptySpecSource is an ObjectSpecSource that knows no classes; every
// lookup returns the empty synthetic spec. Useful for tests and for
// undetailed (dynamically discovered) remote objects before a real catalog
// is wired in.
type EmptySpecSource struct{}

func (EmptySpecSource) FindClass(el.ClassGroupCode, el.ClassCode) ClassSpec {
	return ClassSpec{}
}
