package ioctl

import (
	"fmt"
	"sort"
)

// Op names one driver operation and the fields its control code is built from.
type Op struct {
	Name     string
	Function uint32
	Method   Method
	Access   Access
}

// Table binds named operations to control codes under one device type.
// A Table is immutable once built.
type Table struct {
	deviceType uint32
	ops        []Op
	codes      map[string]Code
}

// NewTable builds and validates an operation table.
func NewTable(deviceType uint32, ops ...Op) (*Table, error) {
	t := &Table{
		deviceType: deviceType,
		ops:        append([]Op(nil), ops...),
		codes:      make(map[string]Code, len(ops)),
	}
	for _, op := range t.ops {
		t.codes[op.Name] = Encode(deviceType, op.Function, op.Method, op.Access)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustTable is like NewTable but panics on an invalid table. It is meant
// for package-level tables whose contents are fixed at compile time.
func MustTable(deviceType uint32, ops ...Op) *Table {
	t, err := NewTable(deviceType, ops...)
	if err != nil {
		panic(fmt.Sprintf("ioctl: %v", err))
	}
	return t
}

// Validate checks every entry for encodability and checks that no two
// entries share a name or a packed code.
func (t *Table) Validate() error {
	names := make(map[string]struct{}, len(t.ops))
	seen := make(map[Code]string, len(t.ops))

	for _, op := range t.ops {
		if op.Name == "" {
			return fmt.Errorf("operation with function 0x%x has no name", op.Function)
		}
		if err := Validate(t.deviceType, op.Function, op.Method, op.Access); err != nil {
			return fmt.Errorf("operation %s: %w", op.Name, err)
		}
		if _, dup := names[op.Name]; dup {
			return fmt.Errorf("duplicate operation %s", op.Name)
		}
		names[op.Name] = struct{}{}

		code := Encode(t.deviceType, op.Function, op.Method, op.Access)
		if other, dup := seen[code]; dup {
			return fmt.Errorf("operations %s and %s collide on code %s", other, op.Name, code)
		}
		seen[code] = op.Name
	}
	return nil
}

// DeviceType returns the device type every code in the table is built with.
func (t *Table) DeviceType() uint32 {
	return t.deviceType
}

// Code returns the control code for the named operation.
func (t *Table) Code(name string) (Code, bool) {
	c, ok := t.codes[name]
	return c, ok
}

// Lookup returns the operation a control code belongs to.
func (t *Table) Lookup(c Code) (Op, bool) {
	for _, op := range t.ops {
		if t.codes[op.Name] == c {
			return op, true
		}
	}
	return Op{}, false
}

// Ops returns the table entries sorted by function code.
func (t *Table) Ops() []Op {
	ops := append([]Op(nil), t.ops...)
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].Function < ops[j].Function
	})
	return ops
}
