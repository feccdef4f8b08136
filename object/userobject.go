package object

import (
	"bytes"
	"fmt"

	"github.com/perch-lang/perch/op"
)

// UserObject is a mutable mapping from field name to value. Whether fields
// are writable is a per-object capability: a frozen object rejects every
// field store but still allows reads. Built-in values exposed through the
// same field interface use this flag rather than a separate type.
type UserObject struct {
	fields map[string]Object
	frozen bool
}

func (o *UserObject) Type() Type {
	return OBJECT
}

func (o *UserObject) Inspect() string {
	var out bytes.Buffer
	out.WriteString("{")
	for i, key := range Keys(o.fields) {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(fmt.Sprintf("%q: %s", key, o.fields[key].Inspect()))
	}
	out.WriteString("}")
	return out.String()
}

func (o *UserObject) String() string {
	return o.Inspect()
}

func (o *UserObject) Interface() interface{} {
	fields := make(map[string]interface{}, len(o.fields))
	for k, v := range o.fields {
		fields[k] = v.Interface()
	}
	return fields
}

func (o *UserObject) Equals(other Object) bool {
	otherObj, ok := other.(*UserObject)
	if !ok {
		return false
	}
	if len(o.fields) != len(otherObj.fields) {
		return false
	}
	for k, v := range o.fields {
		otherV, found := otherObj.fields[k]
		if !found || !v.Equals(otherV) {
			return false
		}
	}
	return true
}

func (o *UserObject) GetAttr(name string) (Object, bool) {
	value, found := o.fields[name]
	return value, found
}

func (o *UserObject) SetAttr(name string, value Object) error {
	if o.frozen {
		return ValueErrorf("field %q is not writable on a frozen object", name)
	}
	o.fields[name] = value
	return nil
}

func (o *UserObject) IsTruthy() bool {
	return len(o.fields) > 0
}

func (o *UserObject) RunOperation(opType op.BinaryOpType, right Object) (Object, error) {
	return nil, TypeErrorf("unsupported operation for object: %v", opType)
}

// GetItem implements obj[key] with a string key.
func (o *UserObject) GetItem(key Object) (Object, *Error) {
	keyStr, ok := key.(*String)
	if !ok {
		return nil, TypeErrorf("object key must be a string (got %s)", key.Type())
	}
	value, found := o.fields[keyStr.value]
	if !found {
		return nil, IndexErrorf("object has no field %q", keyStr.value)
	}
	return value, nil
}

// SetItem implements obj[key] = value with a string key.
func (o *UserObject) SetItem(key, value Object) *Error {
	keyStr, ok := key.(*String)
	if !ok {
		return TypeErrorf("object key must be a string (got %s)", key.Type())
	}
	if o.frozen {
		return ValueErrorf("field %q is not writable on a frozen object", keyStr.value)
	}
	o.fields[keyStr.value] = value
	return nil
}

// Contains returns true if the object has a field with the given name.
func (o *UserObject) Contains(item Object) *Bool {
	keyStr, ok := item.(*String)
	if !ok {
		return False
	}
	_, found := o.fields[keyStr.value]
	return NewBool(found)
}

// Len returns the number of fields.
func (o *UserObject) Len() *Int {
	return NewInt(int64(len(o.fields)))
}

// Freeze makes every field read-only from this point on.
func (o *UserObject) Freeze() {
	o.frozen = true
}

// IsFrozen returns true if field stores are rejected.
func (o *UserObject) IsFrozen() bool {
	return o.frozen
}

// FieldNames returns the field names in sorted order.
func (o *UserObject) FieldNames() []string {
	return Keys(o.fields)
}

func NewUserObject(fields map[string]Object) *UserObject {
	if fields == nil {
		fields = map[string]Object{}
	}
	return &UserObject{fields: fields}
}
