package types

import (
	"errors"
	"fmt"

	"go.uber.org/zap/zapcore"
)

const (
	// PropertyKeyMaxLength is the upper bound for the length of a property key.
	PropertyKeyMaxLength = 256
	// PropertyValueMaxLength is the upper bound for the length of a property value.
	PropertyValueMaxLength = 64 << 10
)

// ErrMalformed is returned for property records that can't be applied.
var ErrMalformed = errors.New("malformed node property")

//go:generate scalegen -types NodeProperty

// NodeProperty is a single key/value entry published by its owner node.
//
// Deleted marks a tombstone: the key was removed by the owner. Tombstones are
// ordered by Revision like any other record.
type NodeProperty struct {
	Owner    NodeID
	Key      string `scale:"max=256"`
	Value    string `scale:"max=65536"`
	Deleted  bool
	Revision uint64
}

// NewProperty creates a record that sets key to value.
func NewProperty(owner NodeID, key, value string, revision uint64) NodeProperty {
	return NodeProperty{Owner: owner, Key: key, Value: value, Revision: revision}
}

// NewTombstone creates a record that deletes key.
func NewTombstone(owner NodeID, key string, revision uint64) NodeProperty {
	return NodeProperty{Owner: owner, Key: key, Deleted: true, Revision: revision}
}

// ID returns the identity of the entry in the property table.
func (p NodeProperty) ID() PropertyID {
	return PropertyID{Owner: p.Owner, Key: p.Key}
}

// ValuePtr returns nil for tombstones and a pointer to the value otherwise.
func (p NodeProperty) ValuePtr() *string {
	if p.Deleted {
		return nil
	}
	v := p.Value
	return &v
}

// Validate checks that the record identifies an entry and is self-consistent.
func (p NodeProperty) Validate() error {
	switch {
	case p.Owner.Empty():
		return fmt.Errorf("%w: missing owner", ErrMalformed)
	case len(p.Key) == 0:
		return fmt.Errorf("%w: missing key (owner %s)", ErrMalformed, p.Owner.ShortString())
	case len(p.Key) > PropertyKeyMaxLength:
		return fmt.Errorf("%w: key too long (%d)", ErrMalformed, len(p.Key))
	case len(p.Value) > PropertyValueMaxLength:
		return fmt.Errorf("%w: value too long (%d)", ErrMalformed, len(p.Value))
	case p.Deleted && len(p.Value) != 0:
		return fmt.Errorf("%w: tombstone with value for key %q", ErrMalformed, p.Key)
	}
	return nil
}

func (p NodeProperty) String() string {
	if p.Deleted {
		return fmt.Sprintf("%s:%s=<deleted>@%d", p.Owner.ShortString(), p.Key, p.Revision)
	}
	return fmt.Sprintf("%s:%s=%q@%d", p.Owner.ShortString(), p.Key, p.Value, p.Revision)
}

// MarshalLogObject implements logging interface.
func (p NodeProperty) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("owner", p.Owner.ShortString())
	encoder.AddString("key", p.Key)
	if p.Deleted {
		encoder.AddBool("deleted", true)
	} else {
		encoder.AddString("value", p.Value)
	}
	encoder.AddUint64("revision", p.Revision)
	return nil
}

// PropertyID is the (owner, key) pair that identifies an entry in the property table.
type PropertyID struct {
	Owner NodeID
	Key   string
}

func (id PropertyID) String() string {
	return id.Owner.ShortString() + ":" + id.Key
}

// NodeProperties is a list of records that can be logged as an array.
type NodeProperties []NodeProperty

// MarshalLogArray implements zapcore.ArrayMarshaler.
func (ps NodeProperties) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, p := range ps {
		if err := enc.AppendObject(p); err != nil {
			return err
		}
	}
	return nil
}
