package record

import (
	"bytes"
	"slices"
	"time"
)

// Kind tags the type held by a Value.
type Kind string

const (
	KindString  Kind = "string"
	KindInt     Kind = "int"
	KindTime    Kind = "time"
	KindBytes   Kind = "bytes"
	KindStrings Kind = "strings"
	KindRef     Kind = "ref"
)

// Reference points at another record, e.g. an item's owning list.
type Reference struct {
	Type Type `json:"type"`
	Key  Key  `json:"key"`
}

// Value is a single typed field value. Only the member matching Kind is set.
type Value struct {
	Kind    Kind       `json:"kind"`
	Str     string     `json:"s,omitempty"`
	Int     int64      `json:"i,omitempty"`
	Time    *time.Time `json:"t,omitempty"`
	Bytes   []byte     `json:"b,omitempty"`
	Strings []string   `json:"ss,omitempty"`
	Ref     *Reference `json:"r,omitempty"`
}

func String(s string) Value { return Value{Kind: KindString, Str: s} }
func Int(n int64) Value     { return Value{Kind: KindInt, Int: n} }
func Bytes(b []byte) Value  { return Value{Kind: KindBytes, Bytes: bytes.Clone(b)} }

func Time(t time.Time) Value {
	t = t.UTC()
	return Value{Kind: KindTime, Time: &t}
}

func Strings(ss []string) Value {
	return Value{Kind: KindStrings, Strings: slices.Clone(ss)}
}

func Ref(t Type, key Key) Value {
	return Value{Kind: KindRef, Ref: &Reference{Type: t, Key: key}}
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindInt:
		return v.Int == o.Int
	case KindTime:
		if v.Time == nil || o.Time == nil {
			return v.Time == o.Time
		}
		return v.Time.Equal(*o.Time)
	case KindBytes:
		return bytes.Equal(v.Bytes, o.Bytes)
	case KindStrings:
		return slices.Equal(v.Strings, o.Strings)
	case KindRef:
		if v.Ref == nil || o.Ref == nil {
			return v.Ref == o.Ref
		}
		return *v.Ref == *o.Ref
	}
	return false
}

func (v Value) clone() Value {
	c := v
	if v.Time != nil {
		t := *v.Time
		c.Time = &t
	}
	if v.Ref != nil {
		r := *v.Ref
		c.Ref = &r
	}
	c.Bytes = bytes.Clone(v.Bytes)
	c.Strings = slices.Clone(v.Strings)
	return c
}
