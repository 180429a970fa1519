package models

import (
	"fmt"
	"strconv"
)

// ValueKind is the stored type of an attribute.
type ValueKind int

const (
	KindString ValueKind = iota + 1
	KindDWord
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindDWord:
		return "dword"
	default:
		return "unknown"
	}
}

// ParseValueKind maps "string" / "dword" back to a ValueKind.
func ParseValueKind(s string) (ValueKind, error) {
	switch s {
	case "string", "":
		return KindString, nil
	case "dword":
		return KindDWord, nil
	default:
		return 0, fmt.Errorf("unknown value kind %q", s)
	}
}

// Value is one typed attribute value: a string or a 32-bit integer.
type Value struct {
	Kind  ValueKind
	Str   string
	DWord uint32
}

func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

func DWordValue(v uint32) Value { return Value{Kind: KindDWord, DWord: v} }

// IntValue stores a signed integer in its two's complement DWORD form.
func IntValue(v int32) Value { return Value{Kind: KindDWord, DWord: uint32(v)} }

func (v Value) IsString() bool { return v.Kind == KindString }

func (v Value) IsDWord() bool { return v.Kind == KindDWord }

// Int returns the DWORD reinterpreted as a signed integer.
func (v Value) Int() int32 { return int32(v.DWord) }

// String renders the value for display. DWORDs are shown as signed decimals.
func (v Value) String() string {
	if v.Kind == KindDWord {
		return strconv.FormatInt(int64(v.Int()), 10)
	}
	return v.Str
}

// Attributes is the open attribute mapping of one record.
type Attributes map[string]Value

// AttributeView is the JSON shape of a single attribute.
type AttributeView struct {
	Kind  string `json:"kind" yaml:"kind"`
	Value string `json:"value" yaml:"value"`
}

// View converts a Value into its JSON/YAML shape.
func (v Value) View() AttributeView {
	return AttributeView{Kind: v.Kind.String(), Value: v.String()}
}

// ParseValue converts a kind/value pair from a request into a Value.
func ParseValue(kind, raw string) (Value, error) {
	k, err := ParseValueKind(kind)
	if err != nil {
		return Value{}, err
	}
	if k == KindString {
		return StringValue(raw), nil
	}
	n, err := strconv.ParseInt(raw, 0, 64)
	if err != nil {
		return Value{}, fmt.Errorf("parse dword %q: %w", raw, err)
	}
	if n < -1<<31 || n > 1<<32-1 {
		return Value{}, fmt.Errorf("dword %q out of range", raw)
	}
	return DWordValue(uint32(n)), nil
}
