// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/luxfi/mettatron/value"
)

// valuesToList converts a slice of value.V into a structpb list of typed
// maps, one per value.V (see valueToStruct for the per-kind shape).
func (b *Bridge) valuesToList(values []value.V) (*structpb.Value, error) {
	items := make([]interface{}, len(values))
	for i, v := range values {
		s, err := b.valueToStruct(v)
		if err != nil {
			return nil, err
		}
		items[i] = s.AsInterface()
	}
	return structpb.NewList(items)
}

func (b *Bridge) listToValues(v *structpb.Value) ([]value.V, error) {
	if v == nil {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("host: expected list value")
	}
	out := make([]value.V, len(list.GetValues()))
	for i, item := range list.GetValues() {
		s := item.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("host: expected struct value at index %d", i)
		}
		v, err := b.structToValue(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// valueToStruct converts v into a {"kind": "<name>", ...payload} struct.
// Every variant of value.Kind (spec.md §3) has a case here.
func (b *Bridge) valueToStruct(v value.V) (*structpb.Struct, error) {
	switch v.Kind() {
	case value.KindNil:
		return structpb.NewStruct(map[string]interface{}{"kind": "Nil"})
	case value.KindUnit:
		return structpb.NewStruct(map[string]interface{}{"kind": "Unit"})
	case value.KindBool:
		return structpb.NewStruct(map[string]interface{}{"kind": "Bool", "bool": v.AsBool()})
	case value.KindLong:
		// structpb numbers are float64; a Long beyond 2^53 loses precision
		// crossing this boundary, a known limitation of the host's generic
		// number type (not of this bridge).
		return structpb.NewStruct(map[string]interface{}{"kind": "Long", "long": float64(v.AsLong())})
	case value.KindFloat:
		return structpb.NewStruct(map[string]interface{}{"kind": "Float", "float": v.AsFloat()})
	case value.KindString:
		return structpb.NewStruct(map[string]interface{}{"kind": "String", "string": v.AsString()})
	case value.KindURI:
		return structpb.NewStruct(map[string]interface{}{"kind": "Uri", "uri": v.AsString()})
	case value.KindAtom:
		name, ok := b.interner.Lookup(v.AtomID())
		if !ok {
			return nil, fmt.Errorf("host: atom id %d not found in interner", v.AtomID())
		}
		return structpb.NewStruct(map[string]interface{}{"kind": "Atom", "atom": name})
	case value.KindVariable:
		if v.IsFreshVarMarker() {
			return structpb.NewStruct(map[string]interface{}{"kind": "Variable", "variable": "$"})
		}
		return structpb.NewStruct(map[string]interface{}{"kind": "Variable", "variable": v.VariableName()})
	case value.KindError:
		msg, payload := v.ErrorParts()
		payloadStruct, err := b.valueToStruct(payload)
		if err != nil {
			return nil, err
		}
		return structpb.NewStruct(map[string]interface{}{
			"kind": "Error", "message": msg, "payload": payloadStruct.AsInterface(),
		})
	case value.KindTyped:
		val, typ := v.TypedParts()
		valStruct, err := b.valueToStruct(val)
		if err != nil {
			return nil, err
		}
		typStruct, err := b.valueToStruct(typ)
		if err != nil {
			return nil, err
		}
		return structpb.NewStruct(map[string]interface{}{
			"kind": "Typed", "value": valStruct.AsInterface(), "type": typStruct.AsInterface(),
		})
	case value.KindSExpr:
		items, err := b.valuesToList(v.Items())
		if err != nil {
			return nil, err
		}
		return structpb.NewStruct(map[string]interface{}{"kind": "SExpr", "items": items.AsInterface()})
	default:
		return nil, fmt.Errorf("host: unknown value kind %v", v.Kind())
	}
}

func (b *Bridge) structToValue(s *structpb.Struct) (value.V, error) {
	fields := s.GetFields()
	kind := fields["kind"].GetStringValue()
	switch kind {
	case "Nil":
		return value.Nil, nil
	case "Unit":
		return value.Unit, nil
	case "Bool":
		return value.Bool(fields["bool"].GetBoolValue()), nil
	case "Long":
		return value.Long(int64(fields["long"].GetNumberValue())), nil
	case "Float":
		return value.Float(fields["float"].GetNumberValue()), nil
	case "String":
		return value.Str(fields["string"].GetStringValue()), nil
	case "Uri":
		return value.URI(fields["uri"].GetStringValue()), nil
	case "Atom":
		return value.NewAtom(b.interner, fields["atom"].GetStringValue()), nil
	case "Variable":
		name := fields["variable"].GetStringValue()
		if name == "$" {
			return value.FreshVarMarker, nil
		}
		return value.NewVariable(name)
	case "Error":
		payload, err := b.structToValue(fields["payload"].GetStructValue())
		if err != nil {
			return value.V{}, err
		}
		return value.NewError(fields["message"].GetStringValue(), payload), nil
	case "Typed":
		val, err := b.structToValue(fields["value"].GetStructValue())
		if err != nil {
			return value.V{}, err
		}
		typ, err := b.structToValue(fields["type"].GetStructValue())
		if err != nil {
			return value.V{}, err
		}
		return value.Typed(val, typ), nil
	case "SExpr":
		items, err := b.listToValues(fields["items"])
		if err != nil {
			return value.V{}, err
		}
		return value.SExpr(items...), nil
	default:
		return value.V{}, fmt.Errorf("host: unknown host value kind %q", kind)
	}
}
