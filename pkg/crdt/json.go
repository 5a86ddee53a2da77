package crdt

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Canonical JSON encoding (spec §4.3 "Serialization", §6 "Doc canonical
// JSON"):
//   - tombstones serialize as {"_d": true};
//   - an atomic Doc serializes its top-level object with "_a": true;
//   - absent optional fields are omitted, never emitted as null;
//   - List items serialize as {"pos": [num, den], "val": ...};
//   - object keys are emitted in sorted order, taken from AllKeys()
//     (the same order Keys()/Range() use for live keys).

type wireListItem struct {
	Pos [2]int64        `json:"pos"`
	Val json.RawMessage `json:"val"`
}

// MarshalJSON encodes d per the canonical Doc format.
func (d *Doc) MarshalJSON() ([]byte, error) {
	raw := make(map[string]json.RawMessage, len(d.AllKeys()))
	for _, k := range d.AllKeys() {
		v := d.fields[k]
		b, err := marshalValue(v)
		if err != nil {
			return nil, err
		}
		raw[k] = b
	}
	return marshalOrderedMap(raw, d.AllKeys(), d.atomic)
}

// marshalOrderedMap emits keys in the order given by orderedKeys
// (plus a trailing "_a" if atomic is set), producing deterministic
// byte output rather than relying on encoding/json's own map order.
func marshalOrderedMap(raw map[string]json.RawMessage, orderedKeys []string, atomic bool) ([]byte, error) {
	buf := []byte{'{'}
	first := true
	write := func(k string) {
		if !first {
			buf = append(buf, ',')
		}
		first = false
		kb, _ := json.Marshal(k)
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, raw[k]...)
	}
	for _, k := range orderedKeys {
		write(k)
	}
	if atomic {
		write("_a")
	}
	buf = append(buf, '}')
	return buf, nil
}

func marshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Null:
		return []byte("null"), nil
	case Bool:
		return json.Marshal(bool(val))
	case Int:
		return json.Marshal(int64(val))
	case Text:
		return json.Marshal(string(val))
	case Deleted:
		return []byte(`{"_d":true}`), nil
	case *Doc:
		return val.MarshalJSON()
	case *List:
		return marshalList(val)
	case *TextSeq:
		return json.Marshal(val.String())
	default:
		return nil, fmt.Errorf("crdt: unmarshalable value kind %s", kindOf(v))
	}
}

func marshalList(l *List) ([]byte, error) {
	l.sort()
	items := make([]wireListItem, 0, len(l.items))
	for _, it := range l.items {
		if it.deleted {
			continue
		}
		vb, err := marshalValue(it.value)
		if err != nil {
			return nil, err
		}
		num := it.pos.r.Num().Int64()
		den := it.pos.r.Denom().Int64()
		items = append(items, wireListItem{Pos: [2]int64{num, den}, Val: vb})
	}
	return json.Marshal(items)
}

// UnmarshalJSON decodes a Doc from its canonical form.
func (d *Doc) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.fields = make(map[string]Value, len(raw))
	if a, ok := raw["_a"]; ok {
		var b bool
		if err := json.Unmarshal(a, &b); err != nil {
			return err
		}
		d.atomic = b
		delete(raw, "_a")
	}
	for k, rv := range raw {
		v, err := unmarshalValue(rv)
		if err != nil {
			return err
		}
		d.fields[k] = v
	}
	return nil
}

func unmarshalValue(data []byte) (Value, error) {
	var probe interface{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	switch t := probe.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case float64:
		return Int(int64(t)), nil
	case string:
		return Text(t), nil
	case map[string]interface{}:
		if d, ok := t["_d"]; ok {
			if b, ok := d.(bool); ok && b {
				return Deleted{}, nil
			}
		}
		doc := NewDoc()
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, err
		}
		return doc, nil
	case []interface{}:
		return unmarshalList(data)
	default:
		return nil, fmt.Errorf("crdt: cannot decode value of type %T", probe)
	}
}

func unmarshalList(data []byte) (*List, error) {
	var items []wireListItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	l := NewList()
	for i, it := range items {
		v, err := unmarshalValue(it.Val)
		if err != nil {
			return nil, err
		}
		pos := Position{r: big.NewRat(it.Pos[0], maxInt64(it.Pos[1], 1))}
		l.items = append(l.items, listItem{pos: pos, insertID: fmt.Sprintf("decoded-%d", i), value: v})
	}
	l.sort()
	return l, nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
