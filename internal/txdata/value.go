package txdata

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/datoms/internal/ir"
)

// InstantLayout is how instants are rendered when read back: RFC 3339 in
// UTC with millisecond precision.
const InstantLayout = "2006-01-02T15:04:05.000Z07:00"

// EncodeValue converts a transaction value to its stored form for an
// attribute of type vt. Refs are not handled here: resolving a ref needs the
// database, so the store does it.
//
// Stored forms are int64 (long, boolean as 0/1, instant as Unix
// milliseconds) or string (string, keyword, canonical uuid).
func EncodeValue(attr string, vt ir.ValueType, v any) (any, error) {
	if iv, ok := v.(ir.IRValue); ok {
		v = ir.ToGo(iv)
	}

	switch vt {
	case ir.TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case ir.TypeKeyword:
		if s, ok := v.(string); ok {
			if !ir.IsKeyword(s) {
				return nil, newError(ErrInvalidValueType, attr, "%q is not a keyword", s)
			}
			return s, nil
		}
	case ir.TypeLong:
		if n, ok := asInt64(v); ok {
			return n, nil
		}
	case ir.TypeBoolean:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case ir.TypeUUID:
		switch u := v.(type) {
		case uuid.UUID:
			return u.String(), nil
		case string:
			parsed, err := uuid.Parse(u)
			if err != nil {
				return nil, newError(ErrInvalidValueType, attr, "invalid uuid %q: %v", u, err)
			}
			return parsed.String(), nil
		}
	case ir.TypeInstant:
		switch t := v.(type) {
		case time.Time:
			return t.UnixMilli(), nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, newError(ErrInvalidValueType, attr, "invalid instant %q: %v", t, err)
			}
			return parsed.UnixMilli(), nil
		}
		if n, ok := asInt64(v); ok {
			return n, nil
		}
	case ir.TypeRef:
		return nil, newError(ErrInvalidValueType, attr, "ref values are resolved by the store")
	default:
		return nil, newError(ErrInvalidValueType, attr, "unknown value type %d", int(vt))
	}
	return nil, newError(ErrInvalidValueType, attr, "%s does not accept %T value %v", vt.Ident(), v, v)
}

// DecodeValue converts a stored value back to an IRValue. raw is what the
// SQLite driver returned for the v column.
func DecodeValue(vt ir.ValueType, raw any) (ir.IRValue, error) {
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}

	switch vt {
	case ir.TypeRef, ir.TypeLong:
		if n, ok := raw.(int64); ok {
			return ir.IRInt(n), nil
		}
	case ir.TypeBoolean:
		if n, ok := raw.(int64); ok {
			return ir.IRBool(n != 0), nil
		}
	case ir.TypeInstant:
		if n, ok := raw.(int64); ok {
			return ir.IRString(time.UnixMilli(n).UTC().Format(InstantLayout)), nil
		}
	case ir.TypeString, ir.TypeUUID:
		if s, ok := raw.(string); ok {
			return ir.IRString(s), nil
		}
	case ir.TypeKeyword:
		if s, ok := raw.(string); ok {
			return ir.IRKeyword(s), nil
		}
	default:
		return nil, fmt.Errorf("unknown value type code %d", int(vt))
	}
	return nil, fmt.Errorf("stored %T does not decode as %s", raw, vt.Ident())
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	}
	return 0, false
}
