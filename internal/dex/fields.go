package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// fieldReader pulls typed values out of an unpacked event. The first failure sticks
// and later reads return zero values, so a decoder checks err once at the end.
type fieldReader struct {
	event  string
	values map[string]interface{}
	err    error
}

func (r *fieldReader) fail(name string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s.%s: %w", r.event, name, err)
	}
}

func (r *fieldReader) lookup(name string) (interface{}, bool) {
	if r.err != nil {
		return nil, false
	}
	v, ok := r.values[name]
	if !ok {
		r.fail(name, fmt.Errorf("missing field"))
	}
	return v, ok
}

func (r *fieldReader) address(name string) string {
	v, ok := r.lookup(name)
	if !ok {
		return ""
	}
	addr, err := asAddress(v)
	if err != nil {
		r.fail(name, err)
		return ""
	}
	return addr.Hex()
}

func (r *fieldReader) integer(name string) *big.Int {
	v, ok := r.lookup(name)
	if !ok {
		return new(big.Int)
	}
	n, err := asBigInt(v)
	if err != nil {
		r.fail(name, err)
		return new(big.Int)
	}
	return n
}

func (r *fieldReader) decimal(name string) string {
	return r.integer(name).String()
}

func (r *fieldReader) tick(name string) int32 {
	n := r.integer(name)
	if r.err != nil {
		return 0
	}
	t, err := int24FromBig(n)
	if err != nil {
		r.fail(name, err)
	}
	return t
}

func (r *fieldReader) uint8(name string) uint8 {
	v, ok := r.lookup(name)
	if !ok {
		return 0
	}
	n, err := asUint8(v)
	if err != nil {
		r.fail(name, err)
	}
	return n
}

func (r *fieldReader) uint16(name string) uint16 {
	n := r.integer(name)
	if r.err != nil {
		return 0
	}
	if !n.IsUint64() || n.Uint64() > 0xffff {
		r.fail(name, fmt.Errorf("uint16 overflow: %s", n))
		return 0
	}
	return uint16(n.Uint64())
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 0xff {
			return 0, fmt.Errorf("uint8 overflow: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
