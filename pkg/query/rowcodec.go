package query

import (
	"encoding/binary"
	"fmt"

	"github.com/mnohosten/heapstore/pkg/types"
)

// RowCodec converts between a tuple and the raw bytes a heap file stores.
// HeapScan uses one to turn the storage layer's opaque records into typed
// tuples; the storage layer itself never interprets record contents.
type RowCodec interface {
	EncodeRow(tuple *types.Tuple) ([]byte, error)
	DecodeRow(data []byte, schema *types.TableSchema) (*types.Tuple, error)
}

// FixedWidthCodec encodes IntField as an 8-byte little-endian integer and
// StringField as a 2-byte little-endian length prefix followed by the raw
// bytes, columns packed back to back in schema order.
type FixedWidthCodec struct{}

func (FixedWidthCodec) EncodeRow(tuple *types.Tuple) ([]byte, error) {
	var buf []byte
	for i, f := range tuple.Fields {
		switch v := f.(type) {
		case types.IntField:
			b := make([]byte, 8)
			binary.LittleEndian.PutUint64(b, uint64(v.Value))
			buf = append(buf, b...)
		case types.StringField:
			lengthBuf := make([]byte, 2)
			binary.LittleEndian.PutUint16(lengthBuf, uint16(len(v.Value)))
			buf = append(buf, lengthBuf...)
			buf = append(buf, []byte(v.Value)...)
		default:
			return nil, fmt.Errorf("query: encode column %d: unsupported field type %T", i, f)
		}
	}
	return buf, nil
}

func (FixedWidthCodec) DecodeRow(data []byte, schema *types.TableSchema) (*types.Tuple, error) {
	fields := make([]types.Field, 0, schema.Width())
	pos := 0

	for i := 0; i < schema.Width(); i++ {
		attr, err := schema.At(i)
		if err != nil {
			return nil, err
		}
		switch attr.Type {
		case types.IntType:
			if pos+8 > len(data) {
				return nil, fmt.Errorf("query: decode column %d: truncated int field", i)
			}
			fields = append(fields, types.IntField{Value: int64(binary.LittleEndian.Uint64(data[pos : pos+8]))})
			pos += 8
		case types.StringType:
			if pos+2 > len(data) {
				return nil, fmt.Errorf("query: decode column %d: truncated string length", i)
			}
			strLen := int(binary.LittleEndian.Uint16(data[pos : pos+2]))
			pos += 2
			if pos+strLen > len(data) {
				return nil, fmt.Errorf("query: decode column %d: truncated string body", i)
			}
			fields = append(fields, types.StringField{Value: string(data[pos : pos+strLen])})
			pos += strLen
		default:
			return nil, fmt.Errorf("query: decode column %d: unsupported column type %v", i, attr.Type)
		}
	}
	return types.NewTuple(fields...), nil
}
