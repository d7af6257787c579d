package soroban

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Minimal XDR support for invoking and reading Soroban contracts. Only
// the value types and the single envelope shape the escrow contract
// uses are implemented.

// ScVal type tags, per the Stellar XDR definition of SCValType.
const (
	scvBool    = 0
	scvVoid    = 1
	scvU32     = 3
	scvU64     = 5
	scvI128    = 10
	scvBytes   = 13
	scvString  = 14
	scvSymbol  = 15
	scvVec     = 16
	scvMap     = 17
	scvAddress = 18
)

// ValKind discriminates the decoded value variants.
type ValKind int

const (
	KindBool ValKind = iota
	KindVoid
	KindU32
	KindU64
	KindI128
	KindBytes
	KindString
	KindSymbol
	KindVec
	KindMap
	KindAddress
)

// Int128 is a signed 128 bit integer in hi/lo form.
type Int128 struct {
	Hi int64
	Lo uint64
}

// Int64 narrows the value to int64 when it fits.
func (i Int128) Int64() (int64, bool) {
	if i.Hi == 0 && i.Lo <= math.MaxInt64 {
		return int64(i.Lo), true
	}
	if i.Hi == -1 && i.Lo > math.MaxInt64 {
		return int64(i.Lo), true
	}
	return 0, false
}

// MapEntry is a single key/value pair of an ScMap.
type MapEntry struct {
	Key ScVal
	Val ScVal
}

// ScVal is a decoded Soroban value.
type ScVal struct {
	Kind    ValKind
	Bool    bool
	U32     uint32
	U64     uint64
	I128    Int128
	Bytes   []byte
	Str     string
	Vec     []ScVal
	Map     []MapEntry
	Address string
}

func BoolVal(v bool) ScVal      { return ScVal{Kind: KindBool, Bool: v} }
func VoidVal() ScVal            { return ScVal{Kind: KindVoid} }
func U32Val(v uint32) ScVal     { return ScVal{Kind: KindU32, U32: v} }
func U64Val(v uint64) ScVal     { return ScVal{Kind: KindU64, U64: v} }
func I128Val(v int64) ScVal     { return ScVal{Kind: KindI128, I128: int128From(v)} }
func SymbolVal(v string) ScVal  { return ScVal{Kind: KindSymbol, Str: v} }
func StringVal(v string) ScVal  { return ScVal{Kind: KindString, Str: v} }
func AddressVal(v string) ScVal { return ScVal{Kind: KindAddress, Address: v} }

func int128From(v int64) Int128 {
	hi := int64(0)
	if v < 0 {
		hi = -1
	}
	return Int128{Hi: hi, Lo: uint64(v)}
}

// SymbolOf unwraps a symbol, tolerating the single-element vector form
// contract enums are encoded with.
func (v ScVal) SymbolOf() (string, bool) {
	switch v.Kind {
	case KindSymbol:
		return v.Str, true
	case KindVec:
		if len(v.Vec) == 1 && v.Vec[0].Kind == KindSymbol {
			return v.Vec[0].Str, true
		}
	}
	return "", false
}

// MapGet finds a map entry by symbol key.
func (v ScVal) MapGet(key string) (ScVal, bool) {
	if v.Kind != KindMap {
		return ScVal{}, false
	}
	for _, entry := range v.Map {
		if entry.Key.Kind == KindSymbol && entry.Key.Str == key {
			return entry.Val, true
		}
	}
	return ScVal{}, false
}

type xdrWriter struct {
	buf bytes.Buffer
}

func (w *xdrWriter) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *xdrWriter) i32(v int32)  { w.u32(uint32(v)) }
func (w *xdrWriter) u64(v uint64) { w.u32(uint32(v >> 32)); w.u32(uint32(v)) }
func (w *xdrWriter) i64(v int64)  { w.u64(uint64(v)) }

func (w *xdrWriter) opaque(b []byte) {
	w.u32(uint32(len(b)))
	w.buf.Write(b)
	if pad := (4 - len(b)%4) % 4; pad > 0 {
		w.buf.Write(make([]byte, pad))
	}
}

func (w *xdrWriter) fixed(b []byte) { w.buf.Write(b) }

func (w *xdrWriter) val(v ScVal) error {
	switch v.Kind {
	case KindBool:
		w.i32(scvBool)
		if v.Bool {
			w.u32(1)
		} else {
			w.u32(0)
		}
	case KindVoid:
		w.i32(scvVoid)
	case KindU32:
		w.i32(scvU32)
		w.u32(v.U32)
	case KindU64:
		w.i32(scvU64)
		w.u64(v.U64)
	case KindI128:
		w.i32(scvI128)
		w.i64(v.I128.Hi)
		w.u64(v.I128.Lo)
	case KindBytes:
		w.i32(scvBytes)
		w.opaque(v.Bytes)
	case KindString:
		w.i32(scvString)
		w.opaque([]byte(v.Str))
	case KindSymbol:
		w.i32(scvSymbol)
		w.opaque([]byte(v.Str))
	case KindVec:
		w.i32(scvVec)
		w.u32(1) // optional present
		w.u32(uint32(len(v.Vec)))
		for _, elem := range v.Vec {
			if err := w.val(elem); err != nil {
				return err
			}
		}
	case KindMap:
		w.i32(scvMap)
		w.u32(1)
		w.u32(uint32(len(v.Map)))
		for _, entry := range v.Map {
			if err := w.val(entry.Key); err != nil {
				return err
			}
			if err := w.val(entry.Val); err != nil {
				return err
			}
		}
	case KindAddress:
		w.i32(scvAddress)
		return w.address(v.Address)
	default:
		return fmt.Errorf("cannot encode value kind %d", v.Kind)
	}
	return nil
}

// address encodes an ScAddress from its strkey form.
func (w *xdrWriter) address(strkey string) error {
	if len(strkey) == 0 {
		return fmt.Errorf("empty address")
	}
	switch strkey[0] {
	case 'G':
		key, err := DecodeAccountID(strkey)
		if err != nil {
			return err
		}
		w.i32(0) // SC_ADDRESS_TYPE_ACCOUNT
		w.i32(0) // PUBLIC_KEY_TYPE_ED25519
		w.fixed(key)
	case 'C':
		hash, err := DecodeContractID(strkey)
		if err != nil {
			return err
		}
		w.i32(1) // SC_ADDRESS_TYPE_CONTRACT
		w.fixed(hash)
	default:
		return fmt.Errorf("unsupported address %q", strkey)
	}
	return nil
}

type xdrReader struct {
	r *bytes.Reader
}

func (r *xdrReader) u32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func (r *xdrReader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *xdrReader) u64() (uint64, error) {
	hi, err := r.u32()
	if err != nil {
		return 0, err
	}
	lo, err := r.u32()
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

func (r *xdrReader) opaque() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if n > 1<<20 {
		return nil, fmt.Errorf("opaque length %d too large", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, err
	}
	if pad := (4 - int(n)%4) % 4; pad > 0 {
		if _, err := r.r.Seek(int64(pad), io.SeekCurrent); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (r *xdrReader) fixed(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *xdrReader) val() (ScVal, error) {
	tag, err := r.i32()
	if err != nil {
		return ScVal{}, err
	}
	switch tag {
	case scvBool:
		v, err := r.u32()
		if err != nil {
			return ScVal{}, err
		}
		return ScVal{Kind: KindBool, Bool: v != 0}, nil
	case scvVoid:
		return ScVal{Kind: KindVoid}, nil
	case scvU32:
		v, err := r.u32()
		if err != nil {
			return ScVal{}, err
		}
		return ScVal{Kind: KindU32, U32: v}, nil
	case scvU64:
		v, err := r.u64()
		if err != nil {
			return ScVal{}, err
		}
		return ScVal{Kind: KindU64, U64: v}, nil
	case scvI128:
		hi, err := r.u64()
		if err != nil {
			return ScVal{}, err
		}
		lo, err := r.u64()
		if err != nil {
			return ScVal{}, err
		}
		return ScVal{Kind: KindI128, I128: Int128{Hi: int64(hi), Lo: lo}}, nil
	case scvBytes:
		b, err := r.opaque()
		if err != nil {
			return ScVal{}, err
		}
		return ScVal{Kind: KindBytes, Bytes: b}, nil
	case scvString:
		b, err := r.opaque()
		if err != nil {
			return ScVal{}, err
		}
		return ScVal{Kind: KindString, Str: string(b)}, nil
	case scvSymbol:
		b, err := r.opaque()
		if err != nil {
			return ScVal{}, err
		}
		return ScVal{Kind: KindSymbol, Str: string(b)}, nil
	case scvVec:
		present, err := r.u32()
		if err != nil {
			return ScVal{}, err
		}
		out := ScVal{Kind: KindVec}
		if present == 0 {
			return out, nil
		}
		n, err := r.u32()
		if err != nil {
			return ScVal{}, err
		}
		for i := uint32(0); i < n; i++ {
			elem, err := r.val()
			if err != nil {
				return ScVal{}, err
			}
			out.Vec = append(out.Vec, elem)
		}
		return out, nil
	case scvMap:
		present, err := r.u32()
		if err != nil {
			return ScVal{}, err
		}
		out := ScVal{Kind: KindMap}
		if present == 0 {
			return out, nil
		}
		n, err := r.u32()
		if err != nil {
			return ScVal{}, err
		}
		for i := uint32(0); i < n; i++ {
			key, err := r.val()
			if err != nil {
				return ScVal{}, err
			}
			val, err := r.val()
			if err != nil {
				return ScVal{}, err
			}
			out.Map = append(out.Map, MapEntry{Key: key, Val: val})
		}
		return out, nil
	case scvAddress:
		return r.addressVal()
	default:
		return ScVal{}, fmt.Errorf("cannot decode value tag %d", tag)
	}
}

func (r *xdrReader) addressVal() (ScVal, error) {
	kind, err := r.i32()
	if err != nil {
		return ScVal{}, err
	}
	switch kind {
	case 0: // account
		if _, err := r.i32(); err != nil { // key type
			return ScVal{}, err
		}
		key, err := r.fixed(32)
		if err != nil {
			return ScVal{}, err
		}
		strkey, err := EncodeAccountID(key)
		if err != nil {
			return ScVal{}, err
		}
		return ScVal{Kind: KindAddress, Address: strkey}, nil
	case 1: // contract
		hash, err := r.fixed(32)
		if err != nil {
			return ScVal{}, err
		}
		strkey, err := EncodeContractID(hash)
		if err != nil {
			return ScVal{}, err
		}
		return ScVal{Kind: KindAddress, Address: strkey}, nil
	default:
		return ScVal{}, fmt.Errorf("unsupported address type %d", kind)
	}
}

// DecodeVal decodes a base64 encoded SCVal.
func DecodeVal(b64 string) (ScVal, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return ScVal{}, fmt.Errorf("decode value: %w", err)
	}
	r := &xdrReader{r: bytes.NewReader(raw)}
	v, err := r.val()
	if err != nil {
		return ScVal{}, fmt.Errorf("decode value: %w", err)
	}
	return v, nil
}

// EncodeVal encodes an SCVal to base64.
func EncodeVal(v ScVal) (string, error) {
	w := &xdrWriter{}
	if err := w.val(v); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(w.buf.Bytes()), nil
}

// BuildInvokeTransaction assembles an unsigned transaction envelope that
// invokes a contract function. It is only suitable for simulation, which
// ignores sequence numbers and signatures.
func BuildInvokeTransaction(sourceAccount, contractID, function string, args []ScVal) (string, error) {
	sourceKey, err := DecodeAccountID(sourceAccount)
	if err != nil {
		return "", fmt.Errorf("source account: %w", err)
	}
	contractHash, err := DecodeContractID(contractID)
	if err != nil {
		return "", fmt.Errorf("contract id: %w", err)
	}

	w := &xdrWriter{}
	w.i32(2) // ENVELOPE_TYPE_TX

	// Transaction
	w.i32(0) // KEY_TYPE_ED25519
	w.fixed(sourceKey)
	w.u32(100) // fee
	w.i64(0)   // seqNum
	w.i32(0)   // PRECOND_NONE
	w.i32(0)   // MEMO_NONE

	// operations
	w.u32(1)
	w.u32(0)  // no per-op source account
	w.i32(24) // INVOKE_HOST_FUNCTION

	// HostFunction: invoke contract
	w.i32(0) // HOST_FUNCTION_TYPE_INVOKE_CONTRACT
	w.i32(1) // SC_ADDRESS_TYPE_CONTRACT
	w.fixed(contractHash)
	w.opaque([]byte(function))
	w.u32(uint32(len(args)))
	for _, arg := range args {
		if err := w.val(arg); err != nil {
			return "", err
		}
	}
	w.u32(0) // auth entries

	w.i32(0) // tx ext
	w.u32(0) // signatures

	return base64.StdEncoding.EncodeToString(w.buf.Bytes()), nil
}
