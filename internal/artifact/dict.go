package artifact

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/zeebo/xxh3"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	DictHeader  = "URLCOUNT_DIC"
	DictVersion = 1

	dictHeaderSize = len(DictHeader) + 1 + 8
)

// Field numbers of the dictionary message:
//
//	message Dictionaries {
//	  repeated string urls = 1;
//	  repeated string dates = 2;
//	}
const (
	urlsField  protowire.Number = 1
	datesField protowire.Number = 2
)

// Dictionaries holds the ID -> string tables of one worker. The ID of a
// value is its index.
type Dictionaries struct {
	URLs  []string
	Dates []string
}

// MarshalDictionaries encodes d in protobuf wire format.
func MarshalDictionaries(d Dictionaries) []byte {
	var b []byte
	for _, u := range d.URLs {
		b = protowire.AppendTag(b, urlsField, protowire.BytesType)
		b = protowire.AppendString(b, u)
	}
	for _, v := range d.Dates {
		b = protowire.AppendTag(b, datesField, protowire.BytesType)
		b = protowire.AppendString(b, v)
	}
	return b
}

// UnmarshalDictionaries decodes the output of MarshalDictionaries. Unknown
// fields are skipped.
func UnmarshalDictionaries(b []byte) (Dictionaries, error) {
	var d Dictionaries
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Dictionaries{}, protowire.ParseError(n)
		}
		b = b[n:]

		if (num == urlsField || num == datesField) && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Dictionaries{}, protowire.ParseError(n)
			}
			b = b[n:]
			if num == urlsField {
				d.URLs = append(d.URLs, v)
			} else {
				d.Dates = append(d.Dates, v)
			}
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return Dictionaries{}, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return d, nil
}

// WriteDictionaries writes d to path:
//
//	header    "URLCOUNT_DIC"
//	version   u8
//	checksum  u64, xxh3 of the payload
//	payload   protobuf Dictionaries message
func WriteDictionaries(path string, d Dictionaries) error {
	payload := MarshalDictionaries(d)

	buf := make([]byte, 0, dictHeaderSize+len(payload))
	buf = append(buf, DictHeader...)
	buf = append(buf, DictVersion)
	buf = binary.LittleEndian.AppendUint64(buf, xxh3.Hash(payload))
	buf = append(buf, payload...)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadDictionaries loads a file written by WriteDictionaries.
func ReadDictionaries(path string) (Dictionaries, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Dictionaries{}, err
	}
	if len(buf) < dictHeaderSize {
		return Dictionaries{}, fmt.Errorf("%w: %s: short header", ErrCorrupt, path)
	}
	if string(buf[:len(DictHeader)]) != DictHeader {
		return Dictionaries{}, fmt.Errorf("%w: %s: bad magic", ErrCorrupt, path)
	}
	if v := buf[len(DictHeader)]; v != DictVersion {
		return Dictionaries{}, fmt.Errorf("%w: %s: unsupported version %d", ErrCorrupt, path, v)
	}
	sum := binary.LittleEndian.Uint64(buf[len(DictHeader)+1:])
	payload := buf[dictHeaderSize:]
	if xxh3.Hash(payload) != sum {
		return Dictionaries{}, fmt.Errorf("%w: %s: checksum mismatch", ErrCorrupt, path)
	}

	d, err := UnmarshalDictionaries(payload)
	if err != nil {
		return Dictionaries{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return d, nil
}
