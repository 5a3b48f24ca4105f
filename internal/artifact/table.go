package artifact

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"
)

const (
	TableHeader  = "URLCOUNT_TBL"
	TableVersion = 1

	// RecordSize is one (key u32, count u32) pair.
	RecordSize = 8

	// magic + version + date bits + record count
	tableHeaderSize = len(TableHeader) + 1 + 1 + 8
)

// TableWriter writes a frequency table file:
//
//	header     "URLCOUNT_TBL"
//	version    u8
//	date bits  u8
//	records    u64
//	record     key u32, count u32  (repeated)
//	checksum   u64, xxh3 of all record bytes
//
// Integers are little endian.
type TableWriter struct {
	file     *os.File
	w        *bufio.Writer
	hash     *xxh3.Hasher
	dateBits uint8
	want     uint64
	n        uint64
	buf      [RecordSize]byte
}

// CreateTable creates path and writes a header announcing records entries.
func CreateTable(path string, dateBits uint8, records uint64) (*TableWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	tw := &TableWriter{
		file:     f,
		w:        bufio.NewWriterSize(f, 1<<16),
		hash:     xxh3.New(),
		dateBits: dateBits,
		want:     records,
	}

	hdr := make([]byte, 0, tableHeaderSize)
	hdr = append(hdr, TableHeader...)
	hdr = append(hdr, TableVersion, dateBits)
	hdr = binary.LittleEndian.AppendUint64(hdr, records)
	if _, err := tw.w.Write(hdr); err != nil {
		f.Close()
		return nil, err
	}
	return tw, nil
}

// Write packs k and appends it with its count.
func (tw *TableWriter) Write(k Key, count uint32) error {
	packed, err := Pack(k, tw.dateBits)
	if err != nil {
		return err
	}
	if tw.n == tw.want {
		return fmt.Errorf("table: more than the %d announced records", tw.want)
	}
	binary.LittleEndian.PutUint32(tw.buf[0:], packed)
	binary.LittleEndian.PutUint32(tw.buf[4:], count)
	tw.hash.Write(tw.buf[:])
	if _, err := tw.w.Write(tw.buf[:]); err != nil {
		return err
	}
	tw.n++
	return nil
}

// Close writes the checksum, flushes and closes the file. It fails if fewer
// records were written than announced.
func (tw *TableWriter) Close() error {
	if tw.n != tw.want {
		tw.file.Close()
		return fmt.Errorf("table: wrote %d of %d announced records", tw.n, tw.want)
	}
	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], tw.hash.Sum64())
	if _, err := tw.w.Write(sum[:]); err != nil {
		tw.file.Close()
		return err
	}
	if err := tw.w.Flush(); err != nil {
		tw.file.Close()
		return err
	}
	return tw.file.Close()
}

// WriteTable writes table to path as a complete table file.
func WriteTable(path string, dateBits uint8, table map[Key]uint32) error {
	tw, err := CreateTable(path, dateBits, uint64(len(table)))
	if err != nil {
		return err
	}
	for k, c := range table {
		if err := tw.Write(k, c); err != nil {
			tw.file.Close()
			return err
		}
	}
	return tw.Close()
}

// TableReader streams the records of a table file one at a time.
type TableReader struct {
	file     *os.File
	r        *bufio.Reader
	hash     *xxh3.Hasher
	dateBits uint8
	records  uint64
	n        uint64
	done     bool
	buf      [RecordSize]byte
}

func OpenTable(path string) (*TableReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	tr := &TableReader{file: f, r: bufio.NewReaderSize(f, 1<<16), hash: xxh3.New()}

	hdr := make([]byte, tableHeaderSize)
	if _, err := io.ReadFull(tr.r, hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: short header: %v", ErrCorrupt, path, err)
	}
	if string(hdr[:len(TableHeader)]) != TableHeader {
		f.Close()
		return nil, fmt.Errorf("%w: %s: bad magic", ErrCorrupt, path)
	}
	rest := hdr[len(TableHeader):]
	if rest[0] != TableVersion {
		f.Close()
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrCorrupt, path, rest[0])
	}
	if rest[1] > 32 {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %d date bits", ErrCorrupt, path, rest[1])
	}
	tr.dateBits = rest[1]
	tr.records = binary.LittleEndian.Uint64(rest[2:])
	return tr, nil
}

func (tr *TableReader) DateBits() uint8 { return tr.dateBits }

// Records is the record count announced by the header.
func (tr *TableReader) Records() uint64 { return tr.records }

// Next returns the next record. After the last one it checks the trailing
// checksum and returns io.EOF.
func (tr *TableReader) Next() (Key, uint32, error) {
	if tr.n == tr.records {
		return 0, 0, tr.verify()
	}
	if _, err := io.ReadFull(tr.r, tr.buf[:]); err != nil {
		return 0, 0, fmt.Errorf("%w: %s: record %d of %d: %v", ErrCorrupt, tr.file.Name(), tr.n, tr.records, err)
	}
	tr.hash.Write(tr.buf[:])
	tr.n++
	packed := binary.LittleEndian.Uint32(tr.buf[0:])
	count := binary.LittleEndian.Uint32(tr.buf[4:])
	return Unpack(packed, tr.dateBits), count, nil
}

func (tr *TableReader) verify() error {
	if tr.done {
		return io.EOF
	}
	var sum [8]byte
	if _, err := io.ReadFull(tr.r, sum[:]); err != nil {
		return fmt.Errorf("%w: %s: missing checksum: %v", ErrCorrupt, tr.file.Name(), err)
	}
	if binary.LittleEndian.Uint64(sum[:]) != tr.hash.Sum64() {
		return fmt.Errorf("%w: %s: checksum mismatch", ErrCorrupt, tr.file.Name())
	}
	if _, err := tr.r.ReadByte(); err != io.EOF {
		return fmt.Errorf("%w: %s: trailing bytes", ErrCorrupt, tr.file.Name())
	}
	tr.done = true
	return io.EOF
}

func (tr *TableReader) Close() error {
	return tr.file.Close()
}
