// Package auditlog provides the append-only audit log of the engine: one
// framed entry per check, holding the ingested document and the match
// records it produced. The log is the only durable state; on restart the
// engine rebuilds its corpus and vocabulary by replaying entries in order.
package auditlog

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/textmatch/model"
)

// Compression selects the per-entry block compression.
type Compression uint8

const (
	// CompressionNone stores entries uncompressed.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, lighter ratio).
	CompressionLZ4 Compression = 1
	// CompressionZstd uses zstd block compression (better ratio).
	CompressionZstd Compression = 2
)

// Options configures the audit log.
type Options struct {
	// Compression is the block compression for new log files. When
	// opening an existing log, the compression recorded in its header
	// takes precedence.
	Compression Compression

	// SyncOnAppend fsyncs after every appended check. Slower, but an
	// acknowledged check survives a crash.
	SyncOnAppend bool
}

// DefaultOptions are the defaults used by Open.
var DefaultOptions = Options{
	Compression:  CompressionNone,
	SyncOnAppend: false,
}

const (
	logHeaderVersion = uint16(1)
	logHeaderLen     = 16 // magic + version + flags + reserved
	frameHeaderLen   = 12 // uncompressed len + stored len + crc32
)

var (
	logMagic          = [4]byte{'T', 'M', 'A', '0'}
	errCorruptedEntry = errors.New("auditlog: corrupted entry")
)

// Log is a file-backed append-only audit log.
//
// Entry frame layout (little endian), after the 16-byte file header:
//
//	[uncompressedLen:4][storedLen:4][crc32:4][stored bytes]
//
// storedLen == 0 marks an uncompressed entry of uncompressedLen bytes.
// The CRC covers the stored bytes.
type Log struct {
	mu           sync.Mutex
	path         string
	file         *os.File
	w            *bufio.Writer
	seq          uint64
	compression  Compression
	syncOnAppend bool

	zenc *zstd.Encoder
	zdec *zstd.Decoder
}

// Ensure Log implements Recorder.
var _ Recorder = (*Log)(nil)

// Open opens or creates an audit log at path.
func Open(path string, optFns ...func(*Options)) (*Log, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("auditlog: create directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600) //nolint:gosec // G304: path is configurable
	if err != nil {
		return nil, fmt.Errorf("auditlog: open: %w", err)
	}

	l := &Log{
		path:         path,
		file:         file,
		compression:  opts.Compression,
		syncOnAppend: opts.SyncOnAppend,
	}

	st, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("auditlog: stat: %w", err)
	}

	if st.Size() == 0 {
		if err := l.writeHeader(); err != nil {
			_ = file.Close()
			return nil, err
		}
	} else {
		comp, err := readHeader(file)
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		l.compression = comp
	}

	if l.compression == CompressionZstd {
		if err := l.initZstd(); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	if st.Size() > 0 {
		// Establish the next sequence number from the existing entries.
		if err := l.Replay(func(*Entry) error { return nil }); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("auditlog: seek end: %w", err)
	}
	l.w = bufio.NewWriter(file)

	return l, nil
}

func (l *Log) initZstd() error {
	zenc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("auditlog: create zstd encoder: %w", err)
	}
	zdec, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("auditlog: create zstd decoder: %w", err)
	}

	l.zenc = zenc
	l.zdec = zdec

	return nil
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Len returns the number of appended entries.
func (l *Log) Len() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.seq
}

// RecordCheck implements Recorder.
func (l *Log) RecordCheck(doc DocumentEntry, records []*model.MatchRecord) error {
	return l.AppendCheck(doc, records)
}

// AppendCheck appends one check as a single atomic entry: the entry is
// framed, written and flushed in one critical section, so a reader never
// observes a partially recorded check.
func (l *Log) AppendCheck(doc DocumentEntry, records []*model.MatchRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := &Entry{
		Seq:     l.seq + 1,
		Doc:     doc,
		Records: records,
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("auditlog: encode entry: %w", err)
	}

	stored, compressed, err := l.compress(payload)
	if err != nil {
		return err
	}

	var hdr [frameHeaderLen]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(payload))) //nolint:gosec
	if compressed {
		binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(stored))) //nolint:gosec
	}
	binary.LittleEndian.PutUint32(hdr[8:12], crc32.ChecksumIEEE(stored))

	if _, err := l.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("auditlog: write frame header: %w", err)
	}
	if _, err := l.w.Write(stored); err != nil {
		return fmt.Errorf("auditlog: write entry: %w", err)
	}
	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("auditlog: flush: %w", err)
	}

	if l.syncOnAppend {
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("auditlog: sync: %w", err)
		}
	}

	l.seq = entry.Seq

	return nil
}

// compress applies the configured block compression. It falls back to
// storing the raw payload when compression does not shrink it.
func (l *Log) compress(payload []byte) (stored []byte, compressed bool, err error) {
	switch l.compression {
	case CompressionNone:
		return payload, false, nil

	case CompressionZstd:
		stored = l.zenc.EncodeAll(payload, nil)
		if len(stored) >= len(payload) {
			return payload, false, nil
		}
		return stored, true, nil

	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, buf, nil)
		if err != nil {
			return nil, false, fmt.Errorf("auditlog: lz4 compress: %w", err)
		}
		if n == 0 || n >= len(payload) {
			return payload, false, nil
		}
		return buf[:n], true, nil

	default:
		return nil, false, fmt.Errorf("auditlog: unsupported compression: %d", l.compression)
	}
}

// Replay streams every entry to fn in append order. It flushes pending
// writes first, so entries appended before the call are always visible.
// Replay stops early when fn returns an error.
func (l *Log) Replay(fn func(*Entry) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.replayLocked(fn)
}

func (l *Log) replayLocked(fn func(*Entry) error) error {
	if l.w != nil {
		if err := l.w.Flush(); err != nil {
			return fmt.Errorf("auditlog: flush before replay: %w", err)
		}
	}

	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("auditlog: open for replay: %w", err)
	}
	defer f.Close()

	if _, err := readHeader(f); err != nil {
		return err
	}

	r := bufio.NewReader(f)

	for {
		entry, err := l.readEntry(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if entry.Seq > l.seq {
			l.seq = entry.Seq
		}

		if err := fn(entry); err != nil {
			return err
		}
	}
}

func (l *Log) readEntry(r io.Reader) (*Entry, error) {
	var hdr [frameHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: truncated frame header", errCorruptedEntry)
	}

	uncompLen := binary.LittleEndian.Uint32(hdr[0:4])
	storedLen := binary.LittleEndian.Uint32(hdr[4:8])
	sum := binary.LittleEndian.Uint32(hdr[8:12])

	compressed := storedLen != 0
	readLen := storedLen
	if !compressed {
		readLen = uncompLen
	}

	stored := make([]byte, readLen)
	if _, err := io.ReadFull(r, stored); err != nil {
		return nil, fmt.Errorf("%w: truncated entry body", errCorruptedEntry)
	}

	if crc32.ChecksumIEEE(stored) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", errCorruptedEntry)
	}

	payload, err := l.decompress(stored, compressed, uncompLen)
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptedEntry, err)
	}

	return &entry, nil
}

func (l *Log) decompress(stored []byte, compressed bool, uncompLen uint32) ([]byte, error) {
	if !compressed {
		return stored, nil
	}

	switch l.compression {
	case CompressionZstd:
		payload, err := l.zdec.DecodeAll(stored, make([]byte, 0, uncompLen))
		if err != nil {
			return nil, fmt.Errorf("auditlog: zstd decompress: %w", err)
		}
		return payload, nil

	case CompressionLZ4:
		payload := make([]byte, uncompLen)
		n, err := lz4.UncompressBlock(stored, payload)
		if err != nil {
			return nil, fmt.Errorf("auditlog: lz4 decompress: %w", err)
		}
		return payload[:n], nil

	default:
		return nil, fmt.Errorf("%w: compressed entry in uncompressed log", errCorruptedEntry)
	}
}

// Close flushes and closes the log.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.w != nil {
		if err := l.w.Flush(); err != nil {
			return fmt.Errorf("auditlog: flush: %w", err)
		}
	}
	if l.zenc != nil {
		_ = l.zenc.Close()
	}
	if l.zdec != nil {
		l.zdec.Close()
	}

	return l.file.Close()
}

func (l *Log) writeHeader() error {
	buf := make([]byte, 0, logHeaderLen)
	buf = append(buf, logMagic[:]...)

	var fixed [12]byte
	binary.LittleEndian.PutUint16(fixed[0:2], logHeaderVersion)
	binary.LittleEndian.PutUint16(fixed[2:4], uint16(l.compression))
	// fixed[4:12] reserved
	buf = append(buf, fixed[:]...)

	if _, err := l.file.Write(buf); err != nil {
		return fmt.Errorf("auditlog: write header: %w", err)
	}

	return nil
}

func readHeader(f *os.File) (Compression, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("auditlog: seek: %w", err)
	}

	hdr := make([]byte, logHeaderLen)
	if _, err := io.ReadFull(f, hdr); err != nil {
		return 0, fmt.Errorf("auditlog: read header: %w", err)
	}

	if [4]byte(hdr[0:4]) != logMagic {
		return 0, errors.New("auditlog: invalid header magic")
	}

	version := binary.LittleEndian.Uint16(hdr[4:6])
	if version != logHeaderVersion {
		return 0, fmt.Errorf("auditlog: unsupported header version: %d", version)
	}

	comp := Compression(binary.LittleEndian.Uint16(hdr[6:8])) //nolint:gosec
	switch comp {
	case CompressionNone, CompressionLZ4, CompressionZstd:
		return comp, nil
	default:
		return 0, fmt.Errorf("auditlog: unsupported compression: %d", comp)
	}
}
