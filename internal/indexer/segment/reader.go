package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/errors"
)

// Reader serves index.Reader lookups from a segment file. The dictionary and
// field statistics are loaded at open time; postings are read on demand.
type Reader struct {
	file     *os.File
	filePath string
	header   SegmentHeader
	dict     []DictEntry
	fields   map[string]fieldBlock
	extIDs   []string
	postBase int64
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func load(f *os.File, path string) (*Reader, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", magic)
	}
	header := SegmentHeader{
		Magic:       magic,
		Version:     binary.LittleEndian.Uint32(headerBytes[4:8]),
		TermCount:   binary.LittleEndian.Uint32(headerBytes[8:12]),
		DocCount:    binary.LittleEndian.Uint32(headerBytes[12:16]),
		DictOffset:  int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
		DictSize:    int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		PostOffset:  int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
		PostSize:    int64(binary.LittleEndian.Uint64(headerBytes[40:48])),
		StatsOffset: int64(binary.LittleEndian.Uint64(headerBytes[48:56])),
		StatsSize:   int64(binary.LittleEndian.Uint64(headerBytes[56:64])),
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment version %d", header.Version)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.StatsOffset+header.StatsSize); err != nil {
		return nil, fmt.Errorf("reading segment footer: %w", err)
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if crc32.ChecksumIEEE(dictBytes) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, fmt.Errorf("dictionary checksum mismatch in %s", path)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}

	statsBytes := make([]byte, header.StatsSize)
	if _, err := f.ReadAt(statsBytes, header.StatsOffset); err != nil {
		return nil, fmt.Errorf("reading field stats: %w", err)
	}
	if crc32.ChecksumIEEE(statsBytes) != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, fmt.Errorf("field stats checksum mismatch in %s", path)
	}
	var stats statsBlock
	if err := json.Unmarshal(statsBytes, &stats); err != nil {
		return nil, fmt.Errorf("parsing field stats: %w", err)
	}

	fields := make(map[string]fieldBlock, len(stats.Fields))
	for _, fb := range stats.Fields {
		fields[fb.Name] = fb
	}
	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		fields:   fields,
		extIDs:   stats.ExternalIDs,
		postBase: header.PostOffset,
	}, nil
}

func (r *Reader) lookup(field, term string) (DictEntry, bool) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return !entryLess(r.dict[i].Field, r.dict[i].Term, field, term)
	})
	if idx >= len(r.dict) || r.dict[idx].Field != field || r.dict[idx].Term != term {
		return DictEntry{}, false
	}
	return r.dict[idx], true
}

func (r *Reader) Postings(field, term string) (*index.InvertedList, error) {
	entry, ok := r.lookup(field, term)
	if !ok {
		return index.NewInvertedList(field, nil), nil
	}
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.postBase+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings for %s/%s: %w", field, term, err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings for %s/%s: %w", field, term, err)
	}
	list := index.NewInvertedList(field, postings)
	if err := list.Validate(); err != nil {
		return nil, fmt.Errorf("corrupt postings for %s/%s: %v: %w", field, term, err, apperrors.ErrIndexUnavailable)
	}
	return list, nil
}

func (r *Reader) DocLength(field string, docID int) int {
	return r.fields[field].DocLengths[docID]
}

func (r *Reader) DocCount(field string) int {
	return r.fields[field].DocCount
}

func (r *Reader) TotalTermCount(field string) int64 {
	return r.fields[field].TotalTermCount
}

func (r *Reader) CollectionTermFreq(field, term string) int64 {
	entry, _ := r.lookup(field, term)
	return entry.CTF
}

func (r *Reader) DocFreq(field, term string) int {
	entry, _ := r.lookup(field, term)
	return entry.DocFreq
}

func (r *Reader) ExternalID(docID int) string {
	if docID >= 0 && docID < len(r.extIDs) {
		return r.extIDs[docID]
	}
	return strconv.Itoa(docID)
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) NumDocs() uint32 {
	return r.header.DocCount
}

func (r *Reader) Path() string {
	return r.filePath
}

func (r *Reader) Close() error {
	return r.file.Close()
}
