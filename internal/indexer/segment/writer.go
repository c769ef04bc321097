package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/indexer/index"
)

// MagicBytes identifies a valid .qseg segment file.
const (
	MagicBytes    uint32 = 0x51534547
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

// SegmentHeader is the 64-byte header written at the start of every segment.
type SegmentHeader struct {
	Magic       uint32
	Version     uint32
	TermCount   uint32
	DocCount    uint32
	DictOffset  int64
	DictSize    int64
	PostOffset  int64
	PostSize    int64
	StatsOffset int64
	StatsSize   int64
}

// DictEntry locates one (field, term) postings block in the segment file.
type DictEntry struct {
	Field      string `json:"f"`
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
	CTF        int64  `json:"c"`
}

type fieldBlock struct {
	Name           string      `json:"name"`
	DocCount       int         `json:"docCount"`
	TotalTermCount int64       `json:"totalTermCount"`
	DocLengths     map[int]int `json:"docLengths"`
}

type statsBlock struct {
	ExternalIDs []string     `json:"externalIds"`
	Fields      []fieldBlock `json:"fields"`
}

// Writer serialises index snapshots into new .qseg segment files.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write creates a uniquely named segment in the writer's directory and
// returns its file name.
func (w *Writer) Write(snap index.Snapshot) (string, error) {
	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	segmentName := fmt.Sprintf("seg_%d.qseg", time.Now().UnixNano())
	if err := WriteFile(filepath.Join(w.dataDir, segmentName), snap); err != nil {
		return "", err
	}
	return segmentName, nil
}

// WriteFile atomically writes snap to path. Terms must already be ordered by
// field then term, as index.MemoryIndex.Snapshot returns them. It writes to a
// .tmp file first and renames on success.
func WriteFile(path string, snap index.Snapshot) error {
	if len(snap.Terms) == 0 {
		return fmt.Errorf("cannot write empty segment")
	}
	for i := 1; i < len(snap.Terms); i++ {
		if !entryLess(snap.Terms[i-1].Field, snap.Terms[i-1].Term, snap.Terms[i].Field, snap.Terms[i].Term) {
			return fmt.Errorf("terms out of order at %s/%s", snap.Terms[i].Field, snap.Terms[i].Term)
		}
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	headerBytes := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(headerBytes[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(headerBytes[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(headerBytes[8:12], uint32(len(snap.Terms)))
	binary.LittleEndian.PutUint32(headerBytes[12:16], uint32(len(snap.ExternalIDs)))
	if _, err := f.Write(headerBytes); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	postingsStart := int64(HeaderSize)
	offset := postingsStart
	dict := make([]DictEntry, 0, len(snap.Terms))
	for _, entry := range snap.Terms {
		postingsData, err := json.Marshal(entry.Postings)
		if err != nil {
			return fmt.Errorf("marshaling postings for %s/%s: %w", entry.Field, entry.Term, err)
		}
		if _, err := f.Write(postingsData); err != nil {
			return fmt.Errorf("writing postings for %s/%s: %w", entry.Field, entry.Term, err)
		}
		list := index.NewInvertedList(entry.Field, entry.Postings)
		dict = append(dict, DictEntry{
			Field:      entry.Field,
			Term:       entry.Term,
			PostOffset: offset - postingsStart,
			PostLen:    len(postingsData),
			DocFreq:    list.DocFreq,
			CTF:        list.CollectionTermFreq,
		})
		offset += int64(len(postingsData))
	}
	postingsSize := offset - postingsStart

	dictData, err := json.Marshal(dict)
	if err != nil {
		return fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return fmt.Errorf("writing dictionary: %w", err)
	}
	dictStart := offset
	offset += int64(len(dictData))

	stats := statsBlock{ExternalIDs: snap.ExternalIDs}
	for _, fs := range snap.Fields {
		stats.Fields = append(stats.Fields, fieldBlock{
			Name:           fs.Name,
			DocCount:       fs.DocCount,
			TotalTermCount: fs.TotalTermCount,
			DocLengths:     fs.DocLengths,
		})
	}
	statsData, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling field stats: %w", err)
	}
	if _, err := f.Write(statsData); err != nil {
		return fmt.Errorf("writing field stats: %w", err)
	}
	statsStart := offset

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], crc32.ChecksumIEEE(statsData))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(time.Now().Unix()))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(dictStart))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(postingsSize))
	if _, err := f.Write(footer); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}

	binary.LittleEndian.PutUint64(headerBytes[16:24], uint64(dictStart))
	binary.LittleEndian.PutUint64(headerBytes[24:32], uint64(len(dictData)))
	binary.LittleEndian.PutUint64(headerBytes[32:40], uint64(postingsStart))
	binary.LittleEndian.PutUint64(headerBytes[40:48], uint64(postingsSize))
	binary.LittleEndian.PutUint64(headerBytes[48:56], uint64(statsStart))
	binary.LittleEndian.PutUint64(headerBytes[56:64], uint64(len(statsData)))
	if _, err := f.WriteAt(headerBytes, 0); err != nil {
		return fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming segment file: %w", err)
	}
	return nil
}

func entryLess(fieldA, termA, fieldB, termB string) bool {
	if fieldA != fieldB {
		return fieldA < fieldB
	}
	return termA < termB
}
