package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"
)

// Entry is one named file inside an archive.
type Entry struct {
	Name     string
	Data     []byte
	Modified time.Time
}

// Archive is an ordered set of uniquely named entries.
type Archive struct {
	entries []Entry
	index   map[string]struct{}
}

func newArchive() *Archive {
	return &Archive{index: make(map[string]struct{})}
}

func (a *Archive) add(entry Entry) error {
	if _, dup := a.index[entry.Name]; dup {
		return fmt.Errorf("duplicate archive entry %q", entry.Name)
	}
	a.index[entry.Name] = struct{}{}
	a.entries = append(a.entries, entry)
	return nil
}

// Names returns entry names in insertion order.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		names = append(names, e.Name)
	}
	return names
}

// ContentSize is the total uncompressed size of all entries.
func (a *Archive) ContentSize() int64 {
	var total int64
	for _, e := range a.entries {
		total += int64(len(e.Data))
	}
	return total
}

// Encode writes the archive as a zip stream. Entries are stored unless
// compress is set.
func (a *Archive) Encode(w io.Writer, compress bool) error {
	method := zip.Store
	if compress {
		method = zip.Deflate
	}
	zw := zip.NewWriter(w)
	for _, e := range a.entries {
		header := &zip.FileHeader{
			Name:     e.Name,
			Method:   method,
			Modified: e.Modified,
		}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("create entry %s: %w", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			return fmt.Errorf("write entry %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	return nil
}

// Bytes encodes the archive into memory.
func (a *Archive) Bytes(compress bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(a.ContentSize()) + len(a.entries)*128)
	if err := a.Encode(&buf, compress); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
