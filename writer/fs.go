package writer

import (
	"bufio"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flute-go/flute/alc"
	"github.com/flute-go/flute/cmn"
	"github.com/flute-go/flute/cmn/nlog"
)

// FSWriterBuilder writes received objects under a destination directory,
// deriving each object's path from its Content-Location. Existing files
// are overwritten.
type FSWriterBuilder struct {
	dest string
}

// NewFSWriterBuilder returns a builder writing under dest, which must
// already exist as a directory.
func NewFSWriterBuilder(dest string) (*FSWriterBuilder, error) {
	info, err := os.Stat(dest)
	if err != nil || !info.IsDir() {
		return nil, cmn.NewErrState("%s is not a directory", dest)
	}
	return &FSWriterBuilder{dest: dest}, nil
}

func (b *FSWriterBuilder) NewObjectWriter(_ alc.UDPEndpoint, _, _ uint64, meta *ObjectMetadata, _ time.Time) ObjectWriter {
	return &fsObjectWriter{dest: b.dest, meta: meta}
}

func (b *FSWriterBuilder) SetCacheDuration(alc.UDPEndpoint, uint64, uint64, string, time.Duration) {}

func (b *FSWriterBuilder) FDTReceived(alc.UDPEndpoint, uint64, string, time.Time, time.Time) {}

type fsObjectWriter struct {
	dest        string
	meta        *ObjectMetadata
	destination string
	file        *os.File
	writer      *bufio.Writer
}

func (w *fsObjectWriter) Open() error {
	if w.meta == nil {
		return nil
	}

	relative := w.meta.ContentLocation
	if u, err := url.Parse(relative); err == nil && u.Path != "" {
		relative = u.Path
	}
	relative = strings.TrimPrefix(relative, "/")

	destination := filepath.Join(w.dest, filepath.FromSlash(relative))
	nlog.Infoln("creating destination", destination)

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return cmn.NewErrIo(err)
	}

	file, err := os.Create(destination)
	if err != nil {
		return cmn.NewErrIo(err)
	}

	w.file = file
	w.writer = bufio.NewWriter(file)
	w.destination = destination
	return nil
}

func (w *fsObjectWriter) Write(data []byte) {
	if w.writer == nil {
		return
	}
	if _, err := w.writer.Write(data); err != nil {
		nlog.Errorf("failed to write %s: %v", w.destination, err)
	}
}

func (w *fsObjectWriter) Complete() {
	if w.writer == nil {
		return
	}
	nlog.Infoln("file complete:", w.destination)
	w.writer.Flush()
	w.file.Close()
	w.writer = nil
	w.file = nil
}

func (w *fsObjectWriter) Error() {
	if w.file != nil {
		w.file.Close()
		w.writer = nil
		w.file = nil
	}
	if w.destination != "" {
		nlog.Errorf("removing file %s", w.destination)
		os.Remove(w.destination)
		w.destination = ""
	}
}

var _ ObjectWriterBuilder = (*FSWriterBuilder)(nil)
