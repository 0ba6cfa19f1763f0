// Package certificate receives vaccination certificate uploads, measures
// them, and stores accepted ones as blobs.
package certificate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/DogLicense/internal/model"
	pdfutil "github.com/dharsanguruparan/DogLicense/internal/pdf"
)

const sniffLen = 512

// Upload is a received certificate spooled to a temp file. Close removes it.
type Upload struct {
	cert model.Certificate
	file *os.File
}

// Receive spools at most limit+1 bytes of r. An upload larger than limit is
// still returned, inspected with Size limit+1 and without content, so that
// validation can report it. A PDF that fails to open is returned
// uninspected.
func Receive(r io.Reader, name string, limit int64) (*Upload, error) {
	tmp, err := os.CreateTemp("", "doglicense-cert-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	written, err := io.Copy(tmp, io.LimitReader(r, limit+1))
	if err != nil {
		discard(tmp)
		return nil, fmt.Errorf("read certificate: %w", err)
	}
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = "certificate"
	}
	up := &Upload{
		cert: model.Certificate{Name: name, Size: written, Inspected: true},
		file: tmp,
	}
	if written > limit || written == 0 {
		return up, nil
	}

	sniff := make([]byte, sniffLen)
	n, err := tmp.ReadAt(sniff, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		up.Close()
		return nil, fmt.Errorf("sniff certificate: %w", err)
	}
	up.cert.ContentType = http.DetectContentType(sniff[:n])
	if up.cert.ContentType == "application/pdf" {
		if err := pdfutil.Check(tmp, written); err != nil {
			up.cert.Inspected = false
		}
	}
	return up, nil
}

// Certificate returns what was measured about the upload.
func (u *Upload) Certificate() model.Certificate {
	return u.cert
}

// Store writes the content to blobs under a fresh object key and returns the
// certificate referencing it.
func (u *Upload) Store(ctx context.Context, blobs BlobStore) (model.Certificate, error) {
	if _, err := u.file.Seek(0, io.SeekStart); err != nil {
		return model.Certificate{}, fmt.Errorf("rewind certificate: %w", err)
	}
	cert := u.cert
	cert.ObjectKey = ObjectKey(cert.Name)
	if err := blobs.Put(ctx, cert.ObjectKey, u.file, cert.Size, cert.ContentType); err != nil {
		return model.Certificate{}, err
	}
	return cert, nil
}

// Close removes the spooled content.
func (u *Upload) Close() error {
	return discard(u.file)
}

// ObjectKey names a new certificate blob.
func ObjectKey(name string) string {
	return fmt.Sprintf("certificates/%s/%s", uuid.NewString(), path.Base(name))
}

func discard(f *os.File) error {
	f.Close()
	return os.Remove(f.Name())
}
