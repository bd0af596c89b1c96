package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/davit-gh/speech2text-bot/internal/domain"
	"github.com/davit-gh/speech2text-bot/internal/staging"
)

const (
	// DefaultMaxBytes is the hard ceiling for one transfer.
	DefaultMaxBytes = 500 << 20 // 500 MiB

	// DefaultTimeout bounds one whole transfer.
	DefaultTimeout = 600 * time.Second

	copyChunk = 64 << 10
)

// FileResolver maps a chat-transport file id to a direct download URL.
type FileResolver interface {
	ResolveFileURL(fileID string) (string, error)
}

// Acquirer obtains raw bytes for an input descriptor and streams them
// into a staged path. A failed fetch never leaves a partial file behind.
type Acquirer struct {
	resolver FileResolver
	client   *http.Client
	maxBytes int64
	timeout  time.Duration
	log      *logrus.Entry
}

// New builds an acquirer. Zero maxBytes or timeout select the defaults.
func New(resolver FileResolver, maxBytes int64, timeout time.Duration, log *logrus.Entry) *Acquirer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Acquirer{
		resolver: resolver,
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
		timeout:  timeout,
		log:      log,
	}
}

// Fetch stages the descriptor's bytes and returns the staged path.
func (a *Acquirer) Fetch(ctx context.Context, desc domain.InputDescriptor, store *staging.Store) (string, error) {
	switch desc.Kind {
	case domain.SourceUpload:
		return a.fetchUpload(ctx, desc, store)
	case domain.SourceRemote:
		return a.fetchRemote(ctx, desc, store)
	}
	return "", &domain.ValidationError{Reason: fmt.Sprintf("unknown source kind %q", desc.Kind)}
}

func (a *Acquirer) fetchUpload(ctx context.Context, desc domain.InputDescriptor, store *staging.Store) (string, error) {
	downloadURL, err := a.resolver.ResolveFileURL(desc.FileID)
	if err != nil {
		return "", &domain.TransportError{Op: "resolve file handle", Err: err}
	}

	path, err := store.Allocate(uploadHint(desc))
	if err != nil {
		return "", &domain.TransportError{Op: "stage upload", Err: err}
	}
	if err := a.download(ctx, downloadURL, path); err != nil {
		return "", err
	}
	return path, nil
}

func (a *Acquirer) fetchRemote(ctx context.Context, desc domain.InputDescriptor, store *staging.Store) (string, error) {
	u, err := url.Parse(desc.URL)
	if err != nil {
		return "", &domain.ValidationError{Reason: "malformed URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &domain.ValidationError{Reason: fmt.Sprintf("unsupported URL scheme %q", u.Scheme)}
	}

	path, err := store.Allocate("remote_file")
	if err != nil {
		return "", &domain.TransportError{Op: "stage download", Err: err}
	}
	if err := a.download(ctx, desc.URL, path); err != nil {
		return "", err
	}
	return path, nil
}

// download streams the response body to path in fixed-size chunks, never
// buffering the whole body. On any failure, including a breached byte
// ceiling, the partial file is removed before the error is returned.
func (a *Acquirer) download(ctx context.Context, rawURL, path string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		a.discard(path)
		return &domain.TransportError{Op: "build request", Err: err}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.discard(path)
		return &domain.TransportError{Op: "download", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.discard(path)
		return &domain.TransportError{
			Op:  "download",
			Err: fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		a.discard(path)
		return &domain.TransportError{Op: "open staged file", Err: err}
	}

	var written int64
	for {
		n, err := io.CopyN(out, resp.Body, copyChunk)
		written += n
		if written > a.maxBytes {
			out.Close()
			a.discard(path)
			return &domain.QuotaExceededError{LimitBytes: a.maxBytes}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			out.Close()
			a.discard(path)
			return &domain.TransportError{Op: "stream body", Err: err}
		}
	}

	if err := out.Close(); err != nil {
		a.discard(path)
		return &domain.TransportError{Op: "flush staged file", Err: err}
	}

	a.log.WithFields(logrus.Fields{
		"path":  filepath.Base(path),
		"bytes": written,
	}).Info("transfer staged")
	return nil
}

func (a *Acquirer) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		a.log.WithError(err).WithField("path", path).Warn("failed to remove partial file")
	}
}

// uploadHint names the staged file after the upload's unique id, keeping
// the declared extension so classification still sees it.
func uploadHint(desc domain.InputDescriptor) string {
	hint := desc.FileUniqueID
	if hint == "" {
		hint = "upload"
	}
	if ext := filepath.Ext(desc.Name); ext != "" {
		hint += ext
	}
	return hint
}
