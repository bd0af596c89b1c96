package domain

import (
	"net/url"
	"path"
	"strings"
)

// Source type constants
const (
	SourceUpload = "upload"
	SourceRemote = "remote"
)

// InputDescriptor identifies one piece of media to process.
// It is immutable once constructed.
type InputDescriptor struct {
	Kind string

	// Upload fields
	FileID       string
	FileUniqueID string
	Name         string // declared filename, may be empty

	// Remote fields
	URL string
}

// UploadRef builds a descriptor for a chat-transport file handle.
func UploadRef(fileID, fileUniqueID, name string) InputDescriptor {
	return InputDescriptor{
		Kind:         SourceUpload,
		FileID:       fileID,
		FileUniqueID: fileUniqueID,
		Name:         name,
	}
}

// RemoteRef builds a descriptor for a remote URL.
func RemoteRef(rawURL string) InputDescriptor {
	return InputDescriptor{
		Kind: SourceRemote,
		URL:  rawURL,
	}
}

// DisplayName returns the best human-readable name for the input.
// For uploads it prefers the declared filename; for remote inputs it is
// the last path component of the URL. It is also what classification
// runs against, so extensions are preserved where the source had one.
func (d InputDescriptor) DisplayName() string {
	switch d.Kind {
	case SourceUpload:
		if d.Name != "" {
			return d.Name
		}
		return d.FileUniqueID
	case SourceRemote:
		if u, err := url.Parse(d.URL); err == nil {
			if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
				return base
			}
		}
		return "remote_file"
	}
	return "file"
}

// Transcript holds the text produced by one processing session.
type Transcript struct {
	Raw          string
	Formatted    string
	Translations map[string]string
}

// Text returns the formatted transcript when enrichment succeeded,
// otherwise the raw one.
func (t *Transcript) Text() string {
	if strings.TrimSpace(t.Formatted) != "" {
		return t.Formatted
	}
	return t.Raw
}
