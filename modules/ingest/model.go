package ingest

import (
	"errors"
	"strings"
)

// Accepted MIME types.
const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
)

var (
	// ErrUnsupportedFormat - declared type is neither JPEG nor PNG
	ErrUnsupportedFormat = errors.New("only PNG and JPG images are allowed")
	// ErrDecode - bytes could not be decoded as the declared format
	ErrDecode = errors.New("failed to decode image")
	// ErrSuperseded - a newer selection replaced this ingestion before it finished
	ErrSuperseded = errors.New("upload superseded by a newer selection")
	// ErrSlotClosed - the owning session has been torn down
	ErrSlotClosed = errors.New("upload slot is closed")
)

// File - a user-selected file as received from the shell
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadedAsset - an accepted image, base64 encoded
type UploadedAsset struct {
	EncodedData    []byte `json:"-"`
	SourceFileName string `json:"sourceFileName"`
	SourceByteSize int64  `json:"sourceByteSize"`
	ContentType    string `json:"contentType"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
}

// DataURL renders the asset as a data: URL, or "" for an empty asset.
func (a *UploadedAsset) DataURL() string {
	if a == nil || len(a.EncodedData) == 0 {
		return ""
	}
	return "data:" + a.ContentType + ";base64," + string(a.EncodedData)
}

// Upload - the product of one successful ingestion
type Upload struct {
	Asset   UploadedAsset
	Preview *PreviewHandle
	Resized bool

	// ByteSize - size of the bytes actually kept, after any re-encode
	ByteSize int64
}

// SourceKind tags where the asset used for generation came from.
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceExternal
	SourceLocal
)

func (k SourceKind) String() string {
	switch k {
	case SourceExternal:
		return "external"
	case SourceLocal:
		return "local"
	default:
		return "none"
	}
}

// Source - the asset chosen for a generation request
type Source struct {
	Kind  SourceKind
	Asset *UploadedAsset
}

// External wraps a caller-supplied asset.
func External(asset *UploadedAsset) Source { return Source{Kind: SourceExternal, Asset: asset} }

// Local wraps the asset ingested into the session's upload slot.
func Local(asset *UploadedAsset) Source { return Source{Kind: SourceLocal, Asset: asset} }

// normalizeContentType maps a declared type onto MimeJPEG / MimePNG, or "".
func normalizeContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case MimeJPEG, "image/jpg", "image/pjpeg":
		return MimeJPEG
	case MimePNG:
		return MimePNG
	default:
		return ""
	}
}
