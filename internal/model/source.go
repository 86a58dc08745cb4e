package model

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"hypnosd/internal/common/fsutil"
	"hypnosd/internal/registry"
)

// DefaultStorageEndpoint serves public objects for gs:// sources.
const DefaultStorageEndpoint = "https://storage.googleapis.com"

// SourceKind classifies a configured model location.
type SourceKind int

const (
	SourceLocal SourceKind = iota
	SourceGCS
	SourceHTTP
)

func (k SourceKind) String() string {
	switch k {
	case SourceLocal:
		return "local"
	case SourceGCS:
		return "gcs"
	case SourceHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// Source is a parsed model location.
type Source struct {
	Kind SourceKind
	// Raw is the configured string.
	Raw string
	// Path is set for local sources.
	Path string
	// Bucket and Object are set for gs:// sources.
	Bucket string
	Object string
	// URL is set for http(s) sources.
	URL string
}

// ParseSource classifies s as a local path, gs://bucket/object or http(s) URL.
func ParseSource(s string) (Source, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Source{}, fmt.Errorf("model source is empty")
	}
	switch {
	case strings.HasPrefix(s, "gs://"):
		rest := strings.TrimPrefix(s, "gs://")
		bucket, object, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || strings.Trim(object, "/") == "" {
			return Source{}, fmt.Errorf("invalid gs:// source %q: want gs://bucket/object", s)
		}
		return Source{Kind: SourceGCS, Raw: s, Bucket: bucket, Object: strings.Trim(object, "/")}, nil
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		u, err := url.Parse(s)
		if err != nil {
			return Source{}, fmt.Errorf("invalid model url: %w", err)
		}
		if path.Base(u.Path) == "/" || path.Base(u.Path) == "." {
			return Source{}, fmt.Errorf("model url %q has no file name", s)
		}
		return Source{Kind: SourceHTTP, Raw: s, URL: s}, nil
	default:
		p, err := fsutil.ExpandHome(s)
		if err != nil {
			return Source{}, err
		}
		return Source{Kind: SourceLocal, Raw: s, Path: p}, nil
	}
}

// Remote reports whether the source may need a download.
func (s Source) Remote() bool { return s.Kind != SourceLocal }

// FileName is the artifact base name used for the download cache.
func (s Source) FileName() string {
	switch s.Kind {
	case SourceGCS:
		return path.Base(s.Object)
	case SourceHTTP:
		u, err := url.Parse(s.URL)
		if err != nil {
			return ""
		}
		return path.Base(u.Path)
	default:
		return filepath.Base(s.Path)
	}
}

// MountPath is where a gcsfuse-style mount exposes the object, or "" when no
// mount is configured or the source is not in object storage.
func (s Source) MountPath(mountDir string) string {
	if s.Kind != SourceGCS || mountDir == "" {
		return ""
	}
	return filepath.Join(mountDir, s.Bucket, filepath.FromSlash(s.Object))
}

// DownloadURL is the HTTP location of a remote source.
func (s Source) DownloadURL(endpoint string) string {
	switch s.Kind {
	case SourceGCS:
		if endpoint == "" {
			endpoint = DefaultStorageEndpoint
		}
		return strings.TrimRight(endpoint, "/") + "/" + s.Bucket + "/" + s.Object
	case SourceHTTP:
		return s.URL
	default:
		return ""
	}
}

// resolveLocal returns the model file for a local source. Directories are
// scanned for *.gguf and the first match is used.
func resolveLocal(p string) (string, error) {
	if fsutil.IsDir(p) {
		a, err := registry.Pick(p)
		if err != nil {
			return "", err
		}
		return a.Path, nil
	}
	if !fsutil.IsRegularFile(p) {
		return "", fmt.Errorf("model file not found: %s", p)
	}
	return p, nil
}
