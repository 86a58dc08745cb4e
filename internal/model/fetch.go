package model

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"hypnosd/internal/common/fsutil"
)

// progressEvery controls how often download progress is logged.
const progressEvery = 64 << 20

// Fetcher streams remote model artifacts into a local cache.
type Fetcher struct {
	Client *http.Client
	Log    zerolog.Logger
}

// NewFetcher returns a Fetcher using http.DefaultClient. A download of a
// multi-GB artifact has no overall timeout; ctx bounds it instead.
func NewFetcher(log zerolog.Logger) *Fetcher {
	return &Fetcher{Client: http.DefaultClient, Log: log}
}

// Download streams url into dest. dest appears only once the body is
// complete; a failed or short transfer leaves no file behind.
func (f *Fetcher) Download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	pw := &progressWriter{log: f.Log, total: resp.ContentLength, next: progressEvery}
	return fsutil.WriteAtomic(dest, func(w io.Writer) (int64, error) {
		n, err := io.Copy(io.MultiWriter(w, pw), resp.Body)
		if err != nil {
			return n, fmt.Errorf("download %s: %w", url, err)
		}
		if resp.ContentLength > 0 && n != resp.ContentLength {
			return n, fmt.Errorf("download %s: short body %d of %d bytes", url, n, resp.ContentLength)
		}
		return n, nil
	})
}

// progressWriter logs a line each time another progressEvery bytes arrive.
type progressWriter struct {
	log   zerolog.Logger
	total int64
	done  int64
	next  int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.done += int64(len(b))
	if p.done >= p.next {
		ev := p.log.Info().Str("received", humanize.Bytes(uint64(p.done)))
		if p.total > 0 {
			ev = ev.Str("total", humanize.Bytes(uint64(p.total)))
		}
		ev.Msg("model download progress")
		p.next += progressEvery
	}
	return len(b), nil
}
