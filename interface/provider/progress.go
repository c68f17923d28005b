package provider

import (
	"context"
	"sync"
	"time"

	"github.com/airbusgeo/s2-indices/service/log"
)

// Progress logs the progress of a transfer of known size every percentStep percents
type Progress struct {
	ctx         context.Context
	prefix      string
	size        int64
	percentStep float64

	mu       sync.Mutex
	complete int64
	next     float64
	start    time.Time
}

// NewProgress creates a Progress. If size is unknown (<=0), only the transferred bytes are logged.
func NewProgress(ctx context.Context, prefix string, size int64, percentStep float64) *Progress {
	return &Progress{
		ctx:         ctx,
		prefix:      prefix,
		size:        size,
		percentStep: percentStep,
		next:        percentStep,
		start:       time.Now(),
	}
}

// UpdateDelta adds delta bytes to the transfer
func (p *Progress) UpdateDelta(delta int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.complete += delta
	if p.size <= 0 {
		return
	}
	if percent := 100 * float64(p.complete) / float64(p.size); percent >= p.next {
		rate := int64(0)
		if elapsed := time.Since(p.start).Seconds(); elapsed > 0 {
			rate = int64(float64(p.complete) / elapsed)
		}
		log.Logger(p.ctx).Sugar().Debugf("%s: %.2f%% %s/%s (%s/s)", p.prefix, percent, fmtBytes(p.complete), fmtBytes(p.size), fmtBytes(rate))
		for p.next <= percent {
			p.next += p.percentStep
		}
	}
}

// BytesComplete returns the number of bytes transferred
func (p *Progress) BytesComplete() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.complete
}

// WriteCounter counts the number of bytes written to it. It implements to the io.Writer interface
// and we can pass this into io.TeeReader() which will report progress on each write cycle.
type WriteCounter struct {
	Progress *Progress
}

func (wc *WriteCounter) Write(p []byte) (int, error) {
	n := len(p)
	wc.Progress.UpdateDelta(int64(n))
	return n, nil
}

// progressWriterAt reports the progress of a concurrent download (see s3 manager)
type progressWriterAt struct {
	w interface {
		WriteAt(p []byte, off int64) (int, error)
	}
	progress *Progress
}

func (pw *progressWriterAt) WriteAt(p []byte, off int64) (int, error) {
	n, err := pw.w.WriteAt(p, off)
	pw.progress.UpdateDelta(int64(n))
	return n, err
}
