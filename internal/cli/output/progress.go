package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const barCells = 30

// ProgressBar draws a one-line transfer meter. The line is redrawn only
// when the shown percentage changes, or per KiB when the size is unknown.
type ProgressBar struct {
	mu    sync.Mutex
	out   io.Writer
	label string
	size  int64
	done  int64
	drawn int64
	start time.Time
}

// NewProgressBar returns a meter labelled label that draws on out.
func NewProgressBar(out io.Writer, label string) *ProgressBar {
	return &ProgressBar{out: out, label: label, drawn: -1}
}

// SetTotal sets the expected number of bytes.
func (p *ProgressBar) SetTotal(size int64) {
	p.mu.Lock()
	p.size = size
	p.mu.Unlock()
}

// Add records n more transferred bytes.
func (p *ProgressBar) Add(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.start.IsZero() {
		p.start = time.Now()
	}
	p.done += n
	if step := p.step(); step != p.drawn {
		p.drawn = step
		fmt.Fprint(p.out, "\r"+p.line())
	}
}

// Reader wraps r so that reads advance the meter.
func (p *ProgressBar) Reader(r io.Reader) io.Reader {
	return meteredReader{r: r, bar: p}
}

// Finish draws the completed meter with the elapsed time and ends the line.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.size > 0 {
		p.done = p.size
	}
	elapsed := time.Duration(0)
	if !p.start.IsZero() {
		elapsed = time.Since(p.start).Round(10 * time.Millisecond)
	}
	fmt.Fprintf(p.out, "\r%s in %s\n", p.line(), elapsed)
}

func (p *ProgressBar) step() int64 {
	if p.size <= 0 {
		return p.done >> 10
	}
	return p.done * 100 / p.size
}

func (p *ProgressBar) line() string {
	if p.size <= 0 {
		return p.label + " " + humanBytes(p.done)
	}
	pct := min(p.done*100/p.size, 100)
	cells := int(pct * barCells / 100)
	return fmt.Sprintf("%s [%s%s] %3d%% (%s/%s)", p.label,
		strings.Repeat("#", cells), strings.Repeat("-", barCells-cells),
		pct, humanBytes(p.done), humanBytes(p.size))
}

type meteredReader struct {
	r   io.Reader
	bar *ProgressBar
}

func (m meteredReader) Read(b []byte) (int, error) {
	n, err := m.r.Read(b)
	if n > 0 {
		m.bar.Add(int64(n))
	}
	return n, err
}

// humanBytes renders n with binary units, e.g. "1.5 MiB".
func humanBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	v := float64(n) / 1024
	for _, unit := range []string{"KiB", "MiB", "GiB", "TiB"} {
		if v < 1024 || unit == "TiB" {
			return fmt.Sprintf("%.1f %s", v, unit)
		}
		v /= 1024
	}
	return fmt.Sprintf("%d B", n)
}
