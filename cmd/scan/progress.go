package scan

import (
	"io"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/llehouerou/bpmdata/internal/scan"
)

// renderProgress draws a bar fed by updates until the channel is closed.
// The returned channel is closed once the bar has been flushed.
func renderProgress(w io.Writer, updates <-chan scan.Progress) <-chan struct{} {
	done := make(chan struct{})

	p := mpb.New(mpb.WithOutput(w), mpb.WithWidth(64))
	bar := p.AddBar(0,
		mpb.PrependDecorators(
			decor.Name("Scanning: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)

	go func() {
		defer close(done)
		last := time.Now()
		for u := range updates {
			if u.WalkDone {
				bar.SetTotal(int64(u.Discovered), false)
			} else {
				// Keep the bar open while files are still being discovered.
				bar.SetTotal(int64(u.Discovered)+1, false)
			}
			bar.EwmaSetCurrent(int64(u.Processed), time.Since(last))
			last = time.Now()
		}
		bar.SetTotal(-1, true)
		p.Wait()
	}()

	return done
}
