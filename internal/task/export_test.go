package task

import (
	"context"
	"time"
)

// SetWait replaces the wait between attempts so tests can observe intervals
// without sleeping.
func SetWait(p *Poller, wait func(ctx context.Context, d time.Duration) error) {
	p.wait = wait
}
