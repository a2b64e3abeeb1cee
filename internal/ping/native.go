package ping

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

const (
	// replyWait is the least the native backend waits for the last reply
	replyWait = 2 * time.Second
	// initialTimeout matches fping's default per-probe timeout
	initialTimeout = 500 * time.Millisecond
)

// Native runs rounds in-process with raw or unprivileged ICMP sockets. It
// renders results in the fping -C summary format so both backends share
// one parser. Lost probes are not re-sent: Retries and BackoffFactor only
// stretch the window in which late replies are still counted.
type Native struct {
	params     Params
	privileged bool
}

// NewNative creates a new in-process prober
func NewNative(params Params, privileged bool) *Native {
	return &Native{params: params, privileged: privileged}
}

// Probe pings every address concurrently and waits for all of them
func (n *Native) Probe(ctx context.Context, addresses []string) (string, error) {
	if len(addresses) == 0 {
		return "", &ProbeError{Op: "start", Err: errors.New("no targets")}
	}

	lines := make([]string, len(addresses))
	errs := make([]error, len(addresses))
	var wg sync.WaitGroup
	for i, addr := range addresses {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()
			lines[i], errs[i] = n.probeOne(addr)
		}(i, addr)
	}
	wg.Wait()

	var out strings.Builder
	failed := 0
	for i, addr := range addresses {
		if errs[i] != nil {
			failed++
			// same shape as fping's own error lines
			out.WriteString(addr + ": " + errs[i].Error() + "\n")
			continue
		}
		out.WriteString(lines[i] + "\n")
	}
	if failed == len(addresses) {
		return "", &ProbeError{Op: "run", Err: errs[0]}
	}
	return out.String(), nil
}

func (n *Native) probeOne(addr string) (string, error) {
	pinger := probing.New(addr)
	pinger.SetNetwork("ip4")
	pinger.SetPrivileged(n.privileged)
	if err := pinger.Resolve(); err != nil {
		return "", err
	}

	count := n.params.Count
	pinger.Count = count
	pinger.Interval = n.params.MinInterval
	pinger.Timeout = time.Duration(count)*n.params.MinInterval + replyWindow(n.params)

	rtts := make([]time.Duration, count)
	for i := range rtts {
		rtts[i] = -1
	}
	var mu sync.Mutex
	pinger.OnRecv = func(pkt *probing.Packet) {
		mu.Lock()
		defer mu.Unlock()
		if pkt.Seq >= 0 && pkt.Seq < count && rtts[pkt.Seq] < 0 {
			rtts[pkt.Seq] = pkt.Rtt
		}
	}

	if err := pinger.Run(); err != nil {
		return "", err
	}

	mu.Lock()
	defer mu.Unlock()
	return formatSummary(addr, rtts), nil
}

// formatSummary renders one fping -C line; a negative duration is a lost probe
func formatSummary(addr string, rtts []time.Duration) string {
	readings := make([]string, len(rtts))
	for i, rtt := range rtts {
		if rtt < 0 {
			readings[i] = LostSentinel
			continue
		}
		readings[i] = strconv.FormatFloat(float64(rtt.Microseconds())/1000, 'f', 2, 64)
	}
	return addr + Separator + strings.Join(readings, " ")
}

// replyWindow is how long fping would keep waiting on a probe across its
// retries, each timeout growing by BackoffFactor, but never below replyWait.
func replyWindow(p Params) time.Duration {
	var window time.Duration
	timeout := float64(initialTimeout)
	for i := 0; i <= p.Retries; i++ {
		window += time.Duration(timeout)
		timeout *= p.BackoffFactor
	}
	if window < replyWait {
		return replyWait
	}
	return window
}
