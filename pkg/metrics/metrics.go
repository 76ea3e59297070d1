package metrics

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Metrics holds gateway-wide call metrics
type Metrics struct {
	mu sync.RWMutex

	SessionsStarted int64
	SessionsActive  int64

	ResponsesRequested int64
	Interruptions      int64
	Transfers          int64
	Hangups            int64

	ToolCalls  map[string]int64
	ToolErrors map[string]int64

	StartTime time.Time
}

var globalMetrics = &Metrics{
	ToolCalls:  make(map[string]int64),
	ToolErrors: make(map[string]int64),
	StartTime:  time.Now(),
}

func SessionStarted() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.SessionsStarted++
	globalMetrics.SessionsActive++
}

func SessionEnded() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	if globalMetrics.SessionsActive > 0 {
		globalMetrics.SessionsActive--
	}
}

func ResponseRequested() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.ResponsesRequested++
}

func Interruption() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.Interruptions++
}

func Transfer() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.Transfers++
}

func Hangup() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.Hangups++
}

func ToolCall(name string, success bool) {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.ToolCalls[name]++
	if !success {
		globalMetrics.ToolErrors[name]++
	}
}

// Snapshot returns a copy for the metrics endpoint
func Snapshot() map[string]interface{} {
	globalMetrics.mu.RLock()
	defer globalMetrics.mu.RUnlock()

	toolCalls := make(map[string]int64, len(globalMetrics.ToolCalls))
	for k, v := range globalMetrics.ToolCalls {
		toolCalls[k] = v
	}
	toolErrors := make(map[string]int64, len(globalMetrics.ToolErrors))
	for k, v := range globalMetrics.ToolErrors {
		toolErrors[k] = v
	}

	return map[string]interface{}{
		"uptime_seconds":      int64(time.Since(globalMetrics.StartTime).Seconds()),
		"sessions_started":    globalMetrics.SessionsStarted,
		"sessions_active":     globalMetrics.SessionsActive,
		"responses_requested": globalMetrics.ResponsesRequested,
		"interruptions":       globalMetrics.Interruptions,
		"transfers":           globalMetrics.Transfers,
		"hangups":             globalMetrics.Hangups,
		"tool_calls":          toolCalls,
		"tool_errors":         toolErrors,
	}
}

// Prometheus renders the counters in the text exposition format.
func Prometheus() string {
	globalMetrics.mu.RLock()
	defer globalMetrics.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "# TYPE voice_gateway_uptime_seconds gauge\nvoice_gateway_uptime_seconds %d\n",
		int64(time.Since(globalMetrics.StartTime).Seconds()))
	fmt.Fprintf(&b, "# TYPE voice_gateway_sessions_started counter\nvoice_gateway_sessions_started %d\n",
		globalMetrics.SessionsStarted)
	fmt.Fprintf(&b, "# TYPE voice_gateway_sessions_active gauge\nvoice_gateway_sessions_active %d\n",
		globalMetrics.SessionsActive)
	fmt.Fprintf(&b, "# TYPE voice_gateway_responses_requested counter\nvoice_gateway_responses_requested %d\n",
		globalMetrics.ResponsesRequested)
	fmt.Fprintf(&b, "# TYPE voice_gateway_interruptions counter\nvoice_gateway_interruptions %d\n",
		globalMetrics.Interruptions)
	fmt.Fprintf(&b, "# TYPE voice_gateway_transfers counter\nvoice_gateway_transfers %d\n",
		globalMetrics.Transfers)
	fmt.Fprintf(&b, "# TYPE voice_gateway_hangups counter\nvoice_gateway_hangups %d\n",
		globalMetrics.Hangups)
	b.WriteString("# TYPE voice_gateway_tool_calls counter\n")
	for name, n := range globalMetrics.ToolCalls {
		fmt.Fprintf(&b, "voice_gateway_tool_calls{tool=%q} %d\n", name, n)
	}
	b.WriteString("# TYPE voice_gateway_tool_errors counter\n")
	for name, n := range globalMetrics.ToolErrors {
		fmt.Fprintf(&b, "voice_gateway_tool_errors{tool=%q} %d\n", name, n)
	}
	return b.String()
}

// Reset is for tests
func Reset() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.SessionsStarted = 0
	globalMetrics.SessionsActive = 0
	globalMetrics.ResponsesRequested = 0
	globalMetrics.Interruptions = 0
	globalMetrics.Transfers = 0
	globalMetrics.Hangups = 0
	globalMetrics.ToolCalls = make(map[string]int64)
	globalMetrics.ToolErrors = make(map[string]int64)
	globalMetrics.StartTime = time.Now()
}
