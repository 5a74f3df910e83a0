package metrics

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Line is one sample in the plaintext "name value unix_ts" protocol.
type Line struct {
	Name  string
	Value float64
	Time  time.Time
}

func (l Line) String() string {
	return fmt.Sprintf("%s %s %d\n", l.Name, strconv.FormatFloat(l.Value, 'f', -1, 64), l.Time.Unix())
}

// Pusher writes lines to a TCP collector, one connection per push.
type Pusher struct {
	Addr    string
	Timeout time.Duration
}

// NewPusher creates a Pusher for addr ("host:port").
func NewPusher(addr string, timeout time.Duration) *Pusher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Pusher{Addr: addr, Timeout: timeout}
}

// Push sends lines in a single write.
func (p *Pusher) Push(ctx context.Context, lines ...Line) error {
	if len(lines) == 0 {
		return nil
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.String())
	}

	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return fmt.Errorf("dial metrics %s: %w", p.Addr, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(p.Timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	if _, err := conn.Write([]byte(b.String())); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
