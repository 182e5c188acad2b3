// Package prober sweeps an IPv4 range for hosts accepting TCP connections on
// the database ports.
package prober

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mysqlassistant/internal/logging"
)

var ErrUnsupportedRange = errors.New("unsupported network range")

const (
	DefaultTimeout        = time.Second
	DefaultMaxConcurrency = 64
	minPrefixBits         = 16
)

// DefaultPorts are the MySQL and MariaDB side-by-side defaults.
var DefaultPorts = []int{3306, 3307}

// Candidate is a host that accepted a connection.
type Candidate struct {
	Address   string        `json:"address"`
	Port      int           `json:"port"`
	Reachable bool          `json:"reachable"`
	Latency   time.Duration `json:"latency"`
}

func (c Candidate) HostPort() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

type Options struct {
	Network        string
	Ports          []int
	Timeout        time.Duration
	MaxConcurrency int
}

func (o Options) withDefaults() Options {
	if len(o.Ports) == 0 {
		o.Ports = DefaultPorts
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	return o
}

// DialFunc opens a connection; it matches (*net.Dialer).DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

type Prober struct {
	dial   DialFunc
	logger *logrus.Entry

	// Progress, when set, is called after every finished attempt.
	Progress func(checked, total int)
}

func New(logger *logrus.Entry) *Prober {
	return &Prober{
		dial:   (&net.Dialer{}).DialContext,
		logger: logging.Component(logger, "prober"),
	}
}

// WithDialer replaces the dialer, mainly for tests.
func (p *Prober) WithDialer(dial DialFunc) *Prober {
	p.dial = dial
	return p
}

// Hosts expands an IPv4 CIDR into probe addresses. Network and broadcast
// addresses are left out for prefixes of /30 and wider.
func Hosts(network string) ([]netip.Addr, error) {
	prefix, err := netip.ParsePrefix(network)
	if err != nil {
		addr, addrErr := netip.ParseAddr(network)
		if addrErr != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedRange, network)
		}
		prefix = netip.PrefixFrom(addr, addr.BitLen())
	}
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("%w: %q is not IPv4", ErrUnsupportedRange, network)
	}
	if prefix.Bits() < minPrefixBits {
		return nil, fmt.Errorf("%w: %q is wider than /%d", ErrUnsupportedRange, network, minPrefixBits)
	}
	prefix = prefix.Masked()

	var hosts []netip.Addr
	for a := prefix.Addr(); prefix.Contains(a); a = a.Next() {
		hosts = append(hosts, a)
	}
	if prefix.Bits() <= 30 {
		hosts = hosts[1 : len(hosts)-1]
	}
	return hosts, nil
}

// Probe starts the sweep and returns a channel of reachable candidates. The
// channel is closed when every attempt has finished. It has room for every
// attempt, so a caller may stop reading at any time; cancel ctx to also stop
// dialing. Attempts already dialing end at their own timeout.
func (p *Prober) Probe(ctx context.Context, opts Options) (<-chan Candidate, error) {
	opts = opts.withDefaults()
	hosts, err := Hosts(opts.Network)
	if err != nil {
		return nil, err
	}
	for _, port := range opts.Ports {
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid port %d", port)
		}
	}

	total := len(hosts) * len(opts.Ports)
	out := make(chan Candidate, total)
	p.logger.WithFields(logrus.Fields{
		"network": opts.Network,
		"ports":   opts.Ports,
		"targets": total,
	}).Debug("probe sweep started")

	go func() {
		defer close(out)

		sem := make(chan struct{}, opts.MaxConcurrency)
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			checked int
		)
	dispatch:
		for _, host := range hosts {
			for _, port := range opts.Ports {
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					break dispatch
				}
				wg.Add(1)
				go func(addr string) {
					defer wg.Done()
					defer func() { <-sem }()

					c, ok := p.attempt(ctx, addr, opts.Timeout)
					if p.Progress != nil {
						mu.Lock()
						checked++
						p.Progress(checked, total)
						mu.Unlock()
					}
					if !ok {
						return
					}
					select {
					case out <- c:
					case <-ctx.Done():
					}
				}(net.JoinHostPort(host.String(), strconv.Itoa(port)))
			}
		}
		wg.Wait()
	}()
	return out, nil
}

func (p *Prober) attempt(ctx context.Context, addr string, timeout time.Duration) (Candidate, bool) {
	dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dial(dialCtx, "tcp4", addr)
	if err != nil {
		return Candidate{}, false
	}
	latency := time.Since(start)
	_ = conn.Close()

	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)
	return Candidate{Address: host, Port: port, Reachable: true, Latency: latency}, true
}

// collector accumulates candidates from concurrent producers.
type collector struct {
	mu    sync.Mutex
	items []Candidate
}

func (c *collector) add(cand Candidate) {
	c.mu.Lock()
	c.items = append(c.items, cand)
	c.mu.Unlock()
}

func (c *collector) sorted() []Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]Candidate(nil), c.items...)
	sort.Slice(out, func(i, j int) bool {
		ai, _ := netip.ParseAddr(out[i].Address)
		aj, _ := netip.ParseAddr(out[j].Address)
		if cmp := ai.Compare(aj); cmp != 0 {
			return cmp < 0
		}
		return out[i].Port < out[j].Port
	})
	return out
}

// Sweep runs Probe to completion and returns the candidates ordered by
// address and port.
func (p *Prober) Sweep(ctx context.Context, opts Options) ([]Candidate, error) {
	ch, err := p.Probe(ctx, opts)
	if err != nil {
		return nil, err
	}
	var c collector
	for cand := range ch {
		c.add(cand)
	}
	found := c.sorted()
	p.logger.WithField("found", len(found)).Info("probe sweep finished")
	return found, ctx.Err()
}

// LocalNetwork returns the /24 around the first non-loopback IPv4 address.
func LocalNetwork() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("list interface addresses: %w", err)
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil || ip4.IsLoopback() || ip4.IsLinkLocalUnicast() {
			continue
		}
		addr, _ := netip.AddrFromSlice(ip4)
		return netip.PrefixFrom(addr, 24).Masked().String(), nil
	}
	return "", errors.New("no IPv4 interface address found")
}
