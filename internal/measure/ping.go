package measure

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/benchfabric/benchfabric/internal/broker"
)

const pingPayload = "benchfabric-ping"

// resolveHost resolves host to its first IP address, mirroring the
// original's "first address wins" rule.
func resolveHost(ctx context.Context, host string) (net.IP, error) {
	resolver := &net.Resolver{}
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve host: %w", err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("could not resolve host to an IP address")
	}
	return addrs[0].IP, nil
}

// runPing sends up to seqMax ICMP echo requests to host, stopping early at
// loopDeadline. Individual send/receive failures are logged by the caller
// and do not abort the sequence; fewer than seqMax/2 replies is a failure.
func runPing(ctx context.Context, host string, seqMax int, loopDeadline time.Time, onSendFailure func(error)) (broker.MinMaxAvg, error) {
	ip, err := resolveHost(ctx, host)
	if err != nil {
		return broker.MinMaxAvg{}, err
	}

	isV4 := ip.To4() != nil
	network, proto := "ip4:icmp", 1
	if !isV4 {
		network, proto = "ip6:ipv6-icmp", 58
	}

	conn, err := icmp.ListenPacket(network, pingLocalAddr(isV4))
	if err != nil {
		return broker.MinMaxAvg{}, fmt.Errorf("open icmp socket: %w", err)
	}
	defer conn.Close()

	id := rand.Intn(0xffff)
	var rtts []float64

	for seq := 0; seq < seqMax; seq++ {
		if time.Now().After(loopDeadline) {
			break
		}

		msg := buildEchoRequest(isV4, id, seq)
		wb, err := msg.Marshal(nil)
		if err != nil {
			onSendFailure(fmt.Errorf("marshal echo: %w", err))
			continue
		}

		sentAt := time.Now()
		if _, err := conn.WriteTo(wb, &net.IPAddr{IP: ip}); err != nil {
			onSendFailure(fmt.Errorf("send echo: %w", err))
			continue
		}

		if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
			onSendFailure(fmt.Errorf("set read deadline: %w", err))
			continue
		}

		rb := make([]byte, 1500)
		n, _, err := conn.ReadFrom(rb)
		if err != nil {
			onSendFailure(fmt.Errorf("read echo reply: %w", err))
			continue
		}

		rm, err := icmp.ParseMessage(proto, rb[:n])
		if err != nil {
			onSendFailure(fmt.Errorf("parse echo reply: %w", err))
			continue
		}
		if !isEchoReply(isV4, rm.Type) {
			continue
		}

		rtts = append(rtts, time.Since(sentAt).Seconds())
	}

	if len(rtts) < seqMax/2 {
		return broker.MinMaxAvg{}, fmt.Errorf("too many packets lost")
	}

	return summarize(rtts), nil
}

func pingLocalAddr(isV4 bool) string {
	if isV4 {
		return "0.0.0.0"
	}
	return "::"
}

func buildEchoRequest(isV4 bool, id, seq int) *icmp.Message {
	echoType := ipv4.ICMPTypeEcho
	if !isV4 {
		echoType = ipv6.ICMPTypeEchoRequest
	}
	return &icmp.Message{
		Type: echoType,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  seq,
			Data: []byte(pingPayload),
		},
	}
}

func isEchoReply(isV4 bool, t icmp.Type) bool {
	if isV4 {
		return t == ipv4.ICMPTypeEchoReply
	}
	return t == ipv6.ICMPTypeEchoReply
}

func summarize(values []float64) broker.MinMaxAvg {
	min, max, sum := values[0], values[0], 0.0
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return broker.MinMaxAvg{Min: min, Max: max, Avg: sum / float64(len(values))}
}
