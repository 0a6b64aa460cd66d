package swarm

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/amonks/swarmboard/internal/config"
	internalstrings "github.com/amonks/swarmboard/internal/strings"
)

// DefaultPort is used when no port is configured.
const DefaultPort = config.DefaultPort

// AddrEnvVar names a server address used when no address flag is given.
const AddrEnvVar = "SB_ADDR"

const loopbackHost = "127.0.0.1"

// ResolveAddr picks the server address: addr when set, then $SB_ADDR, then
// the configured port on loopback. A bare port is bound to loopback.
func ResolveAddr(cfg *config.Config, addr string) (string, error) {
	for _, candidate := range []string{addr, os.Getenv(AddrEnvVar)} {
		if !internalstrings.IsBlank(candidate) {
			return normalizeAddr(candidate)
		}
	}
	port := DefaultPort
	if cfg != nil && cfg.Server.Port != 0 {
		port = cfg.Server.Port
	}
	return net.JoinHostPort(loopbackHost, strconv.Itoa(port)), nil
}

func normalizeAddr(addr string) (string, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(addr), "http://"), "/")
	host, port := loopbackHost, trimmed
	if h, p, err := net.SplitHostPort(trimmed); err == nil {
		host, port = h, p
	}
	number, err := strconv.Atoi(port)
	if err != nil {
		return "", fmt.Errorf("invalid port %q", port)
	}
	if number <= 0 || number > 65535 {
		return "", fmt.Errorf("port out of range: %d", number)
	}
	return net.JoinHostPort(host, port), nil
}
