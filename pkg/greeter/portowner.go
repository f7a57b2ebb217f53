package greeter

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// PortOwner returns "name[pid]" for the process listening on a TCP port.
// Best-effort: the OS may hide other users' sockets.
func PortOwner(ctx context.Context, port int) (string, error) {
	conns, err := psnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return "", errors.Wrap(err, "listing connections")
	}

	for _, c := range conns {
		if c.Status != "LISTEN" || int(c.Laddr.Port) != port {
			continue
		}
		if c.Pid == 0 {
			return "", fmt.Errorf("port %d is held by a process we cannot see", port)
		}

		p, err := process.NewProcessWithContext(ctx, c.Pid)
		if err != nil {
			return fmt.Sprintf("pid %d", c.Pid), nil
		}
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			return fmt.Sprintf("pid %d", c.Pid), nil
		}
		return fmt.Sprintf("%s[%d]", name, c.Pid), nil
	}
	return "", fmt.Errorf("no listener found on port %d", port)
}
