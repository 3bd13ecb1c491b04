// ABOUTME: Discovery mode
// ABOUTME: Browses the network for other bridges and prints their monitoring endpoints
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spimeter/spimeter/internal/discovery"
)

// Discover prints every bridge found within timeout and returns how many were found
func Discover(ctx context.Context, w io.Writer, timeout time.Duration, logger *slog.Logger) (int, error) {
	disc := discovery.NewManager(discovery.Config{Logger: logger})
	if err := disc.Browse(); err != nil {
		return 0, fmt.Errorf("failed to browse: %w", err)
	}
	defer disc.Stop()

	return collect(ctx, w, disc.Servers(), timeout)
}

// collect prints unique servers until the channel closes, ctx ends or timeout passes
func collect(ctx context.Context, w io.Writer, servers <-chan *discovery.ServerInfo, timeout time.Duration) (int, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	seen := make(map[string]bool)
	for {
		select {
		case s, ok := <-servers:
			if !ok {
				return len(seen), nil
			}
			key := fmt.Sprintf("%s@%s:%d", s.Name, s.Host, s.Port)
			if seen[key] {
				continue
			}
			seen[key] = true
			if _, err := fmt.Fprintln(w, formatServer(s)); err != nil {
				return len(seen), err
			}
		case <-timer.C:
			return len(seen), nil
		case <-ctx.Done():
			return len(seen), nil
		}
	}
}

func formatServer(s *discovery.ServerInfo) string {
	line := fmt.Sprintf("%s\thttp://%s:%d", strings.TrimSuffix(s.Name, "."), s.Host, s.Port)
	if len(s.Info) > 0 {
		line += "\t" + strings.Join(s.Info, " ")
	}
	return line
}
