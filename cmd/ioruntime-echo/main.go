// Command ioruntime-echo is a minimal TCP echo server exercising the
// public runtime surface end to end: Builder, Spawn, BlockOn and the io
// package's op constructors.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"

	"golang.org/x/sys/unix"

	ioruntime "github.com/behrlich/ioruntime"
	"github.com/behrlich/ioruntime/internal/fd"
	"github.com/behrlich/ioruntime/internal/logging"
	"github.com/behrlich/ioruntime/internal/sched"
	rio "github.com/behrlich/ioruntime/io"
)

func main() {
	var (
		addr    = flag.String("addr", "127.0.0.1:7070", "address to listen on")
		verbose = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	rt, err := ioruntime.NewBuilder().EnableAll().WithLogger(logger).Build()
	if err != nil {
		logger.Error("failed to build runtime", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	rawListenFd, err := listen(*addr)
	if err != nil {
		logger.Error("failed to listen", "addr", *addr, "error", err)
		os.Exit(1)
	}
	listenFd := rt.NewSharedFd(rawListenFd)
	defer func() { ioruntime.BlockOn(rt, listenFd.Close()) }()
	logger.Info("listening", "addr", *addr)

	var stopping atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		stopping.Store(true)
		rt.Unpark()
	}()

	ioruntime.Spawn(rt, &acceptLoop{rt: rt, listenFd: listenFd, logger: logger, stopping: &stopping})
	ioruntime.BlockOn(rt, &untilStopping{stopping: &stopping})
	logger.Info("shutting down")
}

func listen(addr string) (int, error) {
	ip, port, err := splitHostPort(addr)
	if err != nil {
		return -1, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	sa := &unix.SockaddrInet4{Port: port, Addr: ip}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func splitHostPort(addr string) (ip [4]byte, port int, err error) {
	host := "0.0.0.0"
	portStr := addr
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			host, portStr = addr[:i], addr[i+1:]
			break
		}
	}
	if host != "" && host != "0.0.0.0" {
		var a, b, c, d int
		if n, serr := fmt.Sscanf(host, "%d.%d.%d.%d", &a, &b, &c, &d); serr != nil || n != 4 {
			return ip, 0, fmt.Errorf("invalid IPv4 address %q", host)
		} else {
			ip[0], ip[1], ip[2], ip[3] = byte(a), byte(b), byte(c), byte(d)
		}
	}
	if _, serr := fmt.Sscanf(portStr, "%d", &port); serr != nil {
		return ip, 0, fmt.Errorf("invalid port %q", portStr)
	}
	return ip, port, nil
}

// untilStopping is the root future BlockOn drives: it resolves once the
// signal goroutine flips stopping and calls Runtime.Unpark to break this
// thread out of its kernel park.
type untilStopping struct {
	stopping *atomic.Bool
}

func (u *untilStopping) Poll(cx *sched.Context) sched.PollResult[struct{}] {
	if u.stopping.Load() {
		return sched.Ready(struct{}{})
	}
	return sched.Pending[struct{}]()
}

// acceptLoop repeatedly arms an Accept on listenFd and spawns an
// echoConn per accepted socket, until stopping is set.
type acceptLoop struct {
	rt       *ioruntime.Runtime
	listenFd fd.SharedFd
	logger   *logging.Logger
	stopping *atomic.Bool

	fut sched.Future[rio.Result]
}

func (a *acceptLoop) Poll(cx *sched.Context) sched.PollResult[struct{}] {
	for {
		if a.stopping.Load() {
			return sched.Ready(struct{}{})
		}
		if a.fut == nil {
			fut, err := rio.Accept(a.rt.Registry(), a.rt.Submitter(), a.listenFd, 0)
			if err != nil {
				a.logger.Error("accept submission failed", "error", err)
				return sched.Pending[struct{}]()
			}
			a.fut = fut
		}
		r := a.fut.Poll(cx)
		if !r.Done() {
			return sched.Pending[struct{}]()
		}
		a.fut = nil
		result := r.Value()
		if result.Err != nil {
			a.logger.Warn("accept failed", "error", result.Err)
			continue
		}
		a.logger.Debug("accepted connection", "fd", result.N)
		ioruntime.Spawn(a.rt, newEchoConn(a.rt, a.rt.NewSharedFd(result.N), a.logger))
	}
}

const (
	connRecv = iota
	connSend
	connClosing
)

// echoConn alternates Recv/Send on one accepted socket until the peer
// closes (a zero-length Recv) or either op errors, then drives the
// socket's SharedFd through a real Close op rather than calling
// close(2) directly; a Recv or Send that hasn't completed yet still
// holds its own clone, so the close op and any in-flight op race
// safely instead of one invalidating the fd under the other.
type echoConn struct {
	rt     *ioruntime.Runtime
	conn   fd.SharedFd
	logger *logging.Logger

	state    int
	buf      *rio.ByteBuf
	fut      sched.Future[rio.Result]
	closeFut sched.Future[error]
}

func newEchoConn(rt *ioruntime.Runtime, conn fd.SharedFd, logger *logging.Logger) *echoConn {
	return &echoConn{rt: rt, conn: conn, logger: logger, buf: rio.NewByteBuf(make([]byte, 4096))}
}

func (c *echoConn) Poll(cx *sched.Context) sched.PollResult[struct{}] {
	for {
		switch c.state {
		case connRecv:
			if c.fut == nil {
				fut, err := rio.Recv(c.rt.Registry(), c.rt.Submitter(), c.conn, c.buf, 0)
				if err != nil {
					c.logger.Error("recv submission failed", "fd", c.conn.RawFd(), "error", err)
					c.startClosing()
					continue
				}
				c.fut = fut
			}
			r := c.fut.Poll(cx)
			if !r.Done() {
				return sched.Pending[struct{}]()
			}
			c.fut = nil
			res := r.Value()
			if res.Err != nil || res.N == 0 {
				c.startClosing()
				continue
			}
			c.state = connSend
		case connSend:
			if c.fut == nil {
				sendBuf := rio.NewByteBuf(c.buf.Bytes()[:c.buf.Filled()])
				fut, err := rio.Send(c.rt.Registry(), c.rt.Submitter(), c.conn, sendBuf, 0)
				if err != nil {
					c.logger.Error("send submission failed", "fd", c.conn.RawFd(), "error", err)
					c.startClosing()
					continue
				}
				c.fut = fut
			}
			r := c.fut.Poll(cx)
			if !r.Done() {
				return sched.Pending[struct{}]()
			}
			c.fut = nil
			res := r.Value()
			if res.Err != nil {
				c.startClosing()
				continue
			}
			c.state = connRecv
		case connClosing:
			r := c.closeFut.Poll(cx)
			if !r.Done() {
				return sched.Pending[struct{}]()
			}
			if err := r.Value(); err != nil {
				c.logger.Warn("close failed", "fd", c.conn.RawFd(), "error", err)
			}
			return sched.Ready(struct{}{})
		}
	}
}

func (c *echoConn) startClosing() {
	c.state = connClosing
	c.closeFut = c.conn.Close()
}
