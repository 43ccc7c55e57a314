// Package eventloop implements the single-threaded, cooperative event loop
// described in spec.md §5/§6: it polls a set of registered raw sockets for
// read-readiness, bounds each wait by the soonest registered deadline
// across all sockets, and once per turn calls every socket's CheckTimeout
// hook so each can fire its own deadline if due.
//
// No two callbacks ever run concurrently — everything here executes on the
// goroutine that calls Run. Grounded on the heap-based due-event selection
// of internal/liveness/scheduler.go, adapted from a time.Timer-driven heap
// to an epoll-driven dispatcher because the sockets registered here are raw
// AF_PACKET file descriptors rather than net.UDPConn.
package eventloop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"
)

// Socket is the event-loop collaborator's socket wrapper (spec.md §3/§6):
// a close-on-exec fd plus the hook points a registrant may set. Readiness
// is level-triggered (EPOLLIN without EPOLLET): DataReady is called on
// every turn in which the fd is readable, not only when it becomes
// readable. GetTimeout/CheckTimeout are consulted once per loop turn.
// UserData is opaque to the loop; the loop sets Err when the poller
// reports EPOLLERR/EPOLLHUP on the fd.
type Socket struct {
	Fd int

	DataReady    func()
	GetTimeout   func() (time.Time, bool)
	CheckTimeout func(now time.Time)

	UserData any
	Err      error
}

// defaultPollTimeout bounds how long Run blocks in epoll_wait when no
// socket has a pending deadline, so ctx cancellation is still observed
// promptly.
const defaultPollTimeout = 1 * time.Second

// Loop is the event-loop collaborator of spec.md §6: it registers raw
// socket fds for readiness polling and selects the soonest timeout across
// all registered sockets to compute its next wakeup.
type Loop struct {
	epfd    int
	sockets map[int]*Socket
}

// New creates an empty Loop backed by a Linux epoll instance.
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("eventloop: epoll_create1: %w", err)
	}
	return &Loop{
		epfd:    epfd,
		sockets: make(map[int]*Socket),
	}, nil
}

// Register causes the loop to poll sock.Fd for read-readiness and include
// sock in the soonest-timeout computation. Registering a fd twice replaces
// the previous registration for that fd.
func (l *Loop) Register(sock *Socket) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(sock.Fd)}
	op := unix.EPOLL_CTL_ADD
	if _, exists := l.sockets[sock.Fd]; exists {
		op = unix.EPOLL_CTL_MOD
	}
	if err := unix.EpollCtl(l.epfd, op, sock.Fd, &ev); err != nil {
		return fmt.Errorf("eventloop: epoll_ctl register fd=%d: %w", sock.Fd, err)
	}
	l.sockets[sock.Fd] = sock
	return nil
}

// Deregister removes fd from the poll set. It is a no-op if fd was never
// registered (mirrors Close being idempotent).
func (l *Loop) Deregister(fd int) {
	if _, ok := l.sockets[fd]; !ok {
		return
	}
	_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(l.sockets, fd)
}

// Close releases the underlying epoll fd. Registered sockets are not
// closed; that remains the owner's responsibility.
func (l *Loop) Close() error {
	return unix.Close(l.epfd)
}

// Run blocks, dispatching DataReady and CheckTimeout callbacks, until ctx
// is canceled or a fatal epoll error occurs. Exactly one callback executes
// at a time.
func (l *Loop) Run(ctx context.Context) error {
	events := make([]unix.EpollEvent, 16)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		timeout := l.nextPollTimeout()

		n, err := unix.EpollWait(l.epfd, events, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("eventloop: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			sock, ok := l.sockets[fd]
			if !ok {
				continue
			}
			if events[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				sock.Err = fmt.Errorf("eventloop: fd=%d reported EPOLLERR/EPOLLHUP", fd)
				slog.Warn("eventloop: socket error flagged by poller", "fd", fd)
			}
			if sock.DataReady != nil && events[i].Events&unix.EPOLLIN != 0 {
				sock.DataReady()
			}
		}

		l.fireDueTimeouts()
	}
}

// nextPollTimeout returns the epoll_wait timeout in milliseconds: the time
// until the soonest registered deadline, clamped to defaultPollTimeout.
func (l *Loop) nextPollTimeout() int {
	soonest, ok := l.soonestDeadline()
	if !ok {
		return int(defaultPollTimeout / time.Millisecond)
	}
	d := time.Until(soonest)
	if d <= 0 {
		return 0
	}
	if d > defaultPollTimeout {
		d = defaultPollTimeout
	}
	return int(d / time.Millisecond)
}

// soonestDeadline scans every registered socket's GetTimeout hook and
// returns the earliest one set, per spec.md §6 "soonest-timeout selection
// across all registered sockets".
func (l *Loop) soonestDeadline() (time.Time, bool) {
	var best time.Time
	found := false
	for _, sock := range l.sockets {
		if sock.GetTimeout == nil {
			continue
		}
		when, ok := sock.GetTimeout()
		if !ok {
			continue
		}
		if !found || when.Before(best) {
			best = when
			found = true
		}
	}
	return best, found
}

// fireDueTimeouts calls CheckTimeout on every socket that has one
// registered; each hook itself decides whether its deadline has passed.
func (l *Loop) fireDueTimeouts() {
	now := time.Now()
	for _, sock := range l.sockets {
		if sock.CheckTimeout != nil {
			sock.CheckTimeout(now)
		}
	}
}
