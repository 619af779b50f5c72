package runner

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/covefuzz/covefuzz/internal/ferrors"
	"github.com/covefuzz/covefuzz/internal/invariant"
)

const (
	// InputShmSize is the fixed 1 MiB input channel capacity. Inputs
	// longer than size-4 bytes are silently truncated.
	InputShmSize = 1 << 20

	controlChildFD = 198
	statusChildFD  = 199

	handshakeDeadline = 1 * time.Second

	forkserverLibPath = "/forkserver_lib.so"
)

// ForkServer is the persistent-child runner: a long-lived target process
// that forks per exec so the fuzzer pays process-creation cost once
// rather than once per test.
type ForkServer struct {
	id  uuid.UUID
	log *zap.Logger

	inputShm *sharedSegment
	covShm   *sharedSegment

	controlWrite *os.File // parent writes commands here
	statusRead   *os.File // parent reads pid+status here

	pid int

	mu     sync.Mutex
	closed bool
}

// NewForkServer constructs an unstarted runner. The target binary and the
// coverage bitmap size are supplied later, to Start.
func NewForkServer(log *zap.Logger) *ForkServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &ForkServer{id: uuid.New(), log: log}
}

// Start creates the shared-memory segments and pipes, spawns target with
// its environment variable contract, and waits for the 4-byte startup
// handshake within 1s. On any failure the runner is left fully released
// and the caller should fall back to the Subprocess runner.
func (f *ForkServer) Start(target string, covSize int) error {
	invariant.Precondition(target != "", "forkserver target path must not be empty")

	var err error
	f.inputShm, err = newSharedSegment("input", InputShmSize)
	if err != nil {
		return ferrors.Wrap(ferrors.CategoryHandshake, "create input shared segment", err)
	}
	f.covShm, err = newSharedSegment("cov", covSize)
	if err != nil {
		f.releaseAll()
		return ferrors.Wrap(ferrors.CategoryHandshake, "create coverage shared segment", err)
	}

	var controlFDs [2]int
	if err := unix.Pipe2(controlFDs[:], 0); err != nil {
		f.releaseAll()
		return ferrors.Wrap(ferrors.CategoryHandshake, "create control pipe", err)
	}
	var statusFDs [2]int
	if err := unix.Pipe2(statusFDs[:], 0); err != nil {
		unix.Close(controlFDs[0])
		unix.Close(controlFDs[1])
		f.releaseAll()
		return ferrors.Wrap(ferrors.CategoryHandshake, "create status pipe", err)
	}

	// controlFDs[1] (write end) stays with the parent; controlFDs[0]
	// (read end) goes to the child, remapped to fd 198.
	// statusFDs[0] (read end) stays with the parent; statusFDs[1] (write
	// end) goes to the child, remapped to fd 199.
	parentControl := controlFDs[1]
	childControl := controlFDs[0]
	parentStatus := statusFDs[0]
	childStatus := statusFDs[1]

	if err := unix.SetNonblock(parentStatus, true); err != nil {
		unix.Close(parentControl)
		unix.Close(childControl)
		unix.Close(parentStatus)
		unix.Close(childStatus)
		f.releaseAll()
		return ferrors.Wrap(ferrors.CategoryHandshake, "set status pipe nonblocking", err)
	}

	files := make([]uintptr, statusChildFD+1)
	for i := range files {
		files[i] = invalidFD
	}
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		unix.Close(parentControl)
		unix.Close(childControl)
		unix.Close(parentStatus)
		unix.Close(childStatus)
		f.releaseAll()
		return ferrors.Wrap(ferrors.CategoryHandshake, "open devnull", err)
	}
	defer devNull.Close()
	files[0] = devNull.Fd()
	files[1] = devNull.Fd()
	files[2] = devNull.Fd()
	files[controlChildFD] = uintptr(childControl)
	files[statusChildFD] = uintptr(childStatus)

	env := append(os.Environ(),
		"LD_PRELOAD="+forkserverLibPath,
		"FUZZER_SHM_NAME="+f.inputShm.name,
		fmt.Sprintf("FUZZER_SHM_SIZE=%d", f.inputShm.size),
		"FUZZER_COV_NAME="+f.covShm.name,
		fmt.Sprintf("FUZZER_COV_SIZE=%d", f.covShm.size),
	)

	pid, err := syscall.ForkExec(target, []string{target}, &syscall.ProcAttr{
		Files: files,
		Env:   env,
	})
	unix.Close(childControl)
	unix.Close(childStatus)
	if err != nil {
		unix.Close(parentControl)
		unix.Close(parentStatus)
		f.releaseAll()
		return ferrors.Wrap(ferrors.CategoryHandshake, "spawn target", err)
	}
	invariant.Positive(pid, "forkserver child pid")

	f.controlWrite = os.NewFile(uintptr(parentControl), "covefuzz-control")
	f.statusRead = os.NewFile(uintptr(parentStatus), "covefuzz-status")
	f.pid = pid

	handshake := make([]byte, 4)
	f.statusRead.SetReadDeadline(time.Now().Add(handshakeDeadline))
	n, err := readFull(f.statusRead, handshake)
	if err != nil || n != 4 {
		f.log.Warn("forkserver handshake failed", zap.String("target", target), zap.Error(err))
		f.controlWrite.Close()
		f.statusRead.Close()
		f.controlWrite, f.statusRead = nil, nil
		f.killChild()
		f.releaseAll()
		return ferrors.Wrap(ferrors.CategoryHandshake, "handshake timed out or incomplete", err)
	}

	f.log.Info("forkserver started", zap.String("target", target), zap.Int("pid", pid), zap.String("runner_id", f.id.String()))
	return nil
}

const invalidFD = ^uintptr(0)

// RunOne implements the per-exec protocol: write the length-prefixed
// input, send the 4-byte command, read back the child pid and wait-status
// each under timeout, and decode the crash/hang outcome.
func (f *ForkServer) RunOne(ctx context.Context, input []byte, timeout time.Duration) (ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ExecResult{}, ferrors.New(ferrors.CategoryIOTimeout, "runner closed")
	}

	n := len(input)
	if n > f.inputShm.size-4 {
		n = f.inputShm.size - 4
	}
	binary.LittleEndian.PutUint32(f.inputShm.data[0:4], uint32(n))
	copy(f.inputShm.data[4:4+n], input[:n])

	if _, err := f.controlWrite.Write([]byte{0, 0, 0, 0}); err != nil {
		return ExecResult{}, ferrors.Wrap(ferrors.CategoryIOTimeout, "write control command", err)
	}

	pidBuf := make([]byte, 4)
	f.statusRead.SetReadDeadline(time.Now().Add(timeout))
	if _, err := readFull(f.statusRead, pidBuf); err != nil {
		f.drainStatus()
		return ExecResult{Hung: true}, nil
	}
	childPid := int(binary.LittleEndian.Uint32(pidBuf))

	statusBuf := make([]byte, 4)
	f.statusRead.SetReadDeadline(time.Now().Add(timeout))
	if _, err := readFull(f.statusRead, statusBuf); err != nil {
		if childPid > 0 {
			unix.Kill(childPid, unix.SIGKILL)
		}
		f.drainStatus()
		return ExecResult{Hung: true}, nil
	}

	raw := binary.LittleEndian.Uint32(statusBuf)
	return decodeWaitStatus(syscall.WaitStatus(raw)), nil
}

func decodeWaitStatus(ws syscall.WaitStatus) ExecResult {
	if ws.Signaled() {
		sig := int(ws.Signal())
		return ExecResult{ExitCode: -sig, Signal: sig, Crashed: CrashSignals[sig]}
	}
	if ws.Exited() {
		return ExecResult{ExitCode: ws.ExitStatus()}
	}
	return ExecResult{}
}

// drainStatus consumes whatever is currently readable on the status pipe
// without blocking, so the next RunOne starts at a message boundary
// instead of reading a stale pid/status pair left over from a timeout.
func (f *ForkServer) drainStatus() {
	f.statusRead.SetReadDeadline(time.Now())
	buf := make([]byte, 64)
	for {
		n, err := f.statusRead.Read(buf)
		if n <= 0 || err != nil {
			return
		}
	}
}

func (f *ForkServer) killChild() {
	if f.pid > 0 {
		unix.Kill(f.pid, unix.SIGKILL)
		var ws syscall.WaitStatus
		syscall.Wait4(f.pid, &ws, 0, nil)
	}
}

func (f *ForkServer) ClearCoverage() {
	if f.covShm != nil {
		f.covShm.clear()
	}
}

func (f *ForkServer) ReadCoverageIndices() (map[int]struct{}, bool) {
	if f.covShm == nil {
		return nil, false
	}
	out := make(map[int]struct{})
	for i, b := range f.covShm.data {
		if b != 0 {
			out[i] = struct{}{}
		}
	}
	return out, true
}

// Close releases pipes, segments, and the child process in that order.
func (f *ForkServer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true

	if f.controlWrite != nil {
		f.controlWrite.Close()
	}
	if f.statusRead != nil {
		f.statusRead.Close()
	}
	f.releaseAll()
	f.killChild()
	return nil
}

func (f *ForkServer) releaseAll() {
	if f.inputShm != nil {
		f.inputShm.Close()
		f.inputShm = nil
	}
	if f.covShm != nil {
		f.covShm.Close()
		f.covShm = nil
	}
}

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
