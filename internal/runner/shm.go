package runner

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// sharedSegment is a POSIX-style named shared-memory region backed by a
// tmpfs file under /dev/shm, mmap'd MAP_SHARED so the parent and the
// forked-and-exec'd child (which re-opens it by name from the environment
// contract) observe the same bytes. Named segments must be unlinked on
// close so repeated runs don't leak entries across restarts.
type sharedSegment struct {
	name string
	path string
	size int
	data []byte
}

func newSharedSegment(namePrefix string, size int) (*sharedSegment, error) {
	name := fmt.Sprintf("/covefuzz-%s-%d", namePrefix, os.Getpid())
	path := "/dev/shm" + name

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("create shared segment %s: %w", path, err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Unlink(path)
		return nil, fmt.Errorf("size shared segment %s: %w", path, err)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Unlink(path)
		return nil, fmt.Errorf("mmap shared segment %s: %w", path, err)
	}

	return &sharedSegment{name: name, path: path, size: size, data: data}, nil
}

func (s *sharedSegment) Close() error {
	if s == nil || s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	unix.Unlink(s.path)
	return err
}

func (s *sharedSegment) clear() {
	for i := range s.data {
		s.data[i] = 0
	}
}
