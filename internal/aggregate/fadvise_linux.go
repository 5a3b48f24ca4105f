package aggregate

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential tells the kernel the range will be read once, front to
// back. It is only a hint, so errors are dropped.
func adviseSequential(f *os.File, off, n int64) {
	_ = unix.Fadvise(int(f.Fd()), off, n, unix.FADV_SEQUENTIAL)
	_ = unix.Fadvise(int(f.Fd()), off, n, unix.FADV_WILLNEED)
}
