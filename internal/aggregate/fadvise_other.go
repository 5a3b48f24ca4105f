//go:build !linux

package aggregate

import "os"

func adviseSequential(*os.File, int64, int64) {}
