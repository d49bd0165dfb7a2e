//go:build unix

package jit

import "golang.org/x/sys/unix"

// mapExec allocates an anonymous private read-write mapping big enough
// for size bytes. The kernel rounds the length up to whole pages.
func mapExec(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
}

// protectExec drops the write permission and adds execute.
func protectExec(mem []byte) error {
	return unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC)
}

// unmapExec returns the mapping to the OS.
func unmapExec(mem []byte) error {
	return unix.Munmap(mem)
}
