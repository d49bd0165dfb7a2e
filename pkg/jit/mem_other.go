//go:build !unix

package jit

import "errors"

var errNoExecMem = errors.New("jit: executable memory is not supported on this platform")

func mapExec(size int) ([]byte, error) {
	return nil, errNoExecMem
}

func protectExec(mem []byte) error {
	return errNoExecMem
}

func unmapExec(mem []byte) error {
	return nil
}
