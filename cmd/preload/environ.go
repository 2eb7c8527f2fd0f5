package main

import "os"

func environSnapshot() []string {
	return os.Environ()
}
