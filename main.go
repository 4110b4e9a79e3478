package main

import (
	"github.com/cat2151/ym2151play/cmd"
	"github.com/cat2151/ym2151play/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
