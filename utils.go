package oleforms

import "github.com/davecgh/go-spew/spew"

func Debug(arg interface{}) {
	spew.Dump(arg)
}

func uint32_min(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
