package main

import (
	"oss.terrastruct.com/util-go/xmain"

	"oss.terrastruct.com/topo/topocli"
)

func main() {
	xmain.Main(topocli.Run)
}
