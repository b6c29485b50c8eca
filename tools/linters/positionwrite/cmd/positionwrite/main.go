package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/jyl/universe/tools/linters/positionwrite"
)

func main() {
	singlechecker.Main(positionwrite.Analyzer)
}
