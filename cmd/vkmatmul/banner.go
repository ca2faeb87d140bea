package main

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
)

func printBanner() {
	figure.NewFigure("vkmatmul", "", true).Print()
	fmt.Println()
}
