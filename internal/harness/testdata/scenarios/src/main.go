package main

import (
	"fmt"
	"geometry"
)

func main() {
	fmt.Println(geometry.area(3, 4))
}
